// Package imaging turns image files into the inputs and outputs of the pixel
// profile tools: cached decodes, detection buffers, crops, measurements,
// colour probes, overlays and profile charts.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based and relative to the
// image's top-left pixel:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, Min is inclusive and Max is exclusive
//
// Line endpoints and rectangle edges are float64 so that sub-pixel detector
// output can be measured and drawn without rounding.
//
// # Versions
//
// Every decode in an ImageCache gets a version number that is unique across
// the process. Callers that memoise detection results key them by version,
// so evicting and reloading a file invalidates those results.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The remaining functions are
// stateless and may run concurrently as long as the images they read are not
// mutated.
//
// # Color Representation
//
// Colors are returned in multiple formats:
//   - Hex: 6-character format "#RRGGBB" (alpha excluded)
//   - RGB / RGBA: 8-bit components
//   - HSL: Hue (0-360), Saturation (0-100), Lightness (0-100)
//   - Intensity: the value each detection extraction rule reads
package imaging
