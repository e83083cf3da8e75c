// Package detection implements the pixel-profile feature detectors: Harris
// corners inside a region and rise/fall transitions along a line.
//
// The package has three parts:
//
//   - Sampler turns a PixelBuffer into a Grid (for corners) or a Sample1D taken
//     along a segment (for transitions).
//   - DetectCorners is the reference Harris detector over a Grid. Corner
//     backends wrap it (and alternatives) behind the CornerBackend interface,
//     selected by name with NewCornerBackend.
//   - DetectTransitions finds intensity steps in a Sample1D and maps them back
//     to points on the segment.
//
// # Purity
//
// Every detection call allocates its own grids and returns fresh slices. The
// same pixels and parameters always give the same ordered output: ties in
// ranking are broken by scan order through stable sorts.
//
// # Coordinate System
//
// Origin (0, 0) at the top-left pixel, X rightward, Y downward. Corners are
// reported in buffer coordinates even when detection ran on a sub-region.
//
// # Failure
//
// Degenerate input (no pixels, zero-length line, region smaller than the
// Harris window, nothing above threshold) yields an empty result, never an
// error. Corner backends additionally recover from panics and report them in
// CornersResult.Diagnostic.
//
// # Concurrency
//
// Detection functions hold no shared state and may run concurrently, provided
// the PixelBuffer they read is not mutated during the call. The optional
// OpenCV backend is compiled only with the gocv build tag.
package detection
