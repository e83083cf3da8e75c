package imaging

import (
	"fmt"
	"image"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// RGBColor represents an RGB color with 8-bit components.
type RGBColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// RGBAColor represents an RGBA color with 8-bit components including alpha.
//
// The alpha component represents opacity:
//   - 0 = fully transparent
//   - 255 = fully opaque
type RGBAColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// HSLColor represents a color in HSL (Hue, Saturation, Lightness) color space.
type HSLColor struct {
	H int `json:"h"` // Hue: 0-360 degrees (0=red, 120=green, 240=blue)
	S int `json:"s"` // Saturation: 0-100 percent (0=gray, 100=vivid)
	L int `json:"l"` // Lightness: 0-100 percent (0=black, 50=normal, 100=white)
}

// ColorResult contains a pixel's color in several representations, plus the
// intensity each extraction rule would give the detectors.
type ColorResult struct {
	X    int       `json:"x"`
	Y    int       `json:"y"`
	Hex  string    `json:"hex"`  // Hex format "#RRGGBB" (no alpha)
	RGB  RGBColor  `json:"rgb"`  // RGB components
	RGBA RGBAColor `json:"rgba"` // RGBA components with alpha
	HSL  HSLColor  `json:"hsl"`  // HSL representation

	// Intensity maps extraction rule names to the 0-255 value the sampler
	// reads at this pixel.
	Intensity map[string]float64 `json:"intensity"`
}

// SampleColor extracts the color value at a specific pixel coordinate.
//
// Coordinates are 0-based with origin at the image's top-left pixel. Alpha is
// un-premultiplied before conversion, so a half-transparent red reports
// R=255, A=128.
func SampleColor(img image.Image, x, y int) (*ColorResult, error) {
	bounds := img.Bounds()
	if x < 0 || x >= bounds.Dx() || y < 0 || y >= bounds.Dy() {
		return nil, fmt.Errorf("coordinates (%d,%d) outside image bounds %dx%d", x, y, bounds.Dx(), bounds.Dy())
	}

	c, alpha := colorful.MakeColor(img.At(bounds.Min.X+x, bounds.Min.Y+y))
	var r8, g8, b8 uint8
	if alpha {
		r8, g8, b8 = c.RGB255()
	}
	_, _, _, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
	a8 := uint8(a >> 8)

	intensity := map[string]float64{
		"first-byte": float64(b8),
		"luma":       0.299*float64(r8) + 0.587*float64(g8) + 0.114*float64(b8),
		"lightness":  lightness(r8, g8, b8),
	}
	// Gray8 buffers ignore the extraction rule.
	if g, ok := img.(*image.Gray); ok {
		v := float64(g.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
		for k := range intensity {
			intensity[k] = v
		}
	}

	return &ColorResult{
		X:         x,
		Y:         y,
		Hex:       fmt.Sprintf("#%02X%02X%02X", r8, g8, b8),
		RGB:       RGBColor{R: r8, G: g8, B: b8},
		RGBA:      RGBAColor{R: r8, G: g8, B: b8, A: a8},
		HSL:       toHSL(r8, g8, b8),
		Intensity: intensity,
	}, nil
}

// toHSL converts 8-bit RGB to integer HSL, truncating each component.
func toHSL(r, g, b uint8) HSLColor {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	h, s, l := c.Hsl()
	return HSLColor{
		H: int(h),
		S: int(s * 100),
		L: int(l * 100),
	}
}

func lightness(r, g, b uint8) float64 {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	l, _, _ := c.Lab()
	return math.Max(0, math.Min(255, l*255))
}
