package detection

import (
	"image"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// minLineLength is the length below which a line is treated as a single point
// and cannot be sampled.
const minLineLength = 1e-6

// Point is a 2D location in pixel space. Coordinates are fractional because
// transition locations and refined corners fall between pixel centres.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Grid is a row-major grayscale intensity matrix, Grid[y][x], on a 0-255 scale.
type Grid [][]float64

// Width returns the number of columns.
func (g Grid) Width() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Height returns the number of rows.
func (g Grid) Height() int {
	return len(g)
}

// NewGrid allocates a zeroed width x height grid.
func NewGrid(width, height int) Grid {
	g := make(Grid, height)
	for y := range g {
		g[y] = make([]float64, width)
	}
	return g
}

// Sample1D holds intensities sampled at equally spaced steps along a line.
// Positions[i] is the sample index i, not an arc length.
type Sample1D struct {
	Positions []float64 `json:"positions"`
	Values    []float64 `json:"values"`
}

// Len returns the number of samples.
func (s Sample1D) Len() int {
	return len(s.Values)
}

// ExtractRule selects how a multi-channel pixel is reduced to one intensity.
// Single-channel buffers ignore the rule.
type ExtractRule int

const (
	// ExtractFirstByte reads the first byte of each pixel: blue for BGR
	// layouts, red for RGB layouts. It reproduces the reference output and
	// is the default, although it is not a colour-accurate grayscale.
	ExtractFirstByte ExtractRule = iota

	// ExtractLuma computes ITU-R BT.601 luma, 0.299R + 0.587G + 0.114B.
	ExtractLuma

	// ExtractLightness computes CIE L* (go-colorful reports it on 0-1) and
	// rescales it to 0-255.
	ExtractLightness
)

// String returns the rule name accepted by ParseExtractRule.
func (r ExtractRule) String() string {
	switch r {
	case ExtractLuma:
		return "luma"
	case ExtractLightness:
		return "lightness"
	default:
		return "first-byte"
	}
}

// ParseExtractRule maps a configuration name to an ExtractRule. Unknown names
// fall back to ExtractFirstByte and report ok=false.
func ParseExtractRule(name string) (rule ExtractRule, ok bool) {
	switch name {
	case "", "first-byte":
		return ExtractFirstByte, true
	case "luma":
		return ExtractLuma, true
	case "lightness":
		return ExtractLightness, true
	default:
		return ExtractFirstByte, false
	}
}

// Sampler converts pixel buffers into the numeric inputs the detectors
// consume. The zero value uses ExtractFirstByte.
type Sampler struct {
	Rule ExtractRule
}

// intensity returns the 0-255 intensity of pixel (x, y). The caller guarantees
// the coordinates are in bounds.
func (s Sampler) intensity(b PixelBuffer, x, y int) float64 {
	idx := b.offset(x, y)
	if idx >= len(b.Pix) {
		return 0
	}
	if b.Layout == LayoutGray8 || b.bytesPerPixel() < 3 || s.Rule == ExtractFirstByte {
		return float64(b.Pix[idx])
	}

	ro, gro, bo := b.Layout.rgbOffsets()
	if idx+2 >= len(b.Pix) {
		return float64(b.Pix[idx])
	}
	r := float64(b.Pix[idx+ro])
	g := float64(b.Pix[idx+gro])
	bl := float64(b.Pix[idx+bo])

	switch s.Rule {
	case ExtractLuma:
		return 0.299*r + 0.587*g + 0.114*bl
	case ExtractLightness:
		c := colorful.Color{R: r / 255, G: g / 255, B: bl / 255}
		l, _, _ := c.Lab()
		return clampFloat(l*255, 0, 255)
	default:
		return float64(b.Pix[idx])
	}
}

// ToGrid extracts one intensity per pixel of the whole buffer.
// An invalid buffer yields nil.
func (s Sampler) ToGrid(b PixelBuffer) Grid {
	if !b.Valid() {
		return nil
	}
	return s.ToGridRegion(b, image.Rect(0, 0, b.Width, b.Height))
}

// ToGridRegion extracts the intensities inside region, clamped to the buffer.
// The returned grid is region-relative: Grid[0][0] is the clamped region's
// top-left pixel. A region with no area after clamping yields nil.
func (s Sampler) ToGridRegion(b PixelBuffer, region image.Rectangle) Grid {
	if !b.Valid() {
		return nil
	}
	r := region.Canon().Intersect(image.Rect(0, 0, b.Width, b.Height))
	if r.Empty() {
		return nil
	}

	g := NewGrid(r.Dx(), r.Dy())
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			g[y][x] = s.intensity(b, r.Min.X+x, r.Min.Y+y)
		}
	}
	return g
}

// SampleAlongLine samples intensities along the segment from start to end.
//
// The number of samples is max(round(length), 2). Sample i lies at parametric
// position t = i/(n-1); its point start + t*(end-start) is floored to a pixel
// and clamped to the buffer before lookup, so endpoints outside the buffer
// repeat the nearest edge pixel.
//
// Parameters:
//   - b: The buffer to read. It is never written.
//   - start, end: Segment endpoints in buffer coordinates; may be fractional.
//
// Returns:
//   - Sample1D: Positions[i] = i and Values[i] on a 0-255 scale. Empty when
//     the buffer is invalid, the segment is shorter than 1e-6, or the segment
//     needs more than MaxSamples(b) samples.
func (s Sampler) SampleAlongLine(b PixelBuffer, start, end Point) Sample1D {
	if !b.Valid() {
		return Sample1D{}
	}
	dx := end.X - start.X
	dy := end.Y - start.Y
	length := math.Hypot(dx, dy)
	if math.IsNaN(length) || length < minLineLength || length > float64(MaxSamples(b)) {
		return Sample1D{}
	}

	n := int(math.Round(length))
	if n < 2 {
		n = 2
	}

	out := Sample1D{
		Positions: make([]float64, n),
		Values:    make([]float64, n),
	}
	for i := 0; i < n; i++ {
		// i*d/(n-1) rather than (i/(n-1))*d keeps integer endpoints exact.
		x := clamp(int(math.Floor(start.X+float64(i)*dx/float64(n-1))), 0, b.Width-1)
		y := clamp(int(math.Floor(start.Y+float64(i)*dy/float64(n-1))), 0, b.Height-1)
		out.Values[i] = s.intensity(b, x, y)
		out.Positions[i] = float64(i)
	}
	return out
}

// MaxSamples is the longest profile SampleAlongLine takes from b: the
// buffer's perimeter. Any segment between two pixels of b is at most half
// that long.
func MaxSamples(b PixelBuffer) int {
	return 2 * (b.Width + b.Height)
}

// clamp constrains an integer value to the range [lo, hi].
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

func clampFloat(val, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, val))
}
