package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/ironsheep/pixel-profile-mcp/internal/detection"
)

// Overlay colours.
const (
	ColorLine      = "#00FFFF"
	ColorRectangle = "#FFFF00"
	ColorCorner    = "#00FF00"
	ColorRise      = "#FF4500"
	ColorFall      = "#FFDAB9"
	ColorGrid      = "#FF000080"
)

const (
	markerSize      = 5
	strokeThickness = 2
)

// LineShape is a labelled segment to draw.
type LineShape struct {
	Start detection.Point `json:"start"`
	End   detection.Point `json:"end"`
	Label string          `json:"label,omitempty"`
}

// RectangleShape is a labelled, possibly rotated rectangle outline to draw.
type RectangleShape struct {
	Rect  RectangleSpec `json:"rect"`
	Label string        `json:"label,omitempty"`
}

// Overlay lists everything Annotate draws on top of an image. Shapes are
// drawn first, then corner markers, then transition markers.
type Overlay struct {
	Lines       []LineShape                 `json:"lines,omitempty"`
	Rectangles  []RectangleShape            `json:"rectangles,omitempty"`
	Corners     []detection.CornerPoint     `json:"corners,omitempty"`
	Transitions []detection.TransitionPoint `json:"transitions,omitempty"`

	// GridSpacing draws a labelled coordinate grid every GridSpacing pixels
	// when positive.
	GridSpacing int `json:"grid_spacing,omitempty"`
}

// AnnotateResult contains the overlaid image.
type AnnotateResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Markers     int    `json:"markers"`
}

// Annotate draws an overlay on a copy of an image and returns it as PNG.
//
// Lines are cyan, rectangle outlines yellow, and both are 2 pixels wide.
// Corner markers are lime X crosses 5 pixels across; transition markers use
// the same cross in orange-red for Rise and peach-puff for Fall. Shapes and
// markers are clipped to the image, so geometry far outside it costs nothing
// to draw. Labels are drawn at the start of each line and at the first corner
// of each rectangle.
//
// Parameters:
//   - img: The source image. It is not modified.
//   - o: What to draw, in image pixel coordinates.
//
// Returns:
//   - *AnnotateResult: The annotated image as base64-encoded PNG and the
//     number of markers drawn.
//   - error: Non-nil if img has no pixels, o.GridSpacing is negative, or PNG
//     encoding fails.
func Annotate(img image.Image, o Overlay) (*AnnotateResult, error) {
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("image has no pixels")
	}
	if o.GridSpacing < 0 {
		return nil, fmt.Errorf("invalid grid spacing %d: must be >= 0", o.GridSpacing)
	}

	palette, err := overlayPalette()
	if err != nil {
		return nil, err
	}

	canvas := imaging.Clone(img)

	if o.GridSpacing > 0 {
		drawGrid(canvas, o.GridSpacing, palette["grid"])
	}

	layer := newShapeLayer(canvas.Bounds())
	for _, l := range o.Lines {
		layer.stroke(palette["line"], [2]detection.Point{l.Start, l.End})
	}
	for _, r := range o.Rectangles {
		layer.outline(palette["rectangle"], r.Rect.Corners())
	}

	markers := 0
	for _, c := range o.Corners {
		layer.cross(palette["corner"], detection.Pt(c.X, c.Y))
		markers++
	}
	for _, t := range o.Transitions {
		col := palette["fall"]
		if t.Kind == detection.Rise {
			col = palette["rise"]
		}
		layer.cross(col, t.Location)
		markers++
	}
	layer.drawOnto(canvas)

	for _, l := range o.Lines {
		drawLabel(canvas, l.Start, l.Label, palette["line"])
	}
	for _, r := range o.Rectangles {
		drawLabel(canvas, r.Rect.Corners()[0], r.Label, palette["rectangle"])
	}

	encoded, err := encodePNG(canvas)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &AnnotateResult{
		Width:       canvas.Bounds().Dx(),
		Height:      canvas.Bounds().Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
		Markers:     markers,
	}, nil
}

func overlayPalette() (map[string]color.Color, error) {
	hexes := map[string]string{
		"line":      ColorLine,
		"rectangle": ColorRectangle,
		"corner":    ColorCorner,
		"rise":      ColorRise,
		"fall":      ColorFall,
	}
	palette := make(map[string]color.Color, len(hexes)+1)
	for name, hex := range hexes {
		c, err := colorful.Hex(hex)
		if err != nil {
			return nil, fmt.Errorf("invalid %s colour %q: %w", name, hex, err)
		}
		palette[name] = c.Clamped()
	}
	grid, err := parseHexColor(ColorGrid)
	if err != nil {
		return nil, err
	}
	palette["grid"] = grid
	return palette, nil
}

// parseHexColor accepts "#RRGGBB" or "#RRGGBBAA". The alpha byte is not
// something go-colorful parses, so it is split off first.
func parseHexColor(hex string) (color.NRGBA, error) {
	alpha := uint8(255)
	if len(hex) == 9 {
		var a uint8
		if _, err := fmt.Sscanf(hex[7:], "%02x", &a); err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid alpha in %q: %w", hex, err)
		}
		alpha = a
		hex = hex[:7]
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// shapeLayer strokes shapes on a transparent vgimg canvas the size of the
// image, at 72 dpi so one vg point is one pixel. vg's origin is the bottom
// left corner: pixel (x, y) is centred at (x+0.5, h-y-0.5).
type shapeLayer struct {
	vc   *vgimg.Canvas
	h    vg.Length
	clip vg.Rectangle
}

func newShapeLayer(bounds image.Rectangle) *shapeLayer {
	w, h := vg.Length(bounds.Dx()), vg.Length(bounds.Dy())
	vc := vgimg.NewWith(
		vgimg.UseWH(w, h),
		vgimg.UseDPI(72),
		vgimg.UseBackgroundColor(color.Transparent),
	)
	vc.SetLineWidth(vg.Length(strokeThickness))

	const margin = vg.Length(markerSize + strokeThickness)
	clip := vg.Rectangle{
		Min: vg.Point{X: -margin, Y: -margin},
		Max: vg.Point{X: w + margin, Y: h + margin},
	}
	return &shapeLayer{vc: vc, h: h, clip: clip}
}

func (l *shapeLayer) pt(p detection.Point) vg.Point {
	return vg.Point{X: vg.Length(p.X + 0.5), Y: l.h - vg.Length(p.Y+0.5)}
}

// stroke draws each segment, clipped to the layer.
func (l *shapeLayer) stroke(col color.Color, segments ...[2]detection.Point) {
	var path vg.Path
	for _, s := range segments {
		a, b, ok := clipSegment(l.pt(s[0]), l.pt(s[1]), l.clip)
		if !ok {
			continue
		}
		path.Move(a)
		path.Line(b)
	}
	if len(path) == 0 {
		return
	}
	l.vc.SetColor(col)
	l.vc.Stroke(path)
}

// outline draws a closed quadrilateral. One that reaches past the clip
// margin is drawn edge by edge so each edge can be clipped.
func (l *shapeLayer) outline(col color.Color, c [4]detection.Point) {
	inside := true
	for _, p := range c {
		v := l.pt(p)
		inside = inside && v.X >= l.clip.Min.X && v.X <= l.clip.Max.X && v.Y >= l.clip.Min.Y && v.Y <= l.clip.Max.Y
	}
	if !inside {
		l.stroke(col, [2]detection.Point{c[0], c[1]}, [2]detection.Point{c[1], c[2]},
			[2]detection.Point{c[2], c[3]}, [2]detection.Point{c[3], c[0]})
		return
	}

	var path vg.Path
	path.Move(l.pt(c[0]))
	for _, p := range c[1:] {
		path.Line(l.pt(p))
	}
	path.Close()
	l.vc.SetColor(col)
	l.vc.Stroke(path)
}

// cross draws a markerSize X centred on at.
func (l *shapeLayer) cross(col color.Color, at detection.Point) {
	h := float64(markerSize) / 2
	l.stroke(col,
		[2]detection.Point{detection.Pt(at.X-h, at.Y-h), detection.Pt(at.X+h, at.Y+h)},
		[2]detection.Point{detection.Pt(at.X-h, at.Y+h), detection.Pt(at.X+h, at.Y-h)})
}

func (l *shapeLayer) drawOnto(dst *image.NRGBA) {
	draw.Draw(dst, dst.Bounds(), l.vc.Image(), image.Point{}, draw.Over)
}

// clipSegment clips a..b to r (Liang-Barsky). ok is false when no part of
// the segment lies in r.
func clipSegment(a, b vg.Point, r vg.Rectangle) (vg.Point, vg.Point, bool) {
	d := b.Sub(a)
	if math.IsInf(float64(d.X), 0) || math.IsInf(float64(d.Y), 0) || math.IsNaN(float64(d.X)) || math.IsNaN(float64(d.Y)) {
		return a, b, false
	}

	t0, t1 := 0.0, 1.0
	edges := [4][2]vg.Length{
		{-d.X, a.X - r.Min.X},
		{d.X, r.Max.X - a.X},
		{-d.Y, a.Y - r.Min.Y},
		{d.Y, r.Max.Y - a.Y},
	}
	for _, e := range edges {
		p, q := float64(e[0]), float64(e[1])
		if p == 0 {
			if q < 0 {
				return a, b, false
			}
			continue
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return a, b, false
			}
			t0 = math.Max(t0, t)
		} else {
			if t < t0 {
				return a, b, false
			}
			t1 = math.Min(t1, t)
		}
	}
	return a.Add(d.Scale(vg.Length(t0))), a.Add(d.Scale(vg.Length(t1))), true
}

func drawLabel(dst *image.NRGBA, at detection.Point, text string, col color.Color) {
	if text == "" {
		return
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		// Place the baseline just above the anchor.
		Dot: fixed.P(int(at.X)+2, int(at.Y)-3),
	}
	d.DrawString(text)
}

// drawGrid draws lines every spacing pixels with "x,y" labels at each
// intersection.
func drawGrid(dst *image.NRGBA, spacing int, col color.Color) {
	b := dst.Bounds()
	for x := spacing; x < b.Dx(); x += spacing {
		for y := 0; y < b.Dy(); y++ {
			dst.Set(x, y, col)
		}
	}
	for y := spacing; y < b.Dy(); y += spacing {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(x, y, col)
		}
	}
	for y := spacing; y < b.Dy(); y += spacing {
		for x := spacing; x < b.Dx(); x += spacing {
			drawLabel(dst, detection.Pt(float64(x), float64(y+13)), fmt.Sprintf("%d,%d", x, y), col)
		}
	}
}
