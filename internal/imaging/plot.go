package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/ironsheep/pixel-profile-mcp/internal/detection"
)

// Plot size limits in pixels.
const (
	DefaultPlotWidth  = 800
	DefaultPlotHeight = 300
	minPlotSide       = 100
	maxPlotSide       = 4000
)

// vgimg renders at 96 dpi; vg lengths are in points (72 per inch).
const pixelsToPoints = 72.0 / 96.0

// ProfilePlotResult contains the rendered chart.
type ProfilePlotResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Samples     int    `json:"samples"`
}

// ProfilePlot renders a line profile as a PNG chart: intensity against sample
// index, with Rise and Fall transitions marked as crosses. The Y axis is fixed
// to 0-255.
//
// Parameters:
//   - s: The sampled profile. Must not be empty.
//   - transitions: Points to mark; entries whose SampleIndex falls outside s
//     are skipped.
//   - width, height: Chart size in pixels. Zero selects DefaultPlotWidth or
//     DefaultPlotHeight; other values must lie in [100, 4000].
//
// Returns:
//   - *ProfilePlotResult: The chart as base64-encoded PNG.
//   - error: Non-nil if s is empty or inconsistent, the size is out of range,
//     or rendering fails.
func ProfilePlot(s detection.Sample1D, transitions []detection.TransitionPoint, width, height int) (*ProfilePlotResult, error) {
	if s.Len() == 0 {
		return nil, fmt.Errorf("profile has no samples")
	}
	if len(s.Positions) != len(s.Values) {
		return nil, fmt.Errorf("profile has %d positions for %d values", len(s.Positions), len(s.Values))
	}
	if width == 0 {
		width = DefaultPlotWidth
	}
	if height == 0 {
		height = DefaultPlotHeight
	}
	if width < minPlotSide || width > maxPlotSide || height < minPlotSide || height > maxPlotSide {
		return nil, fmt.Errorf("plot size %dx%d outside [%d,%d]", width, height, minPlotSide, maxPlotSide)
	}

	p := plot.New()
	p.Title.Text = "Pixel Value Profile"
	p.X.Label.Text = "Position"
	p.Y.Label.Text = "Pixel Value"

	pts := make(plotter.XYs, s.Len())
	for i := range s.Values {
		pts[i] = plotter.XY{X: s.Positions[i], Y: s.Values[i]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build profile line: %w", err)
	}
	line.Color = color.RGBA{B: 255, A: 255}
	line.Width = vg.Points(1)
	p.Add(line)

	for _, kind := range []detection.TransitionKind{detection.Rise, detection.Fall} {
		marks := make(plotter.XYs, 0)
		for _, t := range transitions {
			if t.Kind == kind && t.SampleIndex >= 0 && t.SampleIndex < s.Len() {
				marks = append(marks, plotter.XY{X: s.Positions[t.SampleIndex], Y: s.Values[t.SampleIndex]})
			}
		}
		if len(marks) == 0 {
			continue
		}
		scatter, err := plotter.NewScatter(marks)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s markers: %w", kind, err)
		}
		hex := ColorFall
		if kind == detection.Rise {
			hex = ColorRise
		}
		c, err := colorful.Hex(hex)
		if err != nil {
			return nil, fmt.Errorf("invalid %s colour: %w", kind, err)
		}
		scatter.GlyphStyle.Color = c
		scatter.GlyphStyle.Shape = draw.CrossGlyph{}
		scatter.GlyphStyle.Radius = vg.Points(4)
		p.Add(scatter)
		p.Legend.Add(kind.String(), scatter)
	}

	p.Y.Min = 0
	p.Y.Max = 255
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	wt, err := p.WriterTo(vg.Length(float64(width)*pixelsToPoints), vg.Length(float64(height)*pixelsToPoints), "png")
	if err != nil {
		return nil, fmt.Errorf("failed to render plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode plot: %w", err)
	}

	return &ProfilePlotResult{
		Width:       width,
		Height:      height,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
		Samples:     s.Len(),
	}, nil
}
