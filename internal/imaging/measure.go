package imaging

import (
	"fmt"
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/pixel-profile-mcp/internal/detection"
)

// LineMeasurement describes the geometry of a line segment.
type LineMeasurement struct {
	Start               detection.Point `json:"start"`
	End                 detection.Point `json:"end"`
	LengthPixels        float64         `json:"length_pixels"`
	DeltaX              float64         `json:"delta_x"`
	DeltaY              float64         `json:"delta_y"`
	AngleDegrees        float64         `json:"angle_degrees"`
	LengthPercentWidth  float64         `json:"length_percent_width"`
	LengthPercentHeight float64         `json:"length_percent_height"`
}

// MeasureLine calculates length and angle of the segment start..end.
//
// The angle follows image axes: 0 points right and 90 points down. Values are
// rounded to two decimals.
func MeasureLine(img image.Image, start, end detection.Point) (*LineMeasurement, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("image has no pixels")
	}
	width := float64(bounds.Dx())
	height := float64(bounds.Dy())

	dx := end.X - start.X
	dy := end.Y - start.Y
	length := math.Hypot(dx, dy)
	angle := math.Atan2(dy, dx) * 180 / math.Pi

	return &LineMeasurement{
		Start:               start,
		End:                 end,
		LengthPixels:        round2(length),
		DeltaX:              round2(dx),
		DeltaY:              round2(dy),
		AngleDegrees:        round2(angle),
		LengthPercentWidth:  round2(length / width * 100),
		LengthPercentHeight: round2(length / height * 100),
	}, nil
}

// RectangleSpec is an axis-aligned rectangle, optionally rotated about its
// center by Rotation degrees (clockwise on screen, since Y points down).
type RectangleSpec struct {
	Left     float64 `json:"left"`
	Top      float64 `json:"top"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
}

// Bounds returns the unrotated pixel rectangle covered by r.
func (r RectangleSpec) Bounds() image.Rectangle {
	return image.Rect(
		int(math.Floor(r.Left)),
		int(math.Floor(r.Top)),
		int(math.Ceil(r.Left+r.Width)),
		int(math.Ceil(r.Top+r.Height)),
	)
}

// Center returns the midpoint of the rectangle.
func (r RectangleSpec) Center() detection.Point {
	return detection.Pt(r.Left+r.Width/2, r.Top+r.Height/2)
}

// Corners returns top-left, top-right, bottom-right and bottom-left after
// rotation about the center.
func (r RectangleSpec) Corners() [4]detection.Point {
	c := r.Center()
	rot := func(x, y float64) detection.Point {
		return rotateAbout(detection.Pt(x, y), c, r.Rotation)
	}
	return [4]detection.Point{
		rot(r.Left, r.Top),
		rot(r.Left+r.Width, r.Top),
		rot(r.Left+r.Width, r.Top+r.Height),
		rot(r.Left, r.Top+r.Height),
	}
}

func rotateAbout(p, center detection.Point, degrees float64) detection.Point {
	rad := degrees * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	dx := p.X - center.X
	dy := p.Y - center.Y
	return detection.Pt(center.X+dx*cos-dy*sin, center.Y+dx*sin+dy*cos)
}

// RectangleMeasurement describes a rectangle's geometry.
type RectangleMeasurement struct {
	Width     float64            `json:"width"`
	Height    float64            `json:"height"`
	Area      float64            `json:"area"`
	Perimeter float64            `json:"perimeter"`
	Position  detection.Point    `json:"position"`
	Center    detection.Point    `json:"center"`
	Rotation  float64            `json:"rotation"`
	Corners   [4]detection.Point `json:"corners"`

	// PercentOfImage is Area relative to the image area.
	PercentOfImage float64 `json:"percent_of_image"`
}

// MeasureRectangle reports width, height, area, perimeter, center and the four
// rotated corners of r. Width and height must be positive.
func MeasureRectangle(img image.Image, r RectangleSpec) (*RectangleMeasurement, error) {
	if !(r.Width > 0) || !(r.Height > 0) {
		return nil, fmt.Errorf("invalid rectangle: width and height must be positive, got %vx%v", r.Width, r.Height)
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("image has no pixels")
	}

	area := r.Width * r.Height
	return &RectangleMeasurement{
		Width:          r.Width,
		Height:         r.Height,
		Area:           area,
		Perimeter:      2 * (r.Width + r.Height),
		Position:       detection.Pt(r.Left, r.Top),
		Center:         r.Center(),
		Rotation:       r.Rotation,
		Corners:        r.Corners(),
		PercentOfImage: round2(area / float64(bounds.Dx()*bounds.Dy()) * 100),
	}, nil
}

// Stats summarises a set of intensities.
type Stats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Range  float64 `json:"range"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`

	// StdDev is the sample standard deviation; zero for fewer than two values.
	StdDev float64 `json:"std_dev"`
}

// ProfileStats summarises the values of a line profile.
func ProfileStats(s detection.Sample1D) Stats {
	return summarize(s.Values)
}

// RegionStats summarises every intensity in a grid.
func RegionStats(g detection.Grid) Stats {
	values := make([]float64, 0, g.Width()*g.Height())
	for _, row := range g {
		values = append(values, row...)
	}
	return summarize(values)
}

func summarize(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	st := Stats{
		Count:  len(values),
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   stat.Mean(values, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
	}
	st.Range = st.Max - st.Min
	if len(values) > 1 {
		st.StdDev = stat.StdDev(values, nil)
	}
	return st
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
