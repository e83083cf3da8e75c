package detection

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"gonum.org/v1/gonum/mat"
)

// preBlurRadius matches the 3x3 Gaussian applied before corner detection in
// the OpenCV pipeline.
const preBlurRadius = 1.0

// SubPixelBackend is a pure-Go alternative to the OpenCV pipeline: it blurs
// the region, runs the Harris response with the same parameter semantics as
// the reference backend, and refines each corner to sub-pixel precision by
// fitting a quadratic to its 3x3 response neighbourhood.
type SubPixelBackend struct {
	opts backendOptions
}

// NewSubPixelBackend returns the sub-pixel backend.
func NewSubPixelBackend(opts ...BackendOption) *SubPixelBackend {
	return &SubPixelBackend{opts: newBackendOptions(opts)}
}

// Name returns "subpixel".
func (b *SubPixelBackend) Name() string { return "subpixel" }

// DetectCorners implements CornerBackend.
func (b *SubPixelBackend) DetectCorners(buf PixelBuffer, region image.Rectangle, p CornerParams) CornersResult {
	return runGuarded(b.Name(), b.opts.logger, region, func() ([]CornerPoint, image.Point, error) {
		if err := p.Validate(); err != nil {
			return nil, image.Point{}, err
		}
		r := clampedRegion(buf, region)
		grid := b.opts.sampler.ToGridRegion(buf, r)
		if grid == nil || !fitsWindow(grid, p.BlockSize) {
			return []CornerPoint{}, r.Min, nil
		}

		resp := harrisResponse(gaussianBlur(grid, preBlurRadius), p.BlockSize)
		candidates := rankCandidates(resp, p)
		for i := range candidates {
			candidates[i] = refineCorner(resp, candidates[i])
		}
		return filterByMinDistance(candidates, p.MinDistance), r.Min, nil
	})
}

// gaussianBlur smooths a grid through bild's Gaussian filter. Intensities are
// rounded to 8 bits on the way in.
func gaussianBlur(g Grid, radius float64) Grid {
	width, height := g.Width(), g.Height()
	gray := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gray.Pix[y*gray.Stride+x] = uint8(clampFloat(math.Round(g[y][x]), 0, 255))
		}
	}

	blurred := blur.Gaussian(gray, radius)
	out := NewGrid(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			// Input is gray, so R == G == B.
			out[y][x] = float64(blurred.Pix[y*blurred.Stride+x*4])
		}
	}
	return out
}

// refineCorner moves c to the extremum of the quadratic through its 3x3
// response neighbourhood. The integer position is kept when the fit is
// singular or the offset leaves the neighbourhood.
func refineCorner(resp Grid, c CornerPoint) CornerPoint {
	x, y := int(c.X), int(c.Y)
	if y < 1 || y >= resp.Height()-1 || x < 1 || x >= resp.Width()-1 {
		return c
	}

	gx := (resp[y][x+1] - resp[y][x-1]) / 2
	gy := (resp[y+1][x] - resp[y-1][x]) / 2
	hxx := resp[y][x+1] - 2*resp[y][x] + resp[y][x-1]
	hyy := resp[y+1][x] - 2*resp[y][x] + resp[y-1][x]
	hxy := (resp[y+1][x+1] - resp[y+1][x-1] - resp[y-1][x+1] + resp[y-1][x-1]) / 4

	h := mat.NewDense(2, 2, []float64{hxx, hxy, hxy, hyy})
	g := mat.NewVecDense(2, []float64{-gx, -gy})

	var off mat.VecDense
	if err := off.SolveVec(h, g); err != nil {
		return c
	}
	ox, oy := off.AtVec(0), off.AtVec(1)
	if math.IsNaN(ox) || math.IsNaN(oy) || math.Abs(ox) > 1 || math.Abs(oy) > 1 {
		return c
	}
	c.X += ox
	c.Y += oy
	return c
}
