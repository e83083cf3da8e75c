//go:build gocv

package detection

import (
	"fmt"
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"
)

func init() {
	RegisterCornerBackend("opencv", func(opts ...BackendOption) CornerBackend {
		return NewOpenCVBackend(opts...)
	})
}

// OpenCVBackend detects corners with OpenCV's GoodFeaturesToTrack and refines
// them with CornerSubPix. It is only built with the gocv tag.
//
// gocv's GoodFeaturesToTrack does not expose blockSize or the Harris flag, so
// candidates are chosen with OpenCV's default window and Shi-Tomasi
// (minimum eigenvalue) scoring rather than Harris with k=0.04. BlockSize still
// drives the reported responses, which are read from the reference Harris
// response surface, and corners are ranked by those responses.
type OpenCVBackend struct {
	opts backendOptions
}

// NewOpenCVBackend returns the OpenCV backend.
func NewOpenCVBackend(opts ...BackendOption) *OpenCVBackend {
	return &OpenCVBackend{opts: newBackendOptions(opts)}
}

// Name returns "opencv".
func (b *OpenCVBackend) Name() string { return "opencv" }

// DetectCorners implements CornerBackend.
func (b *OpenCVBackend) DetectCorners(buf PixelBuffer, region image.Rectangle, p CornerParams) CornersResult {
	return runGuarded(b.Name(), b.opts.logger, region, func() ([]CornerPoint, image.Point, error) {
		if err := p.Validate(); err != nil {
			return nil, image.Point{}, err
		}
		r := clampedRegion(buf, region)
		grid := b.opts.sampler.ToGridRegion(buf, r)
		if grid == nil || !fitsWindow(grid, p.BlockSize) {
			return []CornerPoint{}, r.Min, nil
		}
		corners, err := goodFeatures(grid, p)
		if err != nil {
			return nil, r.Min, err
		}
		return corners, r.Min, nil
	})
}

func goodFeatures(grid Grid, p CornerParams) ([]CornerPoint, error) {
	width, height := grid.Width(), grid.Height()
	data := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			data[y*width+x] = uint8(clampFloat(math.Round(grid[y][x]), 0, 255))
		}
	}

	gray, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC1, data)
	if err != nil {
		return nil, fmt.Errorf("failed to build gray mat: %w", err)
	}
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(3, 3), 0, 0, gocv.BorderDefault)

	found := gocv.NewMat()
	defer found.Close()
	// maxCorners 0 disables OpenCV's own cap; callers apply MaxCorners.
	gocv.GoodFeaturesToTrack(blurred, &found, 0, p.QualityLevel, p.MinDistance)
	if found.Empty() {
		return []CornerPoint{}, nil
	}

	criteria := gocv.NewTermCriteria(gocv.Count|gocv.EPS, 40, 0.001)
	gocv.CornerSubPix(gray, &found, image.Pt(5, 5), image.Pt(-1, -1), criteria)

	resp := harrisResponse(grid, p.BlockSize)
	corners := make([]CornerPoint, 0, found.Rows())
	for i := 0; i < found.Rows(); i++ {
		v := found.GetVecfAt(i, 0)
		x, y := float64(v[0]), float64(v[1])
		rx := clamp(int(math.Round(x)), 0, width-1)
		ry := clamp(int(math.Round(y)), 0, height-1)
		corners = append(corners, CornerPoint{X: x, Y: y, Response: resp[ry][rx]})
	}
	sort.SliceStable(corners, func(i, j int) bool {
		return corners[i].Response > corners[j].Response
	})
	return corners, nil
}
