package detection

import (
	"sort"
)

// harrisK is the sensitivity constant in R = det - k*trace^2.
const harrisK = 0.04

// CornerPoint is a detected corner and its Harris response.
type CornerPoint struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Response float64 `json:"response"`
}

// DetectCorners runs the reference Harris corner detector over a grayscale grid.
//
// # Algorithm
//
//  1. Gradients: Ix = I[y][x+1] - I[y][x-1] and Iy = I[y+1][x] - I[y-1][x] for
//     interior pixels; the one-pixel border keeps zero gradient.
//  2. Structure tensor: for each pixel whose (2*BlockSize+1)^2 window fits in
//     the grid, sum Ix^2, Iy^2 and Ix*Iy over the window.
//  3. Response: R = det - 0.04*trace^2.
//  4. Threshold: keep R > QualityLevel * max(0, max R).
//  5. Non-maximum suppression: keep a pixel only if R is strictly greater than
//     all 8 neighbours. Plateaus therefore produce no corners.
//  6. Stable sort by descending R; equal responses keep row-major scan order.
//  7. Minimum distance: walk the sorted list and drop any point closer than
//     MinDistance to a point already kept.
//
// Parameters:
//   - grid: Grayscale intensities, grid[y][x], on a 0-255 scale.
//   - p: Detection parameters. MaxCorners is not applied; use LimitCorners.
//
// Returns:
//   - []CornerPoint: Corners in grid coordinates, strongest first. Never nil.
//
// A grid smaller than 2*BlockSize+1 in either dimension, a uniform grid, or
// invalid params yield an empty result.
func DetectCorners(grid Grid, p CornerParams) []CornerPoint {
	if p.Validate() != nil || !fitsWindow(grid, p.BlockSize) {
		return []CornerPoint{}
	}
	resp := harrisResponse(grid, p.BlockSize)
	return selectCorners(resp, p)
}

// LimitCorners truncates a ranked corner list to at most max entries.
// A non-positive max returns the list unchanged.
func LimitCorners(points []CornerPoint, max int) []CornerPoint {
	if max <= 0 || len(points) <= max {
		return points
	}
	return points[:max]
}

func fitsWindow(g Grid, blockSize int) bool {
	side := 2*blockSize + 1
	return g.Width() >= side && g.Height() >= side
}

// harrisResponse computes the Harris response surface. Pixels without a full
// window inside the grid keep a response of zero.
func harrisResponse(g Grid, blockSize int) Grid {
	width, height := g.Width(), g.Height()

	ix := NewGrid(width, height)
	iy := NewGrid(width, height)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			ix[y][x] = g[y][x+1] - g[y][x-1]
			iy[y][x] = g[y+1][x] - g[y-1][x]
		}
	}

	resp := NewGrid(width, height)
	for y := blockSize; y < height-blockSize; y++ {
		for x := blockSize; x < width-blockSize; x++ {
			var sxx, syy, sxy float64
			for dy := -blockSize; dy <= blockSize; dy++ {
				for dx := -blockSize; dx <= blockSize; dx++ {
					gx := ix[y+dy][x+dx]
					gy := iy[y+dy][x+dx]
					sxx += gx * gx
					syy += gy * gy
					sxy += gx * gy
				}
			}
			det := sxx*syy - sxy*sxy
			trace := sxx + syy
			resp[y][x] = det - harrisK*trace*trace
		}
	}
	return resp
}

// selectCorners applies threshold, non-maximum suppression, ranking and the
// minimum-distance filter to a response surface.
func selectCorners(resp Grid, p CornerParams) []CornerPoint {
	return filterByMinDistance(rankCandidates(resp, p), p.MinDistance)
}

// rankCandidates returns the thresholded local maxima of resp sorted by
// descending response.
func rankCandidates(resp Grid, p CornerParams) []CornerPoint {
	width, height := resp.Width(), resp.Height()
	bs := p.BlockSize

	maxResp := 0.0
	for _, row := range resp {
		for _, r := range row {
			if r > maxResp {
				maxResp = r
			}
		}
	}
	threshold := maxResp * p.QualityLevel

	candidates := make([]CornerPoint, 0)
	for y := bs; y < height-bs; y++ {
		for x := bs; x < width-bs; x++ {
			r := resp[y][x]
			if r > threshold && isLocalMax(resp, x, y) {
				candidates = append(candidates, CornerPoint{X: float64(x), Y: float64(y), Response: r})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Response > candidates[j].Response
	})
	return candidates
}

// isLocalMax reports whether resp[y][x] is strictly greater than all eight
// neighbours. Callers keep (x, y) at least one pixel from every edge.
func isLocalMax(resp Grid, x, y int) bool {
	v := resp[y][x]
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if resp[y+dy][x+dx] >= v {
				return false
			}
		}
	}
	return true
}

// filterByMinDistance keeps points in order unless one already kept lies
// closer than minDistance.
func filterByMinDistance(sorted []CornerPoint, minDistance float64) []CornerPoint {
	kept := make([]CornerPoint, 0, len(sorted))
	minSq := minDistance * minDistance
	for _, c := range sorted {
		tooClose := false
		for _, k := range kept {
			dx := c.X - k.X
			dy := c.Y - k.Y
			if dx*dx+dy*dy < minSq {
				tooClose = true
				break
			}
		}
		if !tooClose {
			kept = append(kept, c)
		}
	}
	return kept
}
