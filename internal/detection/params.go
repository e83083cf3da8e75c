package detection

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is wrapped by every parameter validation failure.
var ErrInvalidParams = errors.New("invalid detection parameters")

// CornerParams controls corner detection.
//
// A CornerParams value is read once per detection call. Callers may change it
// between calls; re-running detection after a change is the caller's job.
type CornerParams struct {
	// MinDistance is the smallest Euclidean distance allowed between two
	// returned corners. Must be > 0.
	MinDistance float64 `json:"min_distance"`

	// QualityLevel is the fraction of the strongest response a pixel must
	// exceed to be a candidate. Must be in (0, 1].
	QualityLevel float64 `json:"quality_level"`

	// BlockSize is the radius of the structure-tensor window; the window is
	// (2*BlockSize+1) pixels square. Must be >= 1.
	BlockSize int `json:"block_size"`

	// MaxCorners caps how many corners a caller keeps. The detector itself
	// does not truncate; see LimitCorners. Must be >= 1.
	MaxCorners int `json:"max_corners"`
}

// DefaultCornerParams returns the parameters the annotation tool starts with.
func DefaultCornerParams() CornerParams {
	return CornerParams{
		MinDistance:  30,
		QualityLevel: 0.1,
		BlockSize:    3,
		MaxCorners:   20,
	}
}

// Validate reports the first out-of-range field.
func (p CornerParams) Validate() error {
	switch {
	case !(p.MinDistance > 0):
		return fmt.Errorf("%w: min_distance must be > 0, got %v", ErrInvalidParams, p.MinDistance)
	case !(p.QualityLevel > 0 && p.QualityLevel <= 1):
		return fmt.Errorf("%w: quality_level must be in (0,1], got %v", ErrInvalidParams, p.QualityLevel)
	case p.BlockSize < 1:
		return fmt.Errorf("%w: block_size must be >= 1, got %d", ErrInvalidParams, p.BlockSize)
	case p.MaxCorners < 1:
		return fmt.Errorf("%w: max_corners must be >= 1, got %d", ErrInvalidParams, p.MaxCorners)
	}
	return nil
}

// TransitionParams controls transition detection along a line.
type TransitionParams struct {
	// Threshold is the minimum absolute intensity step between neighbouring
	// samples. Must be > 0.
	Threshold float64 `json:"threshold"`

	// WindowSize is the minimum index distance between two returned
	// transitions. Must be >= 1.
	WindowSize int `json:"window_size"`
}

// DefaultTransitionParams returns threshold 20 and window 5.
func DefaultTransitionParams() TransitionParams {
	return TransitionParams{Threshold: 20, WindowSize: 5}
}

// Validate reports the first out-of-range field.
func (p TransitionParams) Validate() error {
	if !(p.Threshold > 0) {
		return fmt.Errorf("%w: threshold must be > 0, got %v", ErrInvalidParams, p.Threshold)
	}
	if p.WindowSize < 1 {
		return fmt.Errorf("%w: window_size must be >= 1, got %d", ErrInvalidParams, p.WindowSize)
	}
	return nil
}
