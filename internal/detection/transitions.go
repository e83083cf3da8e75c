package detection

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// TransitionKind says whether intensity goes up or down at a transition.
type TransitionKind int

const (
	// Rise marks a transition classified as increasing intensity.
	Rise TransitionKind = iota
	// Fall marks a transition classified as decreasing intensity.
	Fall
)

func (k TransitionKind) String() string {
	if k == Rise {
		return "Rise"
	}
	return "Fall"
}

// MarshalText encodes the kind as "Rise" or "Fall".
func (k TransitionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts "Rise" or "Fall".
func (k *TransitionKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Rise":
		*k = Rise
	case "Fall":
		*k = Fall
	default:
		return fmt.Errorf("unknown transition kind %q", text)
	}
	return nil
}

// TransitionPoint is one intensity step found along a sampled line.
type TransitionPoint struct {
	SampleIndex       int            `json:"sample_index"`
	Kind              TransitionKind `json:"kind"`
	Location          Point          `json:"location"`
	GradientMagnitude float64        `json:"gradient_magnitude"`
}

// Classification decides Rise or Fall for a kept transition index.
type Classification int

const (
	// ClassifyLookAhead labels index i Rise when values[i] < values[i+1] and
	// Fall otherwise, including at the last sample. It looks one sample past
	// the gradient rather than at the gradient's own sign.
	ClassifyLookAhead Classification = iota

	// ClassifyGradientSign labels index i Rise when values[i] > values[i-1].
	ClassifyGradientSign
)

type transitionOptions struct {
	classify Classification
	logger   *slog.Logger
}

// TransitionOption configures DetectTransitions.
type TransitionOption func(*transitionOptions)

// WithClassification overrides the default look-ahead classification.
func WithClassification(c Classification) TransitionOption {
	return func(o *transitionOptions) {
		o.classify = c
	}
}

// WithTransitionLogger logs each detected point at debug level.
func WithTransitionLogger(l *slog.Logger) TransitionOption {
	return func(o *transitionOptions) {
		o.logger = l
	}
}

type gradientCandidate struct {
	index    int
	gradient float64
}

// DetectTransitions finds intensity steps in a line profile and maps them
// back onto the segment from start to end.
//
// # Algorithm
//
//  1. Gradient: g[i] = |values[i] - values[i-1]| for i = 1..n-1.
//  2. Candidates: every i with g[i] >= Threshold.
//  3. Stable sort by descending g.
//  4. Suppression: keep a candidate unless a kept index lies within
//     WindowSize-1 of it (|i-j| < WindowSize).
//  5. Re-sort the kept candidates by ascending index.
//  6. Classification (see ClassifyLookAhead).
//  7. Location: start + unit(end-start) * i. The location is rebuilt from the
//     index, not from Positions.
//
// Fewer than two samples, a zero-length line, invalid params or no candidate
// above threshold all yield an empty result.
func DetectTransitions(s Sample1D, start, end Point, p TransitionParams, opts ...TransitionOption) []TransitionPoint {
	o := transitionOptions{classify: ClassifyLookAhead}
	for _, opt := range opts {
		opt(&o)
	}

	points := make([]TransitionPoint, 0)
	values := s.Values
	if len(values) < 2 || p.Validate() != nil {
		return points
	}

	dx := end.X - start.X
	dy := end.Y - start.Y
	length := math.Hypot(dx, dy)
	if length < minLineLength {
		return points
	}
	dx /= length
	dy /= length

	candidates := make([]gradientCandidate, 0)
	for i := 1; i < len(values); i++ {
		g := math.Abs(values[i] - values[i-1])
		if g >= p.Threshold {
			candidates = append(candidates, gradientCandidate{index: i, gradient: g})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].gradient > candidates[j].gradient
	})

	strong := make([]gradientCandidate, 0, len(candidates))
	for _, c := range candidates {
		near := false
		for _, k := range strong {
			if absInt(c.index-k.index) < p.WindowSize {
				near = true
				break
			}
		}
		if !near {
			strong = append(strong, c)
		}
	}

	sort.SliceStable(strong, func(i, j int) bool {
		return strong[i].index < strong[j].index
	})

	for _, c := range strong {
		loc := Point{
			X: start.X + dx*float64(c.index),
			Y: start.Y + dy*float64(c.index),
		}
		kind := classify(values, c.index, o.classify)
		points = append(points, TransitionPoint{
			SampleIndex:       c.index,
			Kind:              kind,
			Location:          loc,
			GradientMagnitude: c.gradient,
		})
		if o.logger != nil {
			o.logger.Debug("transition detected",
				"kind", kind.String(),
				"x", loc.X,
				"y", loc.Y,
				"gradient", c.gradient)
		}
	}
	return points
}

func classify(values []float64, i int, c Classification) TransitionKind {
	if c == ClassifyGradientSign {
		if values[i] > values[i-1] {
			return Rise
		}
		return Fall
	}
	if i < len(values)-1 && values[i] < values[i+1] {
		return Rise
	}
	return Fall
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// TransitionDetector carries the two tunable scalars between detection calls.
// Nothing else is remembered: each Detect call starts from scratch.
//
// Detect may be called concurrently as long as UpdateParameters is not.
type TransitionDetector struct {
	params TransitionParams
	opts   []TransitionOption
}

// NewTransitionDetector returns a detector using p.
func NewTransitionDetector(p TransitionParams, opts ...TransitionOption) *TransitionDetector {
	return &TransitionDetector{params: p, opts: opts}
}

// UpdateParameters replaces the threshold and window size used by later calls.
func (d *TransitionDetector) UpdateParameters(threshold float64, windowSize int) {
	d.params = TransitionParams{Threshold: threshold, WindowSize: windowSize}
}

// Parameters returns the current parameters.
func (d *TransitionDetector) Parameters() TransitionParams {
	return d.params
}

// Detect runs DetectTransitions with the detector's current parameters.
func (d *TransitionDetector) Detect(s Sample1D, start, end Point) []TransitionPoint {
	return DetectTransitions(s, start, end, d.params, d.opts...)
}
