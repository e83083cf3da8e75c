package detection

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sort"
	"sync"
)

// ErrUnknownBackend is returned by NewCornerBackend for an unregistered name.
var ErrUnknownBackend = errors.New("unknown corner backend")

// CornersResult is the outcome of one corner detection call.
type CornersResult struct {
	// Backend names the implementation that produced the corners.
	Backend string `json:"backend"`

	// Corners are in buffer coordinates, ranked by descending response.
	Corners []CornerPoint `json:"corners"`

	// Count is len(Corners).
	Count int `json:"count"`

	// Diagnostic is set when detection failed inside the backend and was
	// degraded to an empty result.
	Diagnostic string `json:"diagnostic,omitempty"`
}

// CornerBackend detects corners in a region of a pixel buffer.
//
// Implementations never return an error or panic to the caller: failures are
// reported as an empty CornersResult with Diagnostic set.
type CornerBackend interface {
	Name() string
	DetectCorners(buf PixelBuffer, region image.Rectangle, p CornerParams) CornersResult
}

type backendOptions struct {
	sampler Sampler
	logger  *slog.Logger
}

// BackendOption configures a corner backend.
type BackendOption func(*backendOptions)

// WithSampler sets the sampler used to build the grayscale grid.
func WithSampler(s Sampler) BackendOption {
	return func(o *backendOptions) {
		o.sampler = s
	}
}

// WithLogger sets the logger that receives diagnostics.
func WithLogger(l *slog.Logger) BackendOption {
	return func(o *backendOptions) {
		o.logger = l
	}
}

func newBackendOptions(opts []BackendOption) backendOptions {
	o := backendOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// BackendFactory builds a corner backend from options.
type BackendFactory func(opts ...BackendOption) CornerBackend

var (
	registryMu sync.RWMutex
	registry   = map[string]BackendFactory{
		"harris":   func(opts ...BackendOption) CornerBackend { return NewHarrisBackend(opts...) },
		"subpixel": func(opts ...BackendOption) CornerBackend { return NewSubPixelBackend(opts...) },
	}
)

// RegisterCornerBackend makes a backend available to NewCornerBackend.
// Registering an existing name replaces it.
func RegisterCornerBackend(name string, f BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// CornerBackends lists the registered backend names in sorted order.
func CornerBackends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewCornerBackend returns the backend registered under name.
func NewCornerBackend(name string, opts ...BackendOption) (CornerBackend, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, name, CornerBackends())
	}
	return f(opts...), nil
}

// runGuarded executes detect and converts errors and panics into an empty
// result with a diagnostic. Corners come back region-relative and are shifted
// by offset into buffer coordinates.
func runGuarded(name string, logger *slog.Logger, region image.Rectangle, detect func() ([]CornerPoint, image.Point, error)) (res CornersResult) {
	res = CornersResult{Backend: name, Corners: []CornerPoint{}}

	fail := func(err error) {
		res = CornersResult{Backend: name, Corners: []CornerPoint{}, Diagnostic: err.Error()}
		logger.Warn("corner detection failed",
			"backend", name,
			"region", region.String(),
			"error", err)
	}

	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Errorf("panic during detection: %v", r))
		}
	}()

	corners, offset, err := detect()
	if err != nil {
		fail(err)
		return res
	}
	for i := range corners {
		corners[i].X += float64(offset.X)
		corners[i].Y += float64(offset.Y)
	}
	res.Corners = corners
	res.Count = len(corners)
	return res
}

// clampedRegion intersects region with the buffer bounds.
func clampedRegion(buf PixelBuffer, region image.Rectangle) image.Rectangle {
	return region.Canon().Intersect(image.Rect(0, 0, buf.Width, buf.Height))
}

// HarrisBackend is the reference corner backend: DetectCorners on the
// sampler's grid of the region.
type HarrisBackend struct {
	opts backendOptions
}

// NewHarrisBackend returns the reference backend.
func NewHarrisBackend(opts ...BackendOption) *HarrisBackend {
	return &HarrisBackend{opts: newBackendOptions(opts)}
}

// Name returns "harris".
func (b *HarrisBackend) Name() string { return "harris" }

// DetectCorners implements CornerBackend.
func (b *HarrisBackend) DetectCorners(buf PixelBuffer, region image.Rectangle, p CornerParams) CornersResult {
	return runGuarded(b.Name(), b.opts.logger, region, func() ([]CornerPoint, image.Point, error) {
		if err := p.Validate(); err != nil {
			return nil, image.Point{}, err
		}
		r := clampedRegion(buf, region)
		grid := b.opts.sampler.ToGridRegion(buf, r)
		if grid == nil {
			return []CornerPoint{}, r.Min, nil
		}
		return DetectCorners(grid, p), r.Min, nil
	})
}

// TransitionsResult is the outcome of sampling a line and detecting
// transitions on it.
type TransitionsResult struct {
	Start       Point             `json:"start"`
	End         Point             `json:"end"`
	Samples     int               `json:"samples"`
	Transitions []TransitionPoint `json:"transitions"`
	Count       int               `json:"count"`

	// Diagnostic explains an empty profile when the line was too long to
	// sample on this buffer.
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Profile samples buf along start..end and detects transitions on the result.
func Profile(buf PixelBuffer, start, end Point, s Sampler, p TransitionParams, opts ...TransitionOption) (Sample1D, TransitionsResult) {
	sample := s.SampleAlongLine(buf, start, end)
	points := DetectTransitions(sample, start, end, p, opts...)
	res := TransitionsResult{
		Start:       start,
		End:         end,
		Samples:     sample.Len(),
		Transitions: points,
		Count:       len(points),
	}
	if sample.Len() == 0 && buf.Valid() {
		if length := math.Hypot(end.X-start.X, end.Y-start.Y); !(length <= float64(MaxSamples(buf))) {
			res.Diagnostic = fmt.Sprintf("line length %g exceeds the %d-sample limit for a %dx%d image",
				length, MaxSamples(buf), buf.Width, buf.Height)
		}
	}
	return sample, res
}
