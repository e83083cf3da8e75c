package detection

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func sampleOf(values ...float64) Sample1D {
	positions := make([]float64, len(values))
	for i := range positions {
		positions[i] = float64(i)
	}
	return Sample1D{Positions: positions, Values: values}
}

func transitionIndices(points []TransitionPoint) []int {
	out := make([]int, len(points))
	for i, p := range points {
		out[i] = p.SampleIndex
	}
	return out
}

func TestDetectTransitions_Pulse(t *testing.T) {
	s := sampleOf(10, 10, 10, 200, 200, 10, 10)
	p := TransitionParams{Threshold: 20, WindowSize: 2}

	tests := []struct {
		name     string
		opts     []TransitionOption
		wantKind []TransitionKind
	}{
		// Look-ahead compares v[i] with v[i+1]: 200 vs 200 and 10 vs 10 are
		// both "not rising".
		{"look-ahead", nil, []TransitionKind{Fall, Fall}},
		{"gradient sign", []TransitionOption{WithClassification(ClassifyGradientSign)}, []TransitionKind{Rise, Fall}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectTransitions(s, Pt(0, 0), Pt(6, 0), p, tt.opts...)

			want := []TransitionPoint{
				{SampleIndex: 3, Kind: tt.wantKind[0], Location: Pt(3, 0), GradientMagnitude: 190},
				{SampleIndex: 5, Kind: tt.wantKind[1], Location: Pt(5, 0), GradientMagnitude: 190},
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("transitions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetectTransitions_Flat(t *testing.T) {
	s := sampleOf(50, 50, 50, 50, 50, 50, 50, 50)

	for _, threshold := range []float64{0.5, 1, 20, 100} {
		got := DetectTransitions(s, Pt(0, 0), Pt(7, 0), TransitionParams{Threshold: threshold, WindowSize: 1})
		if got == nil {
			t.Fatalf("threshold %v: expected empty slice, got nil", threshold)
		}
		if len(got) != 0 {
			t.Errorf("threshold %v: got %d transitions, want 0", threshold, len(got))
		}
	}
}

func TestDetectTransitions_Degenerate(t *testing.T) {
	p := DefaultTransitionParams()

	tests := []struct {
		name       string
		s          Sample1D
		start, end Point
		p          TransitionParams
	}{
		{"no samples", Sample1D{}, Pt(0, 0), Pt(10, 0), p},
		{"one sample", sampleOf(0), Pt(0, 0), Pt(10, 0), p},
		{"zero-length line", sampleOf(0, 255, 0), Pt(4, 4), Pt(4, 4), p},
		{"zero threshold", sampleOf(0, 255, 0), Pt(0, 0), Pt(2, 0), TransitionParams{Threshold: 0, WindowSize: 1}},
		{"zero window", sampleOf(0, 255, 0), Pt(0, 0), Pt(2, 0), TransitionParams{Threshold: 10, WindowSize: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectTransitions(tt.s, tt.start, tt.end, tt.p); len(got) != 0 {
				t.Errorf("got %d transitions, want 0", len(got))
			}
		})
	}
}

func TestDetectTransitions_WindowSuppression(t *testing.T) {
	// Every gradient is 50, so stable ranking keeps scan order.
	s := sampleOf(0, 50, 0, 50, 0, 50, 0, 50)

	tests := []struct {
		window int
		want   []int
	}{
		{1, []int{1, 2, 3, 4, 5, 6, 7}},
		{2, []int{1, 3, 5, 7}},
		{3, []int{1, 4, 7}},
		{10, []int{1}},
	}

	for _, tt := range tests {
		got := DetectTransitions(s, Pt(0, 0), Pt(7, 0), TransitionParams{Threshold: 10, WindowSize: tt.window})
		if diff := cmp.Diff(tt.want, transitionIndices(got)); diff != "" {
			t.Errorf("window %d mismatch (-want +got):\n%s", tt.window, diff)
		}
	}
}

func TestDetectTransitions_StrongestWinsWindow(t *testing.T) {
	s := sampleOf(0, 30, 100, 100)

	got := DetectTransitions(s, Pt(0, 0), Pt(3, 0), TransitionParams{Threshold: 20, WindowSize: 5})
	if diff := cmp.Diff([]int{2}, transitionIndices(got)); diff != "" {
		t.Errorf("indices mismatch (-want +got):\n%s", diff)
	}
	if got[0].GradientMagnitude != 70 {
		t.Errorf("gradient = %v, want 70", got[0].GradientMagnitude)
	}
}

func TestDetectTransitions_LookAheadAtEnd(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   []TransitionKind
	}{
		{"rising ramp then end", []float64{0, 100, 200}, []TransitionKind{Rise, Fall}},
		{"step at last sample", []float64{0, 0, 100}, []TransitionKind{Fall}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectTransitions(sampleOf(tt.values...), Pt(0, 0), Pt(float64(len(tt.values)-1), 0),
				TransitionParams{Threshold: 20, WindowSize: 1})
			kinds := make([]TransitionKind, len(got))
			for i, p := range got {
				kinds[i] = p.Kind
			}
			if diff := cmp.Diff(tt.want, kinds); diff != "" {
				t.Errorf("kinds mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetectTransitions_DiagonalLocation(t *testing.T) {
	s := sampleOf(0, 0, 200, 200, 200)

	got := DetectTransitions(s, Pt(0, 0), Pt(3, 4), TransitionParams{Threshold: 20, WindowSize: 1})
	if len(got) != 1 {
		t.Fatalf("got %d transitions, want 1", len(got))
	}
	want := Pt(1.2, 1.6)
	if diff := cmp.Diff(want, got[0].Location, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("location mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectTransitions_Invariants(t *testing.T) {
	s := sampleOf(0, 10, 40, 45, 200, 190, 30, 35, 80, 80, 80, 10, 250, 240, 0)

	prev := -1
	for _, threshold := range []float64{1, 5, 20, 50, 100, 200, 300} {
		for _, window := range []int{1, 2, 3, 5} {
			got := DetectTransitions(s, Pt(0, 0), Pt(14, 0), TransitionParams{Threshold: threshold, WindowSize: window})

			for i := 1; i < len(got); i++ {
				if got[i].SampleIndex <= got[i-1].SampleIndex {
					t.Errorf("t=%v w=%d: indices not ascending: %v", threshold, window, transitionIndices(got))
				}
				if got[i].SampleIndex-got[i-1].SampleIndex < window {
					t.Errorf("t=%v w=%d: indices %d and %d closer than window", threshold, window, got[i-1].SampleIndex, got[i].SampleIndex)
				}
			}
			for _, p := range got {
				if p.GradientMagnitude < threshold {
					t.Errorf("t=%v w=%d: index %d gradient %v below threshold", threshold, window, p.SampleIndex, p.GradientMagnitude)
				}
			}
		}

		n := len(DetectTransitions(s, Pt(0, 0), Pt(14, 0), TransitionParams{Threshold: threshold, WindowSize: 2}))
		if prev >= 0 && n > prev {
			t.Errorf("threshold %v gave %d transitions, more than %d at a lower threshold", threshold, n, prev)
		}
		prev = n
	}
}

func TestDetectTransitions_Logger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	DetectTransitions(sampleOf(0, 200, 200), Pt(0, 0), Pt(2, 0), TransitionParams{Threshold: 20, WindowSize: 1},
		WithTransitionLogger(logger))

	if !strings.Contains(buf.String(), "transition detected") {
		t.Errorf("expected debug line, got %q", buf.String())
	}
}

func TestTransitionDetector_UpdateParameters(t *testing.T) {
	s := sampleOf(0, 50, 0, 50, 0, 50, 0, 50)
	d := NewTransitionDetector(TransitionParams{Threshold: 10, WindowSize: 1})

	if got := len(d.Detect(s, Pt(0, 0), Pt(7, 0))); got != 7 {
		t.Fatalf("initial detect: got %d transitions, want 7", got)
	}

	d.UpdateParameters(10, 3)
	if diff := cmp.Diff(TransitionParams{Threshold: 10, WindowSize: 3}, d.Parameters()); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 4, 7}, transitionIndices(d.Detect(s, Pt(0, 0), Pt(7, 0)))); diff != "" {
		t.Errorf("after update mismatch (-want +got):\n%s", diff)
	}

	d.UpdateParameters(60, 3)
	if got := len(d.Detect(s, Pt(0, 0), Pt(7, 0))); got != 0 {
		t.Errorf("threshold above every gradient: got %d transitions, want 0", got)
	}
}

func TestTransitionKind_JSON(t *testing.T) {
	data, err := json.Marshal(TransitionPoint{SampleIndex: 3, Kind: Rise, Location: Pt(3, 0), GradientMagnitude: 190})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"kind":"Rise"`) {
		t.Errorf("expected kind encoded as text, got %s", data)
	}

	var back TransitionPoint
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.Kind != Rise {
		t.Errorf("round trip kind = %v, want Rise", back.Kind)
	}

	var k TransitionKind
	if err := k.UnmarshalText([]byte("Sideways")); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestProfile(t *testing.T) {
	buf := createGrayBuffer(20, 5, func(x, y int) uint8 {
		if x >= 8 && x < 14 {
			return 220
		}
		return 20
	})

	sample, res := Profile(buf, Pt(0, 2), Pt(19, 2), Sampler{}, TransitionParams{Threshold: 50, WindowSize: 2})
	if sample.Len() != 19 || res.Samples != 19 {
		t.Fatalf("samples = %d / %d, want 19", sample.Len(), res.Samples)
	}
	if res.Count != len(res.Transitions) {
		t.Errorf("Count = %d, len(Transitions) = %d", res.Count, len(res.Transitions))
	}
	if res.Count != 2 {
		t.Fatalf("got %d transitions, want 2", res.Count)
	}
	for _, p := range res.Transitions {
		if p.Location.Y != 2 {
			t.Errorf("transition at %v is off the line", p.Location)
		}
		if math.Abs(p.GradientMagnitude-200) > 1e-9 {
			t.Errorf("gradient = %v, want 200", p.GradientMagnitude)
		}
	}
}

func TestProfile_LineTooLong(t *testing.T) {
	buf := createGrayBuffer(10, 10, func(x, y int) uint8 { return uint8(x * 20) })

	sample, res := Profile(buf, Pt(0, 5), Pt(1e17, 5), Sampler{}, DefaultTransitionParams())
	if sample.Len() != 0 || res.Samples != 0 || res.Count != 0 {
		t.Fatalf("got %d samples and %d transitions, want none", res.Samples, res.Count)
	}
	if res.Diagnostic == "" {
		t.Error("expected a diagnostic for a line longer than the sampling limit")
	}

	_, res = Profile(buf, Pt(3, 3), Pt(3, 3), Sampler{}, DefaultTransitionParams())
	if res.Diagnostic != "" {
		t.Errorf("zero-length line: diagnostic = %q, want none", res.Diagnostic)
	}
}
