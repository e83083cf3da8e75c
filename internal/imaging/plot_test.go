package imaging

import (
	"testing"

	"github.com/ironsheep/pixel-profile-mcp/internal/detection"
)

func rampProfile(n int) detection.Sample1D {
	s := detection.Sample1D{Positions: make([]float64, n), Values: make([]float64, n)}
	for i := 0; i < n; i++ {
		s.Positions[i] = float64(i)
		if i >= n/2 {
			s.Values[i] = 200
		}
	}
	return s
}

func TestProfilePlot(t *testing.T) {
	s := rampProfile(40)
	transitions := []detection.TransitionPoint{
		{SampleIndex: 20, Kind: detection.Rise},
		{SampleIndex: 39, Kind: detection.Fall},
		{SampleIndex: 99, Kind: detection.Fall}, // out of range, ignored
	}

	result, err := ProfilePlot(s, transitions, 400, 200)
	if err != nil {
		t.Fatalf("ProfilePlot failed: %v", err)
	}
	if result.Samples != 40 {
		t.Errorf("Samples: got %d, want 40", result.Samples)
	}

	img := decodeResultPNG(t, result.ImageBase64)
	if img.Bounds().Dx() != 400 || img.Bounds().Dy() != 200 {
		t.Errorf("rendered size %v, want 400x200", img.Bounds())
	}
}

func TestProfilePlot_DefaultSize(t *testing.T) {
	result, err := ProfilePlot(rampProfile(10), nil, 0, 0)
	if err != nil {
		t.Fatalf("ProfilePlot failed: %v", err)
	}
	if result.Width != DefaultPlotWidth || result.Height != DefaultPlotHeight {
		t.Errorf("size: got %dx%d, want %dx%d", result.Width, result.Height, DefaultPlotWidth, DefaultPlotHeight)
	}
}

func TestProfilePlot_Errors(t *testing.T) {
	tests := []struct {
		name          string
		s             detection.Sample1D
		width, height int
	}{
		{"empty profile", detection.Sample1D{}, 400, 200},
		{"mismatched lengths", detection.Sample1D{Positions: []float64{0}, Values: []float64{1, 2}}, 400, 200},
		{"too narrow", rampProfile(10), 50, 200},
		{"too tall", rampProfile(10), 400, 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ProfilePlot(tt.s, nil, tt.width, tt.height); err == nil {
				t.Error("expected error")
			}
		})
	}
}
