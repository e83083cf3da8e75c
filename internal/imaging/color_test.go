package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"
)

// createInMemoryImage creates a solid-colour RGBA image.
func createInMemoryImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createPatternImage creates an image with a different colour in each quadrant:
// red, green, blue and white clockwise from top-left (white bottom-right).
func createPatternImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.Color
			switch {
			case x < width/2 && y < height/2:
				c = color.RGBA{255, 0, 0, 255}
			case x >= width/2 && y < height/2:
				c = color.RGBA{0, 255, 0, 255}
			case x < width/2:
				c = color.RGBA{0, 0, 255, 255}
			default:
				c = color.RGBA{255, 255, 255, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestSampleColor(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 128, 64, 255})

	result, err := SampleColor(img, 50, 50)
	if err != nil {
		t.Fatalf("SampleColor failed: %v", err)
	}

	if result.Hex != "#FF8040" {
		t.Errorf("Hex: got %s, want #FF8040", result.Hex)
	}
	if result.RGBA != (RGBAColor{R: 255, G: 128, B: 64, A: 255}) {
		t.Errorf("RGBA: got %+v, want (255,128,64,255)", result.RGBA)
	}
	if result.X != 50 || result.Y != 50 {
		t.Errorf("position: got (%d,%d), want (50,50)", result.X, result.Y)
	}

	if got := result.Intensity["first-byte"]; got != 64 {
		t.Errorf("first-byte intensity: got %v, want blue channel 64", got)
	}
	wantLuma := 0.299*255 + 0.587*128 + 0.114*64
	if got := result.Intensity["luma"]; math.Abs(got-wantLuma) > 1e-9 {
		t.Errorf("luma intensity: got %v, want %v", got, wantLuma)
	}
	if got := result.Intensity["lightness"]; got <= 0 || got > 255 {
		t.Errorf("lightness intensity out of range: %v", got)
	}
}

func TestSampleColor_HSL(t *testing.T) {
	tests := []struct {
		name    string
		color   color.RGBA
		wantHex string
		wantHSL HSLColor
	}{
		{"pure red", color.RGBA{255, 0, 0, 255}, "#FF0000", HSLColor{0, 100, 50}},
		{"pure green", color.RGBA{0, 255, 0, 255}, "#00FF00", HSLColor{120, 100, 50}},
		{"pure blue", color.RGBA{0, 0, 255, 255}, "#0000FF", HSLColor{240, 100, 50}},
		{"white", color.RGBA{255, 255, 255, 255}, "#FFFFFF", HSLColor{0, 0, 100}},
		{"black", color.RGBA{0, 0, 0, 255}, "#000000", HSLColor{0, 0, 0}},
		{"gray", color.RGBA{128, 128, 128, 255}, "#808080", HSLColor{0, 0, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := SampleColor(createInMemoryImage(10, 10, tt.color), 5, 5)
			if err != nil {
				t.Fatalf("SampleColor failed: %v", err)
			}
			if result.Hex != tt.wantHex {
				t.Errorf("Hex: got %s, want %s", result.Hex, tt.wantHex)
			}
			// Allow one unit for truncation.
			if abs(result.HSL.H-tt.wantHSL.H) > 1 || abs(result.HSL.S-tt.wantHSL.S) > 1 || abs(result.HSL.L-tt.wantHSL.L) > 1 {
				t.Errorf("HSL: got %+v, want %+v", result.HSL, tt.wantHSL)
			}
		})
	}
}

func TestSampleColor_Gray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.SetGray(1, 2, color.Gray{Y: 77})

	result, err := SampleColor(img, 1, 2)
	if err != nil {
		t.Fatalf("SampleColor failed: %v", err)
	}
	for rule, v := range result.Intensity {
		if v != 77 {
			t.Errorf("%s intensity: got %v, want 77", rule, v)
		}
	}
}

func TestSampleColor_OffsetBounds(t *testing.T) {
	// Sub-images keep their parent's coordinates; sampling is origin-based.
	sub := createPatternImage(20, 20).SubImage(image.Rect(10, 10, 20, 20))

	result, err := SampleColor(sub, 0, 0)
	if err != nil {
		t.Fatalf("SampleColor failed: %v", err)
	}
	if result.Hex != "#FFFFFF" {
		t.Errorf("Hex: got %s, want #FFFFFF", result.Hex)
	}
}

func TestSampleColor_OutOfBounds(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name    string
		x, y    int
		wantErr bool
	}{
		{"negative x", -1, 50, true},
		{"negative y", 50, -1, true},
		{"x too large", 100, 50, true},
		{"y too large", 50, 100, true},
		{"top-left", 0, 0, false},
		{"bottom-right", 99, 99, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SampleColor(img, tt.x, tt.y)
			if (err != nil) != tt.wantErr {
				t.Errorf("SampleColor(%d,%d) error = %v, wantErr %v", tt.x, tt.y, err, tt.wantErr)
			}
		})
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
