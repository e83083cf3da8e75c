package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// MaxCropSide bounds each side of a scaled crop.
const MaxCropSide = 8192

// CropResult contains the cropped image data
type CropResult struct {
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// ClampRegion intersects r with bounds after normalising reversed corners.
// The result may be empty when r lies entirely outside bounds.
func ClampRegion(bounds, r image.Rectangle) image.Rectangle {
	return r.Canon().Intersect(bounds)
}

// CropRegion returns the pixels of img inside region, clamped to the image.
// The result is re-based so its top-left pixel is (0, 0).
func CropRegion(img image.Image, region image.Rectangle) (*image.NRGBA, error) {
	r := ClampRegion(img.Bounds(), region)
	if r.Empty() {
		return nil, fmt.Errorf("crop region %v does not overlap image bounds %v", region, img.Bounds())
	}
	return imaging.Crop(img, r), nil
}

// Crop extracts a rectangular region from an image and encodes it as PNG.
//
// The region is clamped to the image; a region that does not overlap the
// image at all, or has zero width or height, is an error. A scale other than
// 1 resizes the crop with a Lanczos filter.
func Crop(img image.Image, region image.Rectangle, scale float64) (*CropResult, error) {
	if region.Dx() == 0 || region.Dy() == 0 {
		return nil, fmt.Errorf("invalid crop region %v: width and height must be non-zero", region)
	}
	if scale < 0 {
		return nil, fmt.Errorf("invalid scale %v: must be positive", scale)
	}

	cropped, err := CropRegion(img, region)
	if err != nil {
		return nil, err
	}
	origin := ClampRegion(img.Bounds(), region).Min

	if scale != 1.0 && scale > 0 {
		w := float64(cropped.Bounds().Dx()) * scale
		h := float64(cropped.Bounds().Dy()) * scale
		if w > MaxCropSide || h > MaxCropSide {
			return nil, fmt.Errorf("scaled crop %.0fx%.0f exceeds %d pixels per side", w, h, MaxCropSide)
		}
		newWidth := max(int(w), 1)
		newHeight := max(int(h), 1)
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}

	encoded, err := encodePNG(cropped)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}

	return &CropResult{
		X:           origin.X,
		Y:           origin.Y,
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

func encodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
