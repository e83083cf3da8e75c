package imaging

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/pixel-profile-mcp/internal/detection"
)

// NewPixelBuffer returns the detection view of img.
//
// *image.Gray images are wrapped as Gray8 without conversion. Everything else
// is flattened to non-premultiplied 8-bit colour and stored as BGRA32, so the
// default first-byte rule reads the blue channel. The returned buffer is
// origin-based: pixel (0, 0) is img.Bounds().Min.
func NewPixelBuffer(img image.Image) detection.PixelBuffer {
	if img == nil || img.Bounds().Empty() {
		return detection.PixelBuffer{}
	}

	if g, ok := img.(*image.Gray); ok {
		b := g.Bounds()
		pix := make([]byte, b.Dx()*b.Dy())
		for y := 0; y < b.Dy(); y++ {
			row := g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):]
			copy(pix[y*b.Dx():(y+1)*b.Dx()], row[:b.Dx()])
		}
		return detection.NewGrayBuffer(b.Dx(), b.Dy(), pix)
	}

	// Clone re-bases to (0, 0) and converts any colour model to NRGBA.
	nrgba := imaging.Clone(img)
	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		src := nrgba.Pix[y*nrgba.Stride:]
		dst := pix[y*w*4:]
		for x := 0; x < w; x++ {
			i := x * 4
			dst[i] = src[i+2]
			dst[i+1] = src[i+1]
			dst[i+2] = src[i]
			dst[i+3] = src[i+3]
		}
	}

	return detection.PixelBuffer{
		Width:        w,
		Height:       h,
		Stride:       w * 4,
		BitsPerPixel: detection.LayoutBGRA32.BitsPerPixel(),
		Layout:       detection.LayoutBGRA32,
		Pix:          pix,
	}
}
