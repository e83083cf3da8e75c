package detection

import "fmt"

// ChannelLayout describes how the bytes of one pixel are ordered in a PixelBuffer.
type ChannelLayout int

const (
	// LayoutGray8 is one 8-bit intensity byte per pixel.
	LayoutGray8 ChannelLayout = iota
	// LayoutBGRA32 is blue, green, red, alpha. This is the default layout for
	// buffers built from decoded images.
	LayoutBGRA32
	// LayoutRGBA32 is red, green, blue, alpha.
	LayoutRGBA32
	// LayoutBGR24 is blue, green, red with no alpha.
	LayoutBGR24
	// LayoutRGB24 is red, green, blue with no alpha.
	LayoutRGB24
)

// String returns the layout name used in logs and tool output.
func (l ChannelLayout) String() string {
	switch l {
	case LayoutGray8:
		return "gray8"
	case LayoutBGRA32:
		return "bgra32"
	case LayoutRGBA32:
		return "rgba32"
	case LayoutBGR24:
		return "bgr24"
	case LayoutRGB24:
		return "rgb24"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// BitsPerPixel returns the storage size of one pixel in this layout.
func (l ChannelLayout) BitsPerPixel() int {
	switch l {
	case LayoutGray8:
		return 8
	case LayoutBGR24, LayoutRGB24:
		return 24
	default:
		return 32
	}
}

// rgbOffsets returns the byte offsets of the red, green and blue channels
// within one pixel.
func (l ChannelLayout) rgbOffsets() (r, g, b int) {
	switch l {
	case LayoutBGRA32, LayoutBGR24:
		return 2, 1, 0
	case LayoutRGBA32, LayoutRGB24:
		return 0, 1, 2
	default:
		return 0, 0, 0
	}
}

// PixelBuffer is a read-only view of raw pixel data.
//
// The buffer is owned by the caller. Samplers and detectors only read Pix and
// never retain it past the call that received it. Callers must not mutate Pix
// while a detection that uses it is running; no locking is done here.
type PixelBuffer struct {
	// Width and Height are the pixel dimensions.
	Width  int
	Height int

	// Stride is the number of bytes between the starts of two consecutive rows.
	Stride int

	// BitsPerPixel is the storage size of one pixel. It normally matches
	// Layout.BitsPerPixel().
	BitsPerPixel int

	// Layout names the channel order within one pixel.
	Layout ChannelLayout

	// Pix holds Height rows of Stride bytes.
	Pix []byte
}

// NewGrayBuffer wraps tightly packed 8-bit intensities in a PixelBuffer.
func NewGrayBuffer(width, height int, pix []byte) PixelBuffer {
	return PixelBuffer{
		Width:        width,
		Height:       height,
		Stride:       width,
		BitsPerPixel: 8,
		Layout:       LayoutGray8,
		Pix:          pix,
	}
}

// bytesPerPixel is BitsPerPixel rounded down to whole bytes.
func (b PixelBuffer) bytesPerPixel() int {
	return b.BitsPerPixel / 8
}

// Valid reports whether the buffer can be sampled: positive dimensions, a
// stride wide enough for one row of pixels, and enough bytes for every row.
func (b PixelBuffer) Valid() bool {
	if b.Width <= 0 || b.Height <= 0 || b.BitsPerPixel < 8 || len(b.Pix) == 0 {
		return false
	}
	if b.Stride < b.Width*b.bytesPerPixel() {
		return false
	}
	return len(b.Pix) >= (b.Height-1)*b.Stride+b.Width*b.bytesPerPixel()
}

// offset returns the index of the first byte of pixel (x, y).
func (b PixelBuffer) offset(x, y int) int {
	return y*b.Stride + x*b.bytesPerPixel()
}
