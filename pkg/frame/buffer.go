// Package frame turns captured camera frames into display-ready RGBA
// pixel grids.
package frame

import (
	"fmt"
	"image"
)

// Buffer is a decoded RGBA pixel grid, row-major with no padding.
type Buffer struct {
	Width  int
	Height int
	Pix    []byte
}

func NewBuffer(width, height int) *Buffer {
	return &Buffer{Width: width, Height: height, Pix: make([]byte, width*height*4)}
}

// FromRGBA copies img into a tightly packed Buffer.
func FromRGBA(img *image.RGBA) *Buffer {
	b := img.Bounds()
	buf := NewBuffer(b.Dx(), b.Dy())
	row := buf.Width * 4
	for y := 0; y < buf.Height; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(buf.Pix[y*row:(y+1)*row], img.Pix[off:off+row])
	}
	return buf
}

func (b *Buffer) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", b.Width, b.Height)
	}
	if want := b.Width * b.Height * 4; len(b.Pix) != want {
		return fmt.Errorf("frame %dx%d has %d bytes, want %d", b.Width, b.Height, len(b.Pix), want)
	}
	return nil
}

// Image returns an *image.RGBA sharing b's pixels.
func (b *Buffer) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    b.Pix,
		Stride: b.Width * 4,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

func (b *Buffer) Size() int { return len(b.Pix) }
