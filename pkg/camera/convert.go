package camera

import (
	"image"
	"time"

	"golang.org/x/image/draw"
)

// rgbaFrame copies img into a tightly packed RGBA frame.
func rgbaFrame(img image.Image, seq uint64) Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, w*h*4)

	if src, ok := img.(*image.RGBA); ok {
		for y := 0; y < h; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(pix[y*w*4:(y+1)*w*4], src.Pix[off:off+w*4])
		}
	} else {
		dst := &image.RGBA{Pix: pix, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
		draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	}

	return Frame{
		Format:   FormatRGBA,
		Width:    w,
		Height:   h,
		Data:     pix,
		Seq:      seq,
		Captured: time.Now(),
	}
}
