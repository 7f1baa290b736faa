package frame

import (
	"fmt"
	"image"

	"github.com/AlverezYari/juststop/pkg/camera"
	pionframe "github.com/pion/mediadevices/pkg/frame"
	"golang.org/x/image/draw"
)

var pionFormats = map[camera.PixelFormat]pionframe.Format{
	camera.FormatMJPEG: pionframe.FormatMJPEG,
	camera.FormatYUYV:  pionframe.FormatYUY2,
	camera.FormatNV21:  pionframe.FormatNV21,
	camera.FormatI420:  pionframe.FormatI420,
}

// Decoder converts captured frames to RGBA. It keeps one pion decoder per
// pixel format and is not safe for concurrent use.
type Decoder struct {
	decoders map[camera.PixelFormat]pionframe.Decoder
}

func NewDecoder() *Decoder {
	return &Decoder{decoders: make(map[camera.PixelFormat]pionframe.Decoder)}
}

// Decode is a convenience for one-off conversions.
func Decode(f camera.Frame) (*Buffer, error) {
	return NewDecoder().Decode(f)
}

func (d *Decoder) Decode(f camera.Frame) (buf *Buffer, err error) {
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	if need := minSize(f); len(f.Data) < need {
		return nil, fmt.Errorf("short %s frame: %d bytes, want at least %d", f.Format, len(f.Data), need)
	}

	if f.Format == camera.FormatRGBA {
		buf = NewBuffer(f.Width, f.Height)
		copy(buf.Pix, f.Data)
		return buf, nil
	}

	dec, err := d.decoder(f.Format)
	if err != nil {
		return nil, err
	}

	// pion's decoders index straight into the input
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, fmt.Errorf("corrupt %s frame: %v", f.Format, r)
		}
	}()

	img, release, err := dec.Decode(f.Data, f.Width, f.Height)
	if err != nil {
		return nil, fmt.Errorf("decoding %s frame: %w", f.Format, err)
	}
	defer release()

	if rgba, ok := img.(*image.RGBA); ok {
		return FromRGBA(rgba), nil
	}
	b := img.Bounds()
	buf = NewBuffer(b.Dx(), b.Dy())
	draw.Draw(buf.Image(), image.Rect(0, 0, buf.Width, buf.Height), img, b.Min, draw.Src)
	return buf, nil
}

func (d *Decoder) decoder(format camera.PixelFormat) (pionframe.Decoder, error) {
	if dec, ok := d.decoders[format]; ok {
		return dec, nil
	}
	pf, ok := pionFormats[format]
	if !ok {
		return nil, fmt.Errorf("unsupported pixel format %q", format)
	}
	dec, err := pionframe.NewDecoder(pf)
	if err != nil {
		return nil, err
	}
	d.decoders[format] = dec
	return dec, nil
}

func minSize(f camera.Frame) int {
	px := f.Width * f.Height
	switch f.Format {
	case camera.FormatRGBA:
		return px * 4
	case camera.FormatYUYV:
		return px * 2
	case camera.FormatNV21, camera.FormatI420:
		return px * 3 / 2
	default:
		return 1
	}
}
