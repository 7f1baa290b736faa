package frame

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"sync"
	"testing"

	"github.com/AlverezYari/juststop/pkg/camera"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBuffer(w, h int) *Buffer {
	b := NewBuffer(w, h)
	rand.New(rand.NewSource(int64(w*31 + h))).Read(b.Pix)
	return b
}

func clone(b *Buffer) *Buffer {
	return &Buffer{Width: b.Width, Height: b.Height, Pix: append([]byte(nil), b.Pix...)}
}

func TestMirror(t *testing.T) {
	for _, size := range [][2]int{{1, 1}, {2, 1}, {3, 2}, {16, 9}, {17, 5}} {
		orig := randomBuffer(size[0], size[1])
		b := clone(orig)

		Mirror(b)
		require.NoError(t, b.Validate())
		assert.Equal(t, orig.Width, b.Width)
		assert.Equal(t, orig.Height, b.Height)
		assert.Len(t, b.Pix, len(orig.Pix))

		for y := 0; y < b.Height; y++ {
			for x := 0; x < b.Width; x++ {
				assert.Equal(t,
					orig.Image().RGBAAt(b.Width-1-x, y),
					b.Image().RGBAAt(x, y),
				)
			}
		}

		Mirror(b)
		assert.True(t, bytes.Equal(orig.Pix, b.Pix), "mirroring twice must be the identity for %dx%d", size[0], size[1])
	}
}

func TestDecodeRGBA(t *testing.T) {
	src := randomBuffer(4, 3)
	buf, err := Decode(camera.Frame{Format: camera.FormatRGBA, Width: 4, Height: 3, Data: src.Pix})
	require.NoError(t, err)
	assert.Equal(t, src.Pix, buf.Pix)

	src.Pix[0]++
	assert.NotEqual(t, src.Pix[0], buf.Pix[0], "decoded buffer must not alias the frame")
}

func TestDecodeMJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 20, B: 20, A: 255})
		}
	}
	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, img, &jpeg.Options{Quality: 95}))

	buf, err := Decode(camera.Frame{Format: camera.FormatMJPEG, Width: 16, Height: 16, Data: jpg.Bytes()})
	require.NoError(t, err)
	require.NoError(t, buf.Validate())
	px := buf.Image().RGBAAt(8, 8)
	assert.InDelta(t, 200, int(px.R), 12)
	assert.InDelta(t, 20, int(px.G), 12)
	assert.Equal(t, uint8(255), px.A)
}

func TestDecodeErrors(t *testing.T) {
	testCases := map[string]camera.Frame{
		"ZeroSize":    {Format: camera.FormatRGBA},
		"ShortRGBA":   {Format: camera.FormatRGBA, Width: 2, Height: 2, Data: make([]byte, 15)},
		"ShortYUYV":   {Format: camera.FormatYUYV, Width: 4, Height: 4, Data: make([]byte, 31)},
		"CorruptJPEG": {Format: camera.FormatMJPEG, Width: 4, Height: 4, Data: []byte("not a jpeg")},
		"Unknown":     {Format: "H264", Width: 4, Height: 4, Data: []byte{1, 2, 3}},
	}
	for name, f := range testCases {
		f := f
		t.Run(name, func(t *testing.T) {
			_, err := Decode(f)
			assert.Error(t, err)
		})
	}
}

func TestProcessor(t *testing.T) {
	src := randomBuffer(5, 2)
	f := camera.Frame{Format: camera.FormatRGBA, Width: 5, Height: 2, Data: src.Pix, Seq: 7}

	t.Run("RGBA", func(t *testing.T) {
		pic, err := NewProcessor(Options{Policy: RGBA}).Process(f)
		require.NoError(t, err)
		require.NotNil(t, pic.RGBA)
		assert.Equal(t, src.Pix, pic.RGBA.Pix)
		assert.Equal(t, uint64(7), pic.Frame.Seq)
	})

	t.Run("Mirror", func(t *testing.T) {
		p := NewProcessor(Options{Policy: RGBA})
		p.SetMirror(true)
		pic, err := p.Process(f)
		require.NoError(t, err)
		want := clone(src)
		Mirror(want)
		assert.Equal(t, want.Pix, pic.RGBA.Pix)
	})

	t.Run("Raw", func(t *testing.T) {
		pic, err := NewProcessor(Options{Policy: Raw}).Process(f)
		require.NoError(t, err)
		assert.Nil(t, pic.RGBA)
		assert.False(t, pic.Empty())

		img, err := pic.Image()
		require.NoError(t, err)
		assert.Equal(t, src.Pix, img.Pix)
	})
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []Policy{RGBA, Raw} {
		got, err := ParsePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParsePolicy("png")
	assert.Error(t, err)
}

func TestSlot(t *testing.T) {
	s := NewSlot[int]()

	_, ok := s.Take()
	assert.False(t, ok)

	s.Offer(1)
	s.Offer(2)
	s.Offer(3)
	v, ok := s.Take()
	require.True(t, ok)
	assert.Equal(t, 3, v, "only the most recent value survives")

	_, ok = s.Take()
	assert.False(t, ok, "a take drains the slot")
}

func TestSlotConcurrent(t *testing.T) {
	s := NewSlot[int]()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 1000; i++ {
			s.Offer(i)
		}
	}()

	last := 0
	for last < 1000 {
		if v, ok := s.Take(); ok {
			require.Greater(t, v, last, "values arrive in order")
			last = v
		}
	}
	wg.Wait()
}
