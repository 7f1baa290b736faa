package tui

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/AlverezYari/juststop/pkg/frame"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/image/draw"
)

const (
	halfBlock = "▀"
	sgrReset  = termenv.CSI + termenv.ResetSeq + "m"
)

// fitCells scales a w x h picture to fit cols x rows terminal cells. Each
// cell shows two pixels stacked, so the pixel height is twice the rows.
func fitCells(w, h, cols, rows int) (int, int) {
	if w <= 0 || h <= 0 || cols <= 0 || rows <= 0 {
		return 0, 0
	}
	scale := min(float64(cols)/float64(w), float64(rows*2)/float64(h))
	dw := max(1, int(float64(w)*scale))
	dh := max(2, int(float64(h)*scale))
	return dw, dh &^ 1
}

// renderImage draws buf with upper half blocks for the terminal's color
// profile: the foreground colors the top pixel of a cell and the
// background the bottom one.
func renderImage(buf *frame.Buffer, cols, rows int) string {
	return renderImageProfile(buf, cols, rows, lipgloss.ColorProfile())
}

func renderImageProfile(buf *frame.Buffer, cols, rows int, profile termenv.Profile) string {
	if buf == nil {
		return ""
	}
	dw, dh := fitCells(buf.Width, buf.Height, cols, rows)
	if dw == 0 {
		return ""
	}

	src := buf.Image()
	dst := src
	if dw != buf.Width || dh != buf.Height {
		dst = image.NewRGBA(image.Rect(0, 0, dw, dh))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}

	if profile == termenv.Ascii {
		row := strings.Repeat(halfBlock, dw)
		return strings.TrimSuffix(strings.Repeat(row+"\n", dh/2), "\n")
	}

	// Each cell is at most ~40 bytes of SGR plus the glyph.
	out := make([]byte, 0, dh/2*(dw*44+len(sgrReset)+1))
	palette := newPalette(profile)
	for y := 0; y < dh; y += 2 {
		if y > 0 {
			out = append(out, '\n')
		}
		top := dst.Pix[y*dst.Stride:]
		bottom := dst.Pix[(y+1)*dst.Stride:]
		for x := 0; x < dw*4; x += 4 {
			out = append(out, termenv.CSI...)
			out = palette.appendColor(out, top[x:x+3], false)
			out = append(out, ';')
			out = palette.appendColor(out, bottom[x:x+3], true)
			out = append(out, 'm')
			out = append(out, halfBlock...)
		}
		out = append(out, sgrReset...)
	}
	return string(out)
}

// palette writes SGR color parameters for one profile. Reduced profiles
// go through termenv's conversion once per distinct color.
type palette struct {
	profile termenv.Profile
	cache   map[[4]byte]string
}

func newPalette(profile termenv.Profile) *palette {
	p := &palette{profile: profile}
	if profile != termenv.TrueColor {
		p.cache = make(map[[4]byte]string)
	}
	return p
}

func (p *palette) appendColor(out, rgb []byte, bg bool) []byte {
	if p.profile == termenv.TrueColor {
		if bg {
			out = append(out, "48;2;"...)
		} else {
			out = append(out, "38;2;"...)
		}
		out = strconv.AppendUint(out, uint64(rgb[0]), 10)
		out = append(out, ';')
		out = strconv.AppendUint(out, uint64(rgb[1]), 10)
		out = append(out, ';')
		out = strconv.AppendUint(out, uint64(rgb[2]), 10)
		return out
	}

	k := [4]byte{rgb[0], rgb[1], rgb[2]}
	if bg {
		k[3] = 1
	}
	seq, ok := p.cache[k]
	if !ok {
		hex := termenv.RGBColor(fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2]))
		seq = p.profile.Convert(hex).Sequence(bg)
		p.cache[k] = seq
	}
	return append(out, seq...)
}
