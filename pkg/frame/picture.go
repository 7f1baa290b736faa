package frame

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/AlverezYari/juststop/pkg/camera"
)

// Policy decides where captured bytes are decoded.
type Policy int

const (
	// RGBA decodes in the poller so the display only ever sees pixels.
	RGBA Policy = iota
	// Raw hands captured bytes to the display, which interprets them.
	Raw
)

func (p Policy) String() string {
	if p == Raw {
		return "raw"
	}
	return "rgba"
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rgba":
		return RGBA, nil
	case "raw":
		return Raw, nil
	}
	return 0, fmt.Errorf("unknown decode policy %q", s)
}

type Options struct {
	Policy Policy
	Mirror bool
}

// Picture is one polled frame on its way to a display surface. RGBA is
// nil under the Raw policy.
type Picture struct {
	Frame camera.Frame
	RGBA  *Buffer
}

func (p Picture) Empty() bool {
	return p.RGBA == nil && len(p.Frame.Data) == 0
}

// Image returns the picture's pixels, decoding raw frames on demand.
func (p Picture) Image() (*Buffer, error) {
	if p.RGBA != nil {
		return p.RGBA, nil
	}
	return Decode(p.Frame)
}

// Processor runs the post-capture pipeline: decode, then mirror. Process
// must stay on one goroutine; SetMirror may be called from any.
type Processor struct {
	policy  Policy
	mirror  atomic.Bool
	decoder *Decoder
}

func NewProcessor(opts Options) *Processor {
	p := &Processor{policy: opts.Policy, decoder: NewDecoder()}
	p.mirror.Store(opts.Mirror)
	return p
}

func (p *Processor) Options() Options {
	return Options{Policy: p.policy, Mirror: p.mirror.Load()}
}

func (p *Processor) SetMirror(on bool) { p.mirror.Store(on) }

func (p *Processor) Process(f camera.Frame) (Picture, error) {
	if p.policy == Raw {
		return Picture{Frame: f}, nil
	}

	buf, err := p.decoder.Decode(f)
	if err != nil {
		return Picture{}, err
	}
	if p.mirror.Load() {
		Mirror(buf)
	}
	f.Data = nil
	return Picture{Frame: f, RGBA: buf}, nil
}
