package camera

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

const SyntheticBackend = "synthetic"

// SyntheticDevice configures one fake camera. FailEvery > 0 makes every
// FailEvery-th read fail; Busy makes Open fail as if the device were in use.
type SyntheticDevice struct {
	Name      string  `json:"name"`
	FPS       float64 `json:"fps"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Busy      bool    `json:"busy,omitempty"`
	FailEvery int     `json:"fail_every,omitempty"`
}

var DefaultSyntheticDevices = []SyntheticDevice{
	{Name: "Test Pattern", FPS: 30, Width: 320, Height: 240},
	{Name: "Slow Pattern", FPS: 5, Width: 160, Height: 120},
}

func init() {
	Register(SyntheticBackend, func(opts Options) (Backend, error) {
		return NewSynthetic(opts.Synthetic...), nil
	})
}

// Synthetic is a hardware-free backend emitting moving color bars.
type Synthetic struct {
	devices []SyntheticDevice
}

func NewSynthetic(devices ...SyntheticDevice) *Synthetic {
	if len(devices) == 0 {
		devices = DefaultSyntheticDevices
	}
	return &Synthetic{devices: devices}
}

func (s *Synthetic) Name() string { return SyntheticBackend }

func (s *Synthetic) Devices() ([]Device, error) {
	devices := make([]Device, 0, len(s.devices))
	for i, d := range s.devices {
		devices = append(devices, Device{
			ID:         syntheticID(d.Name),
			Name:       d.Name,
			Index:      i,
			Backend:    SyntheticBackend,
			DeviceType: VirtualCamera,
		})
	}
	return devices, nil
}

func (s *Synthetic) Open(dev Device, req FormatRequest) (Stream, error) {
	for _, d := range s.devices {
		if syntheticID(d.Name) != dev.ID {
			continue
		}
		if d.Busy {
			return nil, ErrDeviceBusy
		}
		format, err := SelectFormat(d.formats(), req)
		if err != nil {
			return nil, err
		}
		return newSyntheticStream(d, format), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoDevice, dev.ID)
}

func syntheticID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("juststop/synthetic/"+name)).String()
}

func (d SyntheticDevice) formats() []StreamFormat {
	w, h := d.Width, d.Height
	if w <= 0 || h <= 0 {
		w, h = 320, 240
	}
	fps := d.FPS
	if fps <= 0 {
		fps = 30
	}
	return []StreamFormat{
		{Width: w, Height: h, FPS: fps, Pixel: FormatRGBA},
		{Width: w / 2, Height: h / 2, FPS: fps / 2, Pixel: FormatRGBA},
	}
}

var errSyntheticRead = errors.New("synthetic read failure")

type syntheticStream struct {
	dev    SyntheticDevice
	format StreamFormat
	tick   *time.Ticker

	closeOnce sync.Once
	closed    chan struct{}

	mu  sync.Mutex
	seq uint64
}

func newSyntheticStream(d SyntheticDevice, format StreamFormat) *syntheticStream {
	return &syntheticStream{
		dev:    d,
		format: format,
		tick:   time.NewTicker(time.Duration(float64(time.Second) / format.FPS)),
		closed: make(chan struct{}),
	}
}

func (s *syntheticStream) Format() StreamFormat { return s.format }

func (s *syntheticStream) Read() (Frame, error) {
	select {
	case <-s.closed:
		return Frame{}, io.EOF
	default:
	}

	select {
	case <-s.closed:
		return Frame{}, io.EOF
	case <-s.tick.C:
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	if s.dev.FailEvery > 0 && seq%uint64(s.dev.FailEvery) == 0 {
		return Frame{}, fmt.Errorf("%w: frame %d", errSyntheticRead, seq)
	}

	return Frame{
		Format:   FormatRGBA,
		Width:    s.format.Width,
		Height:   s.format.Height,
		Data:     colorBars(s.format.Width, s.format.Height, int(seq)),
		Seq:      seq,
		Captured: time.Now(),
	}, nil
}

func (s *syntheticStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.tick.Stop()
	})
	return nil
}

var bars = [][3]byte{
	{192, 192, 192},
	{192, 192, 0},
	{0, 192, 192},
	{0, 192, 0},
	{192, 0, 192},
	{192, 0, 0},
	{0, 0, 192},
}

// colorBars draws seven vertical bars scrolled left by offset pixels.
func colorBars(width, height, offset int) []byte {
	pix := make([]byte, width*height*4)
	for x := 0; x < width; x++ {
		c := bars[((x+offset)%width)*len(bars)/width]
		for y := 0; y < height; y++ {
			i := (y*width + x) * 4
			pix[i] = c[0]
			pix[i+1] = c[1]
			pix[i+2] = c[2]
			pix[i+3] = 0xff
		}
	}
	return pix
}
