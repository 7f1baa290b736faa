//go:build gocv

package camera

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const GoCVBackend = "gocv"

const defaultProbe = 5

func init() {
	Register(GoCVBackend, func(opts Options) (Backend, error) {
		probe := opts.Probe
		if probe <= 0 {
			probe = defaultProbe
		}
		return &GoCV{logger: opts.Logger, probe: probe}, nil
	})
}

// GoCV opens cameras through OpenCV. OpenCV cannot list devices, so
// Devices probes indices 0..probe-1.
type GoCV struct {
	logger *zap.SugaredLogger
	probe  int

	mu   sync.Mutex
	open map[int]bool
}

func (g *GoCV) Name() string { return GoCVBackend }

func (g *GoCV) Devices() ([]Device, error) {
	var devices []Device
	for i := 0; i < g.probe; i++ {
		g.mu.Lock()
		busy := g.open[i]
		g.mu.Unlock()

		if !busy {
			cap, err := gocv.OpenVideoCapture(i)
			ok := err == nil && cap.IsOpened()
			if cap != nil {
				cap.Close()
			}
			if !ok {
				continue
			}
		}

		name := fmt.Sprintf("Camera %d", i)
		deviceType := USBCamera
		if i == 0 {
			// index 0 is the built-in camera on laptops
			name = "Built-in Camera"
			deviceType = BuiltinCamera
		}
		devices = append(devices, Device{
			ID:         strconv.Itoa(i),
			Name:       name,
			Index:      len(devices),
			Backend:    GoCVBackend,
			DeviceType: deviceType,
		})
	}
	return devices, nil
}

func (g *GoCV) Open(dev Device, req FormatRequest) (Stream, error) {
	index, err := strconv.Atoi(dev.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid device ID %q", ErrNoDevice, dev.ID)
	}

	g.mu.Lock()
	if g.open == nil {
		g.open = make(map[int]bool)
	}
	if g.open[index] {
		g.mu.Unlock()
		return nil, ErrDeviceBusy
	}
	g.open[index] = true
	g.mu.Unlock()

	release := func() {
		g.mu.Lock()
		delete(g.open, index)
		g.mu.Unlock()
	}

	cap, err := gocv.OpenVideoCapture(index)
	if err != nil || !cap.IsOpened() {
		if cap != nil {
			cap.Close()
		}
		release()
		return nil, fmt.Errorf("%w: camera %d did not open", ErrNoDevice, index)
	}

	// OpenCV does not expose mode lists; ask for the request and keep
	// whatever the driver settles on.
	if req.Policy == Closest && req.Width > 0 && req.Height > 0 {
		cap.Set(gocv.VideoCaptureFrameWidth, float64(req.Width))
		cap.Set(gocv.VideoCaptureFrameHeight, float64(req.Height))
	}
	if req.Policy == HighestFrameRate {
		cap.Set(gocv.VideoCaptureFPS, 120)
	}

	format := StreamFormat{
		Width:  int(cap.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(cap.Get(gocv.VideoCaptureFrameHeight)),
		FPS:    cap.Get(gocv.VideoCaptureFPS),
		Pixel:  FormatRGBA,
	}
	g.logger.Debugf("opened %s with %s", dev.Name, format)

	return &gocvStream{cap: cap, format: format, img: gocv.NewMat(), release: release}, nil
}

type gocvStream struct {
	cap     *gocv.VideoCapture
	format  StreamFormat
	release func()

	mu     sync.Mutex
	img    gocv.Mat
	closed bool
	seq    uint64
}

func (s *gocvStream) Format() StreamFormat { return s.format }

func (s *gocvStream) Read() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Frame{}, io.EOF
	}

	if ok := s.cap.Read(&s.img); !ok || s.img.Empty() {
		return Frame{}, errors.New("failed to read frame")
	}
	img, err := s.img.ToImage()
	if err != nil {
		return Frame{}, fmt.Errorf("converting frame: %w", err)
	}

	s.seq++
	return rgbaFrame(img, s.seq), nil
}

func (s *gocvStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	defer s.release()

	s.img.Close()
	if err := s.cap.Close(); err != nil {
		return fmt.Errorf("closing camera: %w", err)
	}
	return nil
}
