//go:build linux

package camera

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blackjack/webcam"
	"go.uber.org/zap"
)

const V4L2Backend = "v4l2"

const (
	waitTimeout   = 2 // seconds
	maxEmptyReads = 5
)

var errReadTimeout = errors.New("timed out waiting for frame")

// v4l2 fourcc codes for the formats we know how to decode.
var v4l2Formats = map[webcam.PixelFormat]PixelFormat{
	0x47504A4D: FormatMJPEG, // MJPG
	0x56595559: FormatYUYV,  // YUYV
	0x3132564E: FormatNV21,  // NV21
	0x32315559: FormatI420,  // YU12
}

func init() {
	Register(V4L2Backend, func(opts Options) (Backend, error) {
		return &V4L2{logger: opts.Logger, glob: "/dev/video*"}, nil
	})
}

// V4L2 talks to /dev/video* nodes directly and hands out undecoded frames.
type V4L2 struct {
	logger *zap.SugaredLogger
	glob   string
}

func (v *V4L2) Name() string { return V4L2Backend }

func (v *V4L2) Devices() ([]Device, error) {
	paths, err := filepath.Glob(v.glob)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var devices []Device
	for _, path := range paths {
		cam, err := webcam.Open(path)
		if err != nil {
			v.logger.Debugf("skipping %s: %v", path, err)
			continue
		}
		capture := false
		for f := range cam.GetSupportedFormats() {
			if _, ok := v4l2Formats[f]; ok {
				capture = true
				break
			}
		}
		cam.Close()
		if !capture {
			continue
		}

		devices = append(devices, Device{
			ID:         path,
			Name:       v4l2Name(path),
			Index:      len(devices),
			Backend:    V4L2Backend,
			DeviceType: USBCamera,
		})
	}
	return devices, nil
}

func v4l2Name(path string) string {
	b, err := os.ReadFile(filepath.Join("/sys/class/video4linux", filepath.Base(path), "name"))
	if err != nil {
		return filepath.Base(path)
	}
	return strings.TrimSpace(string(b))
}

type v4l2Mode struct {
	StreamFormat
	pixel webcam.PixelFormat
}

func (v *V4L2) Open(dev Device, req FormatRequest) (Stream, error) {
	cam, err := webcam.Open(dev.ID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoDevice, dev.ID)
		}
		return nil, err
	}

	modes := v4l2Modes(cam)
	formats := make([]StreamFormat, len(modes))
	for i, m := range modes {
		formats[i] = m.StreamFormat
	}
	chosen, err := SelectFormat(formats, req)
	if err != nil {
		cam.Close()
		return nil, err
	}
	var mode v4l2Mode
	for _, m := range modes {
		if m.StreamFormat == chosen {
			mode = m
			break
		}
	}

	_, w, h, err := cam.SetImageFormat(mode.pixel, uint32(chosen.Width), uint32(chosen.Height))
	if err != nil {
		cam.Close()
		return nil, err
	}
	chosen.Width, chosen.Height = int(w), int(h)

	if chosen.FPS > 0 {
		if err := cam.SetFramerate(float32(chosen.FPS)); err != nil {
			v.logger.Warnf("%s: setting %.4g fps: %v", dev.Name, chosen.FPS, err)
		}
	}
	if err := cam.SetBufferCount(2); err != nil {
		v.logger.Warnf("%s: setting buffer count: %v", dev.Name, err)
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		if strings.Contains(err.Error(), "busy") {
			return nil, ErrDeviceBusy
		}
		return nil, err
	}

	v.logger.Debugf("opened %s with %s", dev.Name, chosen)
	return &v4l2Stream{cam: cam, format: chosen}, nil
}

func v4l2Modes(cam *webcam.Webcam) []v4l2Mode {
	var modes []v4l2Mode
	for pf := range cam.GetSupportedFormats() {
		pixel, ok := v4l2Formats[pf]
		if !ok {
			continue
		}
		for _, size := range cam.GetSupportedFrameSizes(pf) {
			w, h := size.MaxWidth, size.MaxHeight
			mode := v4l2Mode{
				StreamFormat: StreamFormat{Width: int(w), Height: int(h), Pixel: pixel},
				pixel:        pf,
			}
			rates := cam.GetSupportedFramerates(pf, w, h)
			if len(rates) == 0 {
				modes = append(modes, mode)
				continue
			}
			for _, r := range rates {
				if r.MinNumerator == 0 {
					continue
				}
				mode.FPS = float64(r.MaxDenominator) / float64(r.MinNumerator)
				modes = append(modes, mode)
			}
		}
	}
	return modes
}

type v4l2Stream struct {
	cam    *webcam.Webcam
	format StreamFormat

	// mu keeps Read from touching mmap'd buffers after StopStreaming.
	mu     sync.Mutex
	closed bool
	seq    uint64
}

func (s *v4l2Stream) Format() StreamFormat { return s.format }

func (s *v4l2Stream) Read() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < maxEmptyReads; i++ {
		if s.closed {
			return Frame{}, io.EOF
		}

		err := s.cam.WaitForFrame(waitTimeout)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			return Frame{}, errReadTimeout
		default:
			return Frame{}, err
		}

		b, err := s.cam.ReadFrame()
		if err != nil {
			return Frame{}, err
		}
		if len(b) == 0 {
			continue
		}

		data := make([]byte, len(b))
		copy(data, b)
		s.seq++
		return Frame{
			Format:   s.format.Pixel,
			Width:    s.format.Width,
			Height:   s.format.Height,
			Data:     data,
			Seq:      s.seq,
			Captured: time.Now(),
		}, nil
	}
	return Frame{}, errors.New("empty frame")
}

func (s *v4l2Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	stopErr := s.cam.StopStreaming()
	return errors.Join(stopErr, s.cam.Close())
}
