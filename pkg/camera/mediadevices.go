package camera

import (
	"fmt"
	"io"
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/driver"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // registers the host's camera drivers
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"go.uber.org/zap"
)

func init() {
	Register(DefaultBackend, func(opts Options) (Backend, error) {
		return &MediaDevices{logger: opts.Logger}, nil
	})
}

// MediaDevices lists and opens cameras through pion's driver manager.
type MediaDevices struct {
	logger *zap.SugaredLogger
}

func (m *MediaDevices) Name() string { return DefaultBackend }

func (m *MediaDevices) Devices() ([]Device, error) {
	var devices []Device
	for _, info := range mediadevices.EnumerateDevices() {
		if info.Kind != mediadevices.VideoInput || info.DeviceType != driver.Camera {
			continue
		}
		devices = append(devices, Device{
			ID:         info.DeviceID,
			Name:       info.Label,
			Index:      len(devices),
			Backend:    DefaultBackend,
			DeviceType: USBCamera,
		})
	}
	return devices, nil
}

func (m *MediaDevices) lookup(id string) (driver.Driver, error) {
	for _, d := range driver.GetManager().Query(driver.FilterVideoRecorder()) {
		if d.ID() == id {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoDevice, id)
}

func (m *MediaDevices) Open(dev Device, req FormatRequest) (Stream, error) {
	d, err := m.lookup(dev.ID)
	if err != nil {
		return nil, err
	}
	if d.Status() != driver.StateClosed {
		return nil, ErrDeviceBusy
	}

	if err := d.Open(); err != nil {
		return nil, err
	}

	props := d.Properties()
	formats := make([]StreamFormat, 0, len(props))
	for _, p := range props {
		formats = append(formats, StreamFormat{
			Width:  p.Width,
			Height: p.Height,
			FPS:    float64(p.FrameRate),
			Pixel:  fromPionFormat(p.FrameFormat),
		})
	}
	chosen, err := SelectFormat(formats, req)
	if err != nil {
		d.Close()
		return nil, err
	}

	var selected prop.Media
	for i, f := range formats {
		if f == chosen {
			selected = props[i]
			break
		}
	}

	recorder, ok := d.(driver.VideoRecorder)
	if !ok {
		d.Close()
		return nil, fmt.Errorf("%w: %s cannot record video", ErrUnsupportedFormat, dev.Name)
	}
	r, err := recorder.VideoRecord(selected)
	if err != nil {
		d.Close()
		return nil, err
	}

	m.logger.Debugf("opened %s with %s", dev.Name, chosen)
	return &mediaStream{
		driver: d,
		reader: video.ToRGBA(r),
		format: chosen,
		done:   make(chan struct{}),
	}, nil
}

func fromPionFormat(f frame.Format) PixelFormat {
	switch f {
	case frame.FormatMJPEG:
		return FormatMJPEG
	case frame.FormatYUY2:
		return FormatYUYV
	case frame.FormatNV21:
		return FormatNV21
	case frame.FormatI420:
		return FormatI420
	default:
		return PixelFormat(f)
	}
}

type mediaStream struct {
	driver driver.Driver
	reader video.Reader
	format StreamFormat

	seq       uint64
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

func (s *mediaStream) Format() StreamFormat { return s.format }

func (s *mediaStream) Read() (Frame, error) {
	select {
	case <-s.done:
		return Frame{}, io.EOF
	default:
	}

	img, release, err := s.reader.Read()
	if err != nil {
		select {
		case <-s.done:
			return Frame{}, io.EOF
		default:
		}
		return Frame{}, err
	}
	defer release()

	s.seq++
	return rgbaFrame(img, s.seq), nil
}

func (s *mediaStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.driver.Close()
	})
	return s.closeErr
}
