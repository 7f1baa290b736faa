// pkg/camera/camera.go
package camera

import (
	"fmt"
	"time"
)

type DeviceType int

const (
	USBCamera DeviceType = iota
	BuiltinCamera
	VirtualCamera
)

func (t DeviceType) String() string {
	switch t {
	case USBCamera:
		return "usb"
	case BuiltinCamera:
		return "builtin"
	case VirtualCamera:
		return "virtual"
	default:
		return "unknown"
	}
}

// Device describes one camera as reported by a backend. ID is the
// backend's opaque handle for it; Index is its position in the
// enumeration that produced it.
type Device struct {
	ID         string
	Name       string
	Index      int
	Backend    string
	DeviceType DeviceType
}

func (d Device) String() string {
	return fmt.Sprintf("%s (%s #%d)", d.Name, d.Backend, d.Index)
}

type PixelFormat string

const (
	FormatRGBA  PixelFormat = "RGBA"
	FormatMJPEG PixelFormat = "MJPEG"
	FormatYUYV  PixelFormat = "YUYV"
	FormatNV21  PixelFormat = "NV21"
	FormatI420  PixelFormat = "I420"
)

// StreamFormat is one capture mode a device supports.
type StreamFormat struct {
	Width  int
	Height int
	FPS    float64
	Pixel  PixelFormat
}

func (f StreamFormat) String() string {
	return fmt.Sprintf("%dx%d@%.4g %s", f.Width, f.Height, f.FPS, f.Pixel)
}

// Frame is one capture as it came off the device. Data belongs to the
// caller; backends never hand out memory they will reuse.
type Frame struct {
	Format   PixelFormat
	Width    int
	Height   int
	Data     []byte
	Seq      uint64
	Captured time.Time
}

// Backend is a host camera API.
type Backend interface {
	Name() string
	Devices() ([]Device, error)
	Open(dev Device, req FormatRequest) (Stream, error)
}

// Stream is an open, continuously capturing connection to one device.
// Read blocks until the next frame is ready and returns io.EOF once the
// stream has been closed.
type Stream interface {
	Format() StreamFormat
	Read() (Frame, error)
	Close() error
}

// ListDevices queries b for the cameras it can see. It never returns a
// nil slice on success.
func ListDevices(b Backend) ([]Device, error) {
	if b == nil {
		return nil, ErrBackendUnavailable
	}

	devices, err := b.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing %s devices: %w", b.Name(), err)
	}
	if devices == nil {
		devices = make([]Device, 0)
	}
	for i := range devices {
		devices[i].Index = i
		if devices[i].Backend == "" {
			devices[i].Backend = b.Name()
		}
	}
	return devices, nil
}
