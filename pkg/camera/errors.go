package camera

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable means no camera API could be initialized, so
	// no device can ever be listed or opened.
	ErrBackendUnavailable = errors.New("camera backend unavailable")
	ErrDeviceBusy         = errors.New("device or resource busy")
	ErrNoDevice           = errors.New("no such device")
	ErrUnsupportedFormat  = errors.New("no supported stream format")
)

// DeviceOpenError is returned when a device could not be opened. The user
// can pick another device.
type DeviceOpenError struct {
	Device Device
	Err    error
}

func (e *DeviceOpenError) Error() string {
	return fmt.Sprintf("opening camera %q: %v", e.Device.Name, e.Err)
}

func (e *DeviceOpenError) Unwrap() error { return e.Err }

// FramePollError is returned when a frame could not be pulled from an
// open stream. The last good frame stays on screen.
type FramePollError struct {
	Err error
}

func (e *FramePollError) Error() string {
	return fmt.Sprintf("polling frame: %v", e.Err)
}

func (e *FramePollError) Unwrap() error { return e.Err }

type Kind int

const (
	KindNone Kind = iota
	KindRecoverable
	KindFatal
)

// Classify sorts err into the taxonomy the UI reacts to.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrBackendUnavailable) {
		var openErr *DeviceOpenError
		if !errors.As(err, &openErr) {
			return KindFatal
		}
	}
	return KindRecoverable
}
