package camera

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBackend struct{ err error }

func (f failingBackend) Name() string { return "failing" }
func (f failingBackend) Devices() ([]Device, error) { return nil, f.err }
func (f failingBackend) Open(Device, FormatRequest) (Stream, error) { return nil, f.err }

type emptyBackend struct{}

func (emptyBackend) Name() string { return "empty" }
func (emptyBackend) Devices() ([]Device, error) { return nil, nil }
func (emptyBackend) Open(Device, FormatRequest) (Stream, error) { return nil, ErrNoDevice }

func TestListDevices(t *testing.T) {
	t.Run("nil backend", func(t *testing.T) {
		_, err := ListDevices(nil)
		assert.ErrorIs(t, err, ErrBackendUnavailable)
	})

	t.Run("backend failure keeps its kind", func(t *testing.T) {
		_, err := ListDevices(failingBackend{err: ErrBackendUnavailable})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBackendUnavailable)
		assert.Equal(t, KindFatal, Classify(err))
	})

	t.Run("no devices is an empty list", func(t *testing.T) {
		devices, err := ListDevices(emptyBackend{})
		require.NoError(t, err)
		assert.NotNil(t, devices)
		assert.Empty(t, devices)
	})

	t.Run("synthetic", func(t *testing.T) {
		b := NewSynthetic(
			SyntheticDevice{Name: "Cam A", FPS: 30},
			SyntheticDevice{Name: "Cam B", FPS: 15},
		)
		devices, err := ListDevices(b)
		require.NoError(t, err)
		require.Len(t, devices, 2)
		assert.Equal(t, "Cam A", devices[0].Name)
		assert.Equal(t, 0, devices[0].Index)
		assert.Equal(t, "Cam B", devices[1].Name)
		assert.Equal(t, 1, devices[1].Index)
		assert.Equal(t, SyntheticBackend, devices[1].Backend)

		again, err := ListDevices(b)
		require.NoError(t, err)
		assert.Equal(t, devices[1].ID, again[1].ID, "IDs are stable across enumerations")
	})
}

func TestSelectFormat(t *testing.T) {
	formats := []StreamFormat{
		{Width: 1920, Height: 1080, FPS: 30, Pixel: FormatMJPEG},
		{Width: 640, Height: 480, FPS: 60, Pixel: FormatMJPEG},
		{Width: 640, Height: 480, FPS: 60, Pixel: FormatYUYV},
		{Width: 320, Height: 240, FPS: 60, Pixel: FormatYUYV},
		{Width: 1280, Height: 720, FPS: 30, Pixel: FormatYUYV},
	}

	testCases := map[string]struct {
		req  FormatRequest
		want StreamFormat
	}{
		"HighestFrameRate": {
			req:  DefaultRequest,
			want: StreamFormat{Width: 640, Height: 480, FPS: 60, Pixel: FormatYUYV},
		},
		"HighestResolution": {
			req:  FormatRequest{Policy: HighestResolution},
			want: StreamFormat{Width: 1920, Height: 1080, FPS: 30, Pixel: FormatMJPEG},
		},
		"Closest": {
			req:  FormatRequest{Policy: Closest, Width: 1280, Height: 700},
			want: StreamFormat{Width: 1280, Height: 720, FPS: 30, Pixel: FormatYUYV},
		},
	}

	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			got, err := SelectFormat(formats, tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := SelectFormat(nil, DefaultRequest)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []RequestPolicy{HighestFrameRate, HighestResolution, Closest} {
		got, err := ParsePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParsePolicy("fastest")
	assert.Error(t, err)
}

func TestSyntheticStream(t *testing.T) {
	b := NewSynthetic(SyntheticDevice{Name: "Bars", FPS: 200, Width: 16, Height: 8})
	devices, err := b.Devices()
	require.NoError(t, err)

	s, err := b.Open(devices[0], DefaultRequest)
	require.NoError(t, err)
	assert.Equal(t, StreamFormat{Width: 16, Height: 8, FPS: 200, Pixel: FormatRGBA}, s.Format())

	f, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, FormatRGBA, f.Format)
	assert.Equal(t, 16, f.Width)
	assert.Equal(t, 8, f.Height)
	assert.Len(t, f.Data, 16*8*4)
	assert.Equal(t, uint64(1), f.Seq)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, err = s.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSyntheticFaults(t *testing.T) {
	b := NewSynthetic(
		SyntheticDevice{Name: "Busy", Busy: true},
		SyntheticDevice{Name: "Flaky", FPS: 500, Width: 4, Height: 4, FailEvery: 2},
	)
	devices, err := b.Devices()
	require.NoError(t, err)

	_, err = b.Open(devices[0], DefaultRequest)
	assert.ErrorIs(t, err, ErrDeviceBusy)

	_, err = b.Open(Device{ID: "missing"}, DefaultRequest)
	assert.ErrorIs(t, err, ErrNoDevice)

	s, err := b.Open(devices[1], DefaultRequest)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Read()
	require.NoError(t, err)
	_, err = s.Read()
	assert.ErrorIs(t, err, errSyntheticRead)
	_, err = s.Read()
	require.NoError(t, err)
}

func TestClassify(t *testing.T) {
	dev := Device{Name: "Cam"}
	testCases := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{ErrBackendUnavailable, KindFatal},
		{fmt.Errorf("wrapped: %w", ErrBackendUnavailable), KindFatal},
		{&DeviceOpenError{Device: dev, Err: ErrDeviceBusy}, KindRecoverable},
		{&DeviceOpenError{Device: dev, Err: ErrBackendUnavailable}, KindRecoverable},
		{&FramePollError{Err: io.ErrUnexpectedEOF}, KindRecoverable},
		{errors.New("other"), KindRecoverable},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, Classify(tc.err), "%v", tc.err)
	}
}

func TestNewBackend(t *testing.T) {
	_, err := New("no-such-backend", Options{})
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	b, err := New(SyntheticBackend, Options{})
	require.NoError(t, err)
	assert.Equal(t, SyntheticBackend, b.Name())
	assert.Contains(t, Available(), SyntheticBackend)
	assert.Contains(t, Available(), DefaultBackend)
}
