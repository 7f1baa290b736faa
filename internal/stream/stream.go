// Package stream owns the one open camera stream: it tears the old stream
// down before opening the next, and pulls frames from it on demand.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/AlverezYari/juststop/internal/logging"
	"github.com/AlverezYari/juststop/pkg/camera"
	"github.com/AlverezYari/juststop/pkg/frame"
	"go.uber.org/zap"
)

// DefaultTickInterval is used when neither the config nor the camera
// says how often to poll.
const DefaultTickInterval = 10 * time.Millisecond

var (
	ErrClosed = errors.New("no open stream")
	// errCaptureEnded is reported by every Poll once the capture goroutine
	// has run out of frames without being stopped.
	errCaptureEnded = fmt.Errorf("capture stopped: %w", io.EOF)
)

type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

type Mode int

const (
	// Polling reads one frame on the caller's goroutine per Poll.
	Polling Mode = iota
	// Callback reads continuously on a capture goroutine; Poll drains the
	// latest frame without blocking.
	Callback
)

func (m Mode) String() string {
	if m == Callback {
		return "callback"
	}
	return "polling"
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "polling":
		return Polling, nil
	case "callback":
		return Callback, nil
	}
	return 0, fmt.Errorf("unknown capture mode %q", s)
}

type Config struct {
	Mode         Mode
	Request      camera.FormatRequest
	Frame        frame.Options
	TickInterval time.Duration // zero derives the interval from the camera's frame rate
	OpenTimeout  time.Duration
}

type EventKind int

const (
	EventOpened EventKind = iota
	EventClosed
	EventPollError
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventClosed:
		return "closed"
	default:
		return "poll_error"
	}
}

type Event struct {
	Kind   EventKind
	Device camera.Device
	Err    error
	At     time.Time
}

type Stats struct {
	Frames    uint64
	Errors    uint64
	LastFrame time.Time
	LastError error
}

// Status is a copy of the manager's state safe to hand to other goroutines.
type Status struct {
	State    State
	Device   camera.Device
	Format   camera.StreamFormat
	Mode     Mode
	Policy   frame.Policy
	Mirror   bool
	Interval time.Duration
	Stats    Stats
}

type openResult struct {
	stream camera.Stream
	err    error
}

type capture struct {
	pic frame.Picture
	err error
}

// Manager is the stream lifecycle state machine. All methods must be
// called from one goroutine; in Callback mode the only other goroutine is
// the capture loop, which talks to the manager through a frame.Slot.
type Manager struct {
	backend   camera.Backend
	cfg       Config
	logger    *zap.SugaredLogger
	processor *frame.Processor
	observers []func(Event)

	state      State
	device     camera.Device
	stream     camera.Stream
	generation uint64
	reaped     <-chan struct{}

	slot *frame.Slot[capture]
	stop chan struct{}
	done chan struct{}

	stats Stats
}

func New(backend camera.Backend, cfg Config, logger *zap.SugaredLogger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		backend:   backend,
		cfg:       cfg,
		logger:    logger,
		processor: frame.NewProcessor(cfg.Frame),
	}
}

// Observe registers fn to be called on every lifecycle event.
func (m *Manager) Observe(fn func(Event)) {
	m.observers = append(m.observers, fn)
}

func (m *Manager) emit(kind EventKind, err error) {
	ev := Event{Kind: kind, Device: m.device, Err: err, At: time.Now()}
	for _, fn := range m.observers {
		fn(ev)
	}
}

func (m *Manager) State() State { return m.state }
func (m *Manager) Device() camera.Device { return m.device }
func (m *Manager) Stats() Stats { return m.stats }
func (m *Manager) Mode() Mode { return m.cfg.Mode }
func (m *Manager) Options() frame.Options { return m.processor.Options() }
func (m *Manager) SetMirror(on bool) { m.processor.SetMirror(on) }
func (m *Manager) Backend() camera.Backend { return m.backend }

// Generation increases on every successful open. Callers tag timer ticks
// with it so ticks scheduled for an earlier stream can be told apart.
func (m *Manager) Generation() uint64 { return m.generation }

func (m *Manager) Format() camera.StreamFormat {
	if m.state != Open {
		return camera.StreamFormat{}
	}
	return m.stream.Format()
}

// TickInterval is how often the current stream should be polled.
func (m *Manager) TickInterval() time.Duration {
	if m.cfg.TickInterval > 0 {
		return m.cfg.TickInterval
	}
	if m.state == Open {
		if fps := m.stream.Format().FPS; fps > 0 {
			return time.Duration(float64(time.Second) / fps)
		}
	}
	return DefaultTickInterval
}

func (m *Manager) Status() Status {
	opts := m.processor.Options()
	return Status{
		State:    m.state,
		Device:   m.device,
		Format:   m.Format(),
		Mode:     m.cfg.Mode,
		Policy:   opts.Policy,
		Mirror:   opts.Mirror,
		Interval: m.TickInterval(),
		Stats:    m.stats,
	}
}

// Select stops the current stream, if any, then opens dev. The close
// always completes before the open starts. Failing to open leaves the
// manager Closed and returns a *camera.DeviceOpenError.
func (m *Manager) Select(ctx context.Context, dev camera.Device) error {
	closeErr := m.Close()
	if closeErr != nil {
		m.logger.Warnf("switching to %s: %v", dev.Name, closeErr)
	}

	s, err := m.open(ctx, dev)
	if err != nil {
		m.logger.Errorf("%v", err)
		return errors.Join(closeErr, err)
	}

	m.stream = s
	m.device = dev
	m.state = Open
	m.generation++
	m.stats = Stats{}
	if m.cfg.Mode == Callback {
		m.startCapture()
	}

	m.logger.Infof("opened %s: %s, polling every %s", dev.Name, s.Format(), m.TickInterval())
	m.emit(EventOpened, nil)
	return closeErr
}

func (m *Manager) open(ctx context.Context, dev camera.Device) (camera.Stream, error) {
	if m.backend == nil {
		return nil, &camera.DeviceOpenError{Device: dev, Err: camera.ErrBackendUnavailable}
	}

	// An open that timed out earlier is still being reaped. Give it up to
	// one open timeout to hand back and close its stream; a driver that
	// never returns must not lock every other camera out.
	if m.reaped != nil {
		if err := m.awaitReaper(ctx, dev); err != nil {
			return nil, &camera.DeviceOpenError{Device: dev, Err: err}
		}
	}

	if m.cfg.OpenTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.OpenTimeout)
		defer cancel()
	}

	results := make(chan openResult, 1)
	go func() {
		s, err := m.backend.Open(dev, m.cfg.Request)
		results <- openResult{stream: s, err: err}
	}()

	select {
	case r := <-results:
		if r.err != nil {
			return nil, &camera.DeviceOpenError{Device: dev, Err: r.err}
		}
		return r.stream, nil
	case <-ctx.Done():
		m.reaped = reap(results, m.logger)
		return nil, &camera.DeviceOpenError{Device: dev, Err: ctx.Err()}
	}
}

func (m *Manager) awaitReaper(ctx context.Context, dev camera.Device) error {
	wait := time.NewTimer(m.cfg.OpenTimeout)
	defer wait.Stop()

	select {
	case <-m.reaped:
	case <-wait.C:
		m.logger.Warnf("an earlier camera open has not returned, opening %s anyway", dev.Name)
	case <-ctx.Done():
		return ctx.Err()
	}
	m.reaped = nil
	return nil
}

// reap closes whatever stream a timed out open eventually returns. The
// returned channel is closed once that has happened.
func reap(results <-chan openResult, logger *zap.SugaredLogger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		r := <-results
		if r.stream == nil {
			return
		}
		if err := r.stream.Close(); err != nil {
			logger.Warnf("closing stream from timed out open: %v", err)
			return
		}
		logger.Infof("closed stream from timed out open")
	}()
	return done
}

// Close stops the current stream. The manager is Closed afterwards even
// if the camera reports an error while stopping.
func (m *Manager) Close() error {
	if m.state == Closed {
		return nil
	}

	if m.stop != nil {
		close(m.stop)
	}
	err := m.stream.Close()
	if m.done != nil {
		<-m.done
		m.stop, m.done, m.slot = nil, nil, nil
	}

	m.stream = nil
	m.state = Closed
	m.emit(EventClosed, err)
	dev := m.device
	m.device = camera.Device{}
	if err != nil {
		return fmt.Errorf("stopping %s: %w", dev.Name, err)
	}
	m.logger.Infof("closed %s", dev.Name)
	return nil
}

// Poll fetches the next frame. ok is false when there is nothing new,
// which only happens in Callback mode. Failures are *camera.FramePollError.
func (m *Manager) Poll() (pic frame.Picture, ok bool, err error) {
	if m.state != Open {
		return frame.Picture{}, false, ErrClosed
	}

	if m.cfg.Mode == Callback {
		c, ok := m.slot.Take()
		if !ok {
			select {
			case <-m.done:
				return m.pollFailed(errCaptureEnded)
			default:
			}
			return frame.Picture{}, false, nil
		}
		if c.err != nil {
			return m.pollFailed(c.err)
		}
		m.recordFrame(c.pic)
		return c.pic, true, nil
	}

	f, err := m.stream.Read()
	if err != nil {
		return m.pollFailed(err)
	}
	pic, err = m.processor.Process(f)
	if err != nil {
		return m.pollFailed(err)
	}
	m.recordFrame(pic)
	return pic, true, nil
}

func (m *Manager) recordFrame(pic frame.Picture) {
	m.stats.Frames++
	m.stats.LastFrame = pic.Frame.Captured
	if m.stats.LastFrame.IsZero() {
		m.stats.LastFrame = time.Now()
	}
}

func (m *Manager) pollFailed(err error) (frame.Picture, bool, error) {
	m.stats.Errors++
	m.stats.LastError = err
	m.emit(EventPollError, err)
	return frame.Picture{}, false, &camera.FramePollError{Err: err}
}
