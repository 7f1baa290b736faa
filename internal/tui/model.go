// internal/tui/model.go
package tui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AlverezYari/juststop/internal/config"
	"github.com/AlverezYari/juststop/internal/logging"
	"github.com/AlverezYari/juststop/internal/server"
	"github.com/AlverezYari/juststop/internal/stream"
	"github.com/AlverezYari/juststop/pkg/camera"
	"github.com/AlverezYari/juststop/pkg/frame"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

type tabType int

const (
	cameraTab tabType = iota
	logsTab
	serverTab
)

type tab struct {
	title string
	id    tabType
}

const (
	maxLogLines   = 1000
	bannerTimeout = 5 * time.Second
)

// Logging Setup

// logRing collects lines from the stream manager and the web server,
// which may log from their own goroutines.
type logRing struct {
	mu      sync.Mutex
	lines   []string
	version uint64
}

func (r *logRing) add(level, message string) {
	entry := fmt.Sprintf("%s [%s] %s", time.Now().Format("15:04:05"), level, message)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, entry)

	// Cap log buffer size
	if len(r.lines) > maxLogLines {
		r.lines = r.lines[1:]
	}
	r.version++
}

func (r *logRing) snapshot() (string, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.lines, "\n"), r.version
}

// banner is the error line above the active view. Sticky banners stay
// until the app exits; the rest expire after bannerTimeout.
type banner struct {
	id     int
	text   string
	sticky bool
}

// Msg types
type clockTickMsg time.Time

type refreshMsg struct{}

// selectMsg opens the listed camera at index.
type selectMsg struct{ index int }

// frameTickMsg asks for the next frame of the stream opened as generation gen.
type frameTickMsg struct{ gen uint64 }

type bannerExpiredMsg struct{ id int }

// Model holds our application state
type Model struct {
	config      *config.AppConfig
	logger      *zap.SugaredLogger
	manager     *stream.Manager
	server      *server.Server
	width       int
	height      int
	status      string
	startTime   time.Time
	currentTime time.Time
	activeTab   tabType
	tabs        []tab
	keys        keyMap
	help        help.Model

	devices []camera.Device
	picker  picker
	banner  banner

	frame      *frame.Buffer // last good frame, kept across poll errors
	frameView  string
	frameDirty bool // frame changed while another tab was showing
	viewport   viewport.Model

	portInput   textinput.Model
	editingPort bool

	logs        *logRing
	logVersion  uint64
	logViewport viewport.Model
}

// New returns a Model with initial state
func New(cfg *config.AppConfig, manager *stream.Manager, logger *zap.SugaredLogger) Model {
	if logger == nil {
		logger = logging.Nop()
	}
	now := time.Now()

	m := Model{
		config:      cfg,
		logger:      logger,
		manager:     manager,
		status:      "Starting up...",
		startTime:   now,
		currentTime: now,
		activeTab:   cameraTab,
		tabs: []tab{
			{title: "Camera", id: cameraTab},
			{title: "Logs", id: logsTab},
			{title: "Server", id: serverTab},
		},
		keys:        defaultKeys(),
		help:        help.New(),
		picker:      newPicker(),
		viewport:    newViewport(),
		logViewport: newViewport(),
		portInput:   newPortInput(),
		logs:        &logRing{},
	}

	logs := m.logs
	manager.Observe(func(ev stream.Event) {
		switch ev.Kind {
		case stream.EventOpened:
			logs.add("INFO", fmt.Sprintf("Opened %s", ev.Device.Name))
		case stream.EventClosed:
			if ev.Err != nil {
				logs.add("ERROR", fmt.Sprintf("Closed %s: %v", ev.Device.Name, ev.Err))
			} else {
				logs.add("INFO", fmt.Sprintf("Closed %s", ev.Device.Name))
			}
		}
	})

	m.server = server.New(cfg.Server.IP, cfg.Server.Port, logger, logs.add)
	if cfg.Server.Enabled {
		if err := m.server.Start(); err != nil {
			m.status = fmt.Sprintf("Error starting server: %v", err)
		}
	}

	return m
}

func newViewport() viewport.Model {
	vp := viewport.New(0, 10)
	vp.MouseWheelEnabled = true
	vp.YPosition = 0
	return vp
}

func newPortInput() textinput.Model {
	ti := textinput.New()
	ti.Prompt = "Port: "
	ti.Placeholder = "8080"
	ti.CharLimit = 5
	ti.Width = 6
	return ti
}

// Init runs any initial IO
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		timeTickCmd(),
		func() tea.Msg { return refreshMsg{} },
	)
}

func (m *Model) addLog(level, message string) {
	m.logs.add(level, message)
	m.syncLogs()
}

// syncLogs copies new log lines into the log viewport.
func (m *Model) syncLogs() {
	content, version := m.logs.snapshot()
	if version == m.logVersion {
		return
	}
	atBottom := m.logViewport.AtBottom()
	m.logVersion = version
	m.logViewport.SetContent(content)
	if atBottom {
		m.logViewport.GotoBottom()
	}
}

// showError puts err in the banner and the log. Repeats of the banner
// already on screen are dropped so a failing camera does not flood the log.
func (m *Model) showError(err error) tea.Cmd {
	kind := camera.Classify(err)
	if kind == camera.KindNone {
		return nil
	}
	text := err.Error()
	m.status = "Error: " + text
	if m.banner.text == text {
		return nil
	}

	m.addLog("ERROR", text)
	if m.banner.sticky && kind != camera.KindFatal {
		return nil
	}
	m.banner.id++
	m.banner.text = text
	m.banner.sticky = kind == camera.KindFatal
	if m.banner.sticky {
		return nil
	}
	id := m.banner.id
	return tea.Tick(bannerTimeout, func(time.Time) tea.Msg {
		return bannerExpiredMsg{id: id}
	})
}

// pushStatus hands the web server a copy of the camera state.
func (m *Model) pushStatus() {
	m.server.SetStatus(m.manager.Status())
}

// Helper command for time updates
func timeTickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return clockTickMsg(t)
	})
}

func frameTickCmd(gen uint64, interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return frameTickMsg{gen: gen}
	})
}
