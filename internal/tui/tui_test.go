package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/AlverezYari/juststop/internal/config"
	"github.com/AlverezYari/juststop/internal/stream"
	"github.com/AlverezYari/juststop/pkg/camera"
	"github.com/AlverezYari/juststop/pkg/frame"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listBackend serves a device list the test can change between refreshes.
type listBackend struct {
	*camera.Synthetic
	devices []camera.Device
}

func (b *listBackend) Devices() ([]camera.Device, error) {
	return b.devices, nil
}

func newListBackend(t *testing.T, devices ...camera.SyntheticDevice) *listBackend {
	t.Helper()
	syn := camera.NewSynthetic(devices...)
	listed, err := syn.Devices()
	require.NoError(t, err)
	return &listBackend{Synthetic: syn, devices: listed}
}

func newTestModel(t *testing.T, backend camera.Backend, opts frame.Options) Model {
	t.Helper()
	cfg := config.Default()
	cfg.Server.IP = "127.0.0.1"
	cfg.Server.Port = "0"

	mgr := stream.New(backend, stream.Config{
		Mode:        stream.Polling,
		Request:     camera.DefaultRequest,
		Frame:       opts,
		OpenTimeout: time.Second,
	}, nil)
	t.Cleanup(func() { mgr.Close() })

	m := New(cfg, mgr, nil)
	m, _ = update(m, tea.WindowSizeMsg{Width: 80, Height: 40})
	return m
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func press(m Model, keys ...string) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m, cmd = update(m, msg)
	}
	return m, cmd
}

// pick opens the camera at index i through the dropdown.
func pick(t *testing.T, m Model, i int) (Model, tea.Cmd) {
	t.Helper()
	m, _ = press(m, "enter")
	require.True(t, m.picker.expanded)
	for m.picker.cursor != i {
		m, _ = press(m, "down")
	}
	return press(m, "enter")
}

func TestRefreshListsDevices(t *testing.T) {
	m := newTestModel(t, camera.NewSynthetic(), frame.Options{})
	m, _ = update(m, refreshMsg{})

	require.Len(t, m.devices, 2)
	assert.Equal(t, []string{"Test Pattern", "Slow Pattern"}, m.picker.options)
	assert.Equal(t, -1, m.picker.selected)
	assert.Contains(t, m.picker.View(), pickerPlaceholder)
}

func TestSelectOpensStream(t *testing.T) {
	m := newTestModel(t, camera.NewSynthetic(), frame.Options{})
	m, _ = update(m, refreshMsg{})

	m, cmd := pick(t, m, 1)
	require.NotNil(t, cmd, "a frame tick is scheduled")
	assert.False(t, m.picker.expanded)
	assert.Equal(t, 1, m.picker.selected)
	assert.Equal(t, stream.Open, m.manager.State())
	assert.Equal(t, "Slow Pattern", m.manager.Device().Name)
	assert.Contains(t, m.picker.View(), "Slow Pattern")

	m, _ = pick(t, m, 0)
	assert.Equal(t, "Test Pattern", m.manager.Device().Name)
	assert.EqualValues(t, 2, m.manager.Generation())

	m, _ = update(m, selectMsg{index: 1})
	assert.Equal(t, "Slow Pattern", m.manager.Device().Name)
	assert.Equal(t, 1, m.picker.selected)

	m, cmd = update(m, selectMsg{index: 5})
	assert.Nil(t, cmd)
	assert.Equal(t, "Slow Pattern", m.manager.Device().Name, "out of range is ignored")
}

func TestSelectFailureLeavesNothingSelected(t *testing.T) {
	m := newTestModel(t, camera.NewSynthetic(camera.SyntheticDevice{Name: "Busy", Busy: true}), frame.Options{})
	m, _ = update(m, refreshMsg{})

	m, cmd := pick(t, m, 0)
	assert.NotNil(t, cmd, "banner expiry")
	assert.Equal(t, stream.Closed, m.manager.State())
	assert.Equal(t, -1, m.picker.selected)
	assert.Contains(t, m.banner.text, "Busy")
	assert.False(t, m.banner.sticky)

	m, _ = update(m, bannerExpiredMsg{id: m.banner.id})
	assert.Empty(t, m.banner.text)
}

func TestStaleTicksDropped(t *testing.T) {
	m := newTestModel(t, camera.NewSynthetic(), frame.Options{})
	m, _ = update(m, refreshMsg{})
	m, _ = pick(t, m, 0)
	m, _ = pick(t, m, 1)

	m, cmd := update(m, frameTickMsg{gen: 1})
	assert.Nil(t, cmd, "a tick for the first stream must not keep polling")
	assert.Nil(t, m.frame)

	m, cmd = update(m, frameTickMsg{gen: 2})
	assert.NotNil(t, cmd)
	assert.NotNil(t, m.frame)
}

func TestVanishedSelectionIsCleared(t *testing.T) {
	backend := newListBackend(t, camera.SyntheticDevice{Name: "Cam A"}, camera.SyntheticDevice{Name: "Cam B"})
	m := newTestModel(t, backend, frame.Options{})
	m, _ = update(m, refreshMsg{})
	m, _ = pick(t, m, 1)
	gen := m.manager.Generation()
	m, _ = update(m, frameTickMsg{gen: gen})
	require.NotNil(t, m.frame)

	// Cam A unplugged: Cam B moves to index 0 and stays selected
	backend.devices = backend.devices[1:]
	m, _ = press(m, "r")
	assert.Equal(t, 0, m.picker.selected)
	assert.Equal(t, stream.Open, m.manager.State())

	// Cam B unplugged
	backend.devices = nil
	m, _ = press(m, "r")
	assert.Equal(t, -1, m.picker.selected)
	assert.Equal(t, stream.Closed, m.manager.State())
	assert.Nil(t, m.frame)

	_, cmd := update(m, frameTickMsg{gen: gen})
	assert.Nil(t, cmd, "no polling once the stream is closed")
}

func TestRetainLastGoodFrame(t *testing.T) {
	m := newTestModel(t, camera.NewSynthetic(camera.SyntheticDevice{Name: "Flaky", FPS: 50, FailEvery: 2}), frame.Options{})
	m, _ = update(m, refreshMsg{})
	m, _ = pick(t, m, 0)
	gen := m.manager.Generation()

	m, _ = update(m, frameTickMsg{gen: gen})
	good := m.frame
	require.NotNil(t, good)
	require.Empty(t, m.banner.text)

	m, cmd := update(m, frameTickMsg{gen: gen})
	assert.NotNil(t, cmd, "polling continues after a failed frame")
	assert.Same(t, good, m.frame)
	assert.Contains(t, m.banner.text, "synthetic read failure")
	assert.False(t, m.banner.sticky)
	assert.Equal(t, stream.Open, m.manager.State())
}

func TestBackendUnavailableIsSticky(t *testing.T) {
	m := newTestModel(t, nil, frame.Options{})
	m, _ = update(m, refreshMsg{})

	assert.Empty(t, m.devices)
	assert.True(t, m.banner.sticky)
	assert.Contains(t, m.banner.text, camera.ErrBackendUnavailable.Error())

	// a stray expiry changes nothing
	m, _ = update(m, bannerExpiredMsg{id: m.banner.id})
	assert.NotEmpty(t, m.banner.text)

	m, _ = press(m, "enter")
	assert.False(t, m.picker.expanded)
}

func TestMirrorToggle(t *testing.T) {
	m := newTestModel(t, camera.NewSynthetic(), frame.Options{})
	m, _ = press(m, "m")
	assert.True(t, m.manager.Options().Mirror)
	m, _ = press(m, "m")
	assert.False(t, m.manager.Options().Mirror)

	raw := newTestModel(t, camera.NewSynthetic(), frame.Options{Policy: frame.Raw})
	raw, _ = press(raw, "m")
	assert.False(t, raw.manager.Options().Mirror)
	assert.Contains(t, raw.banner.text, errMirrorRaw.Error())
}

func TestRawPolicyStillDisplays(t *testing.T) {
	m := newTestModel(t, camera.NewSynthetic(), frame.Options{Policy: frame.Raw})
	m, _ = update(m, refreshMsg{})
	m, _ = pick(t, m, 0)

	m, _ = update(m, frameTickMsg{gen: m.manager.Generation()})
	require.NotNil(t, m.frame)
	assert.Equal(t, 320, m.frame.Width)
	assert.NotEmpty(t, m.frameView)
}

func TestTabsAndQuit(t *testing.T) {
	m := newTestModel(t, camera.NewSynthetic(), frame.Options{})
	m, _ = press(m, "2")
	assert.Equal(t, logsTab, m.activeTab)
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, serverTab, m.activeTab)
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, cameraTab, m.activeTab)

	m, _ = update(m, refreshMsg{})
	m, _ = pick(t, m, 0)
	m, cmd := press(m, "q")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Equal(t, stream.Closed, m.manager.State())
}

func TestServerToggle(t *testing.T) {
	m := newTestModel(t, camera.NewSynthetic(), frame.Options{})
	m, _ = press(m, "3", "s")
	require.True(t, m.server.IsRunning())
	assert.Contains(t, m.View(), "Running on")

	m, _ = press(m, "s")
	assert.False(t, m.server.IsRunning())

	m.syncLogs()
	content, _ := m.logs.snapshot()
	assert.Contains(t, content, "Server stopped")
}

func TestFramesNotRenderedOffCameraTab(t *testing.T) {
	m := newTestModel(t, camera.NewSynthetic(), frame.Options{})
	m, _ = update(m, refreshMsg{})
	m, _ = pick(t, m, 0)

	m, _ = press(m, "2")
	m, _ = update(m, frameTickMsg{gen: m.manager.Generation()})
	require.NotNil(t, m.frame, "frames are still polled and published")
	assert.Empty(t, m.frameView)
	assert.True(t, m.frameDirty)

	m, _ = press(m, "1")
	assert.NotEmpty(t, m.frameView)
	assert.False(t, m.frameDirty)
}

func TestServerPortPrompt(t *testing.T) {
	m := newTestModel(t, camera.NewSynthetic(), frame.Options{})
	m, _ = press(m, "3", "p")
	require.True(t, m.editingPort)
	assert.Contains(t, m.View(), "Port: ")

	// keys go to the prompt, not the tab bindings
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyBackspace})
	m, _ = press(m, "s", "enter")
	assert.True(t, m.editingPort, "letters are not a port")
	assert.Contains(t, m.banner.text, "invalid port")
	assert.False(t, m.server.IsRunning())

	m.portInput.SetValue("")
	m, _ = press(m, "9", "0", "9", "0", "enter")
	assert.False(t, m.editingPort)
	assert.Equal(t, "9090", m.server.Port())
	assert.Equal(t, "9090", m.config.Server.Port)

	m, _ = press(m, "p", "1", "esc")
	assert.False(t, m.editingPort)
	assert.Equal(t, "9090", m.server.Port(), "esc keeps the old port")
}

func TestServerPortRefusedWhileRunning(t *testing.T) {
	m := newTestModel(t, camera.NewSynthetic(), frame.Options{})
	m, _ = press(m, "3", "s")
	require.True(t, m.server.IsRunning())

	m, _ = press(m, "p")
	assert.False(t, m.editingPort)
	assert.Contains(t, m.banner.text, errPortRunning.Error())
	assert.Equal(t, "0", m.server.Port())
	m, _ = press(m, "s")
	assert.False(t, m.server.IsRunning())
}

func TestPickerNavigation(t *testing.T) {
	p := newPicker()
	p.toggle()
	assert.False(t, p.expanded, "nothing to choose from")

	p.setOptions([]string{"a", "b", "c"})
	p.toggle()
	require.True(t, p.expanded)
	p.up()
	assert.Equal(t, 2, p.cursor)
	p.down()
	assert.Equal(t, 0, p.cursor)

	p.selected = 2
	p.collapse()
	p.toggle()
	assert.Equal(t, 2, p.cursor, "opening starts at the current selection")

	p.setOptions([]string{"a"})
	assert.Equal(t, -1, p.selected)
	assert.Equal(t, 0, p.cursor)
}

func TestRenderImage(t *testing.T) {
	buf := frame.NewBuffer(8, 4)
	for i := range buf.Pix {
		buf.Pix[i] = 255
	}

	out := renderImage(buf, 4, 10)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 1, "4x2 pixels fit one row of half blocks")
	assert.Equal(t, 4, lipgloss.Width(lines[0]))

	out = renderImage(buf, 80, 2)
	lines = strings.Split(out, "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, 8, lipgloss.Width(lines[0]))

	assert.Empty(t, renderImage(nil, 10, 10))
	assert.Empty(t, renderImage(buf, 0, 10))
}

func TestRenderImageProfiles(t *testing.T) {
	// red over blue, one cell each column
	buf := frame.NewBuffer(2, 2)
	copy(buf.Pix, []byte{
		255, 0, 0, 255, 255, 0, 0, 255,
		0, 0, 255, 255, 0, 0, 255, 255,
	})

	out := renderImageProfile(buf, 2, 1, termenv.TrueColor)
	cell := "\x1b[38;2;255;0;0;48;2;0;0;255m▀"
	assert.Equal(t, cell+cell+"\x1b[0m", out)

	out = renderImageProfile(buf, 2, 1, termenv.ANSI256)
	assert.Contains(t, out, "38;5;")
	assert.Contains(t, out, "48;5;")
	assert.Equal(t, 2, lipgloss.Width(out))

	out = renderImageProfile(buf, 2, 1, termenv.ANSI)
	assert.Contains(t, out, "\x1b[")
	assert.Equal(t, 2, lipgloss.Width(out))

	assert.Equal(t, "▀▀", renderImageProfile(buf, 2, 1, termenv.Ascii))
}

func BenchmarkRenderImage(b *testing.B) {
	buf := frame.NewBuffer(1280, 720)
	for i := range buf.Pix {
		buf.Pix[i] = byte(i)
	}
	profiles := map[string]termenv.Profile{"truecolor": termenv.TrueColor, "ansi256": termenv.ANSI256}
	for name, profile := range profiles {
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				renderImageProfile(buf, 200, 50, profile)
			}
		})
	}
}

func TestFitCells(t *testing.T) {
	w, h := fitCells(640, 480, 80, 15)
	assert.Equal(t, 40, w)
	assert.Equal(t, 30, h)

	w, h = fitCells(1, 1, 80, 20)
	assert.Equal(t, 40, w)
	assert.Equal(t, 40, h)
}
