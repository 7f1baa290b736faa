// internal/tui/update.go
package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AlverezYari/juststop/internal/stream"
	"github.com/AlverezYari/juststop/pkg/camera"
	"github.com/AlverezYari/juststop/pkg/frame"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

var (
	errMirrorRaw   = errors.New("mirroring needs the rgba decode policy")
	errPortRunning = errors.New("stop the server before changing its port")
)

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case clockTickMsg:
		m.currentTime = time.Time(msg)
		m.syncLogs()
		m.pushStatus()
		return m, timeTickCmd()

	case refreshMsg:
		return m, m.refreshDevices()

	case selectMsg:
		return m, m.selectDevice(msg.index)

	case frameTickMsg:
		return m, m.pollFrame(msg)

	case bannerExpiredMsg:
		if msg.id == m.banner.id && !m.banner.sticky {
			m.banner = banner{id: m.banner.id}
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		if m.activeTab == logsTab {
			m.logViewport, cmd = m.logViewport.Update(msg)
		} else {
			m.viewport, cmd = m.viewport.Update(msg)
		}
		return m, cmd

	case tea.KeyMsg:
		if m.editingPort {
			return m.handlePortKey(msg)
		}
		return m.handleKey(msg)
	}

	if m.editingPort {
		var cmd tea.Cmd
		m.portInput, cmd = m.portInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.shutdown()
		return m, tea.Quit
	case key.Matches(msg, m.keys.NextTab):
		// Cycle through tabs
		m.setTab((m.activeTab + 1) % tabType(len(m.tabs)))
		return m, nil
	case key.Matches(msg, m.keys.CameraTab):
		m.setTab(cameraTab)
		return m, nil
	case key.Matches(msg, m.keys.LogsTab):
		m.setTab(logsTab)
		return m, nil
	case key.Matches(msg, m.keys.ServerTab):
		m.setTab(serverTab)
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshDevices()
	case key.Matches(msg, m.keys.Mirror):
		return m, m.toggleMirror()
	}

	switch m.activeTab {
	case cameraTab:
		return m.handleCameraKey(msg)
	case logsTab:
		var cmd tea.Cmd
		m.logViewport, cmd = m.logViewport.Update(msg)
		return m, cmd
	case serverTab:
		switch {
		case key.Matches(msg, m.keys.Server):
			m.toggleServer()
		case key.Matches(msg, m.keys.Port):
			return m, m.editPort()
		}
	}
	return m, nil
}

// handlePortKey feeds the port prompt until it is submitted or cancelled.
func (m Model) handlePortKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.shutdown()
		return m, tea.Quit
	case tea.KeyEsc:
		m.stopEditingPort()
		m.status = "Port unchanged"
		return m, nil
	case tea.KeyEnter:
		return m, m.submitPort()
	}
	var cmd tea.Cmd
	m.portInput, cmd = m.portInput.Update(msg)
	return m, cmd
}

func (m *Model) setTab(t tabType) {
	m.activeTab = t
	if t == cameraTab && m.frameDirty {
		m.renderFrame()
	}
}

func (m Model) handleCameraKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.picker.expanded {
		switch {
		case key.Matches(msg, m.keys.Up):
			m.picker.up()
		case key.Matches(msg, m.keys.Down):
			m.picker.down()
		case key.Matches(msg, m.keys.Collapse):
			m.picker.collapse()
		case key.Matches(msg, m.keys.Toggle):
			return m, m.selectDevice(m.picker.cursor)
		}
		m.refreshCameraView()
		return m, nil
	}

	if key.Matches(msg, m.keys.Toggle) {
		if len(m.devices) == 0 {
			m.status = "No cameras found, press r to refresh"
			return m, nil
		}
		m.picker.toggle()
		m.refreshCameraView()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// refreshDevices re-enumerates cameras. A selected camera that is no
// longer listed is deselected and its stream closed.
func (m *Model) refreshDevices() tea.Cmd {
	m.status = "Scanning for cameras..."
	devices, err := camera.ListDevices(m.manager.Backend())
	if err != nil {
		devices = nil
	}

	m.devices = devices
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	m.picker.setOptions(names)
	m.picker.selected = -1
	m.server.SetDevices(devices)

	var cmds []tea.Cmd
	if m.manager.State() == stream.Open {
		current := m.manager.Device()
		for i, d := range devices {
			if d.ID == current.ID {
				m.picker.selected = i
				break
			}
		}
		if m.picker.selected < 0 {
			m.addLog("INFO", fmt.Sprintf("%s is no longer available", current.Name))
			cmds = append(cmds, m.showError(m.manager.Close()))
			m.clearFrame()
		}
	}

	switch {
	case err != nil:
		cmds = append(cmds, m.showError(err))
	case len(devices) == 0:
		m.status = "No cameras found"
	default:
		m.status = fmt.Sprintf("Found %d camera(s)", len(devices))
	}
	m.addLog("INFO", m.status)
	m.pushStatus()
	m.refreshCameraView()
	return tea.Batch(cmds...)
}

// selectDevice switches the stream to the i-th listed camera and starts
// polling it.
func (m *Model) selectDevice(i int) tea.Cmd {
	m.picker.collapse()
	if i < 0 || i >= len(m.devices) {
		return nil
	}
	dev := m.devices[i]

	m.clearFrame()
	err := m.manager.Select(context.Background(), dev)
	m.pushStatus()

	if m.manager.State() != stream.Open {
		m.picker.selected = -1
		m.refreshCameraView()
		return m.showError(err)
	}

	m.picker.selected = i
	m.status = fmt.Sprintf("Streaming %s (%s)", dev.Name, m.manager.Format())
	m.refreshCameraView()
	return tea.Batch(
		m.showError(err),
		frameTickCmd(m.manager.Generation(), m.manager.TickInterval()),
	)
}

// pollFrame handles one timer tick. Ticks from an earlier stream, or
// arriving after the stream closed, are dropped and not rescheduled.
func (m *Model) pollFrame(msg frameTickMsg) tea.Cmd {
	if msg.gen != m.manager.Generation() || m.manager.State() != stream.Open {
		return nil
	}

	var errCmd tea.Cmd
	pic, ok, err := m.manager.Poll()
	switch {
	case err != nil:
		errCmd = m.showError(err)
	case ok:
		errCmd = m.showPicture(pic)
	}

	return tea.Batch(errCmd, frameTickCmd(msg.gen, m.manager.TickInterval()))
}

func (m *Model) showPicture(pic frame.Picture) tea.Cmd {
	buf, err := pic.Image()
	if err != nil {
		return m.showError(&camera.FramePollError{Err: err})
	}
	m.frame = buf
	m.server.Publish(pic)
	m.renderFrame()
	return nil
}

func (m *Model) toggleMirror() tea.Cmd {
	opts := m.manager.Options()
	if opts.Policy == frame.Raw {
		return m.showError(errMirrorRaw)
	}
	m.manager.SetMirror(!opts.Mirror)
	if opts.Mirror {
		m.status = "Mirror off"
	} else {
		m.status = "Mirror on"
	}
	m.pushStatus()
	return nil
}

func (m *Model) toggleServer() {
	if m.server.IsRunning() {
		if err := m.server.Stop(); err != nil {
			m.status = fmt.Sprintf("Error stopping server: %v", err)
		} else {
			m.status = "Server stopped"
		}
	} else {
		if err := m.server.Start(); err != nil {
			m.status = fmt.Sprintf("Error starting server: %v", err)
		} else {
			m.pushStatus()
			m.server.SetDevices(m.devices)
			m.status = fmt.Sprintf("Server started on %s", m.server.Addr())
		}
	}
}

func (m *Model) editPort() tea.Cmd {
	if m.server.IsRunning() {
		return m.showError(errPortRunning)
	}
	m.editingPort = true
	m.portInput.SetValue(m.server.Port())
	m.portInput.CursorEnd()
	return m.portInput.Focus()
}

// submitPort applies the typed port. An invalid entry keeps the prompt open.
func (m *Model) submitPort() tea.Cmd {
	value := strings.TrimSpace(m.portInput.Value())
	if n, err := strconv.Atoi(value); err != nil || n < 0 || n > 65535 {
		return m.showError(fmt.Errorf("invalid port %q", value))
	}
	m.stopEditingPort()
	if err := m.server.SetPort(value); err != nil {
		return m.showError(err)
	}
	m.config.Server.Port = value
	m.status = "Server port set to " + value
	m.addLog("INFO", m.status)
	return nil
}

func (m *Model) stopEditingPort() {
	m.editingPort = false
	m.portInput.Blur()
	m.portInput.Reset()
}

func (m *Model) shutdown() {
	if err := m.manager.Close(); err != nil {
		m.logger.Warnf("closing stream on exit: %v", err)
	}
	if m.server.IsRunning() {
		m.server.Stop()
	}
}

func (m *Model) clearFrame() {
	m.frame = nil
	m.frameView = ""
}
