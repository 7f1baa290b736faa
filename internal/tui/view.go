// internal/tui/view.go
package tui

import (
	"fmt"
	"strings"

	"github.com/AlverezYari/juststop/internal/stream"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// Style definitions
var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("250")).
			Padding(0, 1)

	mainContentStyle = lipgloss.NewStyle().
				Padding(1, 0)

	tabStyle = lipgloss.NewStyle().
			Padding(0, 1)

	activeTabStyle = tabStyle.
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0"))

	errorBannerStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("124")).
				Foreground(lipgloss.Color("255")).
				Padding(0, 1)

	fatalBannerStyle = errorBannerStyle.
				Background(lipgloss.Color("88")).
				Bold(true)

	titleStyle = lipgloss.NewStyle().Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// header, tabs, banner and status bar lines plus the content padding
const chromeHeight = 6

// picker, title and hint lines above the picture
const cameraChromeHeight = 6

func (m Model) contentHeight() int {
	return max(1, m.height-chromeHeight)
}

func (m *Model) resize() {
	m.viewport.Width = m.width
	m.viewport.Height = m.contentHeight()
	m.logViewport.Width = m.width
	m.logViewport.Height = m.contentHeight()
	m.help.Width = m.width
	m.renderFrame()
}

// renderFrame redraws the cached picture for the current frame and size.
// Off the camera tab it only marks the picture stale.
func (m *Model) renderFrame() {
	if m.activeTab != cameraTab {
		m.frameDirty = true
		return
	}
	m.frameDirty = false
	m.frameView = renderImage(m.frame, m.width-4, m.contentHeight()-cameraChromeHeight)
	m.refreshCameraView()
}

// refreshCameraView lays out the camera column and centers it in the
// viewport. Taller columns scroll.
func (m *Model) refreshCameraView() {
	picture := m.frameView
	if picture == "" {
		if m.manager.State() == stream.Open {
			picture = hintStyle.Render("Waiting for frames...")
		} else {
			picture = hintStyle.Render("No camera selected")
		}
	}

	column := lipgloss.JoinVertical(
		lipgloss.Center,
		titleStyle.Render("Select a camera"),
		m.picker.View(),
		hintStyle.Render("r: refresh list"),
		"",
		picture,
	)
	m.viewport.SetContent(lipgloss.Place(
		m.viewport.Width, m.viewport.Height,
		lipgloss.Center, lipgloss.Center,
		column,
	))
}

// View renders the UI
func (m Model) View() string {
	timeStr := m.currentTime.Format("Mon Jan 2 15:04:05 2006")

	// Header with tabs
	headerContent := lipgloss.JoinHorizontal(
		lipgloss.Center,
		"📷 juststop",
		lipgloss.NewStyle().
			Width(max(0, m.width-14)).
			Align(lipgloss.Right).
			Render(timeStr),
	)

	header := headerStyle.Width(m.width).Render(headerContent)

	// Tabs
	tabs := m.renderTabs()

	// Main content from active tab
	mainContent := mainContentStyle.Render(m.renderActiveTabContent())

	// Status bar
	statusBar := statusBarStyle.Width(m.width).Render(
		fmt.Sprintf("Status: %s%s | %s", m.status, m.streamSummary(), m.help.View(m.keys)),
	)

	// Combine all sections
	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s", header, tabs, m.renderBanner(), mainContent, statusBar)
}

func (m Model) renderBanner() string {
	if m.banner.text == "" {
		return ""
	}
	style := errorBannerStyle
	if m.banner.sticky {
		style = fatalBannerStyle
	}
	return style.Width(m.width).Render("⚠ " + m.banner.text)
}

func (m Model) streamSummary() string {
	if m.manager.State() != stream.Open {
		return ""
	}
	st := m.manager.Stats()
	s := fmt.Sprintf(" | %s frames", humanize.Comma(int64(st.Frames)))
	if m.frame != nil {
		s += fmt.Sprintf(" of %s", humanize.Bytes(uint64(m.frame.Size())))
	}
	if !st.LastFrame.IsZero() {
		s += ", last " + humanize.Time(st.LastFrame)
	}
	if st.Errors > 0 {
		s += fmt.Sprintf(" | %s errors", humanize.Comma(int64(st.Errors)))
	}
	return s
}

// Helper function to render tabs
func (m Model) renderTabs() string {
	var renderedTabs []string

	for _, t := range m.tabs {
		style := tabStyle
		if t.id == m.activeTab {
			style = activeTabStyle
		}
		renderedTabs = append(renderedTabs, style.Render(t.title))
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		renderedTabs...,
	)
}

// Helper function to render active tab content
func (m Model) renderActiveTabContent() string {
	switch m.activeTab {
	case cameraTab:
		return m.viewport.View()
	case logsTab:
		return m.logViewport.View()
	case serverTab:
		var content strings.Builder

		status := "Stopped"
		if m.server.IsRunning() {
			status = fmt.Sprintf("Running on %s (%d viewers)", m.server.Addr(), m.server.ClientCount())
		}
		st := m.manager.Status()
		content.WriteString(fmt.Sprintf("Web Server Status:\n"+
			"• Status: %s\n"+
			"• Port: %s\n"+
			"• Capture: %s mode, %s decode, mirror %t\n"+
			"• Press 's' to start/stop server, 'p' to change port\n\n",
			status, m.server.Port(), st.Mode, st.Policy, st.Mirror))
		if m.editingPort {
			content.WriteString(m.portInput.View())
			content.WriteString(hintStyle.Render("  enter: save, esc: cancel"))
			content.WriteString("\n\n")
		}
		content.WriteString("Recent Logs:\n")
		content.WriteString("------------\n")

		logs := m.server.GetRecentLogs(10)
		for _, entry := range logs {
			content.WriteString(fmt.Sprintf("%s %s\n",
				entry.Timestamp.Format("15:04:05"),
				lipgloss.NewStyle().
					Foreground(lipgloss.Color("241")).
					Render(entry.Message)))
		}

		return content.String()
	}
	return ""
}
