package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const pickerPlaceholder = "Choose a camera..."

var (
	pickerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	pickerOptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("250"))

	pickerCursorStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("62")).
				Foreground(lipgloss.Color("0"))

	pickerPlaceholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241")).
				Italic(true)
)

// picker is a dropdown over the device names. selected is -1 until a
// camera has been opened from it.
type picker struct {
	options  []string
	cursor   int
	selected int
	expanded bool
}

func newPicker() picker {
	return picker{selected: -1}
}

func (p *picker) setOptions(options []string) {
	p.options = options
	if p.cursor >= len(options) {
		p.cursor = 0
	}
	if p.selected >= len(options) {
		p.selected = -1
	}
	if len(options) == 0 {
		p.expanded = false
	}
}

func (p *picker) toggle() {
	if len(p.options) == 0 {
		p.expanded = false
		return
	}
	p.expanded = !p.expanded
	if p.expanded && p.selected >= 0 {
		p.cursor = p.selected
	}
}

func (p *picker) collapse() { p.expanded = false }

func (p *picker) up() {
	if len(p.options) == 0 {
		return
	}
	p.cursor = (p.cursor - 1 + len(p.options)) % len(p.options)
}

func (p *picker) down() {
	if len(p.options) == 0 {
		return
	}
	p.cursor = (p.cursor + 1) % len(p.options)
}

func (p picker) width() int {
	w := lipgloss.Width(pickerPlaceholder)
	for _, o := range p.options {
		w = max(w, lipgloss.Width(o))
	}
	return w + 2
}

func (p picker) View() string {
	w := p.width()
	var label string
	if p.selected >= 0 && p.selected < len(p.options) {
		label = p.options[p.selected]
	} else {
		label = pickerPlaceholderStyle.Render(pickerPlaceholder)
	}
	arrow := "▾"
	if p.expanded {
		arrow = "▴"
	}
	head := lipgloss.NewStyle().Width(w).Render(label) + " " + arrow
	if !p.expanded {
		return pickerStyle.Render(head)
	}

	lines := []string{head, strings.Repeat("─", w+2)}
	for i, o := range p.options {
		style := pickerOptionStyle
		if i == p.cursor {
			style = pickerCursorStyle
		}
		lines = append(lines, style.Width(w+2).Render(o))
	}
	return pickerStyle.Render(strings.Join(lines, "\n"))
}
