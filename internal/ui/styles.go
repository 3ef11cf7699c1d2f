// Package ui renders tasks for the terminal using lipgloss.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Jayphen/flowsync/internal/types"
)

// Color palette
var (
	ColorCyan    = lipgloss.Color("86")
	ColorGreen   = lipgloss.Color("78")
	ColorYellow  = lipgloss.Color("221")
	ColorRed     = lipgloss.Color("196")
	ColorMagenta = lipgloss.Color("213")
	ColorBlue    = lipgloss.Color("111")
	ColorGray    = lipgloss.Color("245")
	ColorDimGray = lipgloss.Color("239")
)

// PriorityColors maps each priority to its display color.
var PriorityColors = map[types.TaskPriority]lipgloss.Color{
	types.PriorityLow:      ColorGray,
	types.PriorityMedium:   ColorBlue,
	types.PriorityHigh:     ColorYellow,
	types.PriorityCritical: ColorRed,
}

// Status styles
var (
	StatusTodo       = lipgloss.NewStyle().Foreground(ColorCyan)
	StatusInProgress = lipgloss.NewStyle().Foreground(ColorYellow)
	StatusDone       = lipgloss.NewStyle().Foreground(ColorGreen)
	StatusBlocked    = lipgloss.NewStyle().Foreground(ColorRed)
)

// Common styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorGray)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(0, 1)

	InsightsStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)
)

// Status indicators
const (
	IndicatorTodo       = "○"
	IndicatorInProgress = "◐"
	IndicatorDone       = "✓"
	IndicatorBlocked    = "!"
)

// Progress bar characters
const (
	ProgressFilled = "█"
	ProgressEmpty  = "░"
)

// RenderProgressBar renders a progress bar for the given percentage.
func RenderProgressBar(percent float64, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := int((percent / 100) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat(ProgressFilled, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// GetStatusStyle returns the style for a status.
func GetStatusStyle(s types.TaskStatus) lipgloss.Style {
	switch s {
	case types.StatusTodo:
		return StatusTodo
	case types.StatusInProgress:
		return StatusInProgress
	case types.StatusDone:
		return StatusDone
	case types.StatusBlocked:
		return StatusBlocked
	}
	return DimStyle
}

// StatusIndicator returns the glyph shown next to a status.
func StatusIndicator(s types.TaskStatus) string {
	switch s {
	case types.StatusTodo:
		return IndicatorTodo
	case types.StatusInProgress:
		return IndicatorInProgress
	case types.StatusDone:
		return IndicatorDone
	case types.StatusBlocked:
		return IndicatorBlocked
	}
	return "?"
}

// GetPriorityStyle returns the style for a priority.
func GetPriorityStyle(p types.TaskPriority) lipgloss.Style {
	color, ok := PriorityColors[p]
	if !ok {
		color = ColorGray
	}
	style := lipgloss.NewStyle().Foreground(color)
	if p == types.PriorityCritical {
		style = style.Bold(true)
	}
	return style
}
