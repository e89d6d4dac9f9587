// Package ui renders board output for the terminal.
package ui

import (
	"fmt"

	"github.com/jarvis-tasks/jarvis/internal/model"
)

// ANSI256 color codes.
const (
	colorAccent = 74  // blue
	colorMuted  = 245 // gray
	colorGreen  = 71
	colorYellow = 178
	colorOrange = 208
	colorRed    = 167
	colorPurple = 140
)

var noColor bool

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderError returns s in red.
func RenderError(s string) string { return paint(colorRed, s) }

var statusColors = map[model.Status]int{
	model.StatusBacklog:    colorMuted,
	model.StatusPlanning:   colorPurple,
	model.StatusTodo:       colorAccent,
	model.StatusInProgress: colorYellow,
	model.StatusReview:     colorOrange,
	model.StatusDone:       colorGreen,
}

// RenderStatus colors a status by board column.
func RenderStatus(s model.Status) string {
	code, ok := statusColors[s]
	if !ok {
		return string(s)
	}
	return paint(code, string(s))
}

var priorityColors = map[model.Priority]int{
	model.PriorityLow:    colorMuted,
	model.PriorityMedium: colorAccent,
	model.PriorityHigh:   colorOrange,
	model.PriorityUrgent: colorRed,
}

// RenderPriority colors a priority by urgency.
func RenderPriority(p model.Priority) string {
	code, ok := priorityColors[p]
	if !ok {
		return string(p)
	}
	return paint(code, string(p))
}
