package model

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

const maxTitleLen = 500

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidateTask checks a Task for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the task is valid.
func ValidateTask(t *Task) error {
	var ve ValidationError

	title := strings.TrimSpace(t.Title)
	if title == "" {
		ve.add("title", "is required")
	} else if len([]rune(title)) > maxTitleLen {
		ve.add("title", "must be %d characters or fewer", maxTitleLen)
	}

	if !t.Status.IsValid() {
		ve.add("status", "invalid value %q", t.Status)
	}
	if !t.Priority.IsValid() {
		ve.add("priority", "invalid value %q", t.Priority)
	}

	// CompletedAt tracks the done column.
	if t.Status == StatusDone && t.CompletedAt == nil {
		ve.add("completed_at", "is required when status is done")
	}
	if t.Status != StatusDone && t.CompletedAt != nil {
		ve.add("completed_at", "must be nil when status is not done")
	}

	for _, l := range t.Labels {
		if strings.TrimSpace(l) == "" {
			ve.add("labels", "must not contain empty labels")
			break
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateProject checks a Project for constraint violations.
func ValidateProject(p *Project) error {
	var ve ValidationError
	name := strings.TrimSpace(p.Name)
	if name == "" {
		ve.add("name", "is required")
	} else if len([]rune(name)) > 200 {
		ve.add("name", "must be 200 characters or fewer")
	}
	if p.Color != "" && !hexColor.MatchString(p.Color) {
		ve.add("color", "must be a hex color like #3b82f6, got %q", p.Color)
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}
