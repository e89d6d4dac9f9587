package model

import (
	"strings"
	"testing"
	"time"
)

// validTask returns a Task that passes all validation rules.
func validTask() Task {
	return Task{
		Title:    "Implement login flow",
		Priority: PriorityMedium,
		Status:   StatusTodo,
	}
}

// fieldErrors extracts a *ValidationError from err or fails the test.
func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	return ve.Errors
}

// hasFieldError reports whether the error list contains an error for the given field.
func hasFieldError(errs []FieldError, field string) bool {
	for _, fe := range errs {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func TestValidateTask_Valid(t *testing.T) {
	tk := validTask()
	if err := ValidateTask(&tk); err != nil {
		t.Fatalf("expected valid task, got: %v", err)
	}
}

func TestValidateTask_Title(t *testing.T) {
	for _, tc := range []struct {
		name    string
		title   string
		wantErr bool
	}{
		{"empty", "", true},
		{"whitespace", "   \t\n  ", true},
		{"too long", strings.Repeat("a", 501), true},
		{"exactly 500", strings.Repeat("a", 500), false},
		{"multibyte 500", strings.Repeat("é", 500), false},
		{"normal", "Write docs", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tk := validTask()
			tk.Title = tc.title
			err := ValidateTask(&tk)
			if tc.wantErr {
				if !hasFieldError(fieldErrors(t, err), "title") {
					t.Errorf("expected error on field 'title' for %q", tc.title)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateTask_Status(t *testing.T) {
	tk := validTask()
	tk.Status = "archived"
	if !hasFieldError(fieldErrors(t, ValidateTask(&tk)), "status") {
		t.Error("expected error on field 'status'")
	}
}

func TestValidateTask_Priority(t *testing.T) {
	tk := validTask()
	tk.Priority = "critical"
	if !hasFieldError(fieldErrors(t, ValidateTask(&tk)), "priority") {
		t.Error("expected error on field 'priority'")
	}
}

func TestValidateTask_CompletedAtConsistency(t *testing.T) {
	now := time.Now()

	tk := validTask()
	tk.Status = StatusDone
	if !hasFieldError(fieldErrors(t, ValidateTask(&tk)), "completed_at") {
		t.Error("done without completed_at should fail")
	}

	tk.CompletedAt = &now
	if err := ValidateTask(&tk); err != nil {
		t.Errorf("done with completed_at should pass, got: %v", err)
	}

	tk.Status = StatusReview
	if !hasFieldError(fieldErrors(t, ValidateTask(&tk)), "completed_at") {
		t.Error("review with completed_at should fail")
	}
}

func TestValidateTask_EmptyLabel(t *testing.T) {
	tk := validTask()
	tk.Labels = []string{"frontend", " "}
	if !hasFieldError(fieldErrors(t, ValidateTask(&tk)), "labels") {
		t.Error("expected error on field 'labels'")
	}
}

func TestValidateTask_MultipleErrors(t *testing.T) {
	tk := Task{}
	errs := fieldErrors(t, ValidateTask(&tk))
	for _, f := range []string{"title", "status", "priority"} {
		if !hasFieldError(errs, f) {
			t.Errorf("expected error on field %q", f)
		}
	}
}

func TestValidationError_Message(t *testing.T) {
	ve := &ValidationError{Errors: []FieldError{
		{Field: "title", Message: "is required"},
		{Field: "status", Message: `invalid value "x"`},
	}}
	want := `validation failed: title: is required; status: invalid value "x"`
	if got := ve.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidateProject(t *testing.T) {
	for _, tc := range []struct {
		name  string
		p     Project
		field string
	}{
		{"valid", Project{Name: "Website", Color: "#3b82f6"}, ""},
		{"no color", Project{Name: "Website"}, ""},
		{"missing name", Project{Name: " "}, "name"},
		{"long name", Project{Name: strings.Repeat("x", 201)}, "name"},
		{"bad color", Project{Name: "Website", Color: "blue"}, "color"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateProject(&tc.p)
			if tc.field == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !hasFieldError(fieldErrors(t, err), tc.field) {
				t.Errorf("expected error on field %q", tc.field)
			}
		})
	}
}
