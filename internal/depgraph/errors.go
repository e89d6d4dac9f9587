package depgraph

import (
	"errors"
	"strings"
)

// Messages surfaced to API callers verbatim.
const (
	MsgSelfDependency = "A task cannot depend on itself."
	MsgCircular       = "Circular dependency detected"
	MsgStatusBlocked  = "Status change blocked"
)

// ErrCycle is returned by CalculateDepth when the stored graph is not acyclic.
var ErrCycle = errors.New("dependency graph contains a cycle")

// ValidationError reports a rejected edge.
type ValidationError struct {
	Message string
	Cycle   []string
}

func (e *ValidationError) Error() string {
	if len(e.Cycle) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Cycle, " -> ")
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
