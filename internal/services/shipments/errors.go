package shipments

import "fmt"

// ValidationError covers malformed input (missing fields, unknown enum
// values). Illegal transitions are reported separately via
// transitions.TransitionError so the offending from/to pair survives to
// the API surface.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
