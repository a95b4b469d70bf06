package config

import "fmt"

// FatalError reports a configuration problem that no retry can fix:
// an unreadable schema reference, a base URL that does not parse, an unknown
// fixture kind. It is surfaced immediately and never retried.
type FatalError struct {
	Component string
	Reason    string
	Err       error
}

// Fatalf builds a FatalError for component with a formatted reason.
func Fatalf(component, format string, args ...any) *FatalError {
	return &FatalError{Component: component, Reason: fmt.Sprintf(format, args...)}
}

// WrapFatal builds a FatalError that wraps err.
func WrapFatal(component, reason string, err error) *FatalError {
	return &FatalError{Component: component, Reason: reason, Err: err}
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Reason)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
