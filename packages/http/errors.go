package http

import "fmt"

// TransportError is a network or connection level failure: the request never
// produced a response. Retrying is left to the caller.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
