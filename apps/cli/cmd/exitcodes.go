package cmd

import (
	"errors"
	"strconv"

	"github.com/abdul-hamid-achik/contractkit/packages/core/config"
	"github.com/abdul-hamid-achik/contractkit/packages/http"
)

// Exit codes for the contractkit CLI
const (
	// ExitSuccess indicates every scenario passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more rows failed
	ExitTestFailure = 1

	// ExitParseError indicates a suite file could not be loaded or built
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates every failure was a transport error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// ExitError carries the process exit code for err.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "exit status " + strconv.Itoa(e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitWith(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// exitCode picks the code for an error returned by a command.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	var fe *config.FatalError
	if errors.As(err, &fe) {
		if fe.Component == "suite" {
			return ExitParseError
		}
		return ExitConfigError
	}
	var te *http.TransportError
	if errors.As(err, &te) {
		return ExitNetworkError
	}
	return ExitUsageError
}
