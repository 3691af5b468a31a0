package cmd

import (
	"errors"
	"fmt"
)

const (
	ExitOK      = 0
	ExitFailure = 1
	// ExitPaused is EX_TEMPFAIL: the relay's daily limit stopped the run
	// and it can be resumed later.
	ExitPaused = 75
)

// ExitError carries a specific process exit code. Quiet errors have already
// been explained on stdout and are not printed again.
type ExitError struct {
	Code  int
	Err   error
	Quiet bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an Execute error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitFailure
}

// ShouldPrint reports whether err still needs to be shown to the user.
func ShouldPrint(err error) bool {
	var ee *ExitError
	if errors.As(err, &ee) {
		return !ee.Quiet
	}
	return err != nil
}
