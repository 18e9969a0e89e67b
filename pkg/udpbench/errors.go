package udpbench

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	EXIT_OK     = 0
	EXIT_FAIL   = 1
	EXIT_USAGE  = 2
	EXIT_LAUNCH = 255
)

// ResolveError means no candidate address could be used.
type ResolveError struct {
	Cause string // socket, bind, connect or getaddrinfo
	Err   error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s: %v", e.Cause, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// HandshakeError is a malformed line on the launcher pipe.
type HandshakeError struct {
	Reason string
	Line   string
}

func (e *HandshakeError) Error() string {
	if e.Line == "" {
		return "ssh " + e.Reason
	}
	return fmt.Sprintf("ssh %s: %s", e.Reason, e.Line)
}

// RemoteExitError is a peer that exited with a non-zero status.
type RemoteExitError struct {
	Status int
}

func (e *RemoteExitError) Error() string {
	return fmt.Sprintf("ssh failed: %d", e.Status)
}

// LaunchError is a failure to start the ssh client itself.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("ssh exec: %v", e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// IdleError rejects a receive run whose idle tail was too short to separate
// the transfer from the trailing silence.
type IdleError struct {
	Measurement Measurement
}

func (e *IdleError) Error() string {
	sec, usec := splitDuration(e.Measurement.Idle)
	return fmt.Sprintf("not enough idle time: %d.%06d", sec, usec)
}

type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// ExitCode maps an error returned by the package to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return EXIT_OK
	}

	var usage *UsageError
	if errors.As(err, &usage) {
		return EXIT_USAGE
	}

	var launch *LaunchError
	if errors.As(err, &launch) {
		return EXIT_LAUNCH
	}

	return EXIT_FAIL
}
