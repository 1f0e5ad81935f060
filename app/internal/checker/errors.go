package checker

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrProbeTimeout is returned when a probe exceeds its deadline.
	ErrProbeTimeout = errors.New("probe timed out")
	// ErrProbeConnection is returned when the target could not be reached.
	ErrProbeConnection = errors.New("connection failed")
	// ErrProbeProtocol is returned when the target answered with something unusable.
	ErrProbeProtocol = errors.New("protocol error")
)

// ProbeError ties a probe failure to the target that produced it.
type ProbeError struct {
	Target string
	Kind   error
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Target, e.Err)
}

func (e *ProbeError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// newProbeError picks the sentinel that best describes err.
func newProbeError(target string, err error) *ProbeError {
	kind := ErrProbeConnection
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = ErrProbeTimeout
	}
	return &ProbeError{Target: target, Kind: kind, Err: err}
}
