package engine

import "fmt"

// ErrInvalidConfig is returned when the engine rejects the requested
// model/device/resource combination. The stream never starts.
type ErrInvalidConfig struct {
	Err error
}

func (e ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid engine configuration: %v", e.Err)
}

func (e ErrInvalidConfig) Unwrap() error {
	return e.Err
}

// ErrProcessingFailed is returned when the engine rejects a submitted frame.
// It is fatal for the stream: the engine's internal state after a failure is
// undefined, so there is no retry.
type ErrProcessingFailed struct {
	Err error
}

func (e ErrProcessingFailed) Error() string {
	return fmt.Sprintf("the processing has failed: %v", e.Err)
}

func (e ErrProcessingFailed) Unwrap() error {
	return e.Err
}

// ErrDrainTimedOut is returned when the engine's backlog stops making
// progress during the end-of-stream drain.
type ErrDrainTimedOut struct {
	Pending int
}

func (e ErrDrainTimedOut) Error() string {
	return fmt.Sprintf("waited too long for the engine to drain, %d frame(s) still pending", e.Pending)
}

// ErrSessionClosed is returned when an operation is attempted on a session
// that was already torn down.
type ErrSessionClosed struct{}

func (e ErrSessionClosed) Error() string {
	return "the engine session is closed"
}
