package engine

import (
	"errors"
	"fmt"
)

// Stage names the pass stage that failed.
type Stage string

const (
	StageScope    Stage = "scope"
	StageSnapshot Stage = "snapshot"
	StageFields   Stage = "fields"
	StageActivity Stage = "activity"
)

// PassErrorCode categorizes fatal pass errors.
type PassErrorCode string

const (
	// ErrCodeUnresolvedUser indicates a monitored user token with no value.
	ErrCodeUnresolvedUser PassErrorCode = "UNRESOLVED_USER"

	// ErrCodeEmptyScope indicates no monitored login or repository remained.
	ErrCodeEmptyScope PassErrorCode = "EMPTY_SCOPE"

	// ErrCodeSnapshotFailed indicates the board could not be read.
	ErrCodeSnapshotFailed PassErrorCode = "SNAPSHOT_FAILED"

	// ErrCodeFieldMissing indicates a configured board field does not exist
	// or has the wrong type.
	ErrCodeFieldMissing PassErrorCode = "FIELD_MISSING"

	// ErrCodeOptionMissing indicates a column a rule targets has no option
	// on the Status field.
	ErrCodeOptionMissing PassErrorCode = "OPTION_MISSING"

	// ErrCodeActivityFailed indicates every activity source failed.
	ErrCodeActivityFailed PassErrorCode = "ACTIVITY_FAILED"
)

// PassError is a fatal error that aborts a pass before dispatch.
type PassError struct {
	Stage   Stage
	Code    PassErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *PassError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Stage, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Code, e.Message)
}

// Unwrap returns the underlying platform error, if any.
func (e *PassError) Unwrap() error {
	return e.Err
}

// IsPassError returns true if err is or wraps a *PassError.
func IsPassError(err error) bool {
	var pe *PassError
	return errors.As(err, &pe)
}
