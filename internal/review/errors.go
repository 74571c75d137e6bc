package review

import (
	"errors"
	"fmt"
)

// StageError wraps a failure inside one pipeline stage. Recoverable
// failures are absorbed at the stage boundary and appended to the session
// error log; non-recoverable failures abort the session.
type StageError struct {
	Stage       string
	Recoverable bool
	Cause       error
}

func (e *StageError) Error() string {
	kind := "fatal"
	if e.Recoverable {
		kind = "recoverable"
	}
	return fmt.Sprintf("review: stage %s failed (%s): %v", e.Stage, kind, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// ParseGapError marks a malformed input clause. The pipeline substitutes a
// minimal default analysis and keeps going, so the error is recoverable.
type ParseGapError struct {
	ClauseID int
	Reason   string
}

func (e *ParseGapError) Error() string {
	return fmt.Sprintf("review: clause %d: parse gap: %s", e.ClauseID, e.Reason)
}

// ContractViolationError reports a stage touching context fields outside
// its declared scope. It is a programming error and always aborts the
// session; it must never be silently absorbed.
type ContractViolationError struct {
	Stage  string
	Field  string
	Detail string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("review: stage %s violated its contract on field %s: %s", e.Stage, e.Field, e.Detail)
}

// RuleError reports that a single negotiation rule failed to evaluate, for
// example because of a malformed pattern. The rule is skipped for that
// clause; other rules keep running.
type RuleError struct {
	RuleID string
	Cause  error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("review: rule %s failed to evaluate: %v", e.RuleID, e.Cause)
}

func (e *RuleError) Unwrap() error {
	return e.Cause
}

// CheckpointProtocolError rejects an out-of-order continuation, such as a
// resume on a session that is not paused. Session state is unchanged.
type CheckpointProtocolError struct {
	Op    string
	State State
}

func (e *CheckpointProtocolError) Error() string {
	return fmt.Sprintf("review: %s rejected: session is %s", e.Op, e.State)
}

// ErrSessionAborted is returned for further processing operations on an
// aborted session. Retrieving the preserved partial results stays allowed.
var ErrSessionAborted = errors.New("review: session aborted")

// ErrSessionNotFound is returned when a session handle is unknown.
var ErrSessionNotFound = errors.New("review: session not found")
