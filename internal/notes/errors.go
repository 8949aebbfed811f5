package notes

import (
	"fmt"
	"time"
)

// ValidationError reports input that was rejected locally, such as a blank
// answer. It never leaves a record or transcript half-updated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ExtractionError is the single error kind for every extraction failure:
// transport errors, non-2xx responses, missing or malformed output.
type ExtractionError struct {
	Step       string
	StatusCode int
	Reason     string
	Err        error
}

func (e *ExtractionError) Error() string {
	msg := e.Reason
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("extraction failed at step %q (status %d): %s", e.Step, e.StatusCode, msg)
	}
	return fmt.Sprintf("extraction failed at step %q: %s", e.Step, msg)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Retryable() bool { return true }

// TimeoutError means the narrative for a submitted note did not appear before
// the polling ceiling. The snapshot and submitted status remain valid.
type TimeoutError struct {
	NoteID string
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("narrative for note %s not ready after %s", e.NoteID, e.Waited)
}

func (e *TimeoutError) Retryable() bool { return true }
