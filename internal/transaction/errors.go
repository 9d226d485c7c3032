package transaction

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrTimeout matches every *TimeoutError.
	ErrTimeout = errors.New("transaction: timed out")
	// ErrClosed is returned for records still pending when the manager closes.
	ErrClosed = errors.New("transaction: manager closed")
	// ErrCancelled is returned by Wait on a cancelled record.
	ErrCancelled = errors.New("transaction: cancelled")
	// ErrPending is returned by Result before the record finishes.
	ErrPending = errors.New("transaction: pending")
)

// TimeoutError reports a record whose deadline passed without a match.
type TimeoutError struct {
	ID       uuid.UUID
	Deadline time.Time
	Matcher  Matcher
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transaction %s: no response to %v before %s", e.ID, e.Matcher, e.Deadline.Format(time.RFC3339Nano))
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
