package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"zigbee-go-host/internal/zcl"
)

// State is the lifecycle position of a record. A record leaves StatePending
// exactly once.
type State int

const (
	StatePending State = iota
	StateMatched
	StateTimedOut
	StateCancelled
	StateClosed
)

var stateNames = [...]string{"pending", "matched", "timed-out", "cancelled", "closed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Record is one outstanding request waiting for its response.
type Record struct {
	id       uuid.UUID
	matcher  Matcher
	created  time.Time
	deadline time.Time
	mgr      *Manager
	done     chan struct{}

	// Guarded by mgr.mu until done is closed, immutable afterwards.
	state    State
	response *zcl.Command
	err      error
}

func (r *Record) ID() uuid.UUID       { return r.id }
func (r *Record) Matcher() Matcher    { return r.matcher }
func (r *Record) Created() time.Time  { return r.created }
func (r *Record) Deadline() time.Time { return r.deadline }

// Done is closed when the record reaches a terminal state.
func (r *Record) Done() <-chan struct{} { return r.done }

// State returns the current state, expiring the record first if its deadline
// has passed.
func (r *Record) State() State {
	r.mgr.expireIfDue(r, r.mgr.now())
	r.mgr.mu.Lock()
	defer r.mgr.mu.Unlock()
	return r.state
}

// Result returns the outcome without blocking, or ErrPending.
func (r *Record) Result() (*zcl.Command, error) {
	select {
	case <-r.done:
		return r.response, r.err
	default:
		return nil, ErrPending
	}
}

// Wait blocks until the record is matched or expires. If ctx ends first the
// record is cancelled and ctx's error returned.
func (r *Record) Wait(ctx context.Context) (*zcl.Command, error) {
	timer := time.NewTimer(time.Until(r.deadline))
	defer timer.Stop()
	select {
	case <-r.done:
	case <-timer.C:
		r.mgr.expireIfDue(r, r.deadline)
		<-r.done
	case <-ctx.Done():
		r.mgr.Cancel(r)
		<-r.done
		if r.state == StateCancelled {
			return nil, ctx.Err()
		}
	}
	return r.response, r.err
}
