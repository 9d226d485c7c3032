// Package transaction correlates inbound ZCL commands with the requests that
// caused them.
package transaction

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"zigbee-go-host/internal/zcl"
)

// Sender transmits a command. The host implements it over the transport.
type Sender interface {
	SendCommand(ctx context.Context, cmd *zcl.Command) error
}

// Config holds the engine timings.
type Config struct {
	Timeout       time.Duration `yaml:"timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DefaultConfig returns the timings used when none are configured.
func DefaultConfig() Config {
	return Config{Timeout: 8 * time.Second, SweepInterval: time.Second}
}

// Manager holds pending records in registration order. Matching, expiry and
// cancellation all take mu, so exactly one of them finishes a record.
type Manager struct {
	sender Sender
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending []*Record
	closed  bool

	hookMu    sync.RWMutex
	onTimeout func(*Record)
	onMatch   func(*Record, *zcl.Command)
}

// NewManager creates a manager. Zero config values take their defaults.
func NewManager(sender Sender, cfg Config, logger *slog.Logger) *Manager {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	return &Manager{
		sender: sender,
		cfg:    cfg,
		logger: logger.With("component", "transaction"),
		now:    time.Now,
	}
}

// OnTimeout sets a function called once for every record that expires.
func (m *Manager) OnTimeout(fn func(*Record)) {
	m.hookMu.Lock()
	m.onTimeout = fn
	m.hookMu.Unlock()
}

// OnMatch sets a function called once for every matched record.
func (m *Manager) OnMatch(fn func(*Record, *zcl.Command)) {
	m.hookMu.Lock()
	m.onMatch = fn
	m.hookMu.Unlock()
}

// Register adds a record for a request the caller transmits itself.
// A timeout <= 0 uses the configured default.
func (m *Manager) Register(matcher Matcher, timeout time.Duration) (*Record, error) {
	if timeout <= 0 {
		timeout = m.cfg.Timeout
	}
	now := m.now()
	r := &Record{
		id:       uuid.New(),
		matcher:  matcher,
		created:  now,
		deadline: now.Add(timeout),
		mgr:      m,
		done:     make(chan struct{}),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	m.pending = append(m.pending, r)
	m.logger.Debug("transaction registered", "id", r.id, "matcher", matcher, "deadline", r.deadline)
	return r, nil
}

// SendTransaction registers a record for matcher and then sends cmd, so a
// response arriving before the send returns is still matched. If the send
// fails the record is cancelled and the error returned.
func (m *Manager) SendTransaction(ctx context.Context, cmd *zcl.Command, matcher Matcher) (*Record, error) {
	r, err := m.Register(matcher, 0)
	if err != nil {
		return nil, err
	}
	if err := m.sender.SendCommand(ctx, cmd); err != nil {
		m.Cancel(r)
		return nil, fmt.Errorf("transaction: send %s: %w", cmd.Name(), err)
	}
	return r, nil
}

// HandleCommand offers an inbound command to the pending records in FIFO
// order. The first matcher that accepts it resolves its record and the
// command is consumed. Records already past their deadline expire instead of
// matching.
func (m *Manager) HandleCommand(cmd *zcl.Command) bool {
	matched, expired := m.match(cmd, m.now())
	m.notifyTimeouts(expired)
	if matched == nil {
		return false
	}
	m.logger.Debug("transaction matched", "id", matched.id, "cmd", cmd.Name(), "src", cmd.Source)
	m.hookMu.RLock()
	fn := m.onMatch
	m.hookMu.RUnlock()
	if fn != nil {
		fn(matched, cmd)
	}
	return true
}

func (m *Manager) match(cmd *zcl.Command, now time.Time) (matched *Record, expired []*Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.pending[:0]
	for _, r := range m.pending {
		switch {
		case matched != nil:
			kept = append(kept, r)
		case !now.Before(r.deadline):
			m.finish(r, StateTimedOut, nil, m.timeoutError(r))
			expired = append(expired, r)
		case m.matches(r, cmd):
			m.finish(r, StateMatched, cmd, nil)
			matched = r
		default:
			kept = append(kept, r)
		}
	}
	clear(m.pending[len(kept):])
	m.pending = kept
	return matched, expired
}

// matches evaluates r's matcher. A panicking matcher does not match.
func (m *Manager) matches(r *Record, cmd *zcl.Command) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("matcher panic", "id", r.id, "cmd", cmd.Name(), "panic", p)
			ok = false
		}
	}()
	return r.matcher.Matches(cmd)
}

// Cancel removes r without resolving it. Cancelling a finished or unknown
// record does nothing.
func (m *Manager) Cancel(r *Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.state != StatePending {
		return
	}
	m.remove(r)
	m.finish(r, StateCancelled, nil, ErrCancelled)
	m.logger.Debug("transaction cancelled", "id", r.id)
}

// Sweep expires every record whose deadline is at or before now and returns
// how many it expired.
func (m *Manager) Sweep(now time.Time) int {
	var expired []*Record
	m.mu.Lock()
	kept := m.pending[:0]
	for _, r := range m.pending {
		if now.Before(r.deadline) {
			kept = append(kept, r)
			continue
		}
		m.finish(r, StateTimedOut, nil, m.timeoutError(r))
		expired = append(expired, r)
	}
	clear(m.pending[len(kept):])
	m.pending = kept
	m.mu.Unlock()

	m.notifyTimeouts(expired)
	return len(expired)
}

// Run sweeps at the configured interval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}

// Pending returns the number of unresolved records.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Snapshot returns the unresolved records in registration order.
func (m *Manager) Snapshot() []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.pending)
}

// Close finishes every pending record with ErrClosed and refuses new ones.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for _, r := range m.pending {
		m.finish(r, StateClosed, nil, ErrClosed)
	}
	m.pending = nil
}

// expireIfDue is the lazy expiry path used by record accessors.
func (m *Manager) expireIfDue(r *Record, now time.Time) {
	m.mu.Lock()
	if r.state != StatePending || now.Before(r.deadline) {
		m.mu.Unlock()
		return
	}
	m.remove(r)
	m.finish(r, StateTimedOut, nil, m.timeoutError(r))
	m.mu.Unlock()
	m.notifyTimeouts([]*Record{r})
}

// remove drops r from pending. mu must be held.
func (m *Manager) remove(r *Record) {
	if i := slices.Index(m.pending, r); i >= 0 {
		m.pending = slices.Delete(m.pending, i, i+1)
	}
}

// finish moves r to a terminal state. mu must be held and r pending.
func (m *Manager) finish(r *Record, s State, resp *zcl.Command, err error) {
	r.state = s
	r.response = resp
	r.err = err
	close(r.done)
}

func (m *Manager) timeoutError(r *Record) error {
	return &TimeoutError{ID: r.id, Deadline: r.deadline, Matcher: r.matcher}
}

func (m *Manager) notifyTimeouts(rs []*Record) {
	if len(rs) == 0 {
		return
	}
	m.hookMu.RLock()
	fn := m.onTimeout
	m.hookMu.RUnlock()
	for _, r := range rs {
		m.logger.Debug("transaction timed out", "id", r.id, "matcher", r.matcher)
		if fn != nil {
			fn(r)
		}
	}
}
