// Package streaming bridges incremental provider token streams and the
// synchronous ChatClient contract. A Session accumulates text deltas pushed
// from the transport goroutine and lets the caller block, with a bounded
// wait, for the final aggregated message.
package streaming

import (
	"context"
	"sync"
	"time"

	"github.com/davidbz/kiln/internal/domain"
	"github.com/davidbz/kiln/internal/observability"
)

// State describes the lifecycle of a streaming session.
type State int32

const (
	// StateIdle means no fragment has arrived yet.
	StateIdle State = iota

	// StateStreaming means at least one fragment has been appended.
	StateStreaming

	// StateCompleted means the transport signaled normal completion.
	StateCompleted

	// StateFailed means the transport signaled a terminal error.
	StateFailed

	// StateTimedOut means the caller gave up waiting. The transport may still
	// be delivering fragments in the background.
	StateTimedOut
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Session is the per-call state of one streaming invocation. It is created by
// an adapter for a single call and discarded afterwards; sessions are never
// shared across calls. The transport goroutine pushes fragments and signals
// completion; the caller goroutine blocks in Wait.
type Session struct {
	mu     sync.Mutex
	buffer []byte
	latest []domain.Message
	err    error
	state  State

	done chan struct{}
	once sync.Once
}

// NewSession creates an idle session with an empty buffer.
func NewSession() *Session {
	return &Session{
		done: make(chan struct{}),
	}
}

// Push appends a text delta to the buffer and replaces the latest snapshot
// with a single assistant message holding the whole buffer so far.
// Intermediate snapshots are intentionally discarded: the caller only ever
// sees the most recent cumulative state. Pushes after completion or failure
// are ignored.
func (s *Session) Push(delta string) {
	if delta == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCompleted || s.state == StateFailed {
		return
	}
	if s.state == StateIdle {
		s.state = StateStreaming
	}

	s.buffer = append(s.buffer, delta...)
	s.latest = []domain.Message{domain.AssistantMessage(string(s.buffer))}
}

// Complete signals normal completion. Only the first terminal signal wins.
func (s *Session) Complete() {
	s.mu.Lock()
	if s.state != StateFailed {
		s.state = StateCompleted
	}
	s.mu.Unlock()

	s.once.Do(func() { close(s.done) })
}

// Fail records a transport error and signals completion. The error is not
// surfaced through Wait; callers that care can inspect Err afterwards.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	if s.state != StateCompleted {
		s.state = StateFailed
		s.err = err
	}
	s.mu.Unlock()

	s.once.Do(func() { close(s.done) })
}

// Err returns the recorded transport error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Snapshot returns a copy of the current result: a single-element slice
// holding the latest cumulative message, or an empty slice when no fragment
// has arrived.
func (s *Session) Snapshot() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.latest) == 0 {
		return []domain.Message{}
	}

	return append([]domain.Message(nil), s.latest...)
}

// Wait blocks until the session completes, the timeout elapses or the context
// is canceled, then returns the current snapshot. Timeout and cancellation
// are non-fatal degradation paths: they log a warning and return whatever has
// accumulated, possibly an empty slice. The underlying transport subscription
// is not canceled when the caller gives up; fragments arriving afterwards are
// appended to a buffer nobody reads.
func (s *Session) Wait(ctx context.Context, timeout time.Duration) []domain.Message {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.done:
		return s.Snapshot()

	case <-ctx.Done():
		s.markTimedOut()
		observability.FromContext(ctx).Warn("streaming wait canceled, returning partial result",
			observability.String("state", s.State().String()),
			observability.Error(ctx.Err()),
		)
		return s.Snapshot()

	case <-timer.C:
		s.markTimedOut()
		observability.FromContext(ctx).Warn("streaming wait timed out, returning partial result",
			observability.String("state", s.State().String()),
			observability.Float64("timeout_seconds", timeout.Seconds()),
		)
		return s.Snapshot()
	}
}

// markTimedOut transitions a still-live session to TimedOut.
func (s *Session) markTimedOut() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle || s.state == StateStreaming {
		s.state = StateTimedOut
	}
}
