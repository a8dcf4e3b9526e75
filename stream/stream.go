package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/agentrail/core"
)

var (
	// ErrClosedWrite is returned when appending to a completed stream. It
	// signals a programming error in the writer, not an expected runtime
	// condition.
	ErrClosedWrite = errors.New("stream: write after Done")
)

// Stream is an append-only, replayable event sequence supporting any number
// of independent consumers. Every consumer observes the entire history from
// the beginning followed by live events, in exactly the order written, until
// the stream is marked complete.
type Stream struct {
	mu     sync.Mutex
	events []core.Event
	done   bool
	notify chan struct{} // closed and replaced on every state change
}

// New constructs an empty, open stream.
func New() *Stream {
	return &Stream{notify: make(chan struct{})}
}

// Write appends one event. It fails with ErrClosedWrite once Done has been
// called.
func (s *Stream) Write(ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrClosedWrite
	}
	s.events = append(s.events, ev)
	s.wakeLocked()
	return nil
}

// Done marks the stream complete. Idempotent. All past and future consumers
// observe end-of-stream after replaying whatever was written.
func (s *Stream) Done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.wakeLocked()
}

func (s *Stream) wakeLocked() {
	close(s.notify)
	s.notify = make(chan struct{})
}

// Len returns the number of events written so far. Non-blocking.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Completed reports whether Done has been called. Non-blocking.
func (s *Stream) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Snapshot returns a copy of everything written so far without waiting for
// completion.
func (s *Stream) Snapshot() []core.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Consume returns an ordered channel of all events from the first onward.
// The channel stays open for live events until Done is observed, then
// closes. Each call replays independently from the beginning. Cancelling
// ctx detaches the consumer without affecting the stream or other
// consumers.
func (s *Stream) Consume(ctx context.Context) <-chan core.Event {
	out := make(chan core.Event)
	go func() {
		defer close(out)
		next := 0
		for {
			s.mu.Lock()
			batch := s.events[next:]
			done := s.done
			notify := s.notify
			s.mu.Unlock()

			for _, ev := range batch {
				select {
				case <-ctx.Done():
					return
				case out <- ev:
				}
			}
			next += len(batch)

			if done {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-notify:
			}
		}
	}()
	return out
}

// All collects the complete sequence, blocking until the stream is marked
// done or ctx is cancelled.
func (s *Stream) All(ctx context.Context) ([]core.Event, error) {
	var out []core.Event
	for ev := range s.Consume(ctx) {
		out = append(out, ev)
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}
