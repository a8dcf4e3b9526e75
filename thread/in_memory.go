package thread

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/stream"
)

// record is the in-memory representation of one thread: settled history from
// completed runs, the live stream of the active run (nil when idle), and the
// dedup index of persisted correlation ids.
type record struct {
	meta      core.ThreadMetadata
	history   []core.Event
	live      *stream.Stream
	seen      map[string]struct{}
	activeRun string
	lastRun   string
}

// InMemoryStore is a volatile ThreadStore keeping all threads in a process
// local map. Safe for concurrent use; nothing survives a restart. Best
// suited for tests and ephemeral servers.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*record
	order   []string // creation order, drives pagination
}

// Compile-time contract check.
var _ core.ThreadStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory thread store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string]*record)}
}

// Thread returns thread metadata or (nil, nil) when the thread is unknown.
func (s *InMemoryStore) Thread(_ context.Context, threadID string) (*core.ThreadMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.threads[threadID]
	if !ok {
		return nil, nil
	}
	meta := rec.meta
	return &meta, nil
}

// CreateThread registers a new thread record.
func (s *InMemoryStore) CreateThread(_ context.Context, meta core.ThreadMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[meta.ThreadID]; ok {
		return fmt.Errorf("thread %s already exists", meta.ThreadID)
	}
	s.threads[meta.ThreadID] = &record{meta: meta, seen: make(map[string]struct{})}
	s.order = append(s.order, meta.ThreadID)
	return nil
}

// ListThreads filters by scope in creation order and slices the requested
// page. Offset pagination over a mutating map is deliberately relaxed: a
// thread inserted between two fetches may shift page boundaries.
func (s *InMemoryStore) ListThreads(_ context.Context, scope *core.Scope, limit, offset int) (core.ThreadPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visible := make([]core.ThreadMetadata, 0, len(s.order))
	for _, id := range s.order {
		rec := s.threads[id]
		if scope.Allows(rec.meta.ResourceID) {
			visible = append(visible, rec.meta)
		}
	}

	page := core.ThreadPage{Threads: []core.ThreadMetadata{}, Total: len(visible)}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= len(visible) {
		return page, nil
	}
	end := offset + limit
	if end > len(visible) {
		end = len(visible)
	}
	page.Threads = append(page.Threads, visible[offset:end]...)
	return page, nil
}

// DeleteThread removes the thread, completing any live stream so attached
// consumers terminate. Removing an absent thread is a no-op.
func (s *InMemoryStore) DeleteThread(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.threads[threadID]
	if !ok {
		return nil
	}
	if rec.live != nil {
		rec.live.Done()
	}
	delete(s.threads, threadID)
	for i, id := range s.order {
		if id == threadID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// AppendEvent appends to the active run's live stream, or directly to the
// settled history when no run is open (input-message conversion happens
// before BeginRun). The dedup index is updated from the event's correlation
// key.
func (s *InMemoryStore) AppendEvent(_ context.Context, threadID string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.threads[threadID]
	if !ok {
		return fmt.Errorf("append event: %w: %s", ErrThreadNotFound, threadID)
	}
	if rec.live != nil {
		if err := rec.live.Write(ev); err != nil {
			return fmt.Errorf("append event to %s: %w", threadID, err)
		}
	} else {
		rec.history = append(rec.history, ev)
	}
	indexCorrelation(rec.seen, ev)
	return nil
}

// indexCorrelation records ids that must never be persisted twice per
// thread: message openers, tool call openers and tool result message ids.
func indexCorrelation(seen map[string]struct{}, ev core.Event) {
	switch e := ev.(type) {
	case core.TextMessageStart:
		seen[e.MessageID] = struct{}{}
	case core.ToolCallStart:
		seen[e.ToolCallID] = struct{}{}
	case core.ToolCallResult:
		if e.MessageID != "" {
			seen[e.MessageID] = struct{}{}
		}
		seen[e.ToolCallID] = struct{}{}
	}
}

// SeenCorrelation reports whether the id was already persisted to the thread.
func (s *InMemoryStore) SeenCorrelation(_ context.Context, threadID, correlationID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.threads[threadID]
	if !ok {
		return false, nil
	}
	_, seen := rec.seen[correlationID]
	return seen, nil
}

// Replay streams the settled history and, when a run is live, tails it until
// the run ends. All consumers observe the same order.
func (s *InMemoryStore) Replay(ctx context.Context, threadID string) (<-chan core.Event, error) {
	s.mu.RLock()
	rec, ok := s.threads[threadID]
	if !ok {
		s.mu.RUnlock()
		return nil, fmt.Errorf("replay: %w: %s", ErrThreadNotFound, threadID)
	}
	history := make([]core.Event, len(rec.history))
	copy(history, rec.history)
	live := rec.live
	s.mu.RUnlock()

	out := make(chan core.Event)
	go func() {
		defer close(out)
		for _, ev := range history {
			select {
			case <-ctx.Done():
				return
			case out <- ev:
			}
		}
		if live == nil {
			return
		}
		for ev := range live.Consume(ctx) {
			select {
			case <-ctx.Done():
				return
			case out <- ev:
			}
		}
	}()
	return out, nil
}

// BeginRun opens a live stream for the run. Concurrency policy is enforced
// by the runner; the store only refuses a second writer outright.
func (s *InMemoryStore) BeginRun(_ context.Context, threadID, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.threads[threadID]
	if !ok {
		return fmt.Errorf("begin run: %w: %s", ErrThreadNotFound, threadID)
	}
	if rec.activeRun != "" {
		return fmt.Errorf("begin run %s: thread %s already has active run %s", runID, threadID, rec.activeRun)
	}
	rec.activeRun = runID
	rec.live = stream.New()
	return nil
}

// EndRun completes the live stream, folds its events into the settled
// history and records the run as the thread's most recent.
func (s *InMemoryStore) EndRun(_ context.Context, threadID, runID string, _ error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.threads[threadID]
	if !ok {
		return nil // thread deleted mid-run; nothing left to settle
	}
	if rec.activeRun != runID {
		return fmt.Errorf("end run %s: not the active run of thread %s", runID, threadID)
	}
	rec.live.Done()
	rec.history = append(rec.history, rec.live.Snapshot()...)
	rec.live = nil
	rec.activeRun = ""
	rec.lastRun = runID
	return nil
}

// Reset drops every thread, completing live streams so consumers terminate.
func (s *InMemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.threads {
		if rec.live != nil {
			rec.live.Done()
		}
	}
	s.threads = make(map[string]*record)
	s.order = nil
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
