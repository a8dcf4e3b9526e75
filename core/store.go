package core

import "context"

// ThreadStore persists threads, their event logs and per-thread dedup
// bookkeeping. The in-memory and SQLite implementations must be
// indistinguishable from the orchestrator's perspective: identical error
// behavior, identical replay ordering, identical pagination semantics.
//
// Stores perform no authorization; scope filtering in ListThreads is the
// single exception because visibility must be applied before pagination.
type ThreadStore interface {
	// Thread returns metadata for a thread, or (nil, nil) when it does not
	// exist.
	Thread(ctx context.Context, threadID string) (*ThreadMetadata, error)

	// CreateThread registers a new thread. The owner is immutable afterwards.
	CreateThread(ctx context.Context, meta ThreadMetadata) error

	// ListThreads returns the page [offset, offset+limit) of threads visible
	// to scope, ordered by creation. Total always reflects the full visible
	// count. A negative offset is treated as 0; an offset past the end
	// returns an empty page in bounded time. Consistency under concurrent
	// insertion is deliberately relaxed (offset pagination).
	ListThreads(ctx context.Context, scope *Scope, limit, offset int) (ThreadPage, error)

	// DeleteThread removes a thread and its events. Deleting an absent
	// thread is a no-op.
	DeleteThread(ctx context.Context, threadID string) error

	// AppendEvent appends one event to the thread's log and records the
	// event's correlation id for dedup.
	AppendEvent(ctx context.Context, threadID string, ev Event) error

	// Replay streams the thread's persisted events from the beginning. If a
	// run is active the channel continues with live events and closes when
	// the run ends; otherwise it closes after the historical replay. The
	// channel also closes when ctx is cancelled or the thread is deleted.
	Replay(ctx context.Context, threadID string) (<-chan Event, error)

	// SeenCorrelation reports whether a message or tool call id has already
	// been persisted to the thread.
	SeenCorrelation(ctx context.Context, threadID, correlationID string) (bool, error)

	// BeginRun opens a run on the thread. The store links it to the thread's
	// previous run for auditing.
	BeginRun(ctx context.Context, threadID, runID string) error

	// EndRun closes a run, releasing live replay consumers. runErr records
	// the terminal failure, if any.
	EndRun(ctx context.Context, threadID, runID string, runErr error) error

	// Reset drops all stored data. Intended for test isolation.
	Reset(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}
