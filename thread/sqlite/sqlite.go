// Package sqlite provides the durable ThreadStore implementation backed by
// a local SQLite database (modernc.org/sqlite, no cgo). It preserves the
// exact contract of the in-memory store across process restarts and
// additionally records parent/child run relationships for auditing.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/stream"
	"github.com/hupe1980/agentrail/thread"
)

// Store is a SQLite-backed ThreadStore. Writes for active runs go through
// both the database and an in-process live stream so connected consumers
// tail runs in real time; replays after a restart come from the database
// alone.
//
// WAL is enabled to support concurrent reads while writing.
type Store struct {
	db *sql.DB

	mu   sync.Mutex
	live map[string]*liveRun // threadID -> active run
}

type liveRun struct {
	runID  string
	stream *stream.Stream
}

// RunRecord is one row of the run audit trail.
type RunRecord struct {
	RunID       string
	ThreadID    string
	ParentRunID string
	Status      string // running, finished, failed, interrupted
	Error       string
	StartedAt   time.Time
	EndedAt     time.Time
}

// Compile-time contract check.
var _ core.ThreadStore = (*Store)(nil)

// Open creates or opens the database at path and migrates the schema. Runs
// left open by a crashed process are marked interrupted.
func Open(path string) (*Store, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("missing db path")
	}
	p = filepath.Clean(p)
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`UPDATE runs SET status = 'interrupted', ended_at_unix_ms = ? WHERE status = 'running'`, time.Now().UnixMilli()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mark interrupted runs: %w", err)
	}

	return &Store{db: db, live: make(map[string]*liveRun)}, nil
}

// Close completes any live streams and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	for _, lr := range s.live {
		lr.stream.Done()
	}
	s.live = make(map[string]*liveRun)
	s.mu.Unlock()
	return s.db.Close()
}

// Thread returns thread metadata or (nil, nil) when absent.
func (s *Store) Thread(ctx context.Context, threadID string) (*core.ThreadMetadata, error) {
	var (
		meta      core.ThreadMetadata
		props     string
		createdMs int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT thread_id, resource_id, properties, created_at_unix_ms
FROM threads
WHERE thread_id = ?
`, threadID).Scan(&meta.ThreadID, &meta.ResourceID, &props, &createdMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if props != "" && props != "{}" {
		if err := json.Unmarshal([]byte(props), &meta.Properties); err != nil {
			return nil, fmt.Errorf("decode properties of %s: %w", threadID, err)
		}
	}
	meta.CreatedAt = time.UnixMilli(createdMs).UTC()
	return &meta, nil
}

// CreateThread inserts a new thread row.
func (s *Store) CreateThread(ctx context.Context, meta core.ThreadMetadata) error {
	props := "{}"
	if len(meta.Properties) > 0 {
		b, err := json.Marshal(meta.Properties)
		if err != nil {
			return fmt.Errorf("encode properties of %s: %w", meta.ThreadID, err)
		}
		props = string(b)
	}
	createdAt := meta.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO threads(thread_id, resource_id, properties, created_at_unix_ms)
VALUES(?, ?, ?, ?)
`, meta.ThreadID, meta.ResourceID, props, createdAt.UnixMilli())
	return err
}

// ListThreads pages over the threads visible to scope in creation order.
// Total is computed with a separate COUNT so it is correct for any page
// bounds; OFFSET is resolved by the index, keeping huge offsets bounded.
func (s *Store) ListThreads(ctx context.Context, scope *core.Scope, limit, offset int) (core.ThreadPage, error) {
	page := core.ThreadPage{Threads: []core.ThreadMetadata{}}

	where := ""
	var args []any
	if !scope.Admin() {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(scope.ResourceIDs)), ",")
		where = "WHERE resource_id IN (" + placeholders + ")"
		for _, id := range scope.ResourceIDs {
			args = append(args, id)
		}
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM threads "+where, args...).Scan(&page.Total); err != nil {
		return page, err
	}

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= page.Total {
		return page, nil
	}

	q := fmt.Sprintf(`
SELECT thread_id, resource_id, properties, created_at_unix_ms
FROM threads
%s
ORDER BY created_at_unix_ms ASC, thread_id ASC
LIMIT ? OFFSET ?
`, where)
	rows, err := s.db.QueryContext(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return page, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			meta      core.ThreadMetadata
			props     string
			createdMs int64
		)
		if err := rows.Scan(&meta.ThreadID, &meta.ResourceID, &props, &createdMs); err != nil {
			return page, err
		}
		if props != "" && props != "{}" {
			if err := json.Unmarshal([]byte(props), &meta.Properties); err != nil {
				return page, fmt.Errorf("decode properties of %s: %w", meta.ThreadID, err)
			}
		}
		meta.CreatedAt = time.UnixMilli(createdMs).UTC()
		page.Threads = append(page.Threads, meta)
	}
	return page, rows.Err()
}

// DeleteThread removes the thread and everything attached to it. Deleting
// an absent thread is a no-op. A live stream is completed so consumers
// terminate.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	if lr, ok := s.live[threadID]; ok {
		lr.stream.Done()
		delete(s.live, threadID)
	}
	s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"events", "correlations", "runs", "threads"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE thread_id = ?", threadID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AppendEvent writes the event row, records its correlation id and mirrors
// it onto the live stream when a run is active.
func (s *Store) AppendEvent(ctx context.Context, threadID string, ev core.Event) error {
	payload, err := core.MarshalEvent(ev)
	if err != nil {
		return err
	}

	s.mu.Lock()
	lr := s.live[threadID]
	s.mu.Unlock()

	runID := ""
	if lr != nil {
		runID = lr.runID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM threads WHERE thread_id = ?`, threadID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("append event: %w: %s", thread.ErrThreadNotFound, threadID)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO events(thread_id, run_id, type, payload, created_at_unix_ms)
VALUES(?, ?, ?, ?, ?)
`, threadID, runID, string(ev.Type()), string(payload), time.Now().UnixMilli()); err != nil {
		return err
	}

	for _, id := range correlationKeys(ev) {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO correlations(thread_id, correlation_id) VALUES(?, ?)
`, threadID, id); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if lr != nil {
		if err := lr.stream.Write(ev); err != nil {
			return fmt.Errorf("append event to %s: %w", threadID, err)
		}
	}
	return nil
}

// correlationKeys lists the ids an event must register for dedup.
func correlationKeys(ev core.Event) []string {
	switch e := ev.(type) {
	case core.TextMessageStart:
		return []string{e.MessageID}
	case core.ToolCallStart:
		return []string{e.ToolCallID}
	case core.ToolCallResult:
		if e.MessageID != "" && e.MessageID != e.ToolCallID {
			return []string{e.ToolCallID, e.MessageID}
		}
		return []string{e.ToolCallID}
	default:
		return nil
	}
}

// SeenCorrelation reports whether the id was already persisted to the thread.
func (s *Store) SeenCorrelation(ctx context.Context, threadID, correlationID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(1) FROM correlations WHERE thread_id = ? AND correlation_id = ?
`, threadID, correlationID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Replay streams the thread's settled rows and, when a run is live, tails
// its stream until the run ends. Rows of the active run are excluded from
// the database pass because the live stream replays them from its start.
func (s *Store) Replay(ctx context.Context, threadID string) (<-chan core.Event, error) {
	meta, err := s.Thread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("replay: %w: %s", thread.ErrThreadNotFound, threadID)
	}

	// The live entry and the settled rows must form one consistent cut: if
	// the active run changes while the rows load, history could contain a
	// newer run's rows ahead of the captured stream. Verify the entry is
	// unchanged after the load and retry otherwise.
	var (
		lr      *liveRun
		history []core.Event
	)
	for {
		s.mu.Lock()
		lr = s.live[threadID]
		s.mu.Unlock()

		activeRun := ""
		if lr != nil {
			activeRun = lr.runID
		}

		history, err = s.settledEvents(ctx, threadID, activeRun)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		unchanged := s.live[threadID] == lr
		s.mu.Unlock()
		if unchanged {
			break
		}
	}

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
		if lr == nil {
			return
		}
		for ev := range lr.stream.Consume(ctx) {
			select {
			case <-ctx.Done():
				return
			case out <- ev:
			}
		}
	}()
	return out, nil
}

// settledEvents loads the thread's event rows in append order, excluding
// the active run's rows when one is given.
func (s *Store) settledEvents(ctx context.Context, threadID, excludeRun string) ([]core.Event, error) {
	q := `SELECT payload FROM events WHERE thread_id = ? ORDER BY id ASC`
	args := []any{threadID}
	if excludeRun != "" {
		q = `SELECT payload FROM events WHERE thread_id = ? AND run_id <> ? ORDER BY id ASC`
		args = append(args, excludeRun)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		ev, err := core.UnmarshalEvent([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("decode event of thread %s: %w", threadID, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// BeginRun opens a run, linking it to the thread's previous run for the
// audit trail, and attaches a live stream for connected consumers.
func (s *Store) BeginRun(ctx context.Context, threadID, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lr, ok := s.live[threadID]; ok {
		return fmt.Errorf("begin run %s: thread %s already has active run %s", runID, threadID, lr.runID)
	}

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM threads WHERE thread_id = ?`, threadID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("begin run: %w: %s", thread.ErrThreadNotFound, threadID)
	}

	parent := ""
	err := s.db.QueryRowContext(ctx, `
SELECT run_id FROM runs WHERE thread_id = ? ORDER BY started_at_unix_ms DESC, run_id DESC LIMIT 1
`, threadID).Scan(&parent)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
INSERT INTO runs(run_id, thread_id, parent_run_id, status, started_at_unix_ms)
VALUES(?, ?, ?, 'running', ?)
`, runID, threadID, parent, time.Now().UnixMilli()); err != nil {
		return err
	}

	s.live[threadID] = &liveRun{runID: runID, stream: stream.New()}
	return nil
}

// EndRun closes the audit row and completes the live stream, releasing
// replay consumers.
func (s *Store) EndRun(ctx context.Context, threadID, runID string, runErr error) error {
	s.mu.Lock()
	if lr, ok := s.live[threadID]; ok && lr.runID == runID {
		lr.stream.Done()
		delete(s.live, threadID)
	}
	s.mu.Unlock()

	status := "finished"
	msg := ""
	if runErr != nil {
		status = "failed"
		msg = runErr.Error()
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE runs SET status = ?, error = ?, ended_at_unix_ms = ? WHERE run_id = ? AND thread_id = ?
`, status, msg, time.Now().UnixMilli(), runID, threadID)
	return err
}

// Runs returns the thread's run audit trail, oldest first.
func (s *Store) Runs(ctx context.Context, threadID string) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, thread_id, parent_run_id, status, error, started_at_unix_ms, ended_at_unix_ms
FROM runs
WHERE thread_id = ?
ORDER BY started_at_unix_ms ASC, run_id ASC
`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec                RunRecord
			startedMs, endedMs sql.NullInt64
		)
		if err := rows.Scan(&rec.RunID, &rec.ThreadID, &rec.ParentRunID, &rec.Status, &rec.Error, &startedMs, &endedMs); err != nil {
			return nil, err
		}
		if startedMs.Valid {
			rec.StartedAt = time.UnixMilli(startedMs.Int64).UTC()
		}
		if endedMs.Valid {
			rec.EndedAt = time.UnixMilli(endedMs.Int64).UTC()
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CompactRuns rewrites the thread's settled event rows, merging consecutive
// delta rows that share a correlation id. Row contents are already
// compacted per run by the orchestrator; this squashes what accumulates
// across historical runs and reclaims space after heavy streaming. The
// thread must be idle.
func (s *Store) CompactRuns(ctx context.Context, threadID string) error {
	s.mu.Lock()
	if lr, ok := s.live[threadID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("compact thread %s: run %s still active", threadID, lr.runID)
	}
	s.mu.Unlock()

	events, err := s.settledEvents(ctx, threadID, "")
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	compacted := compactEvents(events)
	if len(compacted) == len(events) {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE thread_id = ?`, threadID); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	for _, ev := range compacted {
		payload, err := core.MarshalEvent(ev)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO events(thread_id, run_id, type, payload, created_at_unix_ms)
VALUES(?, '', ?, ?, ?)
`, threadID, string(ev.Type()), string(payload), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// compactEvents merges consecutive same-correlation delta events.
func compactEvents(events []core.Event) []core.Event {
	out := make([]core.Event, 0, len(events))
	for _, ev := range events {
		if len(out) > 0 {
			switch e := ev.(type) {
			case core.TextMessageContent:
				if p, ok := out[len(out)-1].(core.TextMessageContent); ok && p.MessageID == e.MessageID {
					p.Delta += e.Delta
					out[len(out)-1] = p
					continue
				}
			case core.ToolCallArgs:
				if p, ok := out[len(out)-1].(core.ToolCallArgs); ok && p.ToolCallID == e.ToolCallID {
					p.Delta += e.Delta
					out[len(out)-1] = p
					continue
				}
			}
		}
		out = append(out, ev)
	}
	return out
}

// Reset drops all stored data. Intended for test isolation.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	for _, lr := range s.live {
		lr.stream.Done()
	}
	s.live = make(map[string]*liveRun)
	s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, table := range []string{"events", "correlations", "runs", "threads"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=3000;`); err != nil {
		return fmt.Errorf("pragma busy_timeout: %w", err)
	}
	return migrateSchema(db)
}

func migrateSchema(db *sql.DB) error {
	const targetVersion = 1

	var v int
	if err := db.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return fmt.Errorf("pragma user_version: %w", err)
	}
	if v >= targetVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS threads (
  thread_id TEXT PRIMARY KEY,
  resource_id TEXT NOT NULL DEFAULT '',
  properties TEXT NOT NULL DEFAULT '{}',
  created_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_threads_resource_created ON threads(resource_id, created_at_unix_ms ASC, thread_id ASC);

CREATE TABLE IF NOT EXISTS events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  thread_id TEXT NOT NULL,
  run_id TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_thread_id ON events(thread_id, id ASC);

CREATE TABLE IF NOT EXISTS correlations (
  thread_id TEXT NOT NULL,
  correlation_id TEXT NOT NULL,
  UNIQUE(thread_id, correlation_id)
);

CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT PRIMARY KEY,
  thread_id TEXT NOT NULL,
  parent_run_id TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'running',
  error TEXT NOT NULL DEFAULT '',
  started_at_unix_ms INTEGER NOT NULL,
  ended_at_unix_ms INTEGER
);
CREATE INDEX IF NOT EXISTS idx_runs_thread ON runs(thread_id, started_at_unix_ms ASC);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version=%d;`, targetVersion)); err != nil {
		return err
	}
	return tx.Commit()
}
