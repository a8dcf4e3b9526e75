// Package runner implements the run orchestrator: the authorized,
// deduplicated and compacted bridge between agent execution and a thread's
// event log. It exposes the five operations consumed by outer transports:
// Run, Connect, ListThreads, GetThreadMetadata and DeleteThread.
//
// Authorization is applied before any side effect. Read-path operations
// resolve unauthorized or missing threads to empty results (soft-404) so
// thread existence never leaks; the write path fails loudly with
// core.ErrUnauthorized. Concurrent runs against one thread are rejected
// with ErrRunActive: the thread's event log is the unit of serialization.
package runner
