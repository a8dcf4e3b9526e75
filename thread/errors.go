package thread

import "errors"

var (
	// ErrThreadNotFound is returned by event and run operations addressing a
	// thread that does not exist in the store. Lookup operations return
	// (nil, nil) instead so the orchestrator can apply soft-404 semantics.
	ErrThreadNotFound = errors.New("thread not found")
)
