package core

import "errors"

var (
	// ErrUnauthorized is returned when a write-path caller addresses a
	// thread owned by a different scope. Read-path operations never return
	// it; they resolve to empty results instead so thread existence is not
	// observable to unauthorized callers.
	ErrUnauthorized = errors.New("scope does not authorize access to thread")

	// ErrInvalidScope is returned when a scope carries an empty resource id
	// list, which authorizes nothing.
	ErrInvalidScope = errors.New("scope resource ids must be nil or non-empty")
)
