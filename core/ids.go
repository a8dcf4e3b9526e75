package core

import (
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// NewMessageID generates a unique identifier for messages and events.
func NewMessageID() string { return uuid.NewString() }

// NewToolCallID generates a unique identifier for tool invocations.
func NewToolCallID() string { return uuid.NewString() }

// NewRunID generates a short, URL-safe run identifier.
func NewRunID() string { return "run_" + gonanoid.Must() }

// NewThreadID generates a short, URL-safe thread identifier.
func NewThreadID() string { return "thread_" + gonanoid.Must() }
