package core

import "time"

// ThreadMetadata describes a thread without its event history. The owning
// ResourceID is fixed at creation and never changes.
type ThreadMetadata struct {
	ThreadID   string         `json:"threadId"`
	ResourceID string         `json:"resourceId"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// ThreadPage is one offset-paginated slice of a thread listing. Total is
// the true count of threads visible to the requesting scope regardless of
// the page bounds.
type ThreadPage struct {
	Threads []ThreadMetadata `json:"threads"`
	Total   int              `json:"total"`
}
