package models

import "time"

// ChangeSetStatus represents the lifecycle state of a change set.
type ChangeSetStatus string

const (
	ChangeSetStatusDraft     ChangeSetStatus = "draft"     // Editable copy-on-write snapshot
	ChangeSetStatusPublished ChangeSetStatus = "published" // Promoted to the published scope, terminal
	ChangeSetStatusDiscarded ChangeSetStatus = "discarded" // Draft rows deleted, terminal
)

// ChangeSet is the draft/versioning envelope for one routing. Its
// segments are a full logical copy of the published flow at creation
// time, not a delta; editing a draft never touches published rows until
// an explicit publish.
type ChangeSet struct {
	ChangeSetID string          `json:"change_set_id" validate:"required"`
	RoutingID   string          `json:"routing_id"    validate:"required"`
	Status      ChangeSetStatus `json:"status"        validate:"required"`
	CreatedBy   string          `json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	DiscardedAt *time.Time      `json:"discarded_at,omitempty"`
}

// IsDraft reports whether the change set can still be edited.
func (c *ChangeSet) IsDraft() bool {
	return c.Status == ChangeSetStatusDraft
}
