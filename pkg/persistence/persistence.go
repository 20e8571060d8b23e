// Package persistence provides the storage abstraction for flows and change sets.
package persistence

import (
	"context"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/diff"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
)

// Scope addresses one storage scope: the published flow of a routing
// (empty ChangeSetID) or one of its drafts. Published and draft scopes
// are fully independent and can be read concurrently.
type Scope struct {
	RoutingID   string
	ChangeSetID string
}

// Published reports whether the scope addresses the published flow.
func (s Scope) Published() bool {
	return s.ChangeSetID == ""
}

// SegmentOrder is one entry of the bulk segment-ordering signal. It is a
// coarser, linear ordering independent of the transition graph and of
// layout depth.
type SegmentOrder struct {
	SegmentName  string `json:"segment_name"  validate:"required"`
	SegmentOrder int    `json:"segment_order" validate:"min=0"`
}

// FlowRepository stores flows per scope.
type FlowRepository interface {
	// GetFlow loads the flow for one scope. Returns ErrFlowNotFound
	// when the scope holds no flow.
	GetFlow(ctx context.Context, scope Scope) (*models.Flow, error)

	// SaveFlow writes a complete flow into its scope, creating or
	// replacing it wholesale. Batches are the normal write path; this
	// is for seeding and for scope copies.
	SaveFlow(ctx context.Context, flow *models.Flow) error

	// DeleteFlow removes a scope entirely, segments included.
	DeleteFlow(ctx context.Context, scope Scope) error

	// ApplyBatch applies a diff-derived operation list atomically:
	// either every operation takes effect or none do.
	ApplyBatch(ctx context.Context, scope Scope, operations []diff.Operation) error

	// UpdateSegmentOrder applies bulk ordering to the published flow of
	// a routing.
	UpdateSegmentOrder(ctx context.Context, routingID string, orders []SegmentOrder) error
}

// ChangeSetRepository stores change-set envelopes and drives the draft
// lifecycle. The copy-on-write copy and the publish swap live here
// because they must be atomic with the flow rows they move.
type ChangeSetRepository interface {
	GetChangeSet(ctx context.Context, routingID, changeSetID string) (*models.ChangeSet, error)
	ListChangeSets(ctx context.Context, routingID string) ([]*models.ChangeSet, error)

	// CreateDraft copies the published flow of routingID into a new
	// draft scope under changeSetID and records the change set with
	// its author.
	CreateDraft(ctx context.Context, routingID, changeSetID, createdBy string) error

	// PublishDraft atomically replaces the published scope with the
	// draft's segments and marks the change set published. After a
	// publish the change set is terminal.
	PublishDraft(ctx context.Context, routingID, changeSetID string) error

	// DiscardDraft deletes the draft's rows entirely and marks the
	// change set discarded. The published flow is untouched.
	// Irreversible.
	DiscardDraft(ctx context.Context, routingID, changeSetID string) error
}

// Persistence aggregates the repositories of one storage backend.
type Persistence interface {
	FlowRepository() FlowRepository
	ChangeSetRepository() ChangeSetRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
