// Package editor holds the in-memory editing session: one flow loaded at
// a time, edited through typed operations, re-rendered after every
// structural change, and saved as a minimal batch.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/diff"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/flowgraph"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/layout"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/registry"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/services"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/validation"
)

// Session edits one flow at a time. Edits mutate the in-memory flow and
// synchronously re-transform and re-lay-out the graph, so the rendered
// graph is always consistent with the last applied edit. The original
// baseline is only replaced by a successful save or a (re)load.
//
// The session is single-editor by design and is not safe for concurrent
// use.
type Session struct {
	flows    *services.Flow
	drafts   *services.Draft
	registry *registry.Registry
	layout   *layout.Engine
	logger   *slog.Logger

	flow       *models.Flow
	original   *models.Flow
	graph      *flowgraph.Graph
	contextKey string

	dirty      bool
	saving     bool
	publishing bool
	lastSaved  time.Time
}

// NewSession creates an editing session. The registry is optional; when
// nil, new segments get no type defaults and validation skips type
// checks.
func NewSession(flows *services.Flow, drafts *services.Draft, reg *registry.Registry, logger *slog.Logger) *Session {
	return &Session{
		flows:    flows,
		drafts:   drafts,
		registry: reg,
		layout:   layout.NewEngine(logger),
		logger:   logger,
	}
}

// Load fetches a flow (published for empty changeSetID) and makes it the
// session's live state and baseline. Any unsaved edits are dropped; the
// caller is expected to have confirmed that.
func (s *Session) Load(ctx context.Context, routingID, changeSetID string) error {
	flow, err := s.flows.GetFlow(ctx, routingID, changeSetID)
	if err != nil {
		return err
	}

	s.flow = flow
	s.original = flow.Clone()
	s.contextKey = ""
	s.dirty = false
	s.layout.Reset()

	return s.refresh()
}

// Flow returns the live edited flow.
func (s *Session) Flow() *models.Flow { return s.flow }

// Graph returns the rendered graph of the live flow.
func (s *Session) Graph() *flowgraph.Graph { return s.graph }

// Dirty reports whether unsaved edits exist.
func (s *Session) Dirty() bool { return s.dirty }

// IsDraft reports whether the session edits a draft scope.
func (s *Session) IsDraft() bool { return s.flow != nil && s.flow.IsDraft() }

// LastSaved returns when the session last completed a save, zero before
// the first one.
func (s *Session) LastSaved() time.Time { return s.lastSaved }

// ContextKey returns the currently selected routing-context filter.
func (s *Session) ContextKey() string { return s.contextKey }

// SetContextKey switches the rendered view to one routing context (empty
// shows all transitions). Purely a view change: nothing becomes dirty.
func (s *Session) SetContextKey(key string) error {
	if s.flow == nil {
		return ErrNoFlowLoaded
	}

	s.contextKey = key

	return s.refresh()
}

// Validate runs flow validation over the live in-memory state.
func (s *Session) Validate() *models.FlowValidation {
	result := validation.ValidateFlow(s.flow, s.registry)
	if s.flow != nil {
		s.flow.Validation = result
	}

	return result
}

// Save diffs the live flow against the baseline and applies the result
// as one batch. A zero-operation diff marks the session clean without
// touching storage. On success the reloaded flow replaces both the live
// state and the baseline; on failure the edited state is kept so no work
// is lost.
func (s *Session) Save(ctx context.Context) error {
	if s.flow == nil {
		return ErrNoFlowLoaded
	}

	if s.saving {
		return ErrSaveInFlight
	}

	s.saving = true
	defer func() { s.saving = false }()

	operations, err := diff.Compute(s.original, s.flow)
	if err != nil {
		return fmt.Errorf("failed to compute diff: %w", err)
	}

	if len(operations) == 0 {
		s.dirty = false
		s.lastSaved = time.Now()

		return nil
	}

	reloaded, err := s.flows.SaveBatch(ctx, s.flow.RoutingID, s.flow.ChangeSetID, operations)
	if err != nil {
		return err
	}

	s.flow = reloaded
	s.original = reloaded.Clone()
	s.dirty = false
	s.lastSaved = time.Now()

	return s.refresh()
}

// CreateDraft creates a draft from the published flow of the loaded
// routing and switches the session to it. Refused while unsaved edits
// exist.
func (s *Session) CreateDraft(ctx context.Context, createdBy string) (string, error) {
	if s.flow == nil {
		return "", ErrNoFlowLoaded
	}

	if s.dirty {
		return "", ErrUnsavedChanges
	}

	changeSet, err := s.drafts.CreateDraft(ctx, s.flow.RoutingID, createdBy)
	if err != nil {
		return "", err
	}

	if err := s.Load(ctx, s.flow.RoutingID, changeSet.ChangeSetID); err != nil {
		return "", err
	}

	return changeSet.ChangeSetID, nil
}

// Publish promotes the loaded draft to the published scope and reloads
// the now-published flow. Publish requires a clean, saved, error-free
// draft: unsaved edits or validation errors refuse it outright.
func (s *Session) Publish(ctx context.Context) error {
	if s.flow == nil {
		return ErrNoFlowLoaded
	}

	if !s.flow.IsDraft() {
		return ErrNotDraft
	}

	if s.dirty {
		return ErrUnsavedChanges
	}

	if s.publishing {
		return ErrPublishInFlight
	}

	s.publishing = true
	defer func() { s.publishing = false }()

	if err := s.drafts.PublishDraft(ctx, s.flow.RoutingID, s.flow.ChangeSetID); err != nil {
		return err
	}

	return s.Load(ctx, s.flow.RoutingID, "")
}

// Discard abandons the loaded draft and reloads the published flow.
// Unsaved edits are dropped by definition. Irreversible.
func (s *Session) Discard(ctx context.Context) error {
	if s.flow == nil {
		return ErrNoFlowLoaded
	}

	if !s.flow.IsDraft() {
		return ErrNotDraft
	}

	if err := s.drafts.DiscardDraft(ctx, s.flow.RoutingID, s.flow.ChangeSetID); err != nil {
		return err
	}

	return s.Load(ctx, s.flow.RoutingID, "")
}

// refresh re-transforms and re-lays-out the graph from the live flow.
func (s *Session) refresh() error {
	graph, err := flowgraph.FlowToGraph(s.flow, s.contextKey)
	if err != nil {
		return err
	}

	if err := s.layout.Layout(graph); err != nil {
		return err
	}

	s.graph = graph

	return nil
}

func (s *Session) markDirty() error {
	s.dirty = true

	return s.refresh()
}
