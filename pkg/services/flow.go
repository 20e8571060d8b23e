package services

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/diff"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/eventbus"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/events"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/metrics"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/otelhelper"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/persistence"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/registry"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/validation"
)

// Flow is the service over flow storage: loads, batch saves, segment
// ordering and validation. Lifecycle events go out on the event bus as
// notifications; a failed publish never fails the state change itself.
type Flow struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	registry    *registry.Registry
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewFlow creates a new flow service. The event bus and registry are
// optional; a nil registry skips segment-type validation.
func NewFlow(p persistence.Persistence, eventBus eventbus.EventPublisher, reg *registry.Registry, logger *slog.Logger) *Flow {
	return &Flow{
		persistence: p,
		eventBus:    eventBus,
		registry:    reg,
		logger:      logger,
		tracer:      otel.Tracer("flow-service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Flow) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// GetFlow returns the published flow (empty changeSetID) or a draft.
func (s *Flow) GetFlow(ctx context.Context, routingID, changeSetID string) (*models.Flow, error) {
	if routingID == "" {
		return nil, ErrEmptyRoutingID
	}

	scope := persistence.Scope{RoutingID: routingID, ChangeSetID: changeSetID}

	flow, err := s.persistence.FlowRepository().GetFlow(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}

	return flow, nil
}

// SaveFlow writes a complete flow wholesale, creating or replacing its
// scope. Batches are the normal write path; this is for seeding and
// imports. Returns the stored flow with server-assigned timestamps.
func (s *Flow) SaveFlow(ctx context.Context, flow *models.Flow) (*models.Flow, error) {
	if flow == nil {
		return nil, ErrFlowNil
	}

	if flow.RoutingID == "" {
		return nil, ErrEmptyRoutingID
	}

	if err := s.persistence.FlowRepository().SaveFlow(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	scope := persistence.Scope{RoutingID: flow.RoutingID, ChangeSetID: flow.ChangeSetID}

	return s.persistence.FlowRepository().GetFlow(ctx, scope)
}

// DeleteFlow removes one scope entirely, segments included.
func (s *Flow) DeleteFlow(ctx context.Context, routingID, changeSetID string) error {
	if routingID == "" {
		return ErrEmptyRoutingID
	}

	scope := persistence.Scope{RoutingID: routingID, ChangeSetID: changeSetID}

	if err := s.persistence.FlowRepository().DeleteFlow(ctx, scope); err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}

	return nil
}

// SaveBatch applies a diff-derived operation list to one scope and
// returns the reloaded flow, which becomes the caller's new baseline.
// An empty operation list is a successful no-op that skips persistence
// entirely.
func (s *Flow) SaveBatch(ctx context.Context, routingID, changeSetID string, operations []diff.Operation) (*models.Flow, error) {
	if routingID == "" {
		return nil, ErrEmptyRoutingID
	}

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "flow.save_batch",
		attribute.String(otelhelper.RoutingIDKey, routingID),
		attribute.String(otelhelper.ChangeSetIDKey, changeSetID),
		attribute.Int(otelhelper.OperationCountKey, len(operations)),
	)
	defer span.End()

	scope := persistence.Scope{RoutingID: routingID, ChangeSetID: changeSetID}

	if len(operations) == 0 {
		metrics.SavesSkipped.Inc()
		s.logger.InfoContext(ctx, "Skipping save, no changes", "routing_id", routingID, "change_set_id", changeSetID)

		return s.persistence.FlowRepository().GetFlow(ctx, scope)
	}

	if err := validateOperations(operations); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := s.persistence.FlowRepository().ApplyBatch(ctx, scope, operations); err != nil {
		metrics.FlowSaves.WithLabelValues("error").Inc()
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to apply batch: %w", err)
	}

	metrics.FlowSaves.WithLabelValues("success").Inc()
	metrics.BatchOperations.Observe(float64(len(operations)))

	flow, err := s.persistence.FlowRepository().GetFlow(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to reload flow after batch: %w", err)
	}

	s.publishEvent(ctx, routingID, events.FlowSaved{
		BaseEvent:      events.NewBaseEvent(events.FlowSavedEvent, routingID, changeSetID),
		OperationCount: len(operations),
		SegmentCount:   len(flow.Segments),
	})

	return flow, nil
}

// UpdateSegmentOrder applies bulk linear ordering to the published flow.
func (s *Flow) UpdateSegmentOrder(ctx context.Context, routingID string, orders []persistence.SegmentOrder) error {
	if routingID == "" {
		return ErrEmptyRoutingID
	}

	for _, order := range orders {
		if order.SegmentName == "" {
			return ErrEmptySegmentName
		}

		if order.SegmentOrder < 0 {
			return ErrNegativeOrder
		}
	}

	if err := s.persistence.FlowRepository().UpdateSegmentOrder(ctx, routingID, orders); err != nil {
		return fmt.Errorf("failed to update segment order: %w", err)
	}

	return nil
}

// ListChangeSets returns all change sets of a routing, newest first.
func (s *Flow) ListChangeSets(ctx context.Context, routingID string) ([]*models.ChangeSet, error) {
	if routingID == "" {
		return nil, ErrEmptyRoutingID
	}

	changeSets, err := s.persistence.ChangeSetRepository().ListChangeSets(ctx, routingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list change sets: %w", err)
	}

	return changeSets, nil
}

// ValidateFlow loads a scope and runs the authoritative validation.
func (s *Flow) ValidateFlow(ctx context.Context, routingID, changeSetID string) (*models.FlowValidation, error) {
	flow, err := s.GetFlow(ctx, routingID, changeSetID)
	if err != nil {
		return nil, err
	}

	return validation.ValidateFlow(flow, s.registry), nil
}

// SegmentTypes returns the segment-type definitions available to the editor.
func (s *Flow) SegmentTypes() []registry.SegmentTypeDef {
	if s.registry == nil {
		return nil
	}

	return s.registry.Definitions()
}

func (s *Flow) publishEvent(ctx context.Context, key string, event eventbus.Event) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.Publish(ctx, key, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func validateOperations(operations []diff.Operation) error {
	for _, operation := range operations {
		if operation.SegmentName == "" {
			return ErrOperationNoTarget
		}

		switch operation.Type {
		case diff.OperationCreateSegment, diff.OperationUpdateSegment, diff.OperationDeleteSegment:
		default:
			return fmt.Errorf("%w: %s", ErrUnknownOperation, operation.Type)
		}
	}

	return nil
}
