package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/eventbus"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/events"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/metrics"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/otelhelper"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/persistence"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/registry"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/validation"
)

// Draft manages the change-set lifecycle: copy-on-write draft creation,
// the validation gate in front of publish, and discard.
type Draft struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	registry    *registry.Registry
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewDraft creates a new draft service.
func NewDraft(p persistence.Persistence, eventBus eventbus.EventPublisher, reg *registry.Registry, logger *slog.Logger) *Draft {
	return &Draft{
		persistence: p,
		eventBus:    eventBus,
		registry:    reg,
		logger:      logger,
		tracer:      otel.Tracer("draft-service"),
	}
}

// CreateDraft copies the published flow of a routing into a new draft
// scope and returns the created change set.
func (s *Draft) CreateDraft(ctx context.Context, routingID, createdBy string) (*models.ChangeSet, error) {
	if routingID == "" {
		return nil, ErrEmptyRoutingID
	}

	changeSetID := uuid.New().String()

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "draft.create",
		attribute.String(otelhelper.RoutingIDKey, routingID),
		attribute.String(otelhelper.ChangeSetIDKey, changeSetID),
	)
	defer span.End()

	if err := s.persistence.ChangeSetRepository().CreateDraft(ctx, routingID, changeSetID, createdBy); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to create draft: %w", err)
	}

	metrics.DraftsCreated.Inc()

	changeSet, err := s.persistence.ChangeSetRepository().GetChangeSet(ctx, routingID, changeSetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load created draft: %w", err)
	}

	s.publishEvent(ctx, routingID, events.DraftCreated{
		BaseEvent: events.NewBaseEvent(events.DraftCreatedEvent, routingID, changeSetID),
		CreatedBy: createdBy,
	})

	return changeSet, nil
}

// PublishDraft promotes a draft to the published scope. A draft whose
// flow still has validation errors is refused; warnings pass through.
func (s *Draft) PublishDraft(ctx context.Context, routingID, changeSetID string) error {
	if routingID == "" {
		return ErrEmptyRoutingID
	}

	if changeSetID == "" {
		return ErrEmptyChangeSetID
	}

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "draft.publish",
		attribute.String(otelhelper.RoutingIDKey, routingID),
		attribute.String(otelhelper.ChangeSetIDKey, changeSetID),
	)
	defer span.End()

	scope := persistence.Scope{RoutingID: routingID, ChangeSetID: changeSetID}

	flow, err := s.persistence.FlowRepository().GetFlow(ctx, scope)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to load draft flow: %w", err)
	}

	result := validation.ValidateFlow(flow, s.registry)
	if result.HasErrors() {
		err := fmt.Errorf("%w: %d validation errors", ErrDraftNotClean, len(result.Errors))
		otelhelper.SetError(span, err)

		return err
	}

	if err := s.persistence.ChangeSetRepository().PublishDraft(ctx, routingID, changeSetID); err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to publish draft: %w", err)
	}

	metrics.DraftsPublished.Inc()

	s.publishEvent(ctx, routingID, events.DraftPublished{
		BaseEvent: events.NewBaseEvent(events.DraftPublishedEvent, routingID, changeSetID),
	})

	return nil
}

// DiscardDraft abandons a draft. The draft's flow data is removed and
// the change set is kept as a terminal record.
func (s *Draft) DiscardDraft(ctx context.Context, routingID, changeSetID string) error {
	if routingID == "" {
		return ErrEmptyRoutingID
	}

	if changeSetID == "" {
		return ErrEmptyChangeSetID
	}

	if err := s.persistence.ChangeSetRepository().DiscardDraft(ctx, routingID, changeSetID); err != nil {
		return fmt.Errorf("failed to discard draft: %w", err)
	}

	metrics.DraftsDiscarded.Inc()

	s.publishEvent(ctx, routingID, events.DraftDiscarded{
		BaseEvent: events.NewBaseEvent(events.DraftDiscardedEvent, routingID, changeSetID),
	})

	return nil
}

func (s *Draft) publishEvent(ctx context.Context, key string, event eventbus.Event) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.Publish(ctx, key, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}
