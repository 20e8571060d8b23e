// Package events defines event types for flow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries all flow lifecycle events.
const Topic = "routing.flow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	FlowSavedEvent      EventType = "flow.saved"
	DraftCreatedEvent   EventType = "flow.draft.created"
	DraftPublishedEvent EventType = "flow.draft.published"
	DraftDiscardedEvent EventType = "flow.draft.discarded"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	RoutingID   string         `json:"routing_id"`
	ChangeSetID string         `json:"change_set_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, routingID, changeSetID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		RoutingID:   routingID,
		ChangeSetID: changeSetID,
		Metadata:    make(map[string]any),
	}
}

// FlowSaved signals that a batch of operations was applied to a scope.
type FlowSaved struct {
	BaseEvent

	OperationCount int `json:"operation_count"`
	SegmentCount   int `json:"segment_count"`
}

func (e FlowSaved) GetType() EventType {
	return FlowSavedEvent
}

// DraftCreated signals a new copy-on-write draft for a routing.
type DraftCreated struct {
	BaseEvent

	CreatedBy string `json:"created_by,omitempty"`
}

func (e DraftCreated) GetType() EventType {
	return DraftCreatedEvent
}

// DraftPublished signals that a draft replaced the published flow.
type DraftPublished struct {
	BaseEvent
}

func (e DraftPublished) GetType() EventType {
	return DraftPublishedEvent
}

// DraftDiscarded signals that a draft was deleted without publishing.
type DraftDiscarded struct {
	BaseEvent
}

func (e DraftDiscarded) GetType() EventType {
	return DraftDiscardedEvent
}
