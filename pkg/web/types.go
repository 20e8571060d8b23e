// Package web provides HTTP request and response types for the flow API.
package web

import (
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/diff"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/persistence"
)

// SaveFlowRequest is the request body for writing a flow wholesale.
// Segment config and transitions are ordered arrays; the stored order is
// exactly the submitted order.
type SaveFlowRequest struct {
	ChangeSetID        string            `json:"change_set_id,omitempty"`
	InitSegment        string            `json:"init_segment"                 validate:"required"`
	Hooks              map[string]string `json:"hooks,omitempty"`
	SourceID           string            `json:"source_id,omitempty"`
	SupportedLanguages []string          `json:"supported_languages,omitempty"`
	DefaultLanguage    string            `json:"default_language,omitempty"`
	Segments           []*models.Segment `json:"segments"                     validate:"required,dive"`
}

// BatchRequest is the request body for the atomic batch endpoint.
type BatchRequest struct {
	ChangeSetID string           `json:"change_set_id,omitempty"`
	Operations  []diff.Operation `json:"operations"              validate:"required,dive"`
}

// BatchResponse carries the reloaded flow after a successful batch. The
// client replaces its baseline with this copy.
type BatchResponse struct {
	Applied int          `json:"applied"`
	Flow    *models.Flow `json:"flow"`
}

// CreateDraftRequest is the request body for draft creation.
type CreateDraftRequest struct {
	CreatedBy string `json:"created_by,omitempty"`
}

// SegmentOrderRequest is the request body for bulk linear ordering.
type SegmentOrderRequest struct {
	Orders []persistence.SegmentOrder `json:"orders" validate:"required,min=1,dive"`
}
