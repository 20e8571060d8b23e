// Package web provides HTTP handlers and REST API endpoints for flow authoring.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/services"
)

type APIHandlers struct {
	flowService  *services.Flow
	draftService *services.Draft
	validator    *validator.Validate
}

func NewAPIHandlers(
	flowService *services.Flow,
	draftService *services.Draft,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		flowService:  flowService,
		draftService: draftService,
		validator:    validator,
	}
}

// GetFlow returns the published flow, or a draft when the change_set_id
// query parameter is set.
func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	routingID := c.Params("routingId")
	if routingID == "" {
		return badRequest(c, "Routing ID is required")
	}

	flow, err := h.flowService.GetFlow(c.Context(), routingID, c.Query("change_set_id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

// SaveFlow writes a flow wholesale into its scope.
func (h *APIHandlers) SaveFlow(c fiber.Ctx) error {
	routingID := c.Params("routingId")
	if routingID == "" {
		return badRequest(c, "Routing ID is required")
	}

	var req SaveFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow := &models.Flow{
		RoutingID:          routingID,
		ChangeSetID:        req.ChangeSetID,
		InitSegment:        req.InitSegment,
		Hooks:              req.Hooks,
		SourceID:           req.SourceID,
		SupportedLanguages: req.SupportedLanguages,
		DefaultLanguage:    req.DefaultLanguage,
		Segments:           req.Segments,
	}

	saved, err := h.flowService.SaveFlow(c.Context(), flow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(saved)
}

// DeleteFlow removes one scope entirely.
func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	routingID := c.Params("routingId")
	if routingID == "" {
		return badRequest(c, "Routing ID is required")
	}

	err := h.flowService.DeleteFlow(c.Context(), routingID, c.Query("change_set_id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ApplyBatch applies a diff-derived operation list atomically and
// returns the reloaded flow as the client's new baseline.
func (h *APIHandlers) ApplyBatch(c fiber.Ctx) error {
	routingID := c.Params("routingId")
	if routingID == "" {
		return badRequest(c, "Routing ID is required")
	}

	var req BatchRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow, err := h.flowService.SaveBatch(c.Context(), routingID, req.ChangeSetID, req.Operations)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(BatchResponse{Applied: len(req.Operations), Flow: flow})
}

// ValidateFlow runs the authoritative validation for one scope.
func (h *APIHandlers) ValidateFlow(c fiber.Ctx) error {
	routingID := c.Params("routingId")
	if routingID == "" {
		return badRequest(c, "Routing ID is required")
	}

	result, err := h.flowService.ValidateFlow(c.Context(), routingID, c.Query("change_set_id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// UpdateSegmentOrder applies bulk linear ordering to the published flow.
func (h *APIHandlers) UpdateSegmentOrder(c fiber.Ctx) error {
	routingID := c.Params("routingId")
	if routingID == "" {
		return badRequest(c, "Routing ID is required")
	}

	var req SegmentOrderRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.flowService.UpdateSegmentOrder(c.Context(), routingID, req.Orders); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ListChangeSets returns the change sets of a routing, newest first.
func (h *APIHandlers) ListChangeSets(c fiber.Ctx) error {
	routingID := c.Params("routingId")
	if routingID == "" {
		return badRequest(c, "Routing ID is required")
	}

	changeSets, err := h.flowService.ListChangeSets(c.Context(), routingID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"change_sets": changeSets})
}

// GetChangeSet returns one change set envelope.
func (h *APIHandlers) GetChangeSet(c fiber.Ctx) error {
	routingID := c.Params("routingId")
	changeSetID := c.Params("changeSetId")

	if routingID == "" || changeSetID == "" {
		return badRequest(c, "Routing ID and change set ID are required")
	}

	changeSets, err := h.flowService.ListChangeSets(c.Context(), routingID)
	if err != nil {
		return handleServiceError(c, err)
	}

	for _, changeSet := range changeSets {
		if changeSet.ChangeSetID == changeSetID {
			return c.JSON(changeSet)
		}
	}

	return notFound(c, "change_set_not_found", "change set not found")
}

// CreateDraft copies the published flow into a new draft scope.
func (h *APIHandlers) CreateDraft(c fiber.Ctx) error {
	routingID := c.Params("routingId")
	if routingID == "" {
		return badRequest(c, "Routing ID is required")
	}

	var req CreateDraftRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	changeSet, err := h.draftService.CreateDraft(c.Context(), routingID, req.CreatedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(changeSet)
}

// PublishDraft atomically promotes a draft to the published scope.
func (h *APIHandlers) PublishDraft(c fiber.Ctx) error {
	routingID := c.Params("routingId")
	changeSetID := c.Params("changeSetId")

	if routingID == "" || changeSetID == "" {
		return badRequest(c, "Routing ID and change set ID are required")
	}

	if err := h.draftService.PublishDraft(c.Context(), routingID, changeSetID); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// DiscardDraft abandons a draft, leaving the published flow untouched.
func (h *APIHandlers) DiscardDraft(c fiber.Ctx) error {
	routingID := c.Params("routingId")
	changeSetID := c.Params("changeSetId")

	if routingID == "" || changeSetID == "" {
		return badRequest(c, "Routing ID and change set ID are required")
	}

	if err := h.draftService.DiscardDraft(c.Context(), routingID, changeSetID); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetSegmentTypes returns the segment-type catalog.
func (h *APIHandlers) GetSegmentTypes(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"segment_types": h.flowService.SegmentTypes()})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.flowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Routing data layer is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Routing data layer is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
