package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/diff"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/persistence"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/persistence/file"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/services"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/web"
)

func setupTestApp(t *testing.T) (*fiber.App, persistence.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	flowService := services.NewFlow(store, nil, nil, logger)
	draftService := services.NewDraft(store, nil, nil, logger)
	validate := validator.New(validator.WithRequiredStructEnabled())

	handlers := web.NewAPIHandlers(flowService, draftService, validate)

	app := fiber.New()

	flows := app.Group("/flows")
	flows.Get("/:routingId", handlers.GetFlow)
	flows.Put("/:routingId", handlers.SaveFlow)
	flows.Delete("/:routingId", handlers.DeleteFlow)
	flows.Post("/:routingId/batch", handlers.ApplyBatch)
	flows.Get("/:routingId/validate", handlers.ValidateFlow)
	flows.Put("/:routingId/segment-order", handlers.UpdateSegmentOrder)
	flows.Get("/:routingId/change-sets", handlers.ListChangeSets)
	flows.Get("/:routingId/change-sets/:changeSetId", handlers.GetChangeSet)
	flows.Post("/:routingId/drafts", handlers.CreateDraft)
	flows.Post("/:routingId/drafts/:changeSetId/publish", handlers.PublishDraft)
	flows.Post("/:routingId/drafts/:changeSetId/discard", handlers.DiscardDraft)

	app.Get("/segment-types", handlers.GetSegmentTypes)
	app.Get("/health", handlers.HealthCheck)

	return app, store
}

func seedPublished(t *testing.T, store persistence.Persistence) {
	t.Helper()

	flow := &models.Flow{
		RoutingID:   "main-line",
		InitSegment: "welcome",
		Segments: []*models.Segment{
			{
				SegmentName: "welcome",
				SegmentType: "announcement",
				IsActive:    true,
				Transitions: []models.Transition{
					{ResultName: "done", Outcome: models.TransitionOutcome{NextSegment: "goodbye"}},
				},
			},
			{
				SegmentName: "goodbye",
				SegmentType: "hangup",
				IsActive:    true,
				IsTerminal:  true,
			},
		},
	}

	require.NoError(t, store.FlowRepository().SaveFlow(context.Background(), flow))
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestGetFlow(t *testing.T) {
	app, store := setupTestApp(t)
	seedPublished(t, store)

	resp := doJSON(t, app, http.MethodGet, "/flows/main-line", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var flow models.Flow
	decodeBody(t, resp, &flow)
	assert.Equal(t, "main-line", flow.RoutingID)
	assert.Equal(t, "welcome", flow.InitSegment)
	assert.Len(t, flow.Segments, 2)

	resp = doJSON(t, app, http.MethodGet, "/flows/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSaveFlow(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPut, "/flows/main-line", web.SaveFlowRequest{
		InitSegment: "welcome",
		Segments: []*models.Segment{
			{SegmentName: "welcome", SegmentType: "announcement", IsActive: true},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var flow models.Flow
	decodeBody(t, resp, &flow)
	assert.Equal(t, "main-line", flow.RoutingID)
	assert.False(t, flow.UpdatedAt.IsZero())

	// Missing init segment fails struct validation.
	resp = doJSON(t, app, http.MethodPut, "/flows/main-line", web.SaveFlowRequest{
		Segments: []*models.Segment{
			{SegmentName: "welcome", SegmentType: "announcement"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteFlow(t *testing.T) {
	app, store := setupTestApp(t)
	seedPublished(t, store)

	resp := doJSON(t, app, http.MethodDelete, "/flows/main-line", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, http.MethodDelete, "/flows/main-line", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApplyBatch(t *testing.T) {
	app, store := setupTestApp(t)
	seedPublished(t, store)

	resp := doJSON(t, app, http.MethodPost, "/flows/main-line/batch", web.BatchRequest{
		Operations: []diff.Operation{
			{
				Type:        diff.OperationCreateSegment,
				SegmentName: "menu",
				Segment:     &models.Segment{SegmentName: "menu", SegmentType: "menu", IsActive: true},
			},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.BatchResponse
	decodeBody(t, resp, &result)
	assert.Equal(t, 1, result.Applied)
	require.NotNil(t, result.Flow)
	assert.Len(t, result.Flow.Segments, 3)
}

func TestApplyBatchConflict(t *testing.T) {
	app, store := setupTestApp(t)
	seedPublished(t, store)

	resp := doJSON(t, app, http.MethodPost, "/flows/main-line/batch", web.BatchRequest{
		Operations: []diff.Operation{
			{
				Type:        diff.OperationCreateSegment,
				SegmentName: "welcome",
				Segment:     &models.Segment{SegmentName: "welcome", SegmentType: "announcement"},
			},
		},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestApplyBatchUnknownOperation(t *testing.T) {
	app, store := setupTestApp(t)
	seedPublished(t, store)

	resp := doJSON(t, app, http.MethodPost, "/flows/main-line/batch", map[string]any{
		"operations": []map[string]any{
			{"type": "rename_segment", "segment_name": "welcome"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestValidateFlow(t *testing.T) {
	app, store := setupTestApp(t)

	flow := &models.Flow{
		RoutingID:   "main-line",
		InitSegment: "welcome",
		Segments: []*models.Segment{
			{
				SegmentName: "welcome",
				SegmentType: "announcement",
				IsActive:    true,
				Transitions: []models.Transition{
					{ResultName: "done", Outcome: models.TransitionOutcome{NextSegment: "nowhere"}},
				},
			},
		},
	}
	require.NoError(t, store.FlowRepository().SaveFlow(context.Background(), flow))

	resp := doJSON(t, app, http.MethodGet, "/flows/main-line/validate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.FlowValidation
	decodeBody(t, resp, &result)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, models.ValidationMissingTarget, result.Errors[0].Type)
}

func TestUpdateSegmentOrder(t *testing.T) {
	app, store := setupTestApp(t)
	seedPublished(t, store)

	resp := doJSON(t, app, http.MethodPut, "/flows/main-line/segment-order", web.SegmentOrderRequest{
		Orders: []persistence.SegmentOrder{
			{SegmentName: "goodbye", SegmentOrder: 0},
			{SegmentName: "welcome", SegmentOrder: 1},
		},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPut, "/flows/main-line/segment-order", web.SegmentOrderRequest{
		Orders: []persistence.SegmentOrder{
			{SegmentName: "missing", SegmentOrder: 0},
		},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPut, "/flows/main-line/segment-order", web.SegmentOrderRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDraftLifecycle(t *testing.T) {
	app, store := setupTestApp(t)
	seedPublished(t, store)

	resp := doJSON(t, app, http.MethodPost, "/flows/main-line/drafts", web.CreateDraftRequest{CreatedBy: "alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var changeSet models.ChangeSet
	decodeBody(t, resp, &changeSet)
	require.NotEmpty(t, changeSet.ChangeSetID)
	assert.Equal(t, models.ChangeSetStatusDraft, changeSet.Status)
	assert.Equal(t, "alice", changeSet.CreatedBy)

	// The draft is a full copy, readable through the same flow endpoint.
	resp = doJSON(t, app, http.MethodGet, "/flows/main-line?change_set_id="+changeSet.ChangeSetID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var draft models.Flow
	decodeBody(t, resp, &draft)
	assert.Equal(t, changeSet.ChangeSetID, draft.ChangeSetID)
	assert.Len(t, draft.Segments, 2)

	resp = doJSON(t, app, http.MethodPost, "/flows/main-line/drafts/"+changeSet.ChangeSetID+"/publish", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Terminal after publish: discard must conflict.
	resp = doJSON(t, app, http.MethodPost, "/flows/main-line/drafts/"+changeSet.ChangeSetID+"/discard", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/flows/main-line/change-sets/"+changeSet.ChangeSetID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var published models.ChangeSet
	decodeBody(t, resp, &published)
	assert.Equal(t, models.ChangeSetStatusPublished, published.Status)
	assert.Equal(t, "alice", published.CreatedBy)
}

func TestCreateDraftMissingRouting(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/flows/missing/drafts", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPublishDraftWithValidationErrorsConflicts(t *testing.T) {
	app, store := setupTestApp(t)

	flow := &models.Flow{
		RoutingID:   "main-line",
		InitSegment: "welcome",
		Segments: []*models.Segment{
			{
				SegmentName: "welcome",
				SegmentType: "announcement",
				IsActive:    true,
				Transitions: []models.Transition{
					{ResultName: "done", Outcome: models.TransitionOutcome{NextSegment: "nowhere"}},
				},
			},
		},
	}
	require.NoError(t, store.FlowRepository().SaveFlow(context.Background(), flow))

	resp := doJSON(t, app, http.MethodPost, "/flows/main-line/drafts", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var changeSet models.ChangeSet
	decodeBody(t, resp, &changeSet)

	resp = doJSON(t, app, http.MethodPost, "/flows/main-line/drafts/"+changeSet.ChangeSetID+"/publish", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListChangeSets(t *testing.T) {
	app, store := setupTestApp(t)
	seedPublished(t, store)

	resp := doJSON(t, app, http.MethodPost, "/flows/main-line/drafts", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/flows/main-line/change-sets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ChangeSets []*models.ChangeSet `json:"change_sets"`
	}
	decodeBody(t, resp, &body)
	assert.Len(t, body.ChangeSets, 1)
}

func TestSegmentTypesWithoutRegistry(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/segment-types", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeBody(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
}
