package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/persistence/file"
)

func setupTestApp(t *testing.T) (*fiber.App, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	api := NewAPI(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		store,
		nil,
		nil,
	)

	return api.App(), store
}

func TestAPI_RootEndpoint(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Routing Flow API", string(body))
}

func TestAPI_Liveness(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_GetFlow(t *testing.T) {
	app, store := setupTestApp(t)

	flow := &models.Flow{
		RoutingID:   "main-line",
		InitSegment: "welcome",
		Segments: []*models.Segment{
			{SegmentName: "welcome", SegmentType: "announcement", IsActive: true, IsTerminal: true},
		},
	}
	require.NoError(t, store.FlowRepository().SaveFlow(context.Background(), flow))

	req := httptest.NewRequest(http.MethodGet, "/flows/main-line", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.Flow

	err = json.NewDecoder(resp.Body).Decode(&fetched)
	require.NoError(t, err)
	assert.Equal(t, "main-line", fetched.RoutingID)
	assert.Len(t, fetched.Segments, 1)
}

func TestAPI_GetFlow_NotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/flows/non-existent", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CORS_Headers(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/flows/main-line", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
