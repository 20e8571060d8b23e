//go:build integration

package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/diff"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/persistence"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"segments", "flows", "change_sets", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("routing_test"),
			postgres.WithUsername("routing"),
			postgres.WithPassword("routing"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func testFlow(routingID string) *models.Flow {
	return &models.Flow{
		RoutingID:          routingID,
		InitSegment:        "welcome",
		Hooks:              map[string]string{"on_error": "error_handler"},
		SupportedLanguages: []string{"en-US", "nl-BE"},
		DefaultLanguage:    "en-US",
		Segments: []*models.Segment{
			{
				SegmentName: "welcome",
				SegmentType: "announcement",
				DisplayName: "Welcome",
				Config: []models.ConfigItem{
					{Key: "prompt", Value: "welcome.wav"},
					{Key: "barge_in", Value: true},
				},
				Transitions: []models.Transition{
					{
						ResultName: "default",
						IsDefault:  true,
						Outcome:    models.TransitionOutcome{NextSegment: "menu"},
					},
				},
				IsActive: true,
			},
			{
				SegmentName: "menu",
				SegmentType: "menu",
				DisplayName: "Main Menu",
				Config: []models.ConfigItem{
					{Key: "prompt", Value: "menu.wav"},
				},
				Transitions: []models.Transition{
					{
						ResultName: "sales",
						Outcome:    models.TransitionOutcome{NextSegment: "goodbye"},
					},
					{
						ResultName: "default",
						IsDefault:  true,
						Outcome:    models.TransitionOutcome{NextSegment: "goodbye"},
					},
				},
				IsActive: true,
			},
			{
				SegmentName: "goodbye",
				SegmentType: "announcement",
				DisplayName: "Goodbye",
				IsActive:    true,
				IsTerminal:  true,
			},
		},
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	for _, table := range []string{"flows", "segments", "change_sets", "schema_migrations"} {
		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE version = 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestFlowRepository_SaveAndGet(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := testFlow("routing-100")

	err := p.FlowRepository().SaveFlow(ctx, flow)
	require.NoError(t, err)
	assert.False(t, flow.CreatedAt.IsZero())
	assert.False(t, flow.UpdatedAt.IsZero())

	retrieved, err := p.FlowRepository().GetFlow(ctx, persistence.Scope{RoutingID: "routing-100"})
	require.NoError(t, err)

	assert.Equal(t, flow.RoutingID, retrieved.RoutingID)
	assert.Equal(t, flow.InitSegment, retrieved.InitSegment)
	assert.Equal(t, flow.Hooks, retrieved.Hooks)
	assert.Equal(t, flow.SupportedLanguages, retrieved.SupportedLanguages)
	require.Len(t, retrieved.Segments, 3)

	// Array order must survive the round trip.
	assert.Equal(t, "welcome", retrieved.Segments[0].SegmentName)
	assert.Equal(t, "menu", retrieved.Segments[1].SegmentName)
	assert.Equal(t, "goodbye", retrieved.Segments[2].SegmentName)

	// Config order too.
	assert.Equal(t, "prompt", retrieved.Segments[0].Config[0].Key)
	assert.Equal(t, "barge_in", retrieved.Segments[0].Config[1].Key)

	_, err = p.FlowRepository().GetFlow(ctx, persistence.Scope{RoutingID: "missing"})
	assert.ErrorIs(t, err, persistence.ErrFlowNotFound)
}

func TestFlowRepository_ScopesAreIndependent(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	published := testFlow("routing-101")
	require.NoError(t, p.FlowRepository().SaveFlow(ctx, published))

	draft := testFlow("routing-101")
	draft.ChangeSetID = "cs-1"
	draft.InitSegment = "menu"
	require.NoError(t, p.FlowRepository().SaveFlow(ctx, draft))

	got, err := p.FlowRepository().GetFlow(ctx, persistence.Scope{RoutingID: "routing-101"})
	require.NoError(t, err)
	assert.Equal(t, "welcome", got.InitSegment)

	got, err = p.FlowRepository().GetFlow(ctx, persistence.Scope{RoutingID: "routing-101", ChangeSetID: "cs-1"})
	require.NoError(t, err)
	assert.Equal(t, "menu", got.InitSegment)
}

func TestFlowRepository_ApplyBatch(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := testFlow("routing-102")
	require.NoError(t, p.FlowRepository().SaveFlow(ctx, flow))

	scope := persistence.Scope{RoutingID: "routing-102"}

	operations := []diff.Operation{
		{
			Type:        diff.OperationCreateSegment,
			SegmentName: "survey",
			Segment: &models.Segment{
				SegmentName: "survey",
				SegmentType: "survey",
				IsActive:    true,
				IsTerminal:  true,
			},
		},
		{
			Type:        diff.OperationUpdateSegment,
			SegmentName: "welcome",
			Fields:      []diff.FieldGroup{diff.FieldGroupBasic},
			Basic: &diff.BasicInfo{
				SegmentType: "announcement",
				DisplayName: "Welcome (updated)",
				IsActive:    true,
			},
		},
		{
			Type:        diff.OperationDeleteSegment,
			SegmentName: "goodbye",
		},
	}

	err := p.FlowRepository().ApplyBatch(ctx, scope, operations)
	require.NoError(t, err)

	retrieved, err := p.FlowRepository().GetFlow(ctx, scope)
	require.NoError(t, err)
	require.Len(t, retrieved.Segments, 3)

	// The create appends at the end of the array order.
	assert.Equal(t, "welcome", retrieved.Segments[0].SegmentName)
	assert.Equal(t, "menu", retrieved.Segments[1].SegmentName)
	assert.Equal(t, "survey", retrieved.Segments[2].SegmentName)

	assert.Equal(t, "Welcome (updated)", retrieved.Segments[0].DisplayName)

	// The basic update must not clobber other field groups.
	assert.Len(t, retrieved.Segments[0].Config, 2)
	assert.Len(t, retrieved.Segments[0].Transitions, 1)
}

func TestFlowRepository_ApplyBatchIsAtomic(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := testFlow("routing-103")
	require.NoError(t, p.FlowRepository().SaveFlow(ctx, flow))

	scope := persistence.Scope{RoutingID: "routing-103"}

	operations := []diff.Operation{
		{
			Type:        diff.OperationDeleteSegment,
			SegmentName: "goodbye",
		},
		{
			Type:        diff.OperationDeleteSegment,
			SegmentName: "no_such_segment",
		},
	}

	err := p.FlowRepository().ApplyBatch(ctx, scope, operations)
	require.ErrorIs(t, err, persistence.ErrSegmentNotFound)

	// The first delete must have rolled back with the failing one.
	retrieved, err := p.FlowRepository().GetFlow(ctx, scope)
	require.NoError(t, err)
	assert.Len(t, retrieved.Segments, 3)
}

func TestFlowRepository_ApplyBatchConflicts(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := testFlow("routing-104")
	require.NoError(t, p.FlowRepository().SaveFlow(ctx, flow))

	scope := persistence.Scope{RoutingID: "routing-104"}

	err := p.FlowRepository().ApplyBatch(ctx, scope, []diff.Operation{
		{
			Type:        diff.OperationCreateSegment,
			SegmentName: "welcome",
			Segment:     &models.Segment{SegmentName: "welcome", SegmentType: "announcement"},
		},
	})
	assert.ErrorIs(t, err, persistence.ErrSegmentAlreadyExists)

	err = p.FlowRepository().ApplyBatch(ctx, persistence.Scope{RoutingID: "missing"}, nil)
	assert.ErrorIs(t, err, persistence.ErrFlowNotFound)
}

func TestFlowRepository_UpdateSegmentOrder(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := testFlow("routing-105")
	require.NoError(t, p.FlowRepository().SaveFlow(ctx, flow))

	err := p.FlowRepository().UpdateSegmentOrder(ctx, "routing-105", []persistence.SegmentOrder{
		{SegmentName: "goodbye", SegmentOrder: 1},
		{SegmentName: "welcome", SegmentOrder: 2},
		{SegmentName: "menu", SegmentOrder: 3},
	})
	require.NoError(t, err)

	retrieved, err := p.FlowRepository().GetFlow(ctx, persistence.Scope{RoutingID: "routing-105"})
	require.NoError(t, err)

	// Ordering updates segment_order without reshuffling the array.
	assert.Equal(t, "welcome", retrieved.Segments[0].SegmentName)
	assert.Equal(t, 2, retrieved.Segments[0].SegmentOrder)
	assert.Equal(t, "goodbye", retrieved.Segments[2].SegmentName)
	assert.Equal(t, 1, retrieved.Segments[2].SegmentOrder)

	err = p.FlowRepository().UpdateSegmentOrder(ctx, "routing-105", []persistence.SegmentOrder{
		{SegmentName: "no_such_segment", SegmentOrder: 1},
	})
	assert.ErrorIs(t, err, persistence.ErrSegmentNotFound)
}

func TestChangeSetRepository_DraftLifecycle(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := testFlow("routing-106")
	require.NoError(t, p.FlowRepository().SaveFlow(ctx, flow))

	changeSetID := uuid.NewString()

	err := p.ChangeSetRepository().CreateDraft(ctx, "routing-106", changeSetID, "alice")
	require.NoError(t, err)

	changeSet, err := p.ChangeSetRepository().GetChangeSet(ctx, "routing-106", changeSetID)
	require.NoError(t, err)
	assert.Equal(t, models.ChangeSetStatusDraft, changeSet.Status)
	assert.Equal(t, "alice", changeSet.CreatedBy)
	assert.True(t, changeSet.IsDraft())

	// The draft scope holds a full copy of the published flow.
	draftScope := persistence.Scope{RoutingID: "routing-106", ChangeSetID: changeSetID}

	draft, err := p.FlowRepository().GetFlow(ctx, draftScope)
	require.NoError(t, err)
	assert.Equal(t, changeSetID, draft.ChangeSetID)
	assert.Len(t, draft.Segments, 3)

	// Duplicate change-set IDs are rejected.
	err = p.ChangeSetRepository().CreateDraft(ctx, "routing-106", changeSetID, "alice")
	assert.ErrorIs(t, err, persistence.ErrChangeSetAlreadyExists)
}

func TestChangeSetRepository_DraftEditsDoNotLeak(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := testFlow("routing-107")
	require.NoError(t, p.FlowRepository().SaveFlow(ctx, flow))

	require.NoError(t, p.ChangeSetRepository().CreateDraft(ctx, "routing-107", "cs-1", ""))

	draftScope := persistence.Scope{RoutingID: "routing-107", ChangeSetID: "cs-1"}

	err := p.FlowRepository().ApplyBatch(ctx, draftScope, []diff.Operation{
		{Type: diff.OperationDeleteSegment, SegmentName: "goodbye"},
	})
	require.NoError(t, err)

	published, err := p.FlowRepository().GetFlow(ctx, persistence.Scope{RoutingID: "routing-107"})
	require.NoError(t, err)
	assert.Len(t, published.Segments, 3)
}

func TestChangeSetRepository_Publish(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := testFlow("routing-108")
	require.NoError(t, p.FlowRepository().SaveFlow(ctx, flow))

	require.NoError(t, p.ChangeSetRepository().CreateDraft(ctx, "routing-108", "cs-1", ""))

	draftScope := persistence.Scope{RoutingID: "routing-108", ChangeSetID: "cs-1"}

	err := p.FlowRepository().ApplyBatch(ctx, draftScope, []diff.Operation{
		{
			Type:        diff.OperationCreateSegment,
			SegmentName: "survey",
			Segment:     &models.Segment{SegmentName: "survey", SegmentType: "survey", IsActive: true, IsTerminal: true},
		},
	})
	require.NoError(t, err)

	err = p.ChangeSetRepository().PublishDraft(ctx, "routing-108", "cs-1")
	require.NoError(t, err)

	// The published scope now carries the draft's content.
	published, err := p.FlowRepository().GetFlow(ctx, persistence.Scope{RoutingID: "routing-108"})
	require.NoError(t, err)
	assert.Empty(t, published.ChangeSetID)
	assert.Len(t, published.Segments, 4)

	// The draft rows are gone.
	_, err = p.FlowRepository().GetFlow(ctx, draftScope)
	assert.ErrorIs(t, err, persistence.ErrFlowNotFound)

	changeSet, err := p.ChangeSetRepository().GetChangeSet(ctx, "routing-108", "cs-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChangeSetStatusPublished, changeSet.Status)
	require.NotNil(t, changeSet.PublishedAt)

	// Published change sets are terminal.
	err = p.ChangeSetRepository().PublishDraft(ctx, "routing-108", "cs-1")
	assert.ErrorIs(t, err, persistence.ErrChangeSetNotDraft)

	err = p.ChangeSetRepository().DiscardDraft(ctx, "routing-108", "cs-1")
	assert.ErrorIs(t, err, persistence.ErrChangeSetNotDraft)
}

func TestChangeSetRepository_Discard(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := testFlow("routing-109")
	require.NoError(t, p.FlowRepository().SaveFlow(ctx, flow))

	require.NoError(t, p.ChangeSetRepository().CreateDraft(ctx, "routing-109", "cs-1", ""))

	err := p.ChangeSetRepository().DiscardDraft(ctx, "routing-109", "cs-1")
	require.NoError(t, err)

	_, err = p.FlowRepository().GetFlow(ctx, persistence.Scope{RoutingID: "routing-109", ChangeSetID: "cs-1"})
	assert.ErrorIs(t, err, persistence.ErrFlowNotFound)

	changeSet, err := p.ChangeSetRepository().GetChangeSet(ctx, "routing-109", "cs-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChangeSetStatusDiscarded, changeSet.Status)
	require.NotNil(t, changeSet.DiscardedAt)

	// The published flow is untouched.
	published, err := p.FlowRepository().GetFlow(ctx, persistence.Scope{RoutingID: "routing-109"})
	require.NoError(t, err)
	assert.Len(t, published.Segments, 3)
}

func TestChangeSetRepository_List(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	flow := testFlow("routing-110")
	require.NoError(t, p.FlowRepository().SaveFlow(ctx, flow))

	require.NoError(t, p.ChangeSetRepository().CreateDraft(ctx, "routing-110", "cs-1", ""))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, p.ChangeSetRepository().CreateDraft(ctx, "routing-110", "cs-2", ""))

	changeSets, err := p.ChangeSetRepository().ListChangeSets(ctx, "routing-110")
	require.NoError(t, err)
	require.Len(t, changeSets, 2)

	// Newest first.
	assert.Equal(t, "cs-2", changeSets[0].ChangeSetID)
	assert.Equal(t, "cs-1", changeSets[1].ChangeSetID)

	_, err = p.ChangeSetRepository().GetChangeSet(ctx, "routing-110", "missing")
	assert.ErrorIs(t, err, persistence.ErrChangeSetNotFound)

	err = p.ChangeSetRepository().CreateDraft(ctx, "no-such-routing", "cs-1", "")
	assert.ErrorIs(t, err, persistence.ErrFlowNotFound)
}
