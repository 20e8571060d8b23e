package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/diff"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/persistence"
)

// FlowRepository handles flow-related database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetFlow loads the flow of one scope, segments included.
func (r *FlowRepository) GetFlow(ctx context.Context, scope persistence.Scope) (*models.Flow, error) {
	flow, err := r.getFlow(ctx, r.db, scope)
	if err != nil {
		return nil, persistence.NewFlowError("GetFlow", scope, err)
	}

	return flow, nil
}

func (r *FlowRepository) getFlow(ctx context.Context, q querier, scope persistence.Scope) (*models.Flow, error) {
	query := `
		SELECT
			routing_id
		  , change_set_id
		  , init_segment
		  , hooks
		  , source_id
		  , supported_languages
		  , default_language
		  , validation
		  , created_at
		  , updated_at
		FROM flows
		WHERE routing_id = $1 AND change_set_id = $2
	`

	row := q.QueryRowContext(ctx, query, scope.RoutingID, scope.ChangeSetID)

	flow, err := scanFlowBase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrFlowNotFound
		}

		return nil, fmt.Errorf("failed to scan flow: %w", err)
	}

	flow.Segments, err = r.loadSegments(ctx, q, scope)
	if err != nil {
		return nil, err
	}

	return flow, nil
}

func (r *FlowRepository) loadSegments(ctx context.Context, q querier, scope persistence.Scope) ([]*models.Segment, error) {
	query := `
		SELECT
			segment_name
		  , segment_type
		  , display_name
		  , config
		  , transitions
		  , hooks
		  , is_active
		  , is_terminal
		  , segment_order
		  , ui_state
		FROM segments
		WHERE routing_id = $1 AND change_set_id = $2
		ORDER BY position
	`

	rows, err := q.QueryContext(ctx, query, scope.RoutingID, scope.ChangeSetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	segments := make([]*models.Segment, 0)

	for rows.Next() {
		var (
			segment         models.Segment
			configJSON      []byte
			transitionsJSON []byte
			hooksJSON       []byte
			uiStateJSON     []byte
		)

		err := rows.Scan(
			&segment.SegmentName,
			&segment.SegmentType,
			&segment.DisplayName,
			&configJSON,
			&transitionsJSON,
			&hooksJSON,
			&segment.IsActive,
			&segment.IsTerminal,
			&segment.SegmentOrder,
			&uiStateJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}

		if err := json.Unmarshal(configJSON, &segment.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal segment config: %w", err)
		}

		if err := json.Unmarshal(transitionsJSON, &segment.Transitions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal segment transitions: %w", err)
		}

		if hooksJSON != nil {
			if err := json.Unmarshal(hooksJSON, &segment.Hooks); err != nil {
				return nil, fmt.Errorf("failed to unmarshal segment hooks: %w", err)
			}
		}

		if uiStateJSON != nil {
			if err := json.Unmarshal(uiStateJSON, &segment.UIState); err != nil {
				return nil, fmt.Errorf("failed to unmarshal segment ui state: %w", err)
			}
		}

		segments = append(segments, &segment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating segments: %w", err)
	}

	return segments, nil
}

// SaveFlow writes a complete flow into its scope, replacing any previous
// content wholesale.
func (r *FlowRepository) SaveFlow(ctx context.Context, flow *models.Flow) error {
	scope := persistence.Scope{RoutingID: flow.RoutingID, ChangeSetID: flow.ChangeSetID}

	now := time.Now().UTC()
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewFlowError("SaveFlow", scope, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.saveFlowTx(ctx, tx, flow); err != nil {
		return persistence.NewFlowError("SaveFlow", scope, err)
	}

	if err = tx.Commit(); err != nil {
		return persistence.NewFlowError("SaveFlow", scope, fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

func (r *FlowRepository) saveFlowTx(ctx context.Context, tx *sql.Tx, flow *models.Flow) error {
	hooksJSON, err := json.Marshal(flow.Hooks)
	if err != nil {
		return fmt.Errorf("failed to marshal hooks: %w", err)
	}

	languagesJSON, err := json.Marshal(flow.SupportedLanguages)
	if err != nil {
		return fmt.Errorf("failed to marshal supported languages: %w", err)
	}

	validationJSON, err := json.Marshal(flow.Validation)
	if err != nil {
		return fmt.Errorf("failed to marshal validation: %w", err)
	}

	flowQuery := `
		INSERT INTO flows (routing_id, change_set_id, init_segment, hooks,
			source_id, supported_languages, default_language, validation, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (routing_id, change_set_id) DO UPDATE SET
			init_segment = EXCLUDED.init_segment,
			hooks = EXCLUDED.hooks,
			source_id = EXCLUDED.source_id,
			supported_languages = EXCLUDED.supported_languages,
			default_language = EXCLUDED.default_language,
			validation = EXCLUDED.validation,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, flowQuery,
		flow.RoutingID,
		flow.ChangeSetID,
		flow.InitSegment,
		hooksJSON,
		flow.SourceID,
		languagesJSON,
		flow.DefaultLanguage,
		validationJSON,
		flow.CreatedAt,
		flow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save flow base: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM segments WHERE routing_id = $1 AND change_set_id = $2",
		flow.RoutingID, flow.ChangeSetID)
	if err != nil {
		return fmt.Errorf("failed to delete existing segments: %w", err)
	}

	for position, segment := range flow.Segments {
		if err := insertSegment(ctx, tx, flow.RoutingID, flow.ChangeSetID, segment, position); err != nil {
			return err
		}
	}

	return nil
}

func insertSegment(ctx context.Context, tx *sql.Tx, routingID, changeSetID string, segment *models.Segment, position int) error {
	configJSON, err := json.Marshal(segment.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal segment config: %w", err)
	}

	transitionsJSON, err := json.Marshal(segment.Transitions)
	if err != nil {
		return fmt.Errorf("failed to marshal segment transitions: %w", err)
	}

	hooksJSON, err := json.Marshal(segment.Hooks)
	if err != nil {
		return fmt.Errorf("failed to marshal segment hooks: %w", err)
	}

	uiStateJSON, err := json.Marshal(segment.UIState)
	if err != nil {
		return fmt.Errorf("failed to marshal segment ui state: %w", err)
	}

	query := `
		INSERT INTO segments (routing_id, change_set_id, segment_name, segment_type,
			display_name, config, transitions, hooks, is_active, is_terminal,
			segment_order, position, ui_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = tx.ExecContext(ctx, query,
		routingID,
		changeSetID,
		segment.SegmentName,
		segment.SegmentType,
		segment.DisplayName,
		configJSON,
		transitionsJSON,
		hooksJSON,
		segment.IsActive,
		segment.IsTerminal,
		segment.SegmentOrder,
		position,
		uiStateJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save segment %s: %w", segment.SegmentName, err)
	}

	return nil
}

// DeleteFlow removes a scope entirely. Segments go with the flow row via
// the cascading foreign key.
func (r *FlowRepository) DeleteFlow(ctx context.Context, scope persistence.Scope) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM flows WHERE routing_id = $1 AND change_set_id = $2",
		scope.RoutingID, scope.ChangeSetID)
	if err != nil {
		return persistence.NewFlowError("DeleteFlow", scope, fmt.Errorf("failed to delete flow: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewFlowError("DeleteFlow", scope, fmt.Errorf("failed to get rows affected: %w", err))
	}

	if rowsAffected == 0 {
		return persistence.NewFlowError("DeleteFlow", scope, persistence.ErrFlowNotFound)
	}

	return nil
}

// ApplyBatch applies a diff-derived operation list in one transaction, so
// the batch is all or nothing.
func (r *FlowRepository) ApplyBatch(ctx context.Context, scope persistence.Scope, operations []diff.Operation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewFlowError("ApplyBatch", scope, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Lock the flow row for the whole batch so concurrent batches on the
	// same scope serialize instead of interleaving.
	var one int

	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM flows WHERE routing_id = $1 AND change_set_id = $2 FOR UPDATE",
		scope.RoutingID, scope.ChangeSetID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.ErrFlowNotFound
		}

		return persistence.NewFlowError("ApplyBatch", scope, err)
	}

	for _, operation := range operations {
		if err = r.applyOperation(ctx, tx, scope, operation); err != nil {
			return persistence.NewFlowError("ApplyBatch", scope, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE flows SET updated_at = NOW() WHERE routing_id = $1 AND change_set_id = $2",
		scope.RoutingID, scope.ChangeSetID)
	if err != nil {
		return persistence.NewFlowError("ApplyBatch", scope, fmt.Errorf("failed to touch flow: %w", err))
	}

	if err = tx.Commit(); err != nil {
		return persistence.NewFlowError("ApplyBatch", scope, fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

func (r *FlowRepository) applyOperation(ctx context.Context, tx *sql.Tx, scope persistence.Scope, operation diff.Operation) error {
	switch operation.Type {
	case diff.OperationCreateSegment:
		return r.createSegment(ctx, tx, scope, operation)
	case diff.OperationUpdateSegment:
		return r.updateSegment(ctx, tx, scope, operation)
	case diff.OperationDeleteSegment:
		return r.deleteSegment(ctx, tx, scope, operation)
	default:
		return fmt.Errorf("unknown operation type: %s", operation.Type)
	}
}

func (r *FlowRepository) createSegment(ctx context.Context, tx *sql.Tx, scope persistence.Scope, operation diff.Operation) error {
	if operation.Segment == nil {
		return fmt.Errorf("create operation for %s carries no segment", operation.SegmentName)
	}

	var exists bool

	err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM segments WHERE routing_id = $1 AND change_set_id = $2 AND segment_name = $3)",
		scope.RoutingID, scope.ChangeSetID, operation.SegmentName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check segment existence: %w", err)
	}

	if exists {
		return fmt.Errorf("%w: %s", persistence.ErrSegmentAlreadyExists, operation.SegmentName)
	}

	// New segments append at the end of the array order.
	var position int

	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position), -1) + 1 FROM segments WHERE routing_id = $1 AND change_set_id = $2",
		scope.RoutingID, scope.ChangeSetID).Scan(&position)
	if err != nil {
		return fmt.Errorf("failed to compute segment position: %w", err)
	}

	return insertSegment(ctx, tx, scope.RoutingID, scope.ChangeSetID, operation.Segment, position)
}

// updateSegment rewrites only the field groups the operation names, so a
// config edit never clobbers concurrent-agnostic columns like transitions.
func (r *FlowRepository) updateSegment(ctx context.Context, tx *sql.Tx, scope persistence.Scope, operation diff.Operation) error {
	assignments := make([]string, 0, len(operation.Fields)+1)
	args := []any{scope.RoutingID, scope.ChangeSetID, operation.SegmentName}

	appendArg := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	for _, field := range operation.Fields {
		switch field {
		case diff.FieldGroupBasic:
			if operation.Basic == nil {
				return fmt.Errorf("basic update for %s carries no payload", operation.SegmentName)
			}

			appendArg("segment_type", operation.Basic.SegmentType)
			appendArg("display_name", operation.Basic.DisplayName)
			appendArg("is_active", operation.Basic.IsActive)
			appendArg("is_terminal", operation.Basic.IsTerminal)
		case diff.FieldGroupConfig:
			configJSON, err := json.Marshal(operation.Config)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			appendArg("config", configJSON)
		case diff.FieldGroupTransitions:
			transitionsJSON, err := json.Marshal(operation.Transitions)
			if err != nil {
				return fmt.Errorf("failed to marshal transitions: %w", err)
			}

			appendArg("transitions", transitionsJSON)
		case diff.FieldGroupHooks:
			hooksJSON, err := json.Marshal(operation.Hooks)
			if err != nil {
				return fmt.Errorf("failed to marshal hooks: %w", err)
			}

			appendArg("hooks", hooksJSON)
		case diff.FieldGroupUIState:
			uiStateJSON, err := json.Marshal(operation.UIState)
			if err != nil {
				return fmt.Errorf("failed to marshal ui state: %w", err)
			}

			appendArg("ui_state", uiStateJSON)
		default:
			return fmt.Errorf("unknown field group: %s", field)
		}
	}

	if len(assignments) == 0 {
		return nil
	}

	assignments = append(assignments, "updated_at = NOW()")

	query := "UPDATE segments SET " + strings.Join(assignments, ", ") +
		" WHERE routing_id = $1 AND change_set_id = $2 AND segment_name = $3"

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update segment %s: %w", operation.SegmentName, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", persistence.ErrSegmentNotFound, operation.SegmentName)
	}

	return nil
}

func (r *FlowRepository) deleteSegment(ctx context.Context, tx *sql.Tx, scope persistence.Scope, operation diff.Operation) error {
	result, err := tx.ExecContext(ctx,
		"DELETE FROM segments WHERE routing_id = $1 AND change_set_id = $2 AND segment_name = $3",
		scope.RoutingID, scope.ChangeSetID, operation.SegmentName)
	if err != nil {
		return fmt.Errorf("failed to delete segment %s: %w", operation.SegmentName, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", persistence.ErrSegmentNotFound, operation.SegmentName)
	}

	return nil
}

// UpdateSegmentOrder applies bulk ordering to the published flow.
func (r *FlowRepository) UpdateSegmentOrder(ctx context.Context, routingID string, orders []persistence.SegmentOrder) error {
	scope := persistence.Scope{RoutingID: routingID}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewFlowError("UpdateSegmentOrder", scope, fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var one int

	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM flows WHERE routing_id = $1 AND change_set_id = '' FOR UPDATE",
		routingID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.ErrFlowNotFound
		}

		return persistence.NewFlowError("UpdateSegmentOrder", scope, err)
	}

	for _, order := range orders {
		var result sql.Result

		result, err = tx.ExecContext(ctx,
			"UPDATE segments SET segment_order = $1, updated_at = NOW() WHERE routing_id = $2 AND change_set_id = '' AND segment_name = $3",
			order.SegmentOrder, routingID, order.SegmentName)
		if err != nil {
			return persistence.NewFlowError("UpdateSegmentOrder", scope,
				fmt.Errorf("failed to update segment order: %w", err))
		}

		var rowsAffected int64

		rowsAffected, err = result.RowsAffected()
		if err != nil {
			return persistence.NewFlowError("UpdateSegmentOrder", scope,
				fmt.Errorf("failed to get rows affected: %w", err))
		}

		if rowsAffected == 0 {
			err = fmt.Errorf("%s: %w", order.SegmentName, persistence.ErrSegmentNotFound)

			return persistence.NewFlowError("UpdateSegmentOrder", scope, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return persistence.NewFlowError("UpdateSegmentOrder", scope, fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

func scanFlowBase(scanner interface {
	Scan(dest ...any) error
}) (*models.Flow, error) {
	var (
		flow            models.Flow
		hooksJSON       []byte
		languagesJSON   []byte
		validationJSON  []byte
		sourceID        sql.NullString
		defaultLanguage sql.NullString
	)

	err := scanner.Scan(
		&flow.RoutingID,
		&flow.ChangeSetID,
		&flow.InitSegment,
		&hooksJSON,
		&sourceID,
		&languagesJSON,
		&defaultLanguage,
		&validationJSON,
		&flow.CreatedAt,
		&flow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	flow.SourceID = sourceID.String
	flow.DefaultLanguage = defaultLanguage.String

	if hooksJSON != nil {
		if err := json.Unmarshal(hooksJSON, &flow.Hooks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal hooks: %w", err)
		}
	}

	if languagesJSON != nil {
		if err := json.Unmarshal(languagesJSON, &flow.SupportedLanguages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal supported languages: %w", err)
		}
	}

	if validationJSON != nil {
		if err := json.Unmarshal(validationJSON, &flow.Validation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal validation: %w", err)
		}
	}

	return &flow, nil
}
