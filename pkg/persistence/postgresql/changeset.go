package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/persistence"
)

// ChangeSetRepository handles change-set database operations. The draft
// copy and the publish swap run as single transactions over the flow and
// segment rows they move.
type ChangeSetRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewChangeSetRepository creates a new change-set repository.
func NewChangeSetRepository(db *sql.DB, logger *slog.Logger) *ChangeSetRepository {
	return &ChangeSetRepository{db: db, logger: logger}
}

// GetChangeSet returns one change set by its identifiers.
func (r *ChangeSetRepository) GetChangeSet(ctx context.Context, routingID, changeSetID string) (*models.ChangeSet, error) {
	query := `
		SELECT
			routing_id
		  , change_set_id
		  , status
		  , created_by
		  , created_at
		  , published_at
		  , discarded_at
		FROM change_sets
		WHERE routing_id = $1 AND change_set_id = $2
	`

	row := r.db.QueryRowContext(ctx, query, routingID, changeSetID)

	changeSet, err := scanChangeSet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewChangeSetError("GetChangeSet", routingID, changeSetID,
				persistence.ErrChangeSetNotFound)
		}

		return nil, persistence.NewChangeSetError("GetChangeSet", routingID, changeSetID, err)
	}

	return changeSet, nil
}

// ListChangeSets returns all change sets of a routing, newest first.
func (r *ChangeSetRepository) ListChangeSets(ctx context.Context, routingID string) ([]*models.ChangeSet, error) {
	query := `
		SELECT
			routing_id
		  , change_set_id
		  , status
		  , created_by
		  , created_at
		  , published_at
		  , discarded_at
		FROM change_sets
		WHERE routing_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, routingID)
	if err != nil {
		return nil, persistence.NewChangeSetError("ListChangeSets", routingID, "",
			fmt.Errorf("failed to query change sets: %w", err))
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	changeSets := make([]*models.ChangeSet, 0)

	for rows.Next() {
		changeSet, err := scanChangeSet(rows)
		if err != nil {
			return nil, persistence.NewChangeSetError("ListChangeSets", routingID, "",
				fmt.Errorf("failed to scan change set: %w", err))
		}

		changeSets = append(changeSets, changeSet)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewChangeSetError("ListChangeSets", routingID, "",
			fmt.Errorf("error iterating change sets: %w", err))
	}

	return changeSets, nil
}

// CreateDraft copies the published flow of routingID into a new draft
// scope and records the change set, all in one transaction.
func (r *ChangeSetRepository) CreateDraft(ctx context.Context, routingID, changeSetID, createdBy string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewChangeSetError("CreateDraft", routingID, changeSetID,
			fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists bool

	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM change_sets WHERE routing_id = $1 AND change_set_id = $2)",
		routingID, changeSetID).Scan(&exists)
	if err != nil {
		return persistence.NewChangeSetError("CreateDraft", routingID, changeSetID,
			fmt.Errorf("failed to check change set existence: %w", err))
	}

	if exists {
		err = persistence.ErrChangeSetAlreadyExists

		return persistence.NewChangeSetError("CreateDraft", routingID, changeSetID, err)
	}

	var one int

	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM flows WHERE routing_id = $1 AND change_set_id = '' FOR SHARE",
		routingID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.ErrFlowNotFound
		}

		return persistence.NewChangeSetError("CreateDraft", routingID, changeSetID, err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO change_sets (routing_id, change_set_id, status, created_by, created_at) VALUES ($1, $2, $3, NULLIF($4, ''), NOW())",
		routingID, changeSetID, models.ChangeSetStatusDraft, createdBy)
	if err != nil {
		return persistence.NewChangeSetError("CreateDraft", routingID, changeSetID,
			fmt.Errorf("failed to record change set: %w", err))
	}

	if err = copyScope(ctx, tx, routingID, "", changeSetID, true); err != nil {
		return persistence.NewChangeSetError("CreateDraft", routingID, changeSetID, err)
	}

	if err = tx.Commit(); err != nil {
		return persistence.NewChangeSetError("CreateDraft", routingID, changeSetID,
			fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// PublishDraft atomically replaces the published scope with the draft's
// content, drops the draft rows and marks the change set published.
func (r *ChangeSetRepository) PublishDraft(ctx context.Context, routingID, changeSetID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewChangeSetError("PublishDraft", routingID, changeSetID,
			fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = requireDraft(ctx, tx, routingID, changeSetID); err != nil {
		return persistence.NewChangeSetError("PublishDraft", routingID, changeSetID, err)
	}

	var one int

	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM flows WHERE routing_id = $1 AND change_set_id = $2 FOR UPDATE",
		routingID, changeSetID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.ErrFlowNotFound
		}

		return persistence.NewChangeSetError("PublishDraft", routingID, changeSetID, err)
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM flows WHERE routing_id = $1 AND change_set_id = ''", routingID)
	if err != nil {
		return persistence.NewChangeSetError("PublishDraft", routingID, changeSetID,
			fmt.Errorf("failed to replace published flow: %w", err))
	}

	if err = copyScope(ctx, tx, routingID, changeSetID, "", false); err != nil {
		return persistence.NewChangeSetError("PublishDraft", routingID, changeSetID, err)
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM flows WHERE routing_id = $1 AND change_set_id = $2", routingID, changeSetID)
	if err != nil {
		return persistence.NewChangeSetError("PublishDraft", routingID, changeSetID,
			fmt.Errorf("failed to delete draft flow: %w", err))
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE change_sets SET status = $1, published_at = NOW() WHERE routing_id = $2 AND change_set_id = $3",
		models.ChangeSetStatusPublished, routingID, changeSetID)
	if err != nil {
		return persistence.NewChangeSetError("PublishDraft", routingID, changeSetID,
			fmt.Errorf("failed to mark change set published: %w", err))
	}

	if err = tx.Commit(); err != nil {
		return persistence.NewChangeSetError("PublishDraft", routingID, changeSetID,
			fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// DiscardDraft deletes the draft's rows and marks the change set
// discarded. The published flow is untouched.
func (r *ChangeSetRepository) DiscardDraft(ctx context.Context, routingID, changeSetID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewChangeSetError("DiscardDraft", routingID, changeSetID,
			fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = requireDraft(ctx, tx, routingID, changeSetID); err != nil {
		return persistence.NewChangeSetError("DiscardDraft", routingID, changeSetID, err)
	}

	// A draft without flow rows is legal here: discarding must succeed
	// even if the draft copy was deleted out of band.
	_, err = tx.ExecContext(ctx,
		"DELETE FROM flows WHERE routing_id = $1 AND change_set_id = $2", routingID, changeSetID)
	if err != nil {
		return persistence.NewChangeSetError("DiscardDraft", routingID, changeSetID,
			fmt.Errorf("failed to delete draft flow: %w", err))
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE change_sets SET status = $1, discarded_at = NOW() WHERE routing_id = $2 AND change_set_id = $3",
		models.ChangeSetStatusDiscarded, routingID, changeSetID)
	if err != nil {
		return persistence.NewChangeSetError("DiscardDraft", routingID, changeSetID,
			fmt.Errorf("failed to mark change set discarded: %w", err))
	}

	if err = tx.Commit(); err != nil {
		return persistence.NewChangeSetError("DiscardDraft", routingID, changeSetID,
			fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// requireDraft locks the change-set row and verifies it is still a draft.
func requireDraft(ctx context.Context, tx *sql.Tx, routingID, changeSetID string) error {
	var status models.ChangeSetStatus

	err := tx.QueryRowContext(ctx,
		"SELECT status FROM change_sets WHERE routing_id = $1 AND change_set_id = $2 FOR UPDATE",
		routingID, changeSetID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ErrChangeSetNotFound
		}

		return fmt.Errorf("failed to load change set: %w", err)
	}

	if status != models.ChangeSetStatusDraft {
		return fmt.Errorf("%w: status is %s", persistence.ErrChangeSetNotDraft, status)
	}

	return nil
}

// copyScope copies the flow row and its segments from one scope of a
// routing to another, entirely inside the database. freshTimestamps
// resets created_at for copy-on-write draft creation; the publish swap
// keeps the draft's timestamps instead.
func copyScope(ctx context.Context, tx *sql.Tx, routingID, fromChangeSetID, toChangeSetID string, freshTimestamps bool) error {
	createdAt := "created_at"
	if freshTimestamps {
		createdAt = "NOW()"
	}

	flowQuery := fmt.Sprintf(`
		INSERT INTO flows (routing_id, change_set_id, init_segment, hooks,
			source_id, supported_languages, default_language, validation, created_at, updated_at)
		SELECT routing_id, $1, init_segment, hooks,
			source_id, supported_languages, default_language, validation, %s, NOW()
		FROM flows
		WHERE routing_id = $2 AND change_set_id = $3
	`, createdAt)

	result, err := tx.ExecContext(ctx, flowQuery, toChangeSetID, routingID, fromChangeSetID)
	if err != nil {
		return fmt.Errorf("failed to copy flow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrFlowNotFound
	}

	segmentsQuery := fmt.Sprintf(`
		INSERT INTO segments (routing_id, change_set_id, segment_name, segment_type,
			display_name, config, transitions, hooks, is_active, is_terminal,
			segment_order, position, ui_state, created_at, updated_at)
		SELECT routing_id, $1, segment_name, segment_type,
			display_name, config, transitions, hooks, is_active, is_terminal,
			segment_order, position, ui_state, %s, NOW()
		FROM segments
		WHERE routing_id = $2 AND change_set_id = $3
	`, createdAt)

	_, err = tx.ExecContext(ctx, segmentsQuery, toChangeSetID, routingID, fromChangeSetID)
	if err != nil {
		return fmt.Errorf("failed to copy segments: %w", err)
	}

	return nil
}

func scanChangeSet(scanner interface {
	Scan(dest ...any) error
}) (*models.ChangeSet, error) {
	var (
		changeSet   models.ChangeSet
		createdBy   sql.NullString
		publishedAt sql.NullTime
		discardedAt sql.NullTime
	)

	err := scanner.Scan(
		&changeSet.RoutingID,
		&changeSet.ChangeSetID,
		&changeSet.Status,
		&createdBy,
		&changeSet.CreatedAt,
		&publishedAt,
		&discardedAt,
	)
	if err != nil {
		return nil, err
	}

	changeSet.CreatedBy = createdBy.String

	if publishedAt.Valid {
		t := publishedAt.Time
		changeSet.PublishedAt = &t
	}

	if discardedAt.Valid {
		t := discardedAt.Time
		changeSet.DiscardedAt = &t
	}

	return &changeSet, nil
}
