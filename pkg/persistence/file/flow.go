package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/diff"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/persistence"
)

// FlowRepository handles flow file operations.
type FlowRepository struct {
	root string
	mu   *sync.Mutex
}

// NewFlowRepository creates a flow repository rooted at root.
func NewFlowRepository(root string, mu *sync.Mutex) *FlowRepository {
	return &FlowRepository{root: root, mu: mu}
}

func (r *FlowRepository) flowPath(scope persistence.Scope) string {
	if scope.Published() {
		return filepath.Join(r.root, "published", scope.RoutingID+".json")
	}

	return filepath.Join(r.root, "drafts", scope.RoutingID, scope.ChangeSetID+".json")
}

// GetFlow loads the flow of one scope.
func (r *FlowRepository) GetFlow(_ context.Context, scope persistence.Scope) (*models.Flow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.getFlowLocked(scope)
}

func (r *FlowRepository) getFlowLocked(scope persistence.Scope) (*models.Flow, error) {
	var flow models.Flow

	err := readJSON(r.flowPath(scope), &flow)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewFlowError("GetFlow", scope, persistence.ErrFlowNotFound)
		}

		return nil, persistence.NewFlowError("GetFlow", scope, err)
	}

	return &flow, nil
}

// SaveFlow writes a complete flow into its scope.
func (r *FlowRepository) SaveFlow(_ context.Context, flow *models.Flow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.saveFlowLocked(flow)
}

func (r *FlowRepository) saveFlowLocked(flow *models.Flow) error {
	scope := persistence.Scope{RoutingID: flow.RoutingID, ChangeSetID: flow.ChangeSetID}

	now := time.Now().UTC()
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	if err := writeJSON(r.flowPath(scope), flow); err != nil {
		return persistence.NewFlowError("SaveFlow", scope, err)
	}

	return nil
}

// DeleteFlow removes a scope entirely.
func (r *FlowRepository) DeleteFlow(_ context.Context, scope persistence.Scope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.deleteFlowLocked(scope)
}

func (r *FlowRepository) deleteFlowLocked(scope persistence.Scope) error {
	err := os.Remove(r.flowPath(scope))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewFlowError("DeleteFlow", scope, persistence.ErrFlowNotFound)
		}

		return persistence.NewFlowError("DeleteFlow", scope, err)
	}

	return nil
}

// ApplyBatch loads the scope's flow, applies the operations in order and
// writes the result back. The rename-based write makes the batch all or
// nothing for readers.
func (r *FlowRepository) ApplyBatch(_ context.Context, scope persistence.Scope, operations []diff.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	flow, err := r.getFlowLocked(scope)
	if err != nil {
		return err
	}

	if err := diff.Apply(flow, operations); err != nil {
		return persistence.NewFlowError("ApplyBatch", scope, translateApplyError(err))
	}

	return r.saveFlowLocked(flow)
}

// UpdateSegmentOrder applies bulk ordering to the published flow.
func (r *FlowRepository) UpdateSegmentOrder(_ context.Context, routingID string, orders []persistence.SegmentOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	scope := persistence.Scope{RoutingID: routingID}

	flow, err := r.getFlowLocked(scope)
	if err != nil {
		return err
	}

	for _, order := range orders {
		segment, ok := flow.SegmentByName(order.SegmentName)
		if !ok {
			return persistence.NewFlowError("UpdateSegmentOrder", scope,
				fmt.Errorf("%s: %w", order.SegmentName, persistence.ErrSegmentNotFound))
		}

		segment.SegmentOrder = order.SegmentOrder
	}

	return r.saveFlowLocked(flow)
}

// translateApplyError maps diff apply errors onto persistence sentinels
// so callers can branch without importing the diff package.
func translateApplyError(err error) error {
	switch {
	case errors.Is(err, diff.ErrSegmentExists):
		return fmt.Errorf("%w: %v", persistence.ErrSegmentAlreadyExists, err)
	case errors.Is(err, diff.ErrSegmentNotFound):
		return fmt.Errorf("%w: %v", persistence.ErrSegmentNotFound, err)
	default:
		return err
	}
}
