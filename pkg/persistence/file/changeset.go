package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/persistence"
)

// ChangeSetRepository handles change-set envelopes and the draft
// lifecycle for the file backend.
type ChangeSetRepository struct {
	root     string
	mu       *sync.Mutex
	flowRepo *FlowRepository
}

// NewChangeSetRepository creates a change set repository.
func NewChangeSetRepository(root string, mu *sync.Mutex, flowRepo *FlowRepository) *ChangeSetRepository {
	return &ChangeSetRepository{root: root, mu: mu, flowRepo: flowRepo}
}

func (r *ChangeSetRepository) listPath(routingID string) string {
	return filepath.Join(r.root, "changesets", routingID+".json")
}

func (r *ChangeSetRepository) loadLocked(routingID string) ([]*models.ChangeSet, error) {
	var changeSets []*models.ChangeSet

	err := readJSON(r.listPath(routingID), &changeSets)
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.ChangeSet{}, nil
		}

		return nil, err
	}

	return changeSets, nil
}

func (r *ChangeSetRepository) saveLocked(routingID string, changeSets []*models.ChangeSet) error {
	return writeJSON(r.listPath(routingID), changeSets)
}

func findChangeSet(changeSets []*models.ChangeSet, changeSetID string) *models.ChangeSet {
	for _, changeSet := range changeSets {
		if changeSet.ChangeSetID == changeSetID {
			return changeSet
		}
	}

	return nil
}

// GetChangeSet returns one change set envelope.
func (r *ChangeSetRepository) GetChangeSet(_ context.Context, routingID, changeSetID string) (*models.ChangeSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changeSets, err := r.loadLocked(routingID)
	if err != nil {
		return nil, persistence.NewChangeSetError("GetChangeSet", routingID, changeSetID, err)
	}

	changeSet := findChangeSet(changeSets, changeSetID)
	if changeSet == nil {
		return nil, persistence.NewChangeSetError("GetChangeSet", routingID, changeSetID,
			persistence.ErrChangeSetNotFound)
	}

	return changeSet, nil
}

// ListChangeSets returns all change sets of a routing, newest first.
func (r *ChangeSetRepository) ListChangeSets(_ context.Context, routingID string) ([]*models.ChangeSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changeSets, err := r.loadLocked(routingID)
	if err != nil {
		return nil, persistence.NewChangeSetError("ListChangeSets", routingID, "", err)
	}

	for i, j := 0, len(changeSets)-1; i < j; i, j = i+1, j-1 {
		changeSets[i], changeSets[j] = changeSets[j], changeSets[i]
	}

	return changeSets, nil
}

// CreateDraft copies the published flow into a new draft scope.
func (r *ChangeSetRepository) CreateDraft(_ context.Context, routingID, changeSetID, createdBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	changeSets, err := r.loadLocked(routingID)
	if err != nil {
		return persistence.NewChangeSetError("CreateDraft", routingID, changeSetID, err)
	}

	if findChangeSet(changeSets, changeSetID) != nil {
		return persistence.NewChangeSetError("CreateDraft", routingID, changeSetID,
			persistence.ErrChangeSetAlreadyExists)
	}

	published, err := r.flowRepo.getFlowLocked(persistence.Scope{RoutingID: routingID})
	if err != nil {
		return err
	}

	draft := published.Clone()
	draft.ChangeSetID = changeSetID
	draft.CreatedAt = time.Time{}

	if err := r.flowRepo.saveFlowLocked(draft); err != nil {
		return err
	}

	changeSets = append(changeSets, &models.ChangeSet{
		ChangeSetID: changeSetID,
		RoutingID:   routingID,
		Status:      models.ChangeSetStatusDraft,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
	})

	if err := r.saveLocked(routingID, changeSets); err != nil {
		return persistence.NewChangeSetError("CreateDraft", routingID, changeSetID, err)
	}

	return nil
}

// PublishDraft promotes the draft flow into the published scope. The
// published document is replaced by a single rename, so readers see
// either the old flow or the new one, never a mix.
func (r *ChangeSetRepository) PublishDraft(_ context.Context, routingID, changeSetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	changeSets, err := r.loadLocked(routingID)
	if err != nil {
		return persistence.NewChangeSetError("PublishDraft", routingID, changeSetID, err)
	}

	changeSet := findChangeSet(changeSets, changeSetID)
	if changeSet == nil {
		return persistence.NewChangeSetError("PublishDraft", routingID, changeSetID,
			persistence.ErrChangeSetNotFound)
	}

	if !changeSet.IsDraft() {
		return persistence.NewChangeSetError("PublishDraft", routingID, changeSetID,
			persistence.ErrChangeSetNotDraft)
	}

	draftScope := persistence.Scope{RoutingID: routingID, ChangeSetID: changeSetID}

	draft, err := r.flowRepo.getFlowLocked(draftScope)
	if err != nil {
		return err
	}

	published := draft.Clone()
	published.ChangeSetID = ""

	if err := r.flowRepo.saveFlowLocked(published); err != nil {
		return err
	}

	if err := r.flowRepo.deleteFlowLocked(draftScope); err != nil {
		return err
	}

	now := time.Now().UTC()
	changeSet.Status = models.ChangeSetStatusPublished
	changeSet.PublishedAt = &now

	if err := r.saveLocked(routingID, changeSets); err != nil {
		return persistence.NewChangeSetError("PublishDraft", routingID, changeSetID, err)
	}

	return nil
}

// DiscardDraft deletes the draft flow and marks the change set discarded.
func (r *ChangeSetRepository) DiscardDraft(_ context.Context, routingID, changeSetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	changeSets, err := r.loadLocked(routingID)
	if err != nil {
		return persistence.NewChangeSetError("DiscardDraft", routingID, changeSetID, err)
	}

	changeSet := findChangeSet(changeSets, changeSetID)
	if changeSet == nil {
		return persistence.NewChangeSetError("DiscardDraft", routingID, changeSetID,
			persistence.ErrChangeSetNotFound)
	}

	if !changeSet.IsDraft() {
		return persistence.NewChangeSetError("DiscardDraft", routingID, changeSetID,
			persistence.ErrChangeSetNotDraft)
	}

	draftScope := persistence.Scope{RoutingID: routingID, ChangeSetID: changeSetID}

	if err := r.flowRepo.deleteFlowLocked(draftScope); err != nil && !persistence.IsFlowNotFound(err) {
		return err
	}

	now := time.Now().UTC()
	changeSet.Status = models.ChangeSetStatusDiscarded
	changeSet.DiscardedAt = &now

	if err := r.saveLocked(routingID, changeSets); err != nil {
		return persistence.NewChangeSetError("DiscardDraft", routingID, changeSetID, err)
	}

	return nil
}
