// Package file provides file-based persistence for flows and change sets.
//
// Intended for development and tests: each scope is one JSON document,
// written atomically via rename. A single process-wide mutex serializes
// read-modify-write cycles; the authoring model assumes one editor per
// scope, so contention is not a concern here.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root          string
	flowRepo      *FlowRepository
	changeSetRepo *ChangeSetRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	mu := &sync.Mutex{}

	flowRepo := NewFlowRepository(cleanRoot, mu)

	return &Persistence{
		root:          cleanRoot,
		flowRepo:      flowRepo,
		changeSetRepo: NewChangeSetRepository(cleanRoot, mu, flowRepo),
	}
}

// FlowRepository returns the flow repository.
func (p *Persistence) FlowRepository() persistence.FlowRepository {
	return p.flowRepo
}

// ChangeSetRepository returns the change set repository.
func (p *Persistence) ChangeSetRepository() persistence.ChangeSetRepository {
	return p.changeSetRepo
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup; nothing to do for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// writeJSON writes a document atomically: marshal, write a temp file in
// the target directory, rename over the destination.
func writeJSON(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to replace document: %w", err)
	}

	return nil
}

func readJSON(path string, value any) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(payload, value); err != nil {
		return fmt.Errorf("failed to unmarshal document %s: %w", path, err)
	}

	return nil
}
