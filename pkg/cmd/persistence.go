// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/persistence"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/persistence/file"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/persistence/postgresql"
)

// NewPersistence selects a storage backend from the database URL:
// postgres:// or postgresql:// URLs get the PostgreSQL backend,
// anything else is treated as a directory path for the file backend.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to initialize postgresql persistence: %w", err))
		}

		return p
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))
	}
}
