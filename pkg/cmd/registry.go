package cmd

import (
	"fmt"
	"log/slog"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/registry"
)

// NewRegistry loads the segment-type catalog from a YAML file and starts
// watching it for hot reload. An empty path disables the registry:
// segment-type validation is skipped entirely.
func NewRegistry(logger *slog.Logger, definitionsPath string) (*registry.Registry, func()) {
	if definitionsPath == "" {
		return nil, func() {}
	}

	reg, err := registry.NewRegistry(logger, definitionsPath)
	if err != nil {
		panic(fmt.Errorf("failed to load segment type definitions: %w", err))
	}

	stop, err := reg.Watch()
	if err != nil {
		panic(fmt.Errorf("failed to watch segment type definitions: %w", err))
	}

	return reg, stop
}
