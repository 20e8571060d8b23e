// Package registry loads segment-type definitions and validates segment
// configuration against their schemas. Definitions live in a YAML file
// that can be hot reloaded, so new segment types reach the editor
// without a redeploy.
package registry

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
)

// SegmentTypeDef describes one segment type the editor can place:
// presentation metadata, the result names a fresh segment starts with and
// the JSON schema its config must satisfy.
type SegmentTypeDef struct {
	Type               string         `json:"type"                          yaml:"type"`
	DisplayName        string         `json:"display_name"                  yaml:"display_name"`
	Description        string         `json:"description,omitempty"         yaml:"description"`
	Terminal           bool           `json:"terminal"                      yaml:"terminal"`
	DefaultTransitions []string       `json:"default_transitions,omitempty" yaml:"default_transitions"`
	ConfigSchema       map[string]any `json:"config_schema,omitempty"       yaml:"config_schema"`
}

type definitionsFile struct {
	SegmentTypes []SegmentTypeDef `yaml:"segment_types"`
}

// ErrUnknownSegmentType indicates a segment references a type the
// registry does not know.
var ErrUnknownSegmentType = fmt.Errorf("unknown segment type")

// Registry holds the current segment-type definitions. It is safe for
// concurrent use; a reload swaps the definition set atomically.
type Registry struct {
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	defs    map[string]SegmentTypeDef
	ordered []SegmentTypeDef
	watcher *fsnotify.Watcher
}

// NewRegistry creates a registry and performs the initial load.
func NewRegistry(logger *slog.Logger, path string) (*Registry, error) {
	r := &Registry{
		path:   path,
		logger: logger,
	}

	if err := r.Reload(); err != nil {
		return nil, err
	}

	return r, nil
}

// Definitions returns all segment-type definitions in file order.
func (r *Registry) Definitions() []SegmentTypeDef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]SegmentTypeDef, len(r.ordered))
	copy(result, r.ordered)

	return result
}

// Definition returns one segment-type definition by type name.
func (r *Registry) Definition(segmentType string) (SegmentTypeDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[segmentType]

	return def, ok
}

// ValidateConfig validates a segment's ordered config against the JSON
// schema of its type. Types without a schema accept any config.
func (r *Registry) ValidateConfig(segmentType string, config []models.ConfigItem) error {
	def, ok := r.Definition(segmentType)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSegmentType, segmentType)
	}

	if def.ConfigSchema == nil {
		return nil
	}

	// The schema addresses config by key; order is an editor concern the
	// schema never sees.
	configMap := make(map[string]any, len(config))
	for _, item := range config {
		configMap[item.Key] = item.Value
	}

	schemaLoader := gojsonschema.NewGoLoader(def.ConfigSchema)
	dataLoader := gojsonschema.NewGoLoader(configMap)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate config for %s: %w", segmentType, err)
	}

	if !result.Valid() {
		var errors []string
		for _, resultError := range result.Errors() {
			errors = append(errors, resultError.String())
		}

		return fmt.Errorf("config validation failed for %s: %s", segmentType, strings.Join(errors, "; "))
	}

	return nil
}

// Reload forces an immediate re-read of the definitions file.
func (r *Registry) Reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("failed to read segment type definitions %s: %w", r.path, err)
	}

	var file definitionsFile

	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse segment type definitions %s: %w", r.path, err)
	}

	defs := make(map[string]SegmentTypeDef, len(file.SegmentTypes))

	for _, def := range file.SegmentTypes {
		if def.Type == "" {
			return fmt.Errorf("segment type definition without a type name in %s", r.path)
		}

		if _, exists := defs[def.Type]; exists {
			return fmt.Errorf("duplicate segment type definition %s in %s", def.Type, r.path)
		}

		defs[def.Type] = def
	}

	r.mu.Lock()
	r.defs = defs
	r.ordered = file.SegmentTypes
	r.mu.Unlock()

	return nil
}

// Watch starts a background goroutine that hot-reloads the definitions
// on file changes. A failed reload keeps the previous definitions. Call
// the returned stop function to clean up.
func (r *Registry) Watch() (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create definitions watcher: %w", err)
	}

	if err := watcher.Add(r.path); err != nil {
		_ = watcher.Close()

		return nil, fmt.Errorf("failed to watch %s: %w", r.path, err)
	}

	r.watcher = watcher

	done := make(chan struct{})

	go func() {
		defer func() {
			_ = watcher.Close()
		}()

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					if err := r.Reload(); err != nil {
						r.logger.Error("Failed to reload segment type definitions", "error", err)

						continue
					}

					r.logger.Info("Reloaded segment type definitions", "path", r.path)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				r.logger.Error("Definitions watcher error", "error", err)
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}
