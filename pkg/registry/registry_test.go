package registry_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/models"
	"github.com/MertensMattias/routing-data-layer-doc-sub003/pkg/registry"
)

const testDefinitions = `
segment_types:
  - type: announcement
    display_name: Announcement
    description: Plays a prompt to the caller
    default_transitions: [default]
    config_schema:
      type: object
      required: [prompt]
      properties:
        prompt:
          type: string
        barge_in:
          type: boolean
  - type: menu
    display_name: Menu
    default_transitions: [default, timeout, no_match]
    config_schema:
      type: object
      required: [prompt]
      properties:
        prompt:
          type: string
        max_retries:
          type: integer
          minimum: 0
  - type: hangup
    display_name: Hang Up
    terminal: true
`

func writeDefinitions(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "segment_types.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func newTestRegistry(t *testing.T, content string) *registry.Registry {
	t.Helper()

	r, err := registry.NewRegistry(slog.Default(), writeDefinitions(t, content))
	require.NoError(t, err)

	return r
}

func TestNewRegistry_LoadsDefinitions(t *testing.T) {
	r := newTestRegistry(t, testDefinitions)

	defs := r.Definitions()
	require.Len(t, defs, 3)

	// Definitions keep file order.
	assert.Equal(t, "announcement", defs[0].Type)
	assert.Equal(t, "menu", defs[1].Type)
	assert.Equal(t, "hangup", defs[2].Type)

	menu, ok := r.Definition("menu")
	require.True(t, ok)
	assert.Equal(t, "Menu", menu.DisplayName)
	assert.Equal(t, []string{"default", "timeout", "no_match"}, menu.DefaultTransitions)
	assert.False(t, menu.Terminal)

	hangup, ok := r.Definition("hangup")
	require.True(t, ok)
	assert.True(t, hangup.Terminal)

	_, ok = r.Definition("nonexistent")
	assert.False(t, ok)
}

func TestNewRegistry_MissingFile(t *testing.T) {
	_, err := registry.NewRegistry(slog.Default(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewRegistry_DuplicateType(t *testing.T) {
	_, err := registry.NewRegistry(slog.Default(), writeDefinitions(t, `
segment_types:
  - type: menu
  - type: menu
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate segment type")
}

func TestValidateConfig(t *testing.T) {
	r := newTestRegistry(t, testDefinitions)

	err := r.ValidateConfig("announcement", []models.ConfigItem{
		{Key: "prompt", Value: "welcome.wav"},
		{Key: "barge_in", Value: true},
	})
	assert.NoError(t, err)

	// Missing required key.
	err = r.ValidateConfig("announcement", []models.ConfigItem{
		{Key: "barge_in", Value: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt")

	// Wrong value type.
	err = r.ValidateConfig("menu", []models.ConfigItem{
		{Key: "prompt", Value: "menu.wav"},
		{Key: "max_retries", Value: "three"},
	})
	assert.Error(t, err)

	// Types without a schema accept anything.
	err = r.ValidateConfig("hangup", []models.ConfigItem{
		{Key: "whatever", Value: 42},
	})
	assert.NoError(t, err)

	err = r.ValidateConfig("nonexistent", nil)
	assert.ErrorIs(t, err, registry.ErrUnknownSegmentType)
}

func TestReload_PicksUpChanges(t *testing.T) {
	path := writeDefinitions(t, testDefinitions)

	r, err := registry.NewRegistry(slog.Default(), path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`
segment_types:
  - type: survey
    display_name: Survey
`), 0o600))

	require.NoError(t, r.Reload())

	_, ok := r.Definition("announcement")
	assert.False(t, ok)

	survey, ok := r.Definition("survey")
	require.True(t, ok)
	assert.Equal(t, "Survey", survey.DisplayName)
}

func TestReload_KeepsOldDefinitionsOnFailure(t *testing.T) {
	path := writeDefinitions(t, testDefinitions)

	r, err := registry.NewRegistry(slog.Default(), path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("segment_types: [this is: not: valid"), 0o600))

	require.Error(t, r.Reload())

	// The previous definition set survives a failed reload.
	_, ok := r.Definition("menu")
	assert.True(t, ok)
}
