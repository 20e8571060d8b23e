package models

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegment_Validation(t *testing.T) {
	validate := validator.New()

	t.Run("valid segment", func(t *testing.T) {
		segment := &Segment{
			SegmentName: "greeting",
			SegmentType: "menu",
			DisplayName: "Greeting",
			IsActive:    true,
		}

		require.NoError(t, validate.Struct(segment))
	})

	t.Run("missing segment name", func(t *testing.T) {
		segment := &Segment{SegmentType: "menu"}

		err := validate.Struct(segment)
		require.Error(t, err)

		var validationErrors validator.ValidationErrors
		require.ErrorAs(t, err, &validationErrors)
		assert.Equal(t, "SegmentName", validationErrors[0].Field())
	})

	t.Run("missing segment type", func(t *testing.T) {
		segment := &Segment{SegmentName: "greeting"}

		err := validate.Struct(segment)
		require.Error(t, err)
	})
}

func TestFlow_SegmentByName(t *testing.T) {
	flow := &Flow{
		RoutingID: "ivr-main",
		Segments: []*Segment{
			{SegmentName: "greeting", SegmentType: "menu"},
			{SegmentName: "queue", SegmentType: "queue"},
		},
	}

	segment, ok := flow.SegmentByName("queue")
	require.True(t, ok)
	assert.Equal(t, "queue", segment.SegmentType)

	// Dangling name references resolve to a missing segment, not a panic.
	_, ok = flow.SegmentByName("deleted")
	assert.False(t, ok)
}

func TestFlow_Clone(t *testing.T) {
	x, y := 120.0, 340.0
	flow := &Flow{
		RoutingID:   "ivr-main",
		ChangeSetID: "cs-1",
		InitSegment: "greeting",
		Hooks:       map[string]string{"on_enter": "play_tone"},
		Segments: []*Segment{
			{
				SegmentName: "greeting",
				SegmentType: "menu",
				Config:      []ConfigItem{{Key: "prompt", Value: "welcome"}},
				Transitions: []Transition{
					{
						ResultName: "complete",
						Outcome:    TransitionOutcome{NextSegment: "queue", Params: map[string]any{"priority": 1}},
					},
				},
				UIState: &UIState{PositionX: &x, PositionY: &y, Collapsed: true},
			},
		},
	}

	clone := flow.Clone()
	require.Equal(t, flow, clone)

	// Mutating the clone must not leak into the original.
	clone.Segments[0].Config[0].Value = "changed"
	clone.Segments[0].Transitions[0].Outcome.NextSegment = "voicemail"
	*clone.Segments[0].UIState.PositionX = 999
	clone.Hooks["on_enter"] = "silence"

	assert.Equal(t, "welcome", flow.Segments[0].Config[0].Value)
	assert.Equal(t, "queue", flow.Segments[0].Transitions[0].Outcome.NextSegment)
	assert.Equal(t, 120.0, *flow.Segments[0].UIState.PositionX)
	assert.Equal(t, "play_tone", flow.Hooks["on_enter"])
}

func TestSegment_CloneDetachesConfigValues(t *testing.T) {
	segment := &Segment{
		SegmentName: "greeting",
		SegmentType: "menu",
		Config: []ConfigItem{
			{Key: "tts", Value: map[string]any{"voice": "emma", "speed": 1.5}},
			{Key: "retries", Value: []any{"1", "2"}},
		},
	}

	clone := segment.Clone()
	require.Equal(t, segment, clone)

	// In-place edits of a composite value must not reach the clone.
	segment.Config[0].Value.(map[string]any)["voice"] = "brian"
	segment.Config[1].Value.([]any)[0] = "9"

	assert.Equal(t, "emma", clone.Config[0].Value.(map[string]any)["voice"])
	assert.Equal(t, "1", clone.Config[1].Value.([]any)[0])
}

func TestSegment_MergedHooks(t *testing.T) {
	segment := &Segment{
		SegmentName: "queue",
		SegmentType: "queue",
		Hooks:       map[string]string{"on_enter": "announce_position"},
	}

	merged := segment.MergedHooks(map[string]string{
		"on_enter": "play_tone",
		"on_exit":  "log_exit",
	})

	// Instance wins over flow-level defaults.
	assert.Equal(t, "announce_position", merged["on_enter"])
	assert.Equal(t, "log_exit", merged["on_exit"])
}

func TestSegment_TransitionByResult(t *testing.T) {
	segment := &Segment{
		SegmentName: "menu",
		Transitions: []Transition{
			{ResultName: "1", Outcome: TransitionOutcome{NextSegment: "sales"}},
			{ResultName: DefaultResultName, IsDefault: true},
		},
	}

	transition, ok := segment.TransitionByResult(DefaultResultName)
	require.True(t, ok)
	assert.True(t, transition.IsDefault)

	_, ok = segment.TransitionByResult("9")
	assert.False(t, ok)
}

func TestUIState_HasPosition(t *testing.T) {
	x := 10.0

	assert.False(t, (*UIState)(nil).HasPosition())
	assert.False(t, (&UIState{}).HasPosition())
	assert.False(t, (&UIState{PositionX: &x}).HasPosition())
	assert.True(t, (&UIState{PositionX: &x, PositionY: &x}).HasPosition())
}

func TestSegment_ConfigOrderSurvivesRoundTrip(t *testing.T) {
	segment := &Segment{
		SegmentName: "menu",
		SegmentType: "menu",
		Config: []ConfigItem{
			{Key: "prompt", Value: "main_menu"},
			{Key: "timeout", Value: float64(5)},
			{Key: "retries", Value: float64(3)},
		},
	}

	payload, err := json.Marshal(segment)
	require.NoError(t, err)

	var decoded Segment
	require.NoError(t, json.Unmarshal(payload, &decoded))

	keys := make([]string, 0, len(decoded.Config))
	for _, item := range decoded.Config {
		keys = append(keys, item.Key)
	}

	assert.Equal(t, []string{"prompt", "timeout", "retries"}, keys)
}
