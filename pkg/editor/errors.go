package editor

import "errors"

// Contract-breach and gating errors of the editing session. These fail
// loudly: each one means the caller asked for something the session
// state cannot honor, not a storage problem.
var (
	ErrNoFlowLoaded       = errors.New("no flow loaded in session")
	ErrSegmentExists      = errors.New("segment already exists")
	ErrSegmentNotFound    = errors.New("segment not found")
	ErrDeleteInitSegment  = errors.New("cannot delete the init segment")
	ErrTransitionExists   = errors.New("transition with this result name already exists")
	ErrTransitionNotFound = errors.New("transition not found")
	ErrSaveInFlight       = errors.New("a save is already in flight")
	ErrPublishInFlight    = errors.New("a publish is already in flight")
	ErrUnsavedChanges     = errors.New("unsaved changes present")
	ErrNotDraft           = errors.New("session is not editing a draft")
)
