package store

import "time"

// Store defines the interface for checkpoint persistence. Implementations
// must be safe for concurrent use and must save atomically, so a crash
// mid-write never leaves a record that parses as valid but wrong.
//
// Error conventions:
//   - nil on success
//   - NotFoundError when no checkpoint exists (Load/Delete)
//   - wrapped descriptive errors for I/O and parse failures
type Store interface {
	// SaveCheckpoint atomically writes the checkpoint for a run,
	// overwriting any previous record.
	SaveCheckpoint(runID string, checkpoint *Checkpoint) error

	// LoadCheckpoint reads the checkpoint for a run. Returns NotFoundError
	// if none exists.
	LoadCheckpoint(runID string) (*Checkpoint, error)

	// ListCheckpoints returns metadata for every stored checkpoint.
	ListCheckpoints() ([]CheckpointInfo, error)

	// DeleteCheckpoint removes the checkpoint and associated run artifacts.
	// Returns NotFoundError if none exists.
	DeleteCheckpoint(runID string) error
}

// CheckpointInfo is checkpoint metadata for listing without materializing
// full vectors into callers that only render tables.
type CheckpointInfo struct {
	RunID          string
	Calls          int
	BestScore      float64
	StepSize       float64
	ParameterCount int
	Modified       time.Time
}

// NotFoundError is returned when a requested checkpoint does not exist.
// Use errors.Is(err, &NotFoundError{}) to check for it.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "checkpoint not found: " + e.RunID
	}
	return "checkpoint not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
