package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageBuildStart  Stage = "BUILD_START"
	StageSectionDone Stage = "SECTION_DONE"
	StageBuildDone   Stage = "BUILD_DONE"
	StageBuildError  Stage = "BUILD_ERROR"
)

// Event captures one milestone of an index build.
type Event struct {
	// JobID identifies the build run using the 16-byte UUID form.
	JobID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Done and Total count deep-phase sections; set on SECTION_DONE.
	Done  int
	Total int
	// Elapsed is the time since the deep phase started.
	Elapsed time.Duration
	// ETA is the projected remaining time; meaningful only when HasETA.
	ETA    time.Duration
	HasETA bool
	// Boards is the final board count on BUILD_DONE.
	Boards int
	// Dur is the whole build's wall time on BUILD_DONE and BUILD_ERROR.
	Dur time.Duration
	// Note carries low-volume context such as error text or the archive URI.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == [16]byte{} {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageBuildStart, StageBuildDone, StageBuildError:
	case StageSectionDone:
		if e.Total <= 0 || e.Done <= 0 || e.Done > e.Total {
			return fmt.Errorf("section progress %d/%d out of range", e.Done, e.Total)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 || e.Elapsed < 0 || e.ETA < 0 {
		return errors.New("durations must be >= 0")
	}
	return nil
}

// JobUUID converts the binary job ID to uuid.UUID.
func (e Event) JobUUID() uuid.UUID {
	return uuid.UUID(e.JobID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ParseJobID converts a textual job ID into the Event form.
func ParseJobID(id string) ([16]byte, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return [16]byte{}, fmt.Errorf("parse job id %q: %w", id, err)
	}
	return UUIDToBytes(parsed), nil
}
