package assets

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SnapshotVersion is the schema version of registry snapshots. Bump it
// whenever State changes incompatibly; cached pages holding an older snapshot
// are then regenerated instead of being restored wrongly.
const SnapshotVersion = 1

// ErrSnapshotVersion is returned when a snapshot has an unknown version.
var ErrSnapshotVersion = errors.New("unsupported asset snapshot version")

// Snapshot is the serializable form of a registry.
type Snapshot struct {
	Version int   `json:"version"`
	State   State `json:"state"`
}

// Snapshot captures the current state.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{Version: SnapshotVersion, State: r.state.Clone()}
}

// Restore replaces the registry state with s.
func (r *Registry) Restore(s Snapshot) error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("%w: %d", ErrSnapshotVersion, s.Version)
	}
	r.state = s.State.Clone()
	r.finalized = false
	return nil
}

// EncodeSnapshot serializes s.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode asset snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a snapshot and checks its version.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode asset snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrSnapshotVersion, s.Version)
	}
	return s, nil
}
