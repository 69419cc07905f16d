package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Direction selects which way changes are allowed to flow.
type Direction string

const (
	DirectionPull Direction = "pull"
	DirectionPush Direction = "push"
	DirectionBoth Direction = "sync"
)

// ParseDirection validates a direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionPull, DirectionPush, DirectionBoth:
		return Direction(s), nil
	}
	return "", fmt.Errorf("invalid direction %q (must be pull, push, or sync)", s)
}

func (d Direction) allowsPull() bool { return d == DirectionPull || d == DirectionBoth }
func (d Direction) allowsPush() bool { return d == DirectionPush || d == DirectionBoth }

// Status classifies one path after comparing both indexes against the
// baseline.
type Status string

const (
	StatusAdded     Status = "added"
	StatusModified  Status = "modified"
	StatusDeleted   Status = "deleted"
	StatusUnchanged Status = "unchanged"
	StatusConflict  Status = "conflict"
)

// Change is the transient sync state of one path. It is produced by Compare
// and consumed by Partition; it is never persisted.
type Change struct {
	Path   string
	Status Status

	// LocalHash and RemoteHash are the blob addresses of each side,
	// filled in where the path exists.
	LocalHash  string
	RemoteHash string

	InLocal  bool
	InRemote bool

	// LocalChanged and RemoteChanged record which side diverged from the
	// baseline. Only meaningful when the path exists on both sides.
	LocalChanged  bool
	RemoteChanged bool
}

// baselineVersion is the persisted schema version. Unknown versions degrade
// to missing-baseline behavior instead of failing the sync.
const baselineVersion = 1

// Baseline is the durable record of the last agreed-synchronized state:
// per-path local content hashes and remote address hashes as of the last
// successful sync. The engine only reads it and emits a replacement; the
// caller persists it across invocations.
type Baseline struct {
	Version       int               `json:"version"`
	LastSyncTime  time.Time         `json:"last_sync_time"`
	LastCommit    string            `json:"last_commit"`
	ContentHashes map[string]string `json:"content_hashes"`
	AddressHashes map[string]string `json:"address_hashes"`
}

// LoadBaseline reads a baseline file. A missing file or an unknown schema
// version returns (nil, nil): syncing without a baseline is a degraded mode,
// not an error.
func LoadBaseline(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read baseline: %w", err)
	}

	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse baseline: %w", err)
	}
	if b.Version != baselineVersion {
		return nil, nil
	}
	if b.ContentHashes == nil {
		b.ContentHashes = make(map[string]string)
	}
	if b.AddressHashes == nil {
		b.AddressHashes = make(map[string]string)
	}
	return &b, nil
}

// SaveBaseline persists a baseline, creating the parent directory as needed.
func SaveBaseline(path string, b *Baseline) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create baseline directory: %w", err)
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode baseline: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write baseline: %w", err)
	}
	return nil
}

// NewBaseline builds the baseline for a pair of freshly built indexes:
// every local path's content hash and every remote path's address hash.
func NewBaseline(local map[string]LocalFileEntry, remote map[string]RemoteFileEntry, commit string) *Baseline {
	b := &Baseline{
		Version:       baselineVersion,
		LastSyncTime:  time.Now().UTC(),
		LastCommit:    commit,
		ContentHashes: make(map[string]string, len(local)),
		AddressHashes: make(map[string]string, len(remote)),
	}
	for path, entry := range local {
		b.ContentHashes[path] = entry.ContentHash
	}
	for path, entry := range remote {
		b.AddressHashes[path] = entry.AddressHash
	}
	return b
}

// Result summarizes one sync invocation. Success is false only when the
// batch push itself failed; conflicts and per-file errors are reported but
// do not fail the run.
type Result struct {
	Success        bool
	FilesProcessed int
	FilesPulled    int
	FilesPushed    int
	FilesDeleted   int
	Conflicts      []string
	Errors         []string
	CommitID       string
}
