package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/perfgo/vrtgo/model"
)

// AdvisoryLog persists oversize page advisories of one shard. It is safe
// for concurrent use by the profile workers of that shard.
type AdvisoryLog struct {
	mu      sync.Mutex
	path    string
	loaded  bool
	entries []model.OversizeAdvisory
}

// NewAdvisoryLog returns the advisory log of shardID under reportDir.
func NewAdvisoryLog(reportDir, shardID string) *AdvisoryLog {
	return &AdvisoryLog{path: AdvisoryPath(reportDir, shardID)}
}

// Path returns the file the log writes to.
func (l *AdvisoryLog) Path() string {
	return l.path
}

// Add appends an advisory and rewrites the file. Entries written by an
// earlier run of the same shard are kept.
func (l *AdvisoryLog) Add(a model.OversizeAdvisory) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		existing, err := ReadAdvisories(l.path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		l.entries = existing
		l.loaded = true
	}
	l.entries = append(l.entries, a)

	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write oversize advisory: %w", err)
	}
	return nil
}

// ReadAdvisories reads an advisory file. A file holding a single object is
// accepted as a list of one.
func ReadAdvisories(path string) ([]model.OversizeAdvisory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var list []model.OversizeAdvisory
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var single model.OversizeAdvisory
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return []model.OversizeAdvisory{single}, nil
}
