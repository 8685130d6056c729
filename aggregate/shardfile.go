package aggregate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/perfgo/vrtgo/model"
)

// WriteShardResults writes the result file of one shard run atomically and
// returns its path.
func WriteShardResults(dir, shardID, profile, testTypeID string, now time.Time, results []model.ComparisonResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	set := model.NewResultSet(now, testTypeID)
	set.Results = append(set.Results, results...)

	path := filepath.Join(dir, ShardResultFile(shardID, profile))
	if err := newFileWriter().writeJSON(path, set, validResultSet); err != nil {
		return "", err
	}
	return path, nil
}

// UpdateShardResults merges results into the existing result file of a
// shard run. Results replace earlier entries with the same test name; the
// file keeps its metadata. Without an existing file it behaves like
// WriteShardResults.
func UpdateShardResults(dir, shardID, profile, testTypeID string, now time.Time, results []model.ComparisonResult) (string, error) {
	path := filepath.Join(dir, ShardResultFile(shardID, profile))
	set, err := ParseResultSet(path)
	if errors.Is(err, os.ErrNotExist) {
		return WriteShardResults(dir, shardID, profile, testTypeID, now, results)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read shard results: %w", err)
	}

	index := make(map[string]int, len(set.Results))
	for i, r := range set.Results {
		index[r.TestName] = i
	}
	for _, r := range results {
		if i, ok := index[r.TestName]; ok {
			set.Results[i] = r
			continue
		}
		index[r.TestName] = len(set.Results)
		set.Results = append(set.Results, r)
	}

	if err := newFileWriter().writeJSON(path, set, validResultSet); err != nil {
		return "", err
	}
	return path, nil
}
