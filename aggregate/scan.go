// Package aggregate merges the result, failure and advisory files written by
// independent shard runs into consolidated files.
package aggregate

// This file contains loading and parsing of shard result files.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/perfgo/vrtgo/model"
)

const (
	// CanonicalFile is the consolidated result file.
	CanonicalFile = "test-results.json"
	// ShardResultPattern matches the result files of shard runs.
	ShardResultPattern = "test-results-*.json"
)

// ShardResultFile returns the result file name of a shard run.
func ShardResultFile(shardID, profile string) string {
	return fmt.Sprintf("test-results-%s-%s.json", shardID, profile)
}

// Entry is a parsed shard result file.
type Entry struct {
	Set      model.ResultSet
	FullPath string
}

// LoadEntries loads every shard result file in dir in lexical order.
// Unparsable files are logged and skipped.
func LoadEntries(logger zerolog.Logger, dir string) ([]Entry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, ShardResultPattern))
	if err != nil {
		return nil, fmt.Errorf("failed to list result files: %w", err)
	}
	sort.Strings(paths)

	var entries []Entry
	for _, path := range paths {
		set, err := ParseResultSet(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to parse shard result file")
			continue
		}
		entries = append(entries, Entry{Set: set, FullPath: path})
	}

	return entries, nil
}

// ParseResultSet parses a result set file.
func ParseResultSet(path string) (model.ResultSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.ResultSet{}, err
	}
	return decodeResultSet(data)
}

func decodeResultSet(data []byte) (model.ResultSet, error) {
	var set model.ResultSet
	if err := json.Unmarshal(data, &set); err != nil {
		return model.ResultSet{}, err
	}
	if set.Results == nil {
		set.Results = []model.ComparisonResult{}
	}
	return set, nil
}
