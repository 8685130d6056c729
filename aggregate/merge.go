package aggregate

import (
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/perfgo/vrtgo/model"
)

// Merger builds the canonical result file from shard result files.
type Merger struct {
	logger     zerolog.Logger
	dir        string
	testTypeID string
	now        func() time.Time
	writer     *fileWriter
}

// NewMerger returns a merger for the report directory dir.
func NewMerger(logger zerolog.Logger, dir, testTypeID string) *Merger {
	return &Merger{
		logger:     logger,
		dir:        dir,
		testTypeID: testTypeID,
		now:        time.Now,
		writer:     newFileWriter(),
	}
}

// CanonicalPath returns the path of the canonical result file.
func (m *Merger) CanonicalPath() string {
	return filepath.Join(m.dir, CanonicalFile)
}

// Merge combines every shard result file. The first file provides the run
// metadata; results of all files are concatenated in file order. Without
// any shard file the result is an empty set stamped with the current time.
func (m *Merger) Merge() (*model.ResultSet, error) {
	entries, err := LoadEntries(m.logger, m.dir)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		m.logger.Info().Str("dir", m.dir).Msg("No shard result files found")
		return model.NewResultSet(m.now(), m.testTypeID), nil
	}

	base := entries[0].Set
	merged := &model.ResultSet{
		TestID:     base.TestID,
		TestTypeID: base.TestTypeID,
		TestDate:   base.TestDate,
		Results:    make([]model.ComparisonResult, 0, len(base.Results)),
	}
	for _, e := range entries {
		merged.Results = append(merged.Results, e.Set.Results...)
		m.logger.Debug().Str("path", e.FullPath).Int("results", len(e.Set.Results)).Msg("Merged shard result file")
	}

	return merged, nil
}

// MergeToFile merges the shard result files and atomically replaces the
// canonical result file with the outcome.
func (m *Merger) MergeToFile() (*model.ResultSet, error) {
	merged, err := m.Merge()
	if err != nil {
		return nil, err
	}
	if err := m.writer.writeJSON(m.CanonicalPath(), merged, validResultSet); err != nil {
		return nil, err
	}

	m.logger.Info().
		Int("results", len(merged.Results)).
		Str("path", m.CanonicalPath()).
		Msg("Wrote merged results")
	return merged, nil
}
