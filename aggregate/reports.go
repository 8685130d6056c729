package aggregate

// This file contains merging of failure records and oversize advisories and
// the missed URL check.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/perfgo/vrtgo/capture"
	"github.com/perfgo/vrtgo/model"
)

const (
	FailureSummaryFile  = "failed-runners.json"
	failureRecordGlob   = "failed-runner-*.json"
	AdvisorySummaryFile = "page-limit-exceed.json"
	advisoryGlob        = "page-limit-exceed-*.json"
	MissedURLsFile      = "missed-urls.json"
)

func sortedGlob(dir, pattern string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// MergeFailures combines every shard failure record in dir into
// failed-runners.json.
func MergeFailures(logger zerolog.Logger, dir string, now time.Time) (*model.FailureSummary, error) {
	paths, err := sortedGlob(dir, failureRecordGlob)
	if err != nil {
		return nil, fmt.Errorf("failed to list failure records: %w", err)
	}

	summary := &model.FailureSummary{
		Timestamp: now.UTC(),
		Failures:  []model.FailureRecord{},
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to read failure record")
			continue
		}
		var rec model.FailureRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to parse failure record")
			continue
		}
		summary.Failures = append(summary.Failures, rec)
	}
	summary.TotalFailures = len(summary.Failures)

	if err := newFileWriter().writeJSON(filepath.Join(dir, FailureSummaryFile), summary, validJSON); err != nil {
		return nil, err
	}
	return summary, nil
}

// MergeAdvisories combines every shard's oversize advisories in dir into
// page-limit-exceed.json.
func MergeAdvisories(logger zerolog.Logger, dir string) ([]model.OversizeAdvisory, error) {
	paths, err := sortedGlob(dir, advisoryGlob)
	if err != nil {
		return nil, fmt.Errorf("failed to list advisories: %w", err)
	}

	all := []model.OversizeAdvisory{}
	for _, path := range paths {
		list, err := capture.ReadAdvisories(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to parse advisory file")
			continue
		}
		all = append(all, list...)
	}

	if err := newFileWriter().writeJSON(filepath.Join(dir, AdvisorySummaryFile), all, validJSON); err != nil {
		return nil, err
	}
	return all, nil
}

// FindMissed returns the records whose comparison URL has no result.
// comparisonBase is the base URL records are resolved against.
func FindMissed(records []model.URLPair, set *model.ResultSet, comparisonBase string) model.MissedURLs {
	tested := make(map[string]struct{}, len(set.Results))
	for _, r := range set.Results {
		tested[r.ComparisonURL] = struct{}{}
	}

	missed := model.MissedURLs{
		TotalURLs: len(records),
		URLs:      []model.URLPair{},
	}
	for _, rec := range records {
		if _, ok := tested[model.JoinURL(comparisonBase, rec.Comparison)]; ok {
			missed.TestedURLs++
			continue
		}
		missed.URLs = append(missed.URLs, rec)
	}
	missed.MissedURLs = len(missed.URLs)

	return missed
}

// WriteMissed writes the missed URL report into dir.
func WriteMissed(dir string, missed model.MissedURLs) (string, error) {
	path := filepath.Join(dir, MissedURLsFile)
	if err := newFileWriter().writeJSON(path, missed, validJSON); err != nil {
		return "", err
	}
	return path, nil
}
