package aggregate

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/perfgo/vrtgo/model"
)

func TestMergeFailures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "failed-runner-1-chromium-desktop.json"),
		[]byte(`{"project":"chromium-desktop","urlsChunk":"1","failureType":"FULL"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "failed-runner-2-chromium-desktop.json"),
		[]byte(`{"project":"chromium-desktop","urlsChunk":"2","failureType":"PARTIAL"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "failed-runner-3-chromium-desktop.json"),
		[]byte(`not json`), 0644))

	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	summary, err := MergeFailures(zerolog.Nop(), dir, now)
	require.NoError(t, err)
	require.Equal(t, 2, summary.TotalFailures)
	require.Equal(t, model.FailureTypeFull, summary.Failures[0].FailureType)

	// The summary file itself is not picked up by a second merge.
	summary, err = MergeFailures(zerolog.Nop(), dir, now)
	require.NoError(t, err)
	require.Equal(t, 2, summary.TotalFailures)
	require.FileExists(t, filepath.Join(dir, FailureSummaryFile))
}

func TestMergeAdvisories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page-limit-exceed-1.json"),
		[]byte(`[{"testName":"1","device":"d","url":"u1","contentHeight":40000},{"testName":"2","device":"d","url":"u2","contentHeight":35000}]`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page-limit-exceed-2.json"),
		[]byte(`{"testName":"9","device":"d","url":"u9","contentHeight":33000}`), 0644))

	all, err := MergeAdvisories(zerolog.Nop(), dir)
	require.NoError(t, err)
	require.Len(t, all, 3)

	all, err = MergeAdvisories(zerolog.Nop(), dir)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestFindMissed(t *testing.T) {
	records := []model.URLPair{
		{ID: 1, Comparison: "a"},
		{ID: 2, Comparison: "/b"},
		{ID: 3, Comparison: "c"},
	}
	set := &model.ResultSet{Results: []model.ComparisonResult{
		{ComparisonURL: "https://new.example.com/a"},
		{ComparisonURL: "https://new.example.com/b"},
	}}

	missed := FindMissed(records, set, "https://new.example.com")
	require.Equal(t, 3, missed.TotalURLs)
	require.Equal(t, 2, missed.TestedURLs)
	require.Equal(t, 1, missed.MissedURLs)
	require.Equal(t, []model.URLPair{{ID: 3, Comparison: "c"}}, missed.URLs)

	path, err := WriteMissed(t.TempDir(), missed)
	require.NoError(t, err)
	require.FileExists(t, path)
}

func TestWriteCSV(t *testing.T) {
	set := &model.ResultSet{
		TestID:   "1700000000000",
		TestDate: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		Results: []model.ComparisonResult{{
			TestName: "5", Device: "chromium-desktop", Browser: "chromium", Viewport: "1920x1080",
			Similarity: 97, CalculatedSimilarity: 97, BaselineStatus: 200, ComparisonStatus: 200,
			BaselineURL: "https://old.example.com/a,b", ComparisonURL: "https://new.example.com/a",
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, set))

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, csvHeader, rows[0])
	require.Equal(t, "https://old.example.com/a,b", rows[1][9])
	require.Equal(t, "2026-01-01T12:00:00Z", rows[1][11])
}

func TestSummarize(t *testing.T) {
	set := &model.ResultSet{Results: []model.ComparisonResult{
		{Similarity: 100},
		{Similarity: 85},
		{Similarity: 0, Error: "Missing baseline screenshot"},
		{Similarity: 91},
	}}
	s := Summarize(set, 90, 80)
	require.Equal(t, Summary{Total: 4, High: 2, Medium: 1, Low: 1, Errored: 1, Average: 69}, s)
}
