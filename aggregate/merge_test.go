package aggregate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/perfgo/vrtgo/model"
)

func results(prefix string, n int) []model.ComparisonResult {
	out := make([]model.ComparisonResult, n)
	for i := range out {
		out[i] = model.ComparisonResult{
			TestName:      strconv.Itoa(i + 1),
			Device:        prefix,
			Similarity:    90 + i%10,
			ComparisonURL: fmt.Sprintf("https://new.example.com/%s/%d", prefix, i+1),
		}
	}
	return out
}

func writeShard(t *testing.T, dir, shard string, n int, date time.Time) {
	t.Helper()
	_, err := WriteShardResults(dir, shard, "chromium-desktop", "VRT001", date, results(shard, n))
	require.NoError(t, err)
}

func TestMergeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	writeShard(t, dir, "1", 10, first)
	writeShard(t, dir, "2", 15, first.Add(time.Minute))
	writeShard(t, dir, "3", 7, first.Add(2*time.Minute))

	m := NewMerger(zerolog.Nop(), dir, "VRT001")
	for i := 0; i < 2; i++ {
		merged, err := m.MergeToFile()
		require.NoError(t, err)
		require.Len(t, merged.Results, 32)

		onDisk, err := ParseResultSet(m.CanonicalPath())
		require.NoError(t, err)
		require.Len(t, onDisk.Results, 32)
		require.Equal(t, strconv.FormatInt(first.UnixMilli(), 10), onDisk.TestID)
		require.True(t, first.Equal(onDisk.TestDate))
	}
}

func TestMergeSkipsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeShard(t, dir, "1", 5, now)
	writeShard(t, dir, "3", 5, now)
	corrupt := filepath.Join(dir, ShardResultFile("2", "chromium-desktop"))
	require.NoError(t, os.WriteFile(corrupt, []byte(`{"testId": "1", "results": [`), 0644))

	merged, err := NewMerger(zerolog.Nop(), dir, "VRT001").MergeToFile()
	require.NoError(t, err)
	require.Len(t, merged.Results, 10)
	require.FileExists(t, corrupt)
}

func TestMergeNoFiles(t *testing.T) {
	dir := t.TempDir()
	m := NewMerger(zerolog.Nop(), dir, "")
	m.now = func() time.Time { return time.UnixMilli(1700000000123) }

	merged, err := m.MergeToFile()
	require.NoError(t, err)
	require.Equal(t, "VRT001", merged.TestTypeID)
	require.Equal(t, "1700000000123", merged.TestID)
	require.Empty(t, merged.Results)
	require.FileExists(t, m.CanonicalPath())
}

func TestMergeOrderFollowsFileNames(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, dir, "b", 1, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	writeShard(t, dir, "a", 2, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	merged, err := NewMerger(zerolog.Nop(), dir, "VRT001").Merge()
	require.NoError(t, err)

	var devices []string
	for _, r := range merged.Results {
		devices = append(devices, r.Device)
	}
	require.Equal(t, []string{"a", "a", "b"}, devices)
	require.Equal(t, 2026, merged.TestDate.Year())
	require.Equal(t, time.January, merged.TestDate.Month())
	require.Equal(t, 1, merged.TestDate.Day())
}

func TestInterruptedWriteKeepsCanonical(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, dir, "1", 3, time.Now())

	m := NewMerger(zerolog.Nop(), dir, "VRT001")
	_, err := m.MergeToFile()
	require.NoError(t, err)
	before, err := os.ReadFile(m.CanonicalPath())
	require.NoError(t, err)

	writeShard(t, dir, "2", 4, time.Now())
	m.writer.rename = func(oldpath, newpath string) error {
		return errors.New("killed")
	}
	_, err = m.MergeToFile()
	require.Error(t, err)

	after, err := os.ReadFile(m.CanonicalPath())
	require.NoError(t, err)
	require.Equal(t, before, after)

	leftovers, err := filepath.Glob(filepath.Join(dir, CanonicalFile+".temp-*"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestWriterRejectsInvalidContent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, CanonicalFile)
	require.NoError(t, os.WriteFile(target, []byte(`{"testId":"1","results":[]}`), 0644))

	err := newFileWriter().write(target, []byte(`{"results": nope`), validResultSet)
	require.Error(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, `{"testId":"1","results":[]}`, string(data))

	leftovers, err := filepath.Glob(filepath.Join(dir, CanonicalFile+".temp-*"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestShardResultFileDoesNotMatchTempOrBackup(t *testing.T) {
	for _, name := range []string{
		CanonicalFile,
		filepath.Base(TempPath(CanonicalFile)),
		CanonicalFile + ".corrupted-1700000000000",
	} {
		ok, err := filepath.Match(ShardResultPattern, name)
		require.NoError(t, err)
		require.False(t, ok, name)
	}
}

func TestWriteShardResultsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	want := results("x", 3)

	path, err := WriteShardResults(dir, "4", "iphone-14-pro-max", "VRT001", now, want)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "test-results-4-iphone-14-pro-max.json"), path)

	got, err := ParseResultSet(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got.Results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateShardResultsReplacesByTestName(t *testing.T) {
	dir := t.TempDir()
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	writeShard(t, dir, "1", 3, first)

	rerun := []model.ComparisonResult{
		{TestName: "2", Device: "1", Similarity: 42},
		{TestName: "4", Device: "1", Similarity: 77},
	}
	path, err := UpdateShardResults(dir, "1", "chromium-desktop", "VRT001", first.Add(time.Hour), rerun)
	require.NoError(t, err)

	set, err := ParseResultSet(path)
	require.NoError(t, err)
	require.True(t, first.Equal(set.TestDate))

	var names []string
	for _, r := range set.Results {
		names = append(names, r.TestName)
	}
	require.Equal(t, []string{"1", "2", "3", "4"}, names)
	require.Equal(t, 42, set.Results[1].Similarity)
}

func TestUpdateShardResultsWithoutExistingFile(t *testing.T) {
	dir := t.TempDir()
	path, err := UpdateShardResults(dir, "5", "chromium-desktop", "VRT001", time.Now(), results("5", 2))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, ShardResultFile("5", "chromium-desktop")), path)

	set, err := ParseResultSet(path)
	require.NoError(t, err)
	require.Len(t, set.Results, 2)
}
