package aggregate

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/perfgo/vrtgo/model"
)

func TestFunnelSerializesConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visual-diff", CanonicalFile)
	f := NewFunnel(zerolog.Nop(), path, "VRT001")
	defer f.Close()

	require.NoError(t, f.Ensure(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, f.Append(context.Background(), results("p", 5)))
		}()
	}
	wg.Wait()

	set, err := ParseResultSet(path)
	require.NoError(t, err)
	require.Len(t, set.Results, 40)
	require.Equal(t, "VRT001", set.TestTypeID)
}

func TestFunnelKeepsExistingMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, CanonicalFile)
	require.NoError(t, os.WriteFile(path, []byte(`{"testId":"42","testTypeId":"VRT001","testDate":"2026-01-01T00:00:00Z","results":[{"testName":"1"}]}`), 0644))

	f := NewFunnel(zerolog.Nop(), path, "VRT001")
	require.NoError(t, f.Append(context.Background(), results("p", 2)))
	f.Close()

	set, err := ParseResultSet(path)
	require.NoError(t, err)
	require.Equal(t, "42", set.TestID)
	require.Len(t, set.Results, 3)
}

func TestFunnelBacksUpCorruptCanonical(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, CanonicalFile)
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	f := NewFunnel(zerolog.Nop(), path, "VRT001")
	require.NoError(t, f.Append(context.Background(), results("p", 2)))
	f.Close()

	backups, err := filepath.Glob(path + ".corrupted-*")
	require.NoError(t, err)
	require.Len(t, backups, 1)
	data, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	require.Equal(t, "{broken", string(data))

	set, err := ParseResultSet(path)
	require.NoError(t, err)
	require.Len(t, set.Results, 2)
}

func TestFunnelAppendAfterClose(t *testing.T) {
	f := NewFunnel(zerolog.Nop(), filepath.Join(t.TempDir(), CanonicalFile), "VRT001")
	f.Close()
	f.Close()
	require.ErrorIs(t, f.Append(context.Background(), results("p", 1)), ErrFunnelClosed)
}

func TestCollectorFlushesOnce(t *testing.T) {
	var c Collector
	c.Add(model.ComparisonResult{TestName: "1"})
	c.Add(model.ComparisonResult{TestName: "2"})
	require.Equal(t, 2, c.Len())

	var got []model.ComparisonResult
	require.NoError(t, c.Flush(func(r []model.ComparisonResult) error {
		got = r
		return nil
	}))
	require.Len(t, got, 2)

	err := c.Flush(func(r []model.ComparisonResult) error {
		t.Fatal("flushed twice")
		return nil
	})
	require.ErrorIs(t, err, ErrAlreadyFlushed)
}
