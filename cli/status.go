package cli

// This file contains the status command for listing shards and the files
// their runs produced.

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/perfgo/vrtgo/aggregate"
	"github.com/perfgo/vrtgo/capture"
	"github.com/perfgo/vrtgo/failure"
	"github.com/perfgo/vrtgo/shard"
)

// shardStatus collects the files written for one shard.
type shardStatus struct {
	id         string
	records    int
	results    map[string]int // Results per profile
	failures   map[string]string
	advisories int
}

func (a *App) status(ctx *cli.Context) error {
	cfg, err := a.config(ctx)
	if err != nil {
		return err
	}

	manifest, err := shard.ReadManifest(cfg.ShardDir())
	if errors.Is(err, os.ErrNotExist) {
		fmt.Println("No shards planned")
		fmt.Printf("Shards are written to %s by: %s plan\n", cfg.ShardDir(), AppName)
		return nil
	}
	if err != nil {
		return err
	}

	reportDir := cfg.ReportDir()
	entries, err := aggregate.LoadEntries(a.logger, reportDir)
	if err != nil {
		return fmt.Errorf("failed to load shard results: %w", err)
	}

	fmt.Printf("\n=== Shards (%d total) ===\n\n", len(manifest.Chunks))

	for _, id := range manifest.Chunks {
		st := shardStatus{
			id:       id,
			results:  make(map[string]int),
			failures: make(map[string]string),
		}
		if records, err := shard.ReadShard(cfg.ShardDir(), id); err == nil {
			st.records = len(records)
		} else {
			a.logger.Warn().Err(err).Str("shard", id).Msg("Failed to read shard file")
		}

		prefix := strings.TrimSuffix(aggregate.ShardResultFile(id, ""), ".json")
		for _, e := range entries {
			name := strings.TrimSuffix(filepath.Base(e.FullPath), ".json")
			if profile, ok := strings.CutPrefix(name, prefix); ok {
				st.results[profile] = len(e.Set.Results)
			}
		}

		for _, p := range cfg.Profiles {
			rec, err := failure.ReadRecord(failure.FilePath(reportDir, id, p.Name))
			if err == nil {
				st.failures[p.Name] = fmt.Sprintf("%s %s, %d remaining", rec.FailureType, rec.FailureSource.Type, len(rec.RemainingURLs))
			}
		}

		if list, err := capture.ReadAdvisories(capture.AdvisoryPath(reportDir, id)); err == nil {
			st.advisories = len(list)
		}

		printShardStatus(st)
	}

	fmt.Printf("Merge results: %s merge results\n", AppName)
	fmt.Printf("Re-run failures: see rerunCommand in %s\n", filepath.Join(reportDir, "failed-runner-<shard>-<profile>.json"))

	return nil
}

func printShardStatus(st shardStatus) {
	// Determine status indicator
	status := "✓"
	if len(st.failures) > 0 {
		status = "✗"
	} else if len(st.results) == 0 {
		status = "·"
	}

	fmt.Printf("%s  shard %s  records=%d\n", status, st.id, st.records)

	profiles := make([]string, 0, len(st.results))
	for p := range st.results {
		profiles = append(profiles, p)
	}
	sort.Strings(profiles)
	for _, p := range profiles {
		fmt.Printf("   results: %s (%d)\n", p, st.results[p])
	}

	failed := make([]string, 0, len(st.failures))
	for p := range st.failures {
		failed = append(failed, p)
	}
	sort.Strings(failed)
	for _, p := range failed {
		fmt.Printf("   failed: %s (%s)\n", p, st.failures[p])
	}

	if st.advisories > 0 {
		fmt.Printf("   oversize pages: %d\n", st.advisories)
	}
	fmt.Println()
}
