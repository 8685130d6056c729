package cli

// This file contains the commands that consolidate the files written by
// shard runs.

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/perfgo/vrtgo/aggregate"
	"github.com/perfgo/vrtgo/shard"
)

func (a *App) mergeResults(ctx *cli.Context) error {
	cfg, err := a.config(ctx)
	if err != nil {
		return err
	}

	merged, err := aggregate.NewMerger(a.logger, cfg.ReportDir(), cfg.TestTypeID).MergeToFile()
	if err != nil {
		return fmt.Errorf("failed to merge results: %w", err)
	}

	fmt.Printf("Merged %d results into %s\n", len(merged.Results), cfg.ReportDir())
	return nil
}

func (a *App) mergeFailures(ctx *cli.Context) error {
	cfg, err := a.config(ctx)
	if err != nil {
		return err
	}

	summary, err := aggregate.MergeFailures(a.logger, cfg.ReportDir(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to merge failure records: %w", err)
	}

	fmt.Printf("Merged %d failure records into %s\n", summary.TotalFailures, aggregate.FailureSummaryFile)
	for _, f := range summary.Failures {
		fmt.Printf("  shard %s %-20s %-7s %-13s completed=%d remaining=%d\n",
			f.ShardID, f.Project, f.FailureType, f.FailureSource.Type, f.CompletedURLs, len(f.RemainingURLs))
		if f.RerunCommand != "" {
			fmt.Printf("    rerun: %s\n", f.RerunCommand)
		}
	}
	return nil
}

func (a *App) mergeLimits(ctx *cli.Context) error {
	cfg, err := a.config(ctx)
	if err != nil {
		return err
	}

	advisories, err := aggregate.MergeAdvisories(a.logger, cfg.ReportDir())
	if err != nil {
		return fmt.Errorf("failed to merge oversize advisories: %w", err)
	}

	fmt.Printf("Merged %d oversize page advisories into %s\n", len(advisories), aggregate.AdvisorySummaryFile)
	for _, adv := range advisories {
		fmt.Printf("  test %s %-20s %6dpx  %s\n", adv.TestName, adv.Device, adv.ContentHeight, adv.URL)
	}
	return nil
}

func (a *App) missed(ctx *cli.Context) error {
	cfg, err := a.config(ctx)
	if err != nil {
		return err
	}

	records, err := shard.ReadRecords(cfg.URLsFile())
	if err != nil {
		return err
	}
	set, err := aggregate.ParseResultSet(aggregate.NewMerger(a.logger, cfg.ReportDir(), cfg.TestTypeID).CanonicalPath())
	if err != nil {
		return fmt.Errorf("failed to read canonical results: %w", err)
	}

	missed := aggregate.FindMissed(records, &set, cfg.URLs.Comparison)
	path, err := aggregate.WriteMissed(cfg.ReportDir(), missed)
	if err != nil {
		return fmt.Errorf("failed to write missed URLs: %w", err)
	}

	a.logger.Info().
		Int("total", missed.TotalURLs).
		Int("tested", missed.TestedURLs).
		Int("missed", missed.MissedURLs).
		Str("path", path).
		Msg("Checked for missed URLs")
	return nil
}
