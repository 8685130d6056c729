package cli

// This file contains the export and import commands.

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/perfgo/vrtgo/aggregate"
	"github.com/perfgo/vrtgo/shard"
)

func (a *App) exportCSV(ctx *cli.Context) error {
	cfg, err := a.config(ctx)
	if err != nil {
		return err
	}

	merger := aggregate.NewMerger(a.logger, cfg.ReportDir(), cfg.TestTypeID)
	set, err := aggregate.ParseResultSet(merger.CanonicalPath())
	if err != nil {
		return fmt.Errorf("failed to read canonical results: %w", err)
	}

	output := ctx.String("output")
	if output == "" {
		output = filepath.Join(cfg.ReportDir(), aggregate.CSVFile)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	if err := aggregate.WriteCSV(f, &set); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}

	summary := aggregate.Summarize(&set, cfg.Thresholds.Similarity.High, cfg.Thresholds.Similarity.Medium)
	a.logger.Info().
		Str("path", output).
		Int("total", summary.Total).
		Int("high", summary.High).
		Int("medium", summary.Medium).
		Int("low", summary.Low).
		Int("errored", summary.Errored).
		Float64("average", summary.Average).
		Msg("Exported results")
	return f.Close()
}

func (a *App) importCSV(ctx *cli.Context) error {
	cfg, err := a.config(ctx)
	if err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one CSV file argument")
	}
	input := ctx.Args().First()

	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	records, err := shard.ImportCSV(f)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", input, err)
	}

	if err := shard.WriteRecords(cfg.URLsFile(), records); err != nil {
		return err
	}

	a.logger.Info().Str("input", input).Str("output", cfg.URLsFile()).Int("records", len(records)).Msg("Imported URL list")
	return nil
}

func (a *App) importFilter(ctx *cli.Context) error {
	cfg, err := a.config(ctx)
	if err != nil {
		return err
	}

	if ctx.NArg() != 2 {
		return fmt.Errorf("expected START and END id arguments")
	}
	start, err := strconv.Atoi(ctx.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid start id: %w", err)
	}
	end, err := strconv.Atoi(ctx.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid end id: %w", err)
	}
	if start > end {
		return fmt.Errorf("start id %d is after end id %d", start, end)
	}

	records, err := shard.ReadRecords(cfg.FullURLsFile())
	if err != nil {
		return err
	}

	filtered := shard.FilterRange(records, start, end)
	if err := shard.WriteRecords(cfg.URLsFile(), filtered); err != nil {
		return err
	}

	a.logger.Info().
		Int("start", start).
		Int("end", end).
		Int("records", len(filtered)).
		Str("output", cfg.URLsFile()).
		Msg("Filtered URL list")
	return nil
}
