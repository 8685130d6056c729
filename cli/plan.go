package cli

// This file contains the plan command, which splits the URL list into
// shards.

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/perfgo/vrtgo/shard"
)

func (a *App) plan(ctx *cli.Context) error {
	cfg, err := a.config(ctx)
	if err != nil {
		return err
	}

	input := ctx.String("input")
	if input == "" {
		input = cfg.URLsFile()
	}

	records, err := shard.ReadRecords(input)
	if err != nil {
		return err
	}

	limits := cfg.ShardLimits()
	shards := shard.Plan(records, limits)
	if len(shards) > limits.MaxShards {
		a.logger.Warn().
			Int("shards", len(shards)).
			Int("max_shards", limits.MaxShards).
			Msg("Too many records for the shard limit, shards exceed the maximum count")
	}

	manifest, err := shard.Write(cfg.ShardDir(), shards)
	if err != nil {
		return fmt.Errorf("failed to write shards: %w", err)
	}

	a.logger.Info().
		Str("input", input).
		Int("records", len(records)).
		Int("shards", len(manifest.Chunks)).
		Str("dir", cfg.ShardDir()).
		Msg("Planned shards")
	for _, s := range shards {
		a.logger.Debug().Str("shard", s.ID).Int("records", len(s.Records)).Msg("Shard")
	}
	return nil
}
