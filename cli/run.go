package cli

// This file contains the run command, which captures one shard under every
// selected device profile.

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/perfgo/vrtgo/aggregate"
	"github.com/perfgo/vrtgo/capture"
	"github.com/perfgo/vrtgo/cli/browser"
	"github.com/perfgo/vrtgo/config"
	"github.com/perfgo/vrtgo/failure"
	"github.com/perfgo/vrtgo/model"
	"github.com/perfgo/vrtgo/runner"
	"github.com/perfgo/vrtgo/shard"
	"github.com/perfgo/vrtgo/similarity"
)

func (a *App) run(ctx *cli.Context) error {
	cfg, err := a.config(ctx)
	if err != nil {
		return err
	}

	env, err := model.ParseEnvironment(ctx.String("app"))
	if err != nil {
		return err
	}
	shardID := shardFileID(ctx.String("shard"))

	records, err := shard.ReadShard(cfg.ShardDir(), shardID)
	if err != nil {
		return err
	}

	ids, err := parseIDs(ctx.String("ids"))
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		records = shard.FilterIDs(records, ids)
		a.logger.Info().Ints("ids", ids).Int("records", len(records)).Msg("Restricted run to selected records")
	}

	profiles, err := selectProfiles(cfg, ctx.StringSlice("profile"))
	if err != nil {
		return err
	}

	logger := a.logger.With().Str("shard", shardID).Str("app", string(env)).Logger()
	logger.Info().
		Int("records", len(records)).
		Int("profiles", len(profiles)).
		Str("mode", string(cfg.Capture.Mode)).
		Str("method", string(cfg.Similarity.Method)).
		Msg("Starting shard run")

	client := browser.New(a.logger, a.browserOptions(cfg)...)
	defer func() {
		if err := client.Close(); err != nil {
			a.logger.Debug().Err(err).Msg("Failed to close browser")
		}
	}()

	reportDir := cfg.ReportDir()
	engine := similarity.New(a.logger, cfg.Algorithm(), cfg.Thresholds.Pixel)
	advisories := capture.NewAdvisoryLog(reportDir, shardID)

	var funnel *aggregate.Funnel
	if env == model.EnvironmentComparison {
		funnel = aggregate.NewFunnel(a.logger, filepath.Join(reportDir, aggregate.CanonicalFile), cfg.TestTypeID)
		defer funnel.Close()
	}

	opts := capture.DefaultOptions()
	opts.NavigationTimeout = cfg.Timeouts.Navigation
	opts.ActionTimeout = cfg.Timeouts.Action
	opts.Attempts = cfg.Retry.Attempts
	opts.RetryDelay = cfg.Retry.Delay
	opts.BaseURLs = cfg.BaseURLs()
	opts.Strategies = cfg.Strategies()

	session := map[model.Environment]bool{
		model.EnvironmentBaseline:   cfg.Authentication.Baseline.UsesSession(),
		model.EnvironmentComparison: cfg.Authentication.Comparison.UsesSession(),
	}
	classifier := failure.DefaultClassifier(string(cfg.Authentication.Baseline), string(cfg.Authentication.Comparison))

	r := runner.New(a.logger, client)

	var g errgroup.Group
	if workers := ctx.Int("workers"); workers > 0 {
		g.SetLimit(workers)
	}
	for _, profile := range profiles {
		g.Go(func() error {
			summary, err := r.Run(ctx.Context, runner.Config{
				Env:        env,
				ShardID:    shardID,
				Profile:    profile,
				Records:    records,
				Capture:    opts,
				Engine:     engine,
				Advisories: advisories,
				Funnel:     funnel,
				ReportDir:  reportDir,
				TestTypeID: cfg.TestTypeID,
				Deadline:   cfg.Timeouts.Shard,
				Threshold:  cfg.Thresholds.Failure,
				Classifier: classifier,
				Rerun: failure.RerunOptions{
					Program: AppName,
					Config:  ctx.String("config"),
				},
				Session: session,
				Update:  len(ids) > 0,
			})
			if err != nil {
				return fmt.Errorf("profile %s: %w", profile.Name, err)
			}
			if summary.Failed > 0 {
				logger.Warn().
					Str("profile", profile.Name).
					Int("failed", summary.Failed).
					Str("record", failure.FilePath(reportDir, shardID, profile.Name)).
					Msg("Some records failed")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		switch {
		case errors.Is(err, runner.ErrShardAborted):
			logger.Error().Err(err).Msg("Shard run aborted")
		case errors.Is(err, runner.ErrAuthentication):
			logger.Error().Err(err).Msg("Authentication failed")
		case errors.Is(err, browser.ErrLaunch):
			logger.Error().Err(err).Msg("Browser launch failed")
		}
		return err
	}

	logger.Info().Msg("Shard run complete")
	return nil
}

// browserOptions configures the browser client from cfg. A session artifact
// that cannot be loaded is logged; the session check of the run then
// records the authentication failure.
func (a *App) browserOptions(cfg *config.Config) []browser.Option {
	opts := []browser.Option{
		browser.WithHeadless(cfg.Browser.IsHeadless()),
		browser.WithFlags(cfg.Browser.Flags),
	}
	if cfg.Browser.Bin != "" {
		opts = append(opts, browser.WithBin(cfg.Browser.Bin))
	}
	if cfg.Browser.ControlURL != "" {
		opts = append(opts, browser.WithControlURL(cfg.Browser.ControlURL))
	}

	var state *model.SessionState
	for _, env := range []model.Environment{model.EnvironmentBaseline, model.EnvironmentComparison} {
		method := cfg.Authentication.Method(env)
		switch {
		case method == config.AuthBasic:
			opts = append(opts, browser.WithBasicAuth(env, cfg.Credentials.Username, cfg.Credentials.Password))
		case method.UsesSession():
			if state == nil {
				loaded, err := browser.LoadSession(cfg.Session.Path)
				if err != nil {
					a.logger.Warn().Err(err).Str("path", cfg.Session.Path).Msg("Failed to load authentication session")
					continue
				}
				state = loaded
			}
			opts = append(opts, browser.WithSession(env, state))
		}
	}
	return opts
}

// selectProfiles returns the configured profiles named in names, or all of
// them when names is empty.
func selectProfiles(cfg *config.Config, names []string) ([]model.Profile, error) {
	if len(names) == 0 {
		return cfg.Profiles, nil
	}
	var out []model.Profile
	for _, name := range names {
		p, ok := cfg.Profile(name)
		if !ok {
			return nil, fmt.Errorf("unknown profile %q", name)
		}
		out = append(out, p)
	}
	return out, nil
}
