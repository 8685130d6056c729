// Package runner executes the records of one shard under one device profile.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/perfgo/vrtgo/aggregate"
	"github.com/perfgo/vrtgo/capture"
	"github.com/perfgo/vrtgo/failure"
	"github.com/perfgo/vrtgo/model"
	"github.com/perfgo/vrtgo/profiling"
	"github.com/perfgo/vrtgo/similarity"
)

var (
	// ErrShardAborted is returned when early failures escalate to a FULL
	// failure and the remaining records are skipped.
	ErrShardAborted = errors.New("shard run aborted")
	// ErrAuthentication is returned when the session check fails.
	ErrAuthentication = errors.New("authentication check failed")
)

// DefaultDeadline is the soft time limit of a shard run.
const DefaultDeadline = 30 * time.Minute

// Failure locations written into FailureRecords.
const (
	LocationLaunch         = "launch"
	LocationAuthentication = "authentication"
	LocationCapture        = "capture"
	LocationDeadline       = "deadline"
)

// Page is a browser page the runner captures with.
type Page interface {
	capture.Page
	Cookies(ctx context.Context) ([]model.Cookie, error)
	Close() error
}

// Browser opens pages emulating a device profile in an environment.
type Browser interface {
	OpenPage(ctx context.Context, profile model.Profile, env model.Environment) (Page, error)
}

// Config describes one shard run for one profile.
type Config struct {
	Env     model.Environment
	ShardID string
	Profile model.Profile
	Records []model.URLPair

	// Capture options; ReportDir, ShardID and Profile are filled in from
	// this config.
	Capture    capture.Options
	Engine     *similarity.Engine   // Required for comparison runs
	Advisories *capture.AdvisoryLog // Shared by the profiles of a shard
	Funnel     *aggregate.Funnel    // Canonical file appender, optional
	ReportDir  string               // Root of the visual diff artifacts
	TestTypeID string               // Written into the shard result file
	Deadline   time.Duration        // Soft limit, checked before each record
	Threshold  float64              // Early failure ratio that aborts the run
	Classifier failure.Classifier
	Rerun      failure.RerunOptions       // Template of the re-run command
	Session    map[model.Environment]bool // Environments using session auth

	// Update merges the results into an existing shard result file instead
	// of replacing it. Set for runs restricted to selected record ids.
	Update bool
}

// Summary reports how a run went.
type Summary struct {
	Total       int
	Processed   int
	Failed      int
	Results     int
	ResultFile  string
	ProfileFile string
	TimedOut    bool
}

// Runner runs shards.
type Runner struct {
	logger  zerolog.Logger
	browser Browser
	now     func() time.Time
}

// New returns a runner that opens pages with browser.
func New(logger zerolog.Logger, browser Browser) *Runner {
	return &Runner{
		logger:  logger,
		browser: browser,
		now:     time.Now,
	}
}

// Run captures every record of cfg. Individual record failures are
// recorded and do not make Run fail; launch and authentication failures
// and an early abort do.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Summary, error) {
	logger := r.logger.With().
		Str("shard", cfg.ShardID).
		Str("profile", cfg.Profile.Name).
		Str("app", string(cfg.Env)).
		Logger()

	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}

	opts := cfg.Capture
	opts.ReportDir = cfg.ReportDir
	opts.ShardID = cfg.ShardID
	opts.Profile = cfg.Profile

	timings := profiling.New(fmt.Sprintf("shard %s %s", cfg.ShardID, cfg.Profile.Name))
	options := []capture.Option{capture.WithObserver(timings)}
	if cfg.Engine != nil {
		options = append(options, capture.WithEngine(cfg.Engine))
	}
	if cfg.Advisories != nil {
		options = append(options, capture.WithAdvisoryLog(cfg.Advisories))
	}
	orch := capture.New(logger, opts, options...)

	rerun := cfg.Rerun
	rerun.App = string(cfg.Env)
	recorder := failure.NewRecorder(logger, failure.RecorderConfig{
		ReportDir:  cfg.ReportDir,
		ShardID:    cfg.ShardID,
		Profile:    cfg.Profile.Name,
		Records:    cfg.Records,
		URLOf:      func(rec model.URLPair) string { return orch.URL(rec, cfg.Env) },
		Classifier: cfg.Classifier,
		Rerun:      rerun,
	})

	summary := &Summary{Total: len(cfg.Records)}
	if len(cfg.Records) == 0 {
		logger.Info().Msg("No records to capture")
		return summary, nil
	}

	baseline, comparison, closePages, err := r.openPages(ctx, cfg)
	if err != nil {
		err = failure.WithSource(model.FailureSourceRunner, err)
		r.recordFull(logger, recorder, err, LocationLaunch, 0)
		return summary, err
	}
	defer closePages()

	pages := capture.Pages{Baseline: baseline}
	target := baseline
	if comparison != nil {
		pages.Comparison = comparison
		target = comparison
	}

	if cfg.Session[cfg.Env] {
		first := orch.URL(cfg.Records[0], cfg.Env)
		if err := checkSession(ctx, target, first); err != nil {
			err = failure.WithSource(model.FailureSourceAuthProvider, fmt.Errorf("%w: %w", ErrAuthentication, err))
			r.recordFull(logger, recorder, err, LocationAuthentication, 0)
			return summary, err
		}
		logger.Debug().Str("url", first).Msg("Session check passed")
	}

	var collector aggregate.Collector
	if cfg.Env == model.EnvironmentComparison && cfg.Funnel != nil {
		if err := cfg.Funnel.Ensure(ctx); err != nil {
			return summary, fmt.Errorf("failed to initialise canonical results: %w", err)
		}
	}

	start := r.now()
	aborted := false

	for i, rec := range cfg.Records {
		if ctx.Err() != nil {
			break
		}
		if r.now().Sub(start) > deadline {
			summary.TimedOut = true
			reason := fmt.Sprintf("Shard exceeded %s timeout", formatDeadline(deadline))
			if _, err := recorder.Record(failure.Failure{
				Type:      model.FailureTypePartial,
				Err:       errors.New(reason),
				Location:  LocationDeadline,
				Reason:    reason,
				Processed: i,
			}); err != nil {
				logger.Error().Err(err).Msg("Failed to write failure record")
			}
			logger.Warn().Int("processed", i).Dur("deadline", deadline).Msg("Shard deadline exceeded, stopping")
			break
		}

		recLogger := logger.With().Int("test", rec.ID).Logger()
		err := r.runRecord(ctx, orch, pages, cfg.Env, rec, &collector)
		summary.Processed = i + 1
		if err == nil {
			recLogger.Debug().Msg("Record done")
			continue
		}

		summary.Failed++
		recorder.AddFailedRecord(rec)
		recLogger.Error().Err(err).Msg("Record failed")

		failureType := model.FailureTypePartial
		if failure.IsFull(summary.Processed, summary.Failed, summary.Total, cfg.Threshold) {
			failureType = model.FailureTypeFull
			aborted = true
		}
		if _, werr := recorder.Record(failure.Failure{
			Type:      failureType,
			Err:       err,
			Location:  LocationCapture,
			Processed: summary.Processed,
		}); werr != nil {
			logger.Error().Err(werr).Msg("Failed to write failure record")
		}
		if aborted {
			logger.Error().
				Int("processed", summary.Processed).
				Int("failed", summary.Failed).
				Msg("Failure rate too high early in the shard, aborting")
			break
		}
	}

	if err := r.flush(ctx, logger, cfg, &collector, summary); err != nil {
		return summary, err
	}

	path := profiling.FilePath(cfg.ReportDir, cfg.ShardID, cfg.Profile.Name)
	if err := timings.WriteFile(path); err != nil {
		logger.Warn().Err(err).Msg("Failed to write capture profile")
	} else {
		summary.ProfileFile = path
	}

	logger.Info().
		Int("processed", summary.Processed).
		Int("failed", summary.Failed).
		Int("results", summary.Results).
		Msg("Shard run finished")

	if aborted {
		return summary, ErrShardAborted
	}
	return summary, ctx.Err()
}

func (r *Runner) runRecord(ctx context.Context, orch *capture.Orchestrator, pages capture.Pages, env model.Environment, rec model.URLPair, collector *aggregate.Collector) error {
	if env == model.EnvironmentBaseline {
		_, err := orch.Capture(ctx, pages.Baseline, rec, env)
		return err
	}

	result, err := orch.Compare(ctx, pages, rec)
	if err != nil {
		return err
	}
	collector.Add(result)
	return nil
}

// flush writes the collected results once: the shard result file and,
// when a funnel is configured, the canonical file.
func (r *Runner) flush(ctx context.Context, logger zerolog.Logger, cfg Config, collector *aggregate.Collector, summary *Summary) error {
	if cfg.Env != model.EnvironmentComparison {
		return nil
	}

	return collector.Flush(func(results []model.ComparisonResult) error {
		summary.Results = len(results)

		write := aggregate.WriteShardResults
		if cfg.Update {
			write = aggregate.UpdateShardResults
		}
		path, err := write(cfg.ReportDir, cfg.ShardID, cfg.Profile.Name, cfg.TestTypeID, r.now(), results)
		if err != nil {
			return fmt.Errorf("failed to write shard results: %w", err)
		}
		summary.ResultFile = path
		logger.Info().Str("path", path).Int("results", len(results)).Msg("Wrote shard results")

		if cfg.Funnel == nil || len(results) == 0 {
			return nil
		}
		// Results are persisted even when the run was cancelled.
		if err := cfg.Funnel.Append(context.WithoutCancel(ctx), results); err != nil {
			return fmt.Errorf("failed to append canonical results: %w", err)
		}
		return nil
	})
}

// openPages opens the pages a run needs: the baseline page and, for
// comparison runs, the comparison page. The baseline page of a comparison
// run only serves status checks.
func (r *Runner) openPages(ctx context.Context, cfg Config) (baseline, comparison Page, closeAll func(), err error) {
	var opened []Page
	closeAll = func() {
		for _, p := range opened {
			if err := p.Close(); err != nil {
				r.logger.Debug().Err(err).Msg("Failed to close page")
			}
		}
	}

	open := func(env model.Environment) (Page, error) {
		page, err := r.browser.OpenPage(ctx, cfg.Profile, env)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s page: %w", env, err)
		}
		opened = append(opened, page)
		return page, nil
	}

	baseline, err = open(model.EnvironmentBaseline)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Env == model.EnvironmentComparison {
		comparison, err = open(model.EnvironmentComparison)
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
	}
	return baseline, comparison, closeAll, nil
}

func (r *Runner) recordFull(logger zerolog.Logger, recorder *failure.Recorder, err error, location string, processed int) {
	if _, werr := recorder.Record(failure.Failure{
		Type:      model.FailureTypeFull,
		Err:       err,
		Location:  location,
		Processed: processed,
	}); werr != nil {
		logger.Error().Err(werr).Msg("Failed to write failure record")
	}
}

func formatDeadline(d time.Duration) string {
	if d%time.Minute == 0 {
		return strconv.Itoa(int(d/time.Minute)) + " minute"
	}
	return d.String()
}
