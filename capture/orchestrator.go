// Package capture drives a browser page through navigation, content
// isolation and screenshotting for one URL pair at a time.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/perfgo/vrtgo/isolate"
	"github.com/perfgo/vrtgo/model"
	"github.com/perfgo/vrtgo/retry"
	"github.com/perfgo/vrtgo/similarity"
)

// MaxScreenshotHeight is the tallest page captured in full. Taller pages are
// captured viewport-bounded.
const MaxScreenshotHeight = 32767

// MissingBaselineError is the error annotation of a comparison whose
// baseline screenshot does not exist.
const MissingBaselineError = "Missing baseline screenshot"

// Page is a browser page the orchestrator drives. One page is used
// sequentially.
type Page interface {
	isolate.Page
	// Navigate loads url and returns the HTTP status of the main document.
	// Navigations that complete without a response report 500.
	Navigate(ctx context.Context, url string) (int, error)
	// Screenshot returns a PNG of the full page or of the viewport only.
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
}

// StageObserver receives the duration of each capture stage.
type StageObserver interface {
	ObserveStage(testName, stage string, d time.Duration)
}

// Stage names reported to a StageObserver.
const (
	StageNavigate   = "navigate"
	StageIsolate    = "isolate"
	StageScreenshot = "screenshot"
	StageCompare    = "compare"
)

// Options configures an Orchestrator.
type Options struct {
	ReportDir         string        // Root of the visual diff artifacts
	ShardID           string        // Shard the records belong to
	Profile           model.Profile // Device profile of the pages
	NavigationTimeout time.Duration // Bound on one navigation
	ActionTimeout     time.Duration // Bound on isolation and screenshot
	Attempts          int           // Capture attempts per record
	RetryDelay        time.Duration // Pause between attempts
	MaxHeight         int           // Height limit for full page screenshots

	BaseURLs   map[model.Environment]string
	Strategies map[model.Environment]isolate.Strategy
}

// DefaultOptions returns options with the default timeouts and retry policy.
func DefaultOptions() Options {
	return Options{
		NavigationTimeout: 120 * time.Second,
		ActionTimeout:     60 * time.Second,
		Attempts:          3,
		RetryDelay:        5 * time.Second,
		MaxHeight:         MaxScreenshotHeight,
	}
}

// Orchestrator captures and compares records for one shard and profile.
type Orchestrator struct {
	logger     zerolog.Logger
	opts       Options
	advisories *AdvisoryLog
	engine     *similarity.Engine
	observer   StageObserver
}

// Option configures optional collaborators of an Orchestrator.
type Option func(*Orchestrator)

// WithObserver reports stage durations to o.
func WithObserver(o StageObserver) Option {
	return func(c *Orchestrator) {
		c.observer = o
	}
}

// WithEngine sets the similarity engine used by Compare.
func WithEngine(e *similarity.Engine) Option {
	return func(c *Orchestrator) {
		c.engine = e
	}
}

// WithAdvisoryLog sets the log oversize pages are recorded in. By default
// each orchestrator writes its own log for the shard.
func WithAdvisoryLog(l *AdvisoryLog) Option {
	return func(c *Orchestrator) {
		c.advisories = l
	}
}

// New returns an orchestrator.
func New(logger zerolog.Logger, opts Options, options ...Option) *Orchestrator {
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = MaxScreenshotHeight
	}
	o := &Orchestrator{
		logger: logger.With().Str("shard", opts.ShardID).Str("profile", opts.Profile.Name).Logger(),
		opts:   opts,
	}
	for _, opt := range options {
		opt(o)
	}
	if o.advisories == nil {
		o.advisories = NewAdvisoryLog(opts.ReportDir, opts.ShardID)
	}
	return o
}

// URL returns the absolute URL of rec in env.
func (o *Orchestrator) URL(rec model.URLPair, env model.Environment) string {
	return model.JoinURL(o.opts.BaseURLs[env], rec.Path(env))
}

// Capture navigates page to rec in env, isolates content and writes the
// screenshot. The whole sequence is retried on failure; the last error is
// returned once attempts are exhausted.
func (o *Orchestrator) Capture(ctx context.Context, page Page, rec model.URLPair, env model.Environment) (*model.CaptureResult, error) {
	testName := strconv.Itoa(rec.ID)
	url := o.URL(rec, env)
	logger := o.logger.With().Str("test", testName).Str("env", string(env)).Logger()

	result := &model.CaptureResult{
		TestName:     testName,
		Device:       o.opts.Profile.Name,
		Browser:      o.opts.Profile.BrowserName(),
		Viewport:     o.opts.Profile.Viewport.String(),
		ArtifactPath: EnvironmentScreenshotPath(o.opts.ReportDir, o.opts.Profile.Name, env, rec.ID),
	}

	err := retry.Do(ctx, o.opts.Attempts, o.opts.RetryDelay, func(ctx context.Context, attempt int) error {
		return o.attempt(ctx, logger, page, url, env, result)
	}, func(attempt int, err error) {
		logger.Warn().Err(err).Int("attempt", attempt).Str("url", url).Msg("Capture failed, retrying")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture %s: %w", url, err)
	}

	if result.Oversize {
		err := o.advisories.Add(model.OversizeAdvisory{
			TestName:      testName,
			Device:        o.opts.Profile.Name,
			URL:           url,
			ContentHeight: result.ContentHeight,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to record oversize page")
		}
	}

	logger.Debug().Int("status", result.Status).Str("path", result.ArtifactPath).Msg("Captured screenshot")
	return result, nil
}

func (o *Orchestrator) attempt(ctx context.Context, logger zerolog.Logger, page Page, url string, env model.Environment, result *model.CaptureResult) error {
	status, err := o.navigate(ctx, page, result.TestName, url)
	if err != nil {
		return err
	}
	result.Status = status

	actCtx, cancel := o.actionContext(ctx)
	defer cancel()

	if strategy := o.opts.Strategies[env]; strategy != nil {
		start := time.Now()
		if _, err := strategy.Apply(actCtx, logger, page); err != nil {
			return fmt.Errorf("failed to isolate content: %w", err)
		}
		o.observe(result.TestName, StageIsolate, start)
	}

	start := time.Now()
	height, err := contentHeight(actCtx, page)
	if err != nil {
		return err
	}
	result.ContentHeight = height
	result.Oversize = height > o.opts.MaxHeight
	if result.Oversize {
		logger.Warn().Int("height", height).Int("limit", o.opts.MaxHeight).Msg("Page too tall, capturing viewport only")
	}

	data, err := page.Screenshot(actCtx, !result.Oversize)
	if err != nil {
		return fmt.Errorf("failed to take screenshot: %w", err)
	}
	if len(data) == 0 {
		return errors.New("screenshot is empty")
	}
	if err := writeArtifact(result.ArtifactPath, data); err != nil {
		return err
	}
	o.observe(result.TestName, StageScreenshot, start)

	return nil
}

func (o *Orchestrator) navigate(ctx context.Context, page Page, testName, url string) (int, error) {
	navCtx := ctx
	if o.opts.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, o.opts.NavigationTimeout)
		defer cancel()
	}

	start := time.Now()
	status, err := page.Navigate(navCtx, url)
	if err != nil {
		return 0, fmt.Errorf("failed to navigate: %w", err)
	}
	o.observe(testName, StageNavigate, start)
	return status, nil
}

// Status navigates page to url, with the capture retry policy, and returns
// the HTTP status.
func (o *Orchestrator) Status(ctx context.Context, page Page, rec model.URLPair, env model.Environment) (int, error) {
	url := o.URL(rec, env)
	testName := strconv.Itoa(rec.ID)

	var status int
	err := retry.Do(ctx, o.opts.Attempts, o.opts.RetryDelay, func(ctx context.Context, attempt int) error {
		var err error
		status, err = o.navigate(ctx, page, testName, url)
		return err
	}, func(attempt int, err error) {
		o.logger.Warn().Err(err).Int("attempt", attempt).Str("url", url).Msg("Status check failed, retrying")
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch status of %s: %w", url, err)
	}
	return status, nil
}

// Pages holds one page per environment for a comparison run.
type Pages struct {
	Baseline   Page
	Comparison Page
}

// Compare fetches the baseline status, captures the comparison screenshot
// and scores it against the stored baseline. A missing baseline screenshot
// yields a zero similarity result rather than an error.
func (o *Orchestrator) Compare(ctx context.Context, pages Pages, rec model.URLPair) (model.ComparisonResult, error) {
	if o.engine == nil {
		return model.ComparisonResult{}, errors.New("no similarity engine configured")
	}

	profile := o.opts.Profile.Name
	testName := strconv.Itoa(rec.ID)
	result := model.ComparisonResult{
		TestName:       testName,
		Device:         profile,
		Browser:        o.opts.Profile.BrowserName(),
		Viewport:       o.opts.Profile.Viewport.String(),
		BaselinePath:   EnvironmentScreenshotPath(o.opts.ReportDir, profile, model.EnvironmentBaseline, rec.ID),
		ComparisonPath: EnvironmentScreenshotPath(o.opts.ReportDir, profile, model.EnvironmentComparison, rec.ID),
		DiffPath:       ScreenshotPath(o.opts.ReportDir, profile, DiffKind, rec.ID),
		BaselineURL:    o.URL(rec, model.EnvironmentBaseline),
		ComparisonURL:  o.URL(rec, model.EnvironmentComparison),
	}

	if _, err := os.Stat(result.BaselinePath); err != nil {
		o.logger.Warn().Str("test", testName).Str("path", result.BaselinePath).Msg("Baseline screenshot missing")
		result.BaselinePath = ""
		result.ComparisonPath = ""
		result.DiffPath = ""
		result.Error = MissingBaselineError
		return result, nil
	}

	baselineStatus, err := o.Status(ctx, pages.Baseline, rec, model.EnvironmentBaseline)
	if err != nil {
		return result, err
	}
	result.BaselineStatus = baselineStatus

	captured, err := o.Capture(ctx, pages.Comparison, rec, model.EnvironmentComparison)
	if err != nil {
		return result, err
	}
	result.ComparisonStatus = captured.Status

	start := time.Now()
	outcome := o.engine.Compare(similarity.Request{
		BaselinePath:     result.BaselinePath,
		ComparisonPath:   result.ComparisonPath,
		DiffPath:         result.DiffPath,
		BaselineStatus:   result.BaselineStatus,
		ComparisonStatus: result.ComparisonStatus,
	})
	o.observe(testName, StageCompare, start)

	result.Similarity = outcome.Similarity
	result.CalculatedSimilarity = outcome.Calculated
	result.Error = outcome.Error

	return result, nil
}

func (o *Orchestrator) actionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.opts.ActionTimeout > 0 {
		return context.WithTimeout(ctx, o.opts.ActionTimeout)
	}
	return context.WithCancel(ctx)
}

func (o *Orchestrator) observe(testName, stage string, start time.Time) {
	if o.observer != nil {
		o.observer.ObserveStage(testName, stage, time.Since(start))
	}
}

// contentHeightScript returns the rendered height of the document.
const contentHeightScript = `() => Math.max(
	document.body ? document.body.scrollHeight : 0,
	document.documentElement ? document.documentElement.scrollHeight : 0
)`

func contentHeight(ctx context.Context, page Page) (int, error) {
	raw, err := page.Eval(ctx, contentHeightScript)
	if err != nil {
		return 0, fmt.Errorf("failed to measure page height: %w", err)
	}
	var h float64
	if err := json.Unmarshal(raw, &h); err != nil {
		return 0, fmt.Errorf("failed to decode page height: %w", err)
	}
	return int(h), nil
}

func writeArtifact(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}
