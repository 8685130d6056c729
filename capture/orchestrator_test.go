package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/perfgo/vrtgo/isolate"
	"github.com/perfgo/vrtgo/model"
	"github.com/perfgo/vrtgo/similarity"
)

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakePage struct {
	mu          sync.Mutex
	status      int
	navFailures int
	height      int
	shot        []byte
	navigated   []string
	fullPage    []bool
}

func (f *fakePage) Navigate(ctx context.Context, url string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, url)
	if f.navFailures > 0 {
		f.navFailures--
		return 0, errors.New("net::ERR_CONNECTION_RESET")
	}
	return f.status, nil
}

func (f *fakePage) Eval(ctx context.Context, script string, args ...any) (json.RawMessage, error) {
	if script == contentHeightScript {
		return json.Marshal(f.height)
	}
	// Every other script is a lookup that finds nothing.
	return json.Marshal(false)
}

func (f *fakePage) WaitVisible(ctx context.Context, selector string) error {
	return nil
}

func (f *fakePage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	f.fullPage = append(f.fullPage, fullPage)
	return f.shot, nil
}

type countingStrategy struct {
	calls int
}

func (s *countingStrategy) Name() string { return "counting" }

func (s *countingStrategy) Apply(ctx context.Context, logger zerolog.Logger, page isolate.Page) (isolate.Outcome, error) {
	s.calls++
	return isolate.Outcome{}, nil
}

type stageRecorder struct {
	stages []string
}

func (r *stageRecorder) ObserveStage(testName, stage string, d time.Duration) {
	r.stages = append(r.stages, testName+":"+stage)
}

func testOptions(dir string) Options {
	opts := DefaultOptions()
	opts.ReportDir = dir
	opts.ShardID = "3"
	opts.Profile = model.Profile{Name: "chromium-desktop", Viewport: model.Viewport{Width: 1920, Height: 1080}}
	opts.RetryDelay = time.Millisecond
	opts.BaseURLs = map[model.Environment]string{
		model.EnvironmentBaseline:   "https://old.example.com",
		model.EnvironmentComparison: "https://new.example.com/",
	}
	return opts
}

var record = model.URLPair{ID: 7, Baseline: "/about", Comparison: "about-us"}

func TestCaptureWritesScreenshot(t *testing.T) {
	dir := t.TempDir()
	strategy := &countingStrategy{}
	opts := testOptions(dir)
	opts.Strategies = map[model.Environment]isolate.Strategy{model.EnvironmentBaseline: strategy}
	stages := &stageRecorder{}

	page := &fakePage{status: 200, height: 2000, shot: pngBytes(t, color.White)}
	o := New(zerolog.Nop(), opts, WithObserver(stages))

	res, err := o.Capture(context.Background(), page, record, model.EnvironmentBaseline)
	require.NoError(t, err)

	want := filepath.Join(dir, "screenshots", "chromium-desktop", "baseline", "7.png")
	require.Equal(t, want, res.ArtifactPath)
	require.Equal(t, 200, res.Status)
	require.Equal(t, "1920x1080", res.Viewport)
	require.Equal(t, "chromium", res.Browser)
	require.FileExists(t, want)
	require.Equal(t, []string{"https://old.example.com/about"}, page.navigated)
	require.Equal(t, []bool{true}, page.fullPage)
	require.Equal(t, 1, strategy.calls)
	require.Equal(t, []string{"7:navigate", "7:isolate", "7:screenshot"}, stages.stages)
	require.NoFileExists(t, AdvisoryPath(dir, "3"))
}

func TestCaptureRetriesTransientFailures(t *testing.T) {
	page := &fakePage{status: 200, height: 100, navFailures: 2, shot: pngBytes(t, color.White)}
	o := New(zerolog.Nop(), testOptions(t.TempDir()))

	_, err := o.Capture(context.Background(), page, record, model.EnvironmentComparison)
	require.NoError(t, err)
	require.Len(t, page.navigated, 3)
	require.Equal(t, "https://new.example.com/about-us", page.navigated[0])
}

func TestCaptureFailsAfterRetries(t *testing.T) {
	page := &fakePage{status: 200, navFailures: 5}
	o := New(zerolog.Nop(), testOptions(t.TempDir()))

	_, err := o.Capture(context.Background(), page, record, model.EnvironmentBaseline)
	require.Error(t, err)
	require.Contains(t, err.Error(), "net::ERR_CONNECTION_RESET")
	require.Len(t, page.navigated, 3)
}

func TestCaptureOversizePage(t *testing.T) {
	dir := t.TempDir()
	page := &fakePage{status: 200, height: 40000, shot: pngBytes(t, color.White)}
	o := New(zerolog.Nop(), testOptions(dir))

	res, err := o.Capture(context.Background(), page, record, model.EnvironmentBaseline)
	require.NoError(t, err)
	require.True(t, res.Oversize)
	require.Equal(t, []bool{false}, page.fullPage)

	advisories, err := ReadAdvisories(AdvisoryPath(dir, "3"))
	require.NoError(t, err)
	require.Equal(t, []model.OversizeAdvisory{{
		TestName:      "7",
		Device:        "chromium-desktop",
		URL:           "https://old.example.com/about",
		ContentHeight: 40000,
	}}, advisories)
}

func TestCaptureIsolationFallbackStillCaptures(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	opts.Strategies = map[model.Environment]isolate.Strategy{
		model.EnvironmentBaseline: isolate.SingleBlock{Block: "#missing", Attempts: 3, Delay: time.Millisecond},
	}
	page := &fakePage{status: 200, height: 500, shot: pngBytes(t, color.White)}

	res, err := New(zerolog.Nop(), opts).Capture(context.Background(), page, record, model.EnvironmentBaseline)
	require.NoError(t, err)

	info, err := os.Stat(res.ArtifactPath)
	require.NoError(t, err)
	require.NotZero(t, info.Size())
}

func TestCompare(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	engine := similarity.New(zerolog.Nop(), similarity.PixelDifference{Threshold: 10}, 10)
	o := New(zerolog.Nop(), opts, WithEngine(engine))

	baseline := &fakePage{status: 200, height: 100, shot: pngBytes(t, color.White)}
	_, err := o.Capture(context.Background(), baseline, record, model.EnvironmentBaseline)
	require.NoError(t, err)

	comparison := &fakePage{status: 200, height: 100, shot: pngBytes(t, color.White)}
	res, err := o.Compare(context.Background(), Pages{Baseline: baseline, Comparison: comparison}, record)
	require.NoError(t, err)

	require.Equal(t, 100, res.Similarity)
	require.Equal(t, 200, res.BaselineStatus)
	require.Equal(t, 200, res.ComparisonStatus)
	require.Equal(t, "https://old.example.com/about", res.BaselineURL)
	require.Equal(t, "https://new.example.com/about-us", res.ComparisonURL)
	require.FileExists(t, res.DiffPath)
	require.Empty(t, res.Error)
}

func TestCompareHTTPError(t *testing.T) {
	dir := t.TempDir()
	engine := similarity.New(zerolog.Nop(), similarity.PerceptualHash{}, 10)
	o := New(zerolog.Nop(), testOptions(dir), WithEngine(engine))

	baseline := &fakePage{status: 200, height: 100, shot: pngBytes(t, color.White)}
	_, err := o.Capture(context.Background(), baseline, record, model.EnvironmentBaseline)
	require.NoError(t, err)

	comparison := &fakePage{status: 404, height: 100, shot: pngBytes(t, color.White)}
	res, err := o.Compare(context.Background(), Pages{Baseline: baseline, Comparison: comparison}, record)
	require.NoError(t, err)
	require.Equal(t, 0, res.Similarity)
	require.Equal(t, 404, res.ComparisonStatus)
}

func TestCompareMissingBaseline(t *testing.T) {
	engine := similarity.New(zerolog.Nop(), similarity.PerceptualHash{}, 10)
	o := New(zerolog.Nop(), testOptions(t.TempDir()), WithEngine(engine))

	baseline := &fakePage{status: 200}
	comparison := &fakePage{status: 301}
	res, err := o.Compare(context.Background(), Pages{Baseline: baseline, Comparison: comparison}, record)
	require.NoError(t, err)
	require.Equal(t, 0, res.Similarity)
	require.Equal(t, MissingBaselineError, res.Error)
	require.Empty(t, res.BaselinePath)
	require.Empty(t, res.ComparisonPath)
	require.Empty(t, res.DiffPath)
	require.Equal(t, "https://old.example.com/about", res.BaselineURL)
	require.Empty(t, baseline.navigated)
	require.Empty(t, comparison.navigated)
}

func TestCompareMissingBaselineUnreachable(t *testing.T) {
	engine := similarity.New(zerolog.Nop(), similarity.PerceptualHash{}, 10)
	o := New(zerolog.Nop(), testOptions(t.TempDir()), WithEngine(engine))

	baseline := &fakePage{navFailures: 100}
	comparison := &fakePage{navFailures: 100}
	res, err := o.Compare(context.Background(), Pages{Baseline: baseline, Comparison: comparison}, record)
	require.NoError(t, err)
	require.Equal(t, MissingBaselineError, res.Error)
	require.Equal(t, 0, res.BaselineStatus)
	require.Equal(t, 0, res.ComparisonStatus)
	require.Empty(t, baseline.navigated)
}

func TestAdvisoryLogAppends(t *testing.T) {
	dir := t.TempDir()
	first := NewAdvisoryLog(dir, "1")
	require.NoError(t, first.Add(model.OversizeAdvisory{TestName: "1", ContentHeight: 40000}))

	second := NewAdvisoryLog(dir, "1")
	require.NoError(t, second.Add(model.OversizeAdvisory{TestName: "2", ContentHeight: 50000}))

	got, err := ReadAdvisories(second.Path())
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestReadAdvisoriesSingleObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page-limit-exceed-9.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"testName":"4","device":"d","url":"u","contentHeight":33000}`), 0644))

	got, err := ReadAdvisories(path)
	require.NoError(t, err)
	require.Equal(t, []model.OversizeAdvisory{{TestName: "4", Device: "d", URL: "u", ContentHeight: 33000}}, got)
}
