// Package config loads the tool configuration from a YAML file, a .env file
// and environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/perfgo/vrtgo/isolate"
	"github.com/perfgo/vrtgo/model"
	"github.com/perfgo/vrtgo/shard"
	"github.com/perfgo/vrtgo/similarity"
)

// ErrInvalid is wrapped by every configuration validation error.
var ErrInvalid = errors.New("invalid configuration")

// DefaultFile is the config file read when no path is given.
const DefaultFile = "vrtgo.yaml"

// Config is the complete tool configuration.
type Config struct {
	URLs           URLs           `yaml:"urls"`
	Capture        Capture        `yaml:"capture"`
	Thresholds     Thresholds     `yaml:"thresholds"`
	Similarity     Similarity     `yaml:"similarity"`
	Authentication Authentication `yaml:"authentication"`
	Reporting      Reporting      `yaml:"reporting"`
	Sharding       Sharding       `yaml:"sharding"`
	Timeouts       Timeouts       `yaml:"timeouts"`
	Retry          Retry          `yaml:"retry"`
	Isolation      Isolation      `yaml:"isolation"`
	Browser        Browser        `yaml:"browser"`
	Session        Session        `yaml:"session"`
	// Device profiles every shard is captured under
	Profiles []model.Profile `yaml:"profiles"`
	// Directory holding urls.json and the shard files
	Fixtures string `yaml:"fixtures"`
	// Test type identifier written into result sets
	TestTypeID string `yaml:"testTypeId"`

	// Basic auth credentials, only read from the environment
	Credentials Credentials `yaml:"-"`

	strategies map[model.Environment]isolate.Strategy
	algorithm  similarity.Algorithm
}

// URLs holds the base URL of each environment.
type URLs struct {
	Baseline   string `yaml:"baseline"`
	Comparison string `yaml:"comparison"`
}

// Capture configures content isolation.
type Capture struct {
	Mode  CaptureMode `yaml:"mode"`
	Full  FullMode    `yaml:"full"`
	Embed EmbedMode   `yaml:"embed"`
}

// FullMode lists regions hidden in whole-page captures.
type FullMode struct {
	Hide       Selectors    `yaml:"hide"` // Hidden in both environments
	Baseline   FullSettings `yaml:"baseline"`
	Comparison FullSettings `yaml:"comparison"`
}

// FullSettings are the per-environment whole-page settings.
type FullSettings struct {
	Hide Selectors `yaml:"hide"`
}

// EmbedMode configures single-block captures per environment.
type EmbedMode struct {
	Baseline   EmbedSettings `yaml:"baseline"`
	Comparison EmbedSettings `yaml:"comparison"`
}

// EmbedSettings are the per-environment single-block settings.
type EmbedSettings struct {
	Block string    `yaml:"block"`
	Hide  Selectors `yaml:"hide"`
}

// Thresholds groups the numeric thresholds.
type Thresholds struct {
	Pixel      int               `yaml:"pixel"`   // Per-channel tolerance, 0..100
	Failure    float64           `yaml:"failure"` // Early failure ratio that aborts a shard
	Similarity SimilarityBuckets `yaml:"similarity"`
}

// SimilarityBuckets holds the similarity buckets used in summaries.
type SimilarityBuckets struct {
	High   int `yaml:"high"`
	Medium int `yaml:"medium"`
}

// Similarity selects the similarity algorithm.
type Similarity struct {
	Method DiffMethod `yaml:"method"`
}

// Authentication holds the auth method of each environment.
type Authentication struct {
	Baseline   AuthMethod `yaml:"baseline"`
	Comparison AuthMethod `yaml:"comparison"`
}

// Method returns the auth method of env.
func (a Authentication) Method(env model.Environment) AuthMethod {
	if env == model.EnvironmentComparison {
		return a.Comparison
	}
	return a.Baseline
}

// Reporting configures where artifacts go.
type Reporting struct {
	Root string `yaml:"root"`
}

// Sharding holds the shard planner limits.
type Sharding struct {
	Min       int `yaml:"min"`
	Max       int `yaml:"max"`
	MaxShards int `yaml:"maxShards"`
}

// Timeouts bounds blocking operations.
type Timeouts struct {
	Navigation time.Duration `yaml:"navigation"`
	Action     time.Duration `yaml:"action"`
	Shard      time.Duration `yaml:"shard"`
}

// Retry is the capture retry policy.
type Retry struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// Isolation tunes the single-block strategy.
type Isolation struct {
	Attempts       int           `yaml:"attempts"`
	Delay          time.Duration `yaml:"delay"`
	VisibleTimeout time.Duration `yaml:"visibleTimeout"`
	Settle         time.Duration `yaml:"settle"`
}

// Browser configures the browser driver.
type Browser struct {
	Bin        string            `yaml:"bin"`        // Browser executable, downloaded when empty
	ControlURL string            `yaml:"controlURL"` // Connect to a running browser instead of launching
	Headless   *bool             `yaml:"headless"`
	Flags      map[string]string `yaml:"flags"`
}

// IsHeadless reports whether the browser runs headless (default true).
func (b Browser) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

// Session points at the stored authentication session.
type Session struct {
	Path string `yaml:"path"`
}

// Credentials are HTTP basic auth credentials.
type Credentials struct {
	Username string
	Password string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		URLs: URLs{
			Baseline:   "https://baseline.example.com",
			Comparison: "https://comparison.example.com",
		},
		Capture: Capture{
			Mode: ModeFull,
			Embed: EmbedMode{
				Baseline:   EmbedSettings{Block: `[data-block="content-main"]`},
				Comparison: EmbedSettings{Block: `[data-block="content-main"]`},
			},
		},
		Thresholds: Thresholds{
			Pixel:      10,
			Failure:    0.1,
			Similarity: SimilarityBuckets{High: 90, Medium: 80},
		},
		Similarity:     Similarity{Method: MethodHash},
		Authentication: Authentication{Baseline: AuthNone, Comparison: AuthNone},
		Reporting:      Reporting{Root: "public"},
		Sharding:       Sharding{Min: 25, Max: 50, MaxShards: 256},
		Timeouts: Timeouts{
			Navigation: 120 * time.Second,
			Action:     60 * time.Second,
			Shard:      30 * time.Minute,
		},
		Retry: Retry{Attempts: 3, Delay: 5 * time.Second},
		Isolation: Isolation{
			Attempts:       3,
			Delay:          2 * time.Second,
			VisibleTimeout: 10 * time.Second,
			Settle:         time.Second,
		},
		Session:    Session{Path: filepath.Join(".auth", "session.json")},
		Profiles:   model.DefaultProfiles(),
		Fixtures:   "fixtures",
		TestTypeID: model.DefaultTestTypeID,
	}
}

// Load reads the .env file next to the working directory, the YAML file at
// path and the environment, then validates the result and resolves the
// capture strategies and similarity algorithm. A missing file at path
// leaves the defaults in place.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := cfg.Decode(data); err != nil {
				return nil, err
			}
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode overlays YAML data onto the configuration. Unknown keys are
// rejected.
func (c *Config) Decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// ApplyEnv applies environment overrides read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("TEST_MODE"); ok {
		mode, err := ParseCaptureMode(v)
		if err != nil {
			return err
		}
		c.Capture.Mode = mode
	}
	if v, ok := get("IMAGE_DIFF_METHOD"); ok {
		method, err := ParseDiffMethod(v)
		if err != nil {
			return err
		}
		c.Similarity.Method = method
	}
	if v, ok := get("BASELINE_URL"); ok {
		c.URLs.Baseline = v
	}
	if v, ok := get("COMPARISON_URL"); ok {
		c.URLs.Comparison = v
	}
	if v, ok := get("AUTHENTICATION_BASELINE"); ok {
		c.Authentication.Baseline = AuthMethod(strings.ToUpper(v))
	}
	if v, ok := get("AUTHENTICATION_COMPARISON"); ok {
		c.Authentication.Comparison = AuthMethod(strings.ToUpper(v))
	}
	if v, ok := get("REPORT_ROOT"); ok {
		c.Reporting.Root = v
	}
	if v, ok := get("SESSION_PATH"); ok {
		c.Session.Path = v
	}
	if v, ok := get("HTTP_USERNAME"); ok {
		c.Credentials.Username = v
	}
	if v, ok := get("HTTP_PASSWORD"); ok {
		c.Credentials.Password = v
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.URLs.Baseline != "", "urls.baseline is required")
	check(c.URLs.Comparison != "", "urls.comparison is required")
	check(c.Thresholds.Pixel >= 0 && c.Thresholds.Pixel <= 100, "thresholds.pixel must be within 0..100, got %d", c.Thresholds.Pixel)
	check(c.Thresholds.Failure >= 0 && c.Thresholds.Failure <= 1, "thresholds.failure must be within 0..1, got %v", c.Thresholds.Failure)
	check(c.Retry.Attempts >= 1, "retry.attempts must be at least 1")
	check(c.Isolation.Attempts >= 1, "isolation.attempts must be at least 1")
	check(len(c.Profiles) > 0, "at least one profile is required")
	check(c.Reporting.Root != "", "reporting.root is required")

	if err := c.ShardLimits().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sharding: %w", err))
	}
	if c.Capture.Mode == ModeEmbed {
		check(c.Capture.Embed.Baseline.Block != "", "capture.embed.baseline.block is required in EMBED mode")
		check(c.Capture.Embed.Comparison.Block != "", "capture.embed.comparison.block is required in EMBED mode")
	}
	for _, env := range []model.Environment{model.EnvironmentBaseline, model.EnvironmentComparison} {
		if c.Authentication.Method(env) == AuthBasic {
			check(c.Credentials.Username != "" && c.Credentials.Password != "",
				"%s uses BASIC authentication but HTTP_USERNAME or HTTP_PASSWORD is not set", env)
		}
	}

	seen := map[string]bool{}
	for _, p := range c.Profiles {
		check(p.Name != "", "profile without a name")
		check(!seen[p.Name], "duplicate profile %q", p.Name)
		check(p.Viewport.Width > 0 && p.Viewport.Height > 0, "profile %q needs a positive viewport", p.Name)
		seen[p.Name] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Finalize validates the configuration and resolves the capture strategy of
// each environment and the similarity algorithm.
func (c *Config) Finalize() error {
	if err := c.Validate(); err != nil {
		return err
	}

	c.strategies = map[model.Environment]isolate.Strategy{
		model.EnvironmentBaseline:   c.strategy(model.EnvironmentBaseline),
		model.EnvironmentComparison: c.strategy(model.EnvironmentComparison),
	}

	switch c.Similarity.Method {
	case MethodPixel:
		c.algorithm = similarity.PixelDifference{Threshold: c.Thresholds.Pixel}
	default:
		c.algorithm = similarity.PerceptualHash{}
	}
	return nil
}

func (c *Config) strategy(env model.Environment) isolate.Strategy {
	if c.Capture.Mode == ModeEmbed {
		settings := c.Capture.Embed.Baseline
		if env == model.EnvironmentComparison {
			settings = c.Capture.Embed.Comparison
		}
		return isolate.SingleBlock{
			Block:          settings.Block,
			Hide:           settings.Hide,
			Attempts:       c.Isolation.Attempts,
			Delay:          c.Isolation.Delay,
			VisibleTimeout: c.Isolation.VisibleTimeout,
			Settle:         c.Isolation.Settle,
		}
	}

	perEnv := c.Capture.Full.Baseline.Hide
	if env == model.EnvironmentComparison {
		perEnv = c.Capture.Full.Comparison.Hide
	}
	hide := append(append([]string{}, c.Capture.Full.Hide...), perEnv...)
	return isolate.WholePage{Hide: hide}
}

// Strategies returns the capture strategy of each environment. It is nil
// until Finalize succeeds.
func (c *Config) Strategies() map[model.Environment]isolate.Strategy {
	return c.strategies
}

// Algorithm returns the similarity algorithm. It is nil until Finalize
// succeeds.
func (c *Config) Algorithm() similarity.Algorithm {
	return c.algorithm
}

// ShardLimits returns the shard planner limits.
func (c *Config) ShardLimits() shard.Limits {
	return shard.Limits{
		MinPerShard: c.Sharding.Min,
		MaxPerShard: c.Sharding.Max,
		MaxShards:   c.Sharding.MaxShards,
	}
}

// BaseURLs returns the base URL of each environment.
func (c *Config) BaseURLs() map[model.Environment]string {
	return map[model.Environment]string{
		model.EnvironmentBaseline:   c.URLs.Baseline,
		model.EnvironmentComparison: c.URLs.Comparison,
	}
}

// ReportDir is the directory all visual diff artifacts are written to.
func (c *Config) ReportDir() string {
	return filepath.Join(c.Reporting.Root, "visual-diff")
}

// ShardDir is the directory holding shard input files and the manifest.
func (c *Config) ShardDir() string {
	return filepath.Join(c.Fixtures, "urls")
}

// URLsFile is the full record list the planner reads.
func (c *Config) URLsFile() string {
	return filepath.Join(c.Fixtures, "urls.json")
}

// FullURLsFile is the unfiltered record list the id filter reads.
func (c *Config) FullURLsFile() string {
	return filepath.Join(c.Fixtures, "urls-full.json")
}

// Profile returns the profile named name.
func (c *Config) Profile(name string) (model.Profile, bool) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return model.Profile{}, false
}
