// Package browser drives a Chromium browser over the DevTools protocol and
// provides the pages the runner captures with. Every page lives in its own
// incognito context, so environments never share cookies.
package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/perfgo/vrtgo/failure"
	"github.com/perfgo/vrtgo/model"
	"github.com/perfgo/vrtgo/runner"
)

// ErrLaunch is returned when the browser cannot be started or reached.
var ErrLaunch = errors.New("failed to launch browser")

// Client manages one browser process shared by all pages of a shard run.
type Client struct {
	logger     zerolog.Logger
	bin        string
	controlURL string
	headless   bool
	flags      map[string]string
	sessions   map[model.Environment]*model.SessionState
	basicAuth  map[model.Environment]string

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// Option is a function that configures a browser client.
type Option func(*Client)

// WithBin sets the browser executable. By default a browser is downloaded.
func WithBin(path string) Option {
	return func(c *Client) {
		c.bin = path
	}
}

// WithControlURL connects to a running browser instead of launching one.
func WithControlURL(url string) Option {
	return func(c *Client) {
		c.controlURL = url
	}
}

// WithHeadless sets whether a launched browser is headless.
func WithHeadless(headless bool) Option {
	return func(c *Client) {
		c.headless = headless
	}
}

// WithFlags adds command line flags for a launched browser. An empty value
// sets a flag without a value.
func WithFlags(f map[string]string) Option {
	return func(c *Client) {
		for name, value := range f {
			c.flags[strings.TrimLeft(name, "-")] = value
		}
	}
}

// WithSession loads the cookies of state into every page opened for env.
func WithSession(env model.Environment, state *model.SessionState) Option {
	return func(c *Client) {
		c.sessions[env] = state
	}
}

// WithBasicAuth sends HTTP basic credentials from every page opened for env.
func WithBasicAuth(env model.Environment, username, password string) Option {
	return func(c *Client) {
		c.basicAuth[env] = basicAuthHeader(username, password)
	}
}

// New creates a browser client. The browser starts on the first OpenPage
// or an explicit Start.
func New(logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		logger:    logger,
		headless:  true,
		flags:     make(map[string]string),
		sessions:  make(map[model.Environment]*model.SessionState),
		basicAuth: make(map[model.Environment]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start launches or connects to the browser.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(ctx)
}

func (c *Client) startLocked(ctx context.Context) error {
	if c.browser != nil {
		return nil
	}

	controlURL := c.controlURL
	if controlURL == "" {
		l := launcher.New().Headless(c.headless)
		if c.bin != "" {
			l = l.Bin(c.bin)
		}
		for _, name := range sortedKeys(c.flags) {
			if value := c.flags[name]; value != "" {
				l = l.Set(flags.Flag(name), value)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}

		url, err := l.Context(ctx).Launch()
		if err != nil {
			return launchError(fmt.Errorf("%w: %w", ErrLaunch, err))
		}
		c.launcher = l
		controlURL = url
		c.logger.Debug().Str("url", controlURL).Msg("Launched browser")
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		if c.launcher != nil {
			c.launcher.Kill()
			c.launcher = nil
		}
		return launchError(fmt.Errorf("%w: failed to connect to %s: %w", ErrLaunch, controlURL, err))
	}
	c.browser = b
	return nil
}

// OpenPage opens a page in a fresh incognito context emulating profile,
// with the authentication configured for env.
func (c *Client) OpenPage(ctx context.Context, profile model.Profile, env model.Environment) (runner.Page, error) {
	c.mu.Lock()
	if err := c.startLocked(ctx); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	b := c.browser
	c.mu.Unlock()

	incognito, err := b.Incognito()
	if err != nil {
		return nil, launchError(fmt.Errorf("failed to create incognito context: %w", err))
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		if derr := disposeContext(b, incognito); derr != nil {
			c.logger.Debug().Err(derr).Msg("Failed to dispose browser context")
		}
		return nil, launchError(fmt.Errorf("failed to create page: %w", err))
	}

	p := &Page{
		logger:  c.logger.With().Str("profile", profile.Name).Str("env", string(env)).Logger(),
		page:    page,
		browser: b,
		context: incognito,
	}

	if err := p.emulate(profile); err != nil {
		p.Close()
		return nil, err
	}

	if header, ok := c.basicAuth[env]; ok {
		if _, err := page.SetExtraHeaders([]string{"Authorization", header}); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to set authorization header: %w", err)
		}
	}

	if state := c.sessions[env]; state != nil && len(state.Cookies) > 0 {
		if err := page.SetCookies(cookieParams(state.Cookies)); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to load session cookies: %w", err)
		}
		p.logger.Debug().Int("cookies", len(state.Cookies)).Msg("Loaded session cookies")
	}

	return p, nil
}

// Close closes the browser, killing it when it was launched by the client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.browser != nil {
		err = c.browser.Close()
		c.browser = nil
	}
	if c.launcher != nil {
		c.launcher.Kill()
		c.launcher = nil
	}
	return err
}

func launchError(err error) error {
	return failure.WithSource(model.FailureSourceRunner, err)
}

func disposeContext(b, incognito *rod.Browser) error {
	return proto.TargetDisposeBrowserContext{BrowserContextID: incognito.BrowserContextID}.Call(b)
}

func basicAuthHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
