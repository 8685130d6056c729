// Package isolate prepares a loaded page for capture by hiding content that
// must not take part in the comparison.
package isolate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/perfgo/vrtgo/retry"
)

// Page is the subset of browser page operations isolation needs.
type Page interface {
	// Eval runs a function expression with args and returns its JSON result.
	Eval(ctx context.Context, script string, args ...any) (json.RawMessage, error)
	// WaitVisible blocks until selector matches a visible element.
	WaitVisible(ctx context.Context, selector string) error
}

// Outcome describes what a strategy did to the page.
type Outcome struct {
	// Block was found and the page reduced to it
	Isolated bool
	// Block was not found; the whole page is captured
	FellBack bool
	// Block was isolated but not visible afterwards
	NotVisible bool
	// Number of elements hidden
	Hidden int
}

// Strategy is a content isolation policy.
type Strategy interface {
	Name() string
	Apply(ctx context.Context, logger zerolog.Logger, page Page) (Outcome, error)
}

// WholePage hides the configured regions and otherwise leaves the layout
// alone.
type WholePage struct {
	Hide []string
}

func (WholePage) Name() string { return "FULL" }

func (w WholePage) Apply(ctx context.Context, logger zerolog.Logger, page Page) (Outcome, error) {
	if len(w.Hide) == 0 {
		return Outcome{}, nil
	}

	var hidden int
	raw, err := page.Eval(ctx, hideVisibilityScript, w.Hide)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to hide elements: %w", err)
	}
	if err := json.Unmarshal(raw, &hidden); err != nil {
		return Outcome{}, fmt.Errorf("failed to decode hide result: %w", err)
	}

	logger.Debug().Int("selectors", len(w.Hide)).Int("hidden", hidden).Msg("Hid elements")
	return Outcome{Hidden: hidden}, nil
}

// SingleBlock reduces the page to one content block.
type SingleBlock struct {
	// Selector of the block to keep
	Block string
	// Selectors hidden anywhere in the document
	Hide []string
	// Lookup attempts and the delay between them
	Attempts int
	Delay    time.Duration
	// Time to wait for the block to become visible
	VisibleTimeout time.Duration
	// Pause after modifying the page before verifying visibility
	Settle time.Duration
}

var errBlockAbsent = errors.New("block not found")

func (SingleBlock) Name() string { return "EMBED" }

func (s SingleBlock) Apply(ctx context.Context, logger zerolog.Logger, page Page) (Outcome, error) {
	logger = logger.With().Str("block", s.Block).Logger()

	err := retry.Do(ctx, s.Attempts, s.Delay, func(ctx context.Context, attempt int) error {
		found, err := evalBool(ctx, page, existsScript, s.Block)
		if err != nil {
			return err
		}
		if !found {
			return errBlockAbsent
		}
		return nil
	}, func(attempt int, err error) {
		logger.Debug().Err(err).Int("attempt", attempt).Msg("Block not found yet")
	})
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		logger.Warn().Err(err).Msg("Block not found, capturing full page")
		return Outcome{FellBack: true}, nil
	}

	waitCtx := ctx
	if s.VisibleTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.VisibleTimeout)
		defer cancel()
	}
	if err := page.WaitVisible(waitCtx, s.Block); err != nil {
		logger.Debug().Err(err).Msg("Block not visible within timeout, continuing")
	}

	hide := s.Hide
	if hide == nil {
		hide = []string{}
	}
	raw, err := page.Eval(ctx, isolateBlockScript, s.Block, hide)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to isolate block: %w", err)
	}
	var hidden int
	if err := json.Unmarshal(raw, &hidden); err != nil {
		return Outcome{}, fmt.Errorf("failed to decode isolation result: %w", err)
	}
	if hidden < 0 {
		logger.Warn().Msg("Block disappeared before isolation, capturing full page")
		return Outcome{FellBack: true}, nil
	}

	if err := sleep(ctx, s.Settle); err != nil {
		return Outcome{}, err
	}

	out := Outcome{Isolated: true, Hidden: hidden}
	visible, err := evalBool(ctx, page, visibleScript, s.Block)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to verify block visibility: %w", err)
	}
	if !visible {
		logger.Warn().Msg("Block is not visible after isolation, capturing what is visible")
		out.NotVisible = true
	}

	logger.Debug().Int("hidden", hidden).Bool("visible", visible).Msg("Isolated block")
	return out, nil
}

// SplitSelectors parses a comma separated selector list. Blank entries and
// the literal "NULL" are dropped.
func SplitSelectors(s string) []string {
	if strings.TrimSpace(s) == "NULL" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" && part != "NULL" {
			out = append(out, part)
		}
	}
	return out
}

func evalBool(ctx context.Context, page Page, script string, args ...any) (bool, error) {
	raw, err := page.Eval(ctx, script, args...)
	if err != nil {
		return false, err
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, fmt.Errorf("failed to decode script result: %w", err)
	}
	return b, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
