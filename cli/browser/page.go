package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/perfgo/vrtgo/model"
)

// documentGrace bounds the wait for the main document response after the
// page finished loading.
const documentGrace = 2 * time.Second

// Page is a browser page in its own incognito context.
type Page struct {
	logger  zerolog.Logger
	page    *rod.Page
	browser *rod.Browser
	context *rod.Browser
}

func (p *Page) emulate(profile model.Profile) error {
	err := proto.EmulationSetDeviceMetricsOverride{
		Width:             profile.Viewport.Width,
		Height:            profile.Viewport.Height,
		DeviceScaleFactor: profile.DeviceScale(),
		Mobile:            profile.Mobile,
	}.Call(p.page)
	if err != nil {
		return fmt.Errorf("failed to set viewport: %w", err)
	}

	if profile.Touch {
		if err := (proto.EmulationSetTouchEmulationEnabled{Enabled: true}).Call(p.page); err != nil {
			return fmt.Errorf("failed to enable touch emulation: %w", err)
		}
	}

	if profile.UserAgent != "" {
		if err := p.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: profile.UserAgent}); err != nil {
			return fmt.Errorf("failed to set user agent: %w", err)
		}
	}
	return nil
}

// Navigate loads url and returns the HTTP status of the main document. A
// page that loads without a document response reports 500.
func (p *Page) Navigate(ctx context.Context, url string) (int, error) {
	eventCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	status := 0
	wait := p.page.Context(eventCtx).EachEvent(func(ev *proto.NetworkResponseReceived) bool {
		if ev.Type != proto.NetworkResourceTypeDocument || ev.Response == nil {
			return false
		}
		status = ev.Response.Status
		return true
	})

	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return 0, err
	}
	if err := page.WaitLoad(); err != nil {
		return 0, fmt.Errorf("failed to wait for page load: %w", err)
	}

	timer := time.AfterFunc(documentGrace, cancel)
	wait()
	timer.Stop()

	if status == 0 {
		p.logger.Debug().Str("url", url).Msg("No document response observed")
		return http.StatusInternalServerError, nil
	}
	return status, nil
}

// Eval runs a function expression with args and returns its result as JSON.
func (p *Page) Eval(ctx context.Context, script string, args ...any) (json.RawMessage, error) {
	obj, err := p.page.Context(ctx).Eval(script, args...)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(obj.Value.JSON("", "")), nil
}

// WaitVisible waits until selector matches a visible element.
func (p *Page) WaitVisible(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	return el.WaitVisible()
}

// Screenshot captures the page as PNG, the whole document when fullPage is
// set and the viewport otherwise.
func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// Cookies returns the cookies visible to the current page URL.
func (p *Page) Cookies(ctx context.Context) ([]model.Cookie, error) {
	cookies, err := p.page.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, err
	}
	return fromProtoCookies(cookies), nil
}

// Close closes the page and disposes of its incognito context.
func (p *Page) Close() error {
	err := p.page.Close()
	if derr := disposeContext(p.browser, p.context); derr != nil {
		p.logger.Debug().Err(derr).Msg("Failed to dispose browser context")
	}
	return err
}
