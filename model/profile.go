package model

import (
	"fmt"
	"strings"
)

// Viewport is a width and height in CSS pixels.
type Viewport struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// String formats the viewport as "WxH".
func (v Viewport) String() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

// Profile is a device/browser configuration a shard is captured under.
type Profile struct {
	// Name used in artifact paths, e.g. "chromium-desktop"
	Name string `json:"name" yaml:"name"`
	// Browser name reported in results; derived from Name when empty
	Browser string `json:"browser,omitempty" yaml:"browser"`
	// Emulated viewport
	Viewport Viewport `json:"viewport" yaml:"viewport"`
	// Device scale factor (1 when unset)
	Scale float64 `json:"scale,omitempty" yaml:"scale"`
	// Emulate a mobile device
	Mobile bool `json:"mobile,omitempty" yaml:"mobile"`
	// Enable touch emulation
	Touch bool `json:"touch,omitempty" yaml:"touch"`
	// User agent override
	UserAgent string `json:"userAgent,omitempty" yaml:"userAgent"`
}

// BrowserName returns the browser label for results. Profiles named
// "<browser>-<form factor>" yield the browser part; Apple devices report
// webkit and everything else chromium.
func (p Profile) BrowserName() string {
	if p.Browser != "" {
		return p.Browser
	}
	name := strings.ToLower(p.Name)
	if strings.Contains(name, "iphone") || strings.Contains(name, "ipad") {
		return "webkit"
	}
	if prefix, _, ok := strings.Cut(name, "-"); ok {
		switch prefix {
		case "chromium", "firefox", "webkit":
			return prefix
		}
	}
	return "chromium"
}

// DeviceScale returns the device scale factor, defaulting to 1.
func (p Profile) DeviceScale() float64 {
	if p.Scale <= 0 {
		return 1
	}
	return p.Scale
}

// DefaultProfiles returns the built-in device profiles.
func DefaultProfiles() []Profile {
	return []Profile{
		{Name: "chromium-desktop", Viewport: Viewport{Width: 1920, Height: 1080}},
		{Name: "firefox-desktop", Viewport: Viewport{Width: 1920, Height: 1080}},
		{Name: "webkit-desktop", Viewport: Viewport{Width: 1920, Height: 1080}},
		{
			Name:      "iphone-14-pro-max",
			Viewport:  Viewport{Width: 430, Height: 932},
			Scale:     3,
			Mobile:    true,
			Touch:     true,
			UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
		},
		{
			Name:      "samsung-s23-ultra",
			Browser:   "chromium",
			Viewport:  Viewport{Width: 412, Height: 915},
			Scale:     3.5,
			Mobile:    true,
			Touch:     true,
			UserAgent: "Mozilla/5.0 (Linux; Android 13; SM-S918B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
		},
	}
}
