package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProfileBrowserName(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    string
	}{
		{name: "browser prefix", profile: Profile{Name: "firefox-desktop"}, want: "firefox"},
		{name: "iphone", profile: Profile{Name: "iphone-14-pro-max"}, want: "webkit"},
		{name: "unknown device", profile: Profile{Name: "samsung-s23-ultra"}, want: "chromium"},
		{name: "explicit", profile: Profile{Name: "custom", Browser: "edge"}, want: "edge"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.profile.BrowserName())
		})
	}
}

func TestJoinURL(t *testing.T) {
	require.Equal(t, "https://a.example/about", JoinURL("https://a.example/", "/about"))
	require.Equal(t, "https://a.example/about", JoinURL("https://a.example", "about"))
	require.Equal(t, "https://a.example/", JoinURL("https://a.example", ""))
}

func TestViewportString(t *testing.T) {
	require.Equal(t, "1920x1080", Viewport{Width: 1920, Height: 1080}.String())
}
