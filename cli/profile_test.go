package cli

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveFirstDashDash(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "empty slice",
			in:   []string{},
			want: []string{},
		},
		{
			name: "starts with --",
			in:   []string{"--", "-http=:8080", "-top"},
			want: []string{"-http=:8080", "-top"},
		},
		{
			name: "only --",
			in:   []string{"--"},
			want: []string{},
		},
		{
			name: "-- in middle",
			in:   []string{"-top", "--", "-http=:8080"},
			want: []string{"-top", "--", "-http=:8080"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := removeFirstDashDash(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("removeFirstDashDash() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseProfileArgs(t *testing.T) {
	tests := []struct {
		name          string
		in            []string
		wantSelector  string
		wantPprofArgs []string
	}{
		{
			name:          "empty args - default to 0",
			in:            []string{},
			wantSelector:  "0",
			wantPprofArgs: nil,
		},
		{
			name:          "only negative index",
			in:            []string{"-1"},
			wantSelector:  "-1",
			wantPprofArgs: []string{},
		},
		{
			name:          "only shard-profile name",
			in:            []string{"3-chromium-desktop"},
			wantSelector:  "3-chromium-desktop",
			wantPprofArgs: []string{},
		},
		{
			name:          "only pprof args",
			in:            []string{"-http=:8080"},
			wantSelector:  "0",
			wantPprofArgs: []string{"-http=:8080"},
		},
		{
			name:          "name with -- separator and pprof args",
			in:            []string{"3-chromium-desktop", "--", "-http=:8080", "-top"},
			wantSelector:  "3-chromium-desktop",
			wantPprofArgs: []string{"-http=:8080", "-top"},
		},
		{
			name:          "negative index with pprof args no separator",
			in:            []string{"-2", "-top", "-cum"},
			wantSelector:  "-2",
			wantPprofArgs: []string{"-top", "-cum"},
		},
		{
			name:          "only -- uses default 0",
			in:            []string{"--", "-http=:8080"},
			wantSelector:  "0",
			wantPprofArgs: []string{"-http=:8080"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSelector, gotPprofArgs := parseProfileArgs(tt.in)
			if gotSelector != tt.wantSelector {
				t.Errorf("parseProfileArgs() gotSelector = %v, want %v", gotSelector, tt.wantSelector)
			}
			if !reflect.DeepEqual(gotPprofArgs, tt.wantPprofArgs) {
				t.Errorf("parseProfileArgs() gotPprofArgs = %v, want %v", gotPprofArgs, tt.wantPprofArgs)
			}
		})
	}
}

func TestSelectProfile(t *testing.T) {
	now := time.Now()
	files := []profileFile{
		{name: "12-iphone-14-pro-max", modTime: now},
		{name: "1-chromium-desktop", modTime: now.Add(-time.Minute)},
		{name: "1-firefox-desktop", modTime: now.Add(-2 * time.Minute)},
	}

	tests := []struct {
		name     string
		selector string
		want     string
		wantErr  bool
	}{
		{name: "newest", selector: "0", want: "12-iphone-14-pro-max"},
		{name: "second newest", selector: "-1", want: "1-chromium-desktop"},
		{name: "out of range", selector: "-3", wantErr: true},
		{name: "exact name", selector: "1-firefox-desktop", want: "1-firefox-desktop"},
		{name: "shard id", selector: "12", want: "12-iphone-14-pro-max"},
		{name: "shard id prefix does not cross shards", selector: "1", want: "1-chromium-desktop"},
		{name: "unknown positive number", selector: "7", wantErr: true},
		{name: "unknown name", selector: "9-webkit", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectProfile(files, tt.selector)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.name)
		})
	}

	_, err := selectProfile(nil, "0")
	require.Error(t, err)
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs(" 4, 5,,6 ")
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5, 6}, ids)

	ids, err = parseIDs("")
	require.NoError(t, err)
	assert.Nil(t, ids)

	_, err = parseIDs("4,x")
	require.Error(t, err)
}

func TestShardFileID(t *testing.T) {
	assert.Equal(t, "3", shardFileID("3"))
	assert.Equal(t, "3", shardFileID("urls-3.json"))
	assert.Equal(t, "12", shardFileID("fixtures/urls/urls-12.json"))
}
