package cli

// This file contains the profile command for viewing capture timing
// profiles with pprof.

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	gocmd "github.com/perfgo/vrtgo/cli/go"
	"github.com/perfgo/vrtgo/profiling"
)

// profileFile is a timing profile written by a shard run.
type profileFile struct {
	name    string // <shard>-<profile>
	path    string
	modTime time.Time
	size    int64
}

func removeFirstDashDash(in []string) []string {
	if len(in) > 0 && in[0] == "--" {
		return in[1:]
	}
	return in
}

func parseProfileArgs(in []string) (selector string, pprofArgs []string) {
	if len(in) == 0 {
		return "0", nil
	}

	// If first arg is "--", use default "0" and rest are pprof args
	if in[0] == "--" {
		return "0", in[1:]
	}

	// A negative index is "-" followed by only digits (e.g. "-1"); anything
	// else starting with "-" is a pprof flag (e.g. "-http=:8080", "-top")
	if len(in[0]) > 1 && in[0][0] == '-' {
		if _, err := strconv.ParseInt(in[0], 10, 64); err != nil {
			return "0", in
		}
	}

	return in[0], removeFirstDashDash(in[1:])
}

// listProfiles returns the timing profiles in reportDir, newest first.
func listProfiles(reportDir string) ([]profileFile, error) {
	paths, err := filepath.Glob(profiling.FilePath(reportDir, "*", "*"))
	if err != nil {
		return nil, err
	}

	var files []profileFile
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "capture-"), ".pb.gz")
		files = append(files, profileFile{name: name, path: path, modTime: info.ModTime(), size: info.Size()})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})
	return files, nil
}

// selectProfile picks a profile by index (0 newest, -1 second newest, ...)
// or by <shard>-<profile> name prefix.
func selectProfile(files []profileFile, selector string) (*profileFile, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no capture profiles found")
	}

	if parsed, err := strconv.ParseInt(selector, 10, 64); err == nil {
		if parsed > 0 {
			// A positive number may be a shard id
			if f := matchProfileName(files, selector+"-"); f != nil {
				return f, nil
			}
			return nil, fmt.Errorf("invalid index: %s (use 0 for the newest, -1 for the one before, etc.)", selector)
		}
		index := int(-parsed)
		if index >= len(files) {
			return nil, fmt.Errorf("index %s out of range (only %d profiles)", selector, len(files))
		}
		return &files[index], nil
	}

	if f := matchProfileName(files, selector); f != nil {
		return f, nil
	}
	return nil, fmt.Errorf("no profile found matching: %s", selector)
}

func matchProfileName(files []profileFile, prefix string) *profileFile {
	for i := range files {
		if files[i].name == prefix {
			return &files[i]
		}
	}
	for i := range files {
		if strings.HasPrefix(files[i].name, prefix) {
			return &files[i]
		}
	}
	return nil
}

func (a *App) profile(ctx *cli.Context) error {
	selector, pprofArgs := parseProfileArgs(ctx.Args().Slice())

	cfg, err := a.config(ctx)
	if err != nil {
		return err
	}

	files, err := listProfiles(cfg.ReportDir())
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	target, err := selectProfile(files, selector)
	if err != nil {
		return err
	}

	fmt.Printf("=== Capture profile: %s ===\n", target.name)
	fmt.Printf("Time: %s\n", target.modTime.Format("2006-01-02 15:04:05"))
	fmt.Printf("Profile: %s (%.1f KB)\n", target.path, float64(target.size)/1024)

	cmd, err := gocmd.Pprof(target.path, pprofArgs)
	if err != nil {
		return err
	}
	return cmd.Run()
}
