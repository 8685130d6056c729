package gocmd

// go.go provides utilities for executing Go commands.

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ErrNoToolchain is returned when the go command is not on PATH.
var ErrNoToolchain = errors.New("go command not found")

// PprofArgs returns the arguments of 'go tool pprof' for a profile with
// extra pprof flags placed before the profile path.
func PprofArgs(profilePath string, pprofArgs []string) []string {
	args := make([]string, 0, len(pprofArgs)+3)
	args = append(args, "tool", "pprof")
	args = append(args, pprofArgs...)
	return append(args, profilePath)
}

// Pprof creates an exec.Cmd running 'go tool pprof' attached to the
// terminal.
func Pprof(profilePath string, pprofArgs []string) (*exec.Cmd, error) {
	if _, err := exec.LookPath("go"); err != nil {
		return nil, fmt.Errorf("%w: pprof needs a Go toolchain to view %s", ErrNoToolchain, profilePath)
	}

	cmd := Command(PprofArgs(profilePath, pprofArgs)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd, nil
}

// Command creates an exec.Cmd for running a Go command.
// The first argument is the Go subcommand (e.g., "tool"), followed by its arguments.
func Command(args ...string) *exec.Cmd {
	return exec.Command("go", args...)
}
