package failure

// rerun.go contains utilities for building the command that re-runs the
// unfinished records of a shard.

import (
	"strconv"
	"strings"

	"al.essio.dev/pkg/shellescape"
)

// RerunOptions contains the arguments of a re-run command.
type RerunOptions struct {
	Program string   // Executable name
	Config  string   // Config file, omitted when empty
	App     string   // Environment to run
	Shard   string   // Shard identifier
	Profile string   // Device profile
	IDs     []int    // Records to re-run
	Extra   []string // Additional arguments
}

// BuildRerunArgs builds the argument list of a re-run command.
func BuildRerunArgs(opts RerunOptions) []string {
	var args []string

	if opts.Config != "" {
		args = append(args, "--config", opts.Config)
	}
	args = append(args, "run", "--app", opts.App, "--shard", opts.Shard)
	if opts.Profile != "" {
		args = append(args, "--profile", opts.Profile)
	}
	if len(opts.IDs) > 0 {
		ids := make([]string, len(opts.IDs))
		for i, id := range opts.IDs {
			ids[i] = strconv.Itoa(id)
		}
		args = append(args, "--ids", strings.Join(ids, ","))
	}
	args = append(args, opts.Extra...)

	return args
}

// BuildRerunCommand builds the re-run command as a shell-escaped string.
func BuildRerunCommand(opts RerunOptions) string {
	program := opts.Program
	if program == "" {
		program = "vrtgo"
	}

	args := BuildRerunArgs(opts)
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellescape.Quote(program))
	for _, arg := range args {
		parts = append(parts, shellescape.Quote(arg))
	}

	return strings.Join(parts, " ")
}
