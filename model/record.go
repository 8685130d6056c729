package model

import (
	"fmt"
	"strings"
)

// Environment identifies which of the two sites a capture targets.
type Environment string

const (
	EnvironmentBaseline   Environment = "baseline"
	EnvironmentComparison Environment = "comparison"
)

// ParseEnvironment parses an environment name as given on the command line.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case EnvironmentBaseline:
		return EnvironmentBaseline, nil
	case EnvironmentComparison:
		return EnvironmentComparison, nil
	}
	return "", fmt.Errorf("unknown environment %q (expected baseline or comparison)", s)
}

// URLPair is one unit of work: a page path on the baseline site and its
// counterpart on the comparison site.
type URLPair struct {
	// Unique, stable identifier. Used to name screenshot artifacts.
	ID int `json:"id"`
	// Path on the baseline site, relative to its base URL
	Baseline string `json:"baseline"`
	// Path on the comparison site, relative to its base URL
	Comparison string `json:"comparison"`
	// Device label carried through from the input file
	Device string `json:"device,omitempty"`
	// Nominal viewport width for the record
	Width int `json:"width,omitempty"`
	// Nominal viewport height for the record
	Height int `json:"height,omitempty"`
}

// Path returns the record's path for the given environment.
func (p URLPair) Path(env Environment) string {
	if env == EnvironmentComparison {
		return p.Comparison
	}
	return p.Baseline
}

// JoinURL joins a base URL and a page path with exactly one slash between them.
func JoinURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return base + "/"
	}
	return base + "/" + path
}

// Manifest lists the shard identifiers produced by the planner.
type Manifest struct {
	Chunks []string `json:"chunks"`
}
