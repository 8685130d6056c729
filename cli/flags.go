package cli

// This file contains the flags shared by several commands.

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/perfgo/vrtgo/config"
)

// ConfigFlag returns the config file flag.
func ConfigFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Config file",
		Value:   config.DefaultFile,
		EnvVars: []string{"VRTGO_CONFIG"},
	}
}

// AppFlag returns the flag selecting the environment to capture.
func AppFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "app",
		Usage:    "Environment to capture: baseline or comparison",
		EnvVars:  []string{"APP"},
		Required: true,
	}
}

// ShardFlag returns the shard identifier flag.
func ShardFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "shard",
		Aliases:  []string{"s"},
		Usage:    "Shard to run, as listed in the shard manifest",
		EnvVars:  []string{"SHARD", "URLS_FILE"},
		Required: true,
	}
}

// ProfileFlag returns the device profile selection flag.
func ProfileFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:    "profile",
		Aliases: []string{"p"},
		Usage:   "Device profile to capture with (repeatable, default: all configured profiles)",
	}
}

// IDsFlag returns the flag restricting a run to some records.
func IDsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "ids",
		Usage: "Comma separated record ids to run, e.g. to re-run failed records",
	}
}

// parseIDs parses a comma separated id list. An empty list yields nil.
func parseIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid record id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// shardFileID normalises a shard flag value. It accepts the shard id as
// well as a shard file name such as urls-3.json.
func shardFileID(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexAny(s, `/\`); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(s, ".json")
	return strings.TrimPrefix(s, "urls-")
}
