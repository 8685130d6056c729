package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/perfgo/vrtgo/config"
)

const AppName = "vrtgo"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
	cfg    *config.Config
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
	}
	app.cli = &cli.App{
		Name:  AppName,
		Usage: "Capture and compare screenshots of two deployments of a site",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose (debug) logging",
			},
			ConfigFlag(),
		},
		Before: func(ctx *cli.Context) error {
			if ctx.Bool("verbose") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			return nil
		},
	}

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "plan",
		Usage:  "Split the URL list into shards and write the shard manifest",
		Action: app.plan,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "URL list to split (default: <fixtures>/urls.json)",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "run",
		Usage:  "Capture a shard in one environment, comparing against the baseline in the comparison environment",
		Action: app.run,
		Flags: []cli.Flag{
			AppFlag(),
			ShardFlag(),
			ProfileFlag(),
			IDsFlag(),
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Profiles captured concurrently (0 runs all at once)",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:  "merge",
		Usage: "Merge the files written by shard runs",
		Subcommands: []*cli.Command{
			{
				Name:   "results",
				Usage:  "Merge shard result files into test-results.json",
				Action: app.mergeResults,
			},
			{
				Name:   "failures",
				Usage:  "Merge shard failure records into failed-runners.json",
				Action: app.mergeFailures,
			},
			{
				Name:   "limits",
				Usage:  "Merge oversize page advisories into page-limit-exceed.json",
				Action: app.mergeLimits,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "missed",
		Usage:  "List URLs without a comparison result",
		Action: app.missed,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:  "export",
		Usage: "Export merged results",
		Subcommands: []*cli.Command{
			{
				Name:   "csv",
				Usage:  "Write test-results.csv and log a similarity summary",
				Action: app.exportCSV,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "CSV file to write (default: <report>/test-results.csv)",
					},
				},
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:  "import",
		Usage: "Prepare the URL list",
		Subcommands: []*cli.Command{
			{
				Name:      "csv",
				Usage:     "Convert a CSV with baseline and comparison columns into the URL list",
				ArgsUsage: "FILE",
				Action:    app.importCSV,
			},
			{
				Name:      "filter",
				Usage:     "Keep the records of the full URL list with START <= id <= END",
				ArgsUsage: "START END",
				Action:    app.importFilter,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "status",
		Usage:  "List shards and the files their runs produced",
		Action: app.status,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:            "profile",
		Usage:           "View the capture timing profile of a shard run",
		ArgsUsage:       "[SHARD-PROFILE|INDEX]",
		Action:          app.profile,
		SkipFlagParsing: true,
		Description: `View the capture timing profile of a shard run with pprof.

Arguments:
  0                       View the most recent profile (default)
  -1                      View the 2nd most recent profile
  <shard>-<profile>       View the profile of a shard run, e.g. 3-chromium-desktop

Examples:
  vrtgo profile                         # Most recent profile
  vrtgo profile -1 -top                 # 2nd most recent, pprof -top
  vrtgo profile 3-chromium-desktop -- -http=:8080`,
	})
	return app
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && commit != "" {
		a.cli.Version = fmt.Sprintf("%s (commit: %.8s, built: %s)", version, commit, date)
	}
}

// config loads the configuration once per invocation.
func (a *App) config(ctx *cli.Context) (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}
