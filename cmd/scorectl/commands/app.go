// Package commands implements the scorectl subcommands.
package commands

import (
	"time"

	"github.com/urfave/cli/v3"
)

const defaultURL = "http://localhost:8080"

// NewApp returns the scorectl command tree.
func NewApp() *cli.Command {
	urlFlag := &cli.StringFlag{
		Name:    "url",
		Usage:   "scoregate base URL",
		Value:   defaultURL,
		Sources: cli.EnvVars("SCOREGATE_URL"),
	}
	timeoutFlag := &cli.DurationFlag{
		Name:  "timeout",
		Usage: "HTTP request timeout",
		Value: 10 * time.Second,
	}

	return &cli.Command{
		Name:  "scorectl",
		Usage: "optical music recognition from the command line",
		Commands: []*cli.Command{
			{
				Name:      "convert",
				Usage:     "convert a scanned score to MusicXML with the local engine",
				ArgsUsage: "<image-or-pdf>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "write MusicXML to this file instead of stdout",
					},
					&cli.StringFlag{
						Name:  "config",
						Usage: "scoregate configuration file for engine settings",
					},
					&cli.StringFlag{
						Name:  "engine",
						Usage: "engine executable (overrides configuration)",
					},
					&cli.DurationFlag{
						Name:  "engine-timeout",
						Usage: "engine wall clock limit (overrides configuration)",
					},
				},
				Action: ConvertAction,
			},
			{
				Name:   "health",
				Usage:  "check that a scoregate server is up",
				Flags:  []cli.Flag{urlFlag, timeoutFlag},
				Action: HealthAction,
			},
			{
				Name:  "history",
				Usage: "list recent conversions recorded by a scoregate server",
				Flags: []cli.Flag{
					urlFlag,
					timeoutFlag,
					&cli.IntFlag{
						Name:  "limit",
						Usage: "number of records to show",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "only show 'succeeded' or 'failed' conversions",
					},
					&cli.StringFlag{
						Name:    "api-key",
						Usage:   "API key sent as X-API-Key",
						Sources: cli.EnvVars("SCOREGATE_API_KEY"),
					},
				},
				Action: HistoryAction,
			},
		},
	}
}
