// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles configuration and history database initialization
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and the history database",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write config.toml from the built-in example",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "path",
						Aliases: []string{"p"},
						Usage:   "Where to write the configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Create the history database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// submitCommand runs one job without the TUI
func submitCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "Submit a .py file (or stdin) and stream the result",
		Description: "Given several paths, the first .py file is submitted and the rest are ignored.",
		Arguments: []cli.Argument{
			&cli.StringArgs{
				Name: "paths",
				Min:  0,
				Max:  -1,
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "stdin",
				Usage: "Read code from standard input",
			},
			&cli.BoolFlag{
				Name:  "instant",
				Usage: "Print the result without the typewriter animation",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the final job record and result as JSON",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Give up if the job has not finished after this long (0 waits forever)",
			},
		},
		Action: r.Submit,
	}
}

// tuiCommand launches the interactive editor
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"ui"},
		Usage:   "Interactive editor with live progress and result",
		Action:  r.TUI,
	}
}

// serveCommand runs the mock analysis server
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the mock analysis server for local development",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (overrides server.port)",
			},
			&cli.StringFlag{
				Name:  "allowed-origin",
				Usage: "Browser origin allowed to open the push channel (overrides server.allowed_origin)",
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Pushed events per second, 0 for no pacing (overrides server.events_per_second)",
			},
		},
		Action: r.Serve,
	}
}

// historyCommand reads the persistent job history
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded jobs (requires a file-backed history.path)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "session",
				Usage: "Only jobs from this session",
			},
			&cli.StringFlag{
				Name:  "state",
				Usage: "Only jobs in this state (complete, failed, ...)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, csv, markdown or json",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to a file instead of stdout",
			},
		},
		Action: r.History,
	}
}
