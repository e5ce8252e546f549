package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/playtest/playtest/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const AppName = "playtest"

type App struct {
	logger  zerolog.Logger
	cli     *cli.App
	cfg     config.Config
	logFile io.Closer

	toolVersion string
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
		logger:      logger,
		cfg:         config.Default(),
		toolVersion: "dev",
	}
	app.cli = &cli.App{
		Name:  AppName,
		Usage: "Record go test sessions as JSON reports and view them",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose (debug) logging",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: fmt.Sprintf("Path to the config file (default: %s if present)", config.DefaultFile),
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Also write logs to this file, rotated by size",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
		},
		Before: app.before,
		After:  app.after,
	}

	reportsDirFlag := &cli.StringFlag{
		Name:  "dir",
		Usage: "Root directory of the reports (default: reports_dir from config, or \"reports\")",
	}

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "test",
		Usage:     "Run go test and record the session as a JSON report",
		ArgsUsage: "[PACKAGES...] [GO TEST FLAGS...]",
		Action:    app.test,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "report",
				Usage: "Report file (ending in .json) or directory to write playtest_report.json into",
			},
			&cli.StringFlag{
				Name:  "run",
				Usage: "Only run tests matching the regular expression (go test -run)",
			},
			&cli.StringFlag{
				Name:  "tags",
				Usage: "Build tags passed to go test",
			},
			&cli.IntFlag{
				Name:  "parallel",
				Usage: "Number of packages to test in parallel (go test -p)",
			},
			reportsDirFlag,
		},
	})

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List recorded reports, newest first",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "date",
				Usage: "Only list reports of this day (DD-MM-YYYY)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of reports to list (0 lists all)",
				Value: 20,
			},
			reportsDirFlag,
		},
	})

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "view",
		Usage:     "Show the summary of a report",
		ArgsUsage: "[INDEX|PATH|NAME|SESSION-ID]",
		Action:    app.view,
		Flags: []cli.Flag{
			reportsDirFlag,
			&cli.BoolFlag{
				Name:  "failures-only",
				Usage: "Only show rows of tests that did not pass",
			},
			&cli.BoolFlag{
				Name:  "markdown",
				Usage: "Render the summary as markdown",
			},
			&cli.StringFlag{
				Name:  "pprof",
				Usage: "Write the test durations as a pprof profile to this file",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Fail when a test has no call phase",
			},
		},
	})

	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "query",
		Usage:     "Run a jq expression over a report",
		ArgsUsage: "[INDEX|PATH|NAME|SESSION-ID] EXPR",
		Action:    app.query,
		Flags: []cli.Flag{
			reportsDirFlag,
		},
	})

	return app
}

func (a *App) before(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String("config"), ctx.IsSet("config"))
	if err != nil {
		return err
	}
	if ctx.Bool("no-color") {
		disabled := false
		cfg.Color = &disabled
	}
	a.cfg = cfg

	if ctx.Bool("verbose") || cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	logFile := cfg.LogFile
	if ctx.IsSet("log-file") {
		logFile = ctx.String("log-file")
	}
	if logFile != "" {
		if err := a.setupLogFile(logFile); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) after(ctx *cli.Context) error {
	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}

// reportsDir returns the reports root: the --dir flag, else the config.
func (a *App) reportsDir(ctx *cli.Context) string {
	if dir := ctx.String("dir"); dir != "" {
		return dir
	}
	return a.cfg.ReportsDir
}

// stringOr returns the flag value when set on the command line, else fallback.
func stringOr(ctx *cli.Context, name, fallback string) string {
	if ctx.IsSet(name) {
		return ctx.String(name)
	}
	return fallback
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version shown by --version and recorded in reports.
func (a *App) SetVersion(version, commit, date string) {
	a.toolVersion = version
	a.cli.Version = version
	if commit != "none" && commit != "" {
		if len(commit) > 8 {
			commit = commit[:8]
		}
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	}
}
