package cli

// This file contains the test command, which runs go test and records the
// session as a report.

import (
	gocmd "github.com/playtest/playtest/cli/go"
	"github.com/playtest/playtest/model"
	"github.com/playtest/playtest/recorder"
	"github.com/playtest/playtest/testargs"
	"github.com/urfave/cli/v2"
)

// testOptions merges the command line with the config file. Flags given on
// the command line win.
func (a *App) testOptions(ctx *cli.Context) testargs.Options {
	packages, extra := testargs.Separate(ctx.Args().Slice())

	opts := testargs.Options{
		Packages: packages,
		Run:      stringOr(ctx, "run", a.cfg.Run),
		Tags:     stringOr(ctx, "tags", a.cfg.Tags),
		Parallel: a.cfg.Parallel,
		Extra:    extra,
	}
	if ctx.IsSet("parallel") {
		opts.Parallel = ctx.Int("parallel")
	}
	return opts
}

func (a *App) test(ctx *cli.Context) error {
	goArgs := testargs.Build(a.testOptions(ctx))

	var git *model.Git
	if commit, branch, err := a.getGitInfo(); err != nil {
		a.logger.Debug().Err(err).Msg("Git information not available")
	} else {
		git = &model.Git{Commit: commit, Branch: branch}
	}

	rec := recorder.New(a.logger, recorder.Options{
		ReportPath:  ctx.String("report"),
		ReportsDir:  a.reportsDir(ctx),
		ToolVersion: a.toolVersion,
		Args:        goArgs,
		Git:         git,
		Summary:     ctx.App.Writer,
	})
	if err := rec.Start(); err != nil {
		return err
	}

	a.logger.Info().
		Str("session", rec.SessionID()).
		Str("report", rec.Path()).
		Str("run_type", testargs.RunType(goArgs)).
		Msg("Running tests")

	exitCode, err := a.executeTests(gocmd.Command(goArgs...), rec, ctx.App.Writer)
	if err != nil {
		a.logger.Error().Err(err).Msg("Test execution failed")
		return err
	}

	// Report errors are not test failures; the exit status stays the one of go test
	if _, err := rec.OnSessionFinish(exitCode); err != nil {
		a.logger.Error().Err(err).Str("report", rec.Path()).Msg("Failed to write report")
	}

	if exitCode != 0 {
		return cli.Exit("", exitCode)
	}
	return nil
}
