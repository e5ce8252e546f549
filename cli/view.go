package cli

// This file contains the view command for displaying the summary of a report.

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	gocmd "github.com/playtest/playtest/cli/go"
	"github.com/playtest/playtest/durprof"
	"github.com/playtest/playtest/history"
	"github.com/playtest/playtest/model"
	"github.com/playtest/playtest/viewer"
	"github.com/urfave/cli/v2"
)

// maxSuggestions is the number of other reports offered when a report
// cannot be read.
const maxSuggestions = 5

func removeFirstDashDash(in []string) []string {
	if len(in) > 0 && in[0] == "--" {
		return in[1:]
	}
	return in
}

// parseViewArgs splits the arguments of view into the report selector and
// the arguments passed on to go tool pprof.
func parseViewArgs(in []string) (idArg string, pprofArgs []string) {
	if len(in) == 0 {
		return "0", nil
	}

	// If first arg is "--", use default "0" and rest are pprof args
	if in[0] == "--" {
		return "0", in[1:]
	}

	// A negative index is "-" followed by digits (e.g. "-1"); anything else
	// starting with "-" is a pprof flag
	if len(in[0]) > 1 && in[0][0] == '-' {
		if _, err := strconv.ParseInt(in[0], 10, 64); err != nil {
			return "0", in
		}
	}

	return in[0], removeFirstDashDash(in[1:])
}

// resolveReport turns a selector into the path of a report. A selector is a
// report file, a report directory, or an index, name or session ID prefix
// of a report under the reports root.
func (a *App) resolveReport(ctx *cli.Context, selector string) (string, error) {
	if info, err := os.Stat(selector); err == nil {
		if info.IsDir() {
			return filepath.Join(selector, model.ReportFileName), nil
		}
		return selector, nil
	}

	root, err := history.GetReportsRoot(a.reportsDir(ctx))
	if err != nil {
		return "", err
	}
	files, err := history.Discover(root)
	if err != nil {
		return "", err
	}
	entry, err := history.Select(ctx.Context, a.logger, files, selector)
	if err != nil {
		return "", err
	}
	return entry.Path, nil
}

// suggestReports tells the user that a report could not be read and lists
// reports that can be selected instead.
func (a *App) suggestReports(ctx *cli.Context, w io.Writer, cause error) {
	fmt.Fprintf(w, "Could not read report: %v\n", cause)

	root, err := history.GetReportsRoot(a.reportsDir(ctx))
	if err != nil {
		return
	}
	files, err := history.Discover(root)
	if err != nil || len(files) == 0 {
		return
	}

	fmt.Fprintln(w, "\nAvailable reports:")
	for i, f := range files {
		if i == maxSuggestions {
			fmt.Fprintf(w, "  ... and %d more (%s list)\n", len(files)-maxSuggestions, AppName)
			break
		}
		fmt.Fprintf(w, "  %3d  %s\n", -i, f.Name())
	}
	fmt.Fprintf(w, "\nSelect another report: %s view [INDEX|NAME]\n", AppName)
}

func isReadError(err error) bool {
	return errors.Is(err, model.ErrReportNotFound) || errors.Is(err, model.ErrReportCorrupt)
}

func (a *App) view(ctx *cli.Context) error {
	arg, pprofArgs := parseViewArgs(ctx.Args().Slice())
	w := ctx.App.Writer

	path, err := a.resolveReport(ctx, arg)
	if err == nil {
		var report *model.RunReport
		report, err = viewer.Load(path)
		if err == nil {
			return a.displayReport(ctx, path, report, pprofArgs)
		}
	}
	if isReadError(err) {
		a.suggestReports(ctx, w, err)
	}
	return err
}

func (a *App) displayReport(ctx *cli.Context, path string, report *model.RunReport, pprofArgs []string) error {
	w := ctx.App.Writer
	summary := viewer.Summarize(path, report)

	for _, warning := range summary.Warnings {
		a.logger.Warn().Str("report", path).Msg(warning)
	}

	if ctx.Bool("markdown") {
		fmt.Fprint(w, viewer.RenderMarkdown(summary))
	} else if err := viewer.RenderTerminal(w, summary, viewer.RenderOptions{
		Color:        a.cfg.ColorEnabled(),
		FailuresOnly: ctx.Bool("failures-only"),
	}); err != nil {
		return err
	}

	profilePath := ctx.String("pprof")
	if profilePath != "" || len(pprofArgs) > 0 {
		if err := a.displayProfile(profilePath, report, pprofArgs); err != nil {
			return err
		}
	}

	if ctx.Bool("strict") {
		return viewer.CheckComplete(summary.Rows)
	}
	return nil
}

// displayProfile writes the duration profile of report to profilePath. With
// pprofArgs it also opens the profile in go tool pprof; a temporary file is
// used when no profilePath is given.
func (a *App) displayProfile(profilePath string, report *model.RunReport, pprofArgs []string) error {
	if profilePath == "" {
		dir, err := os.MkdirTemp("", AppName+"-pprof-")
		if err != nil {
			return fmt.Errorf("failed to create temporary directory: %w", err)
		}
		defer os.RemoveAll(dir)
		profilePath = filepath.Join(dir, "durations.pb.gz")
	}

	if err := durprof.Write(report, profilePath); err != nil {
		return err
	}
	a.logger.Info().Str("path", profilePath).Msg("Wrote duration profile")

	if len(pprofArgs) == 0 {
		return nil
	}

	// Build pprof command with any additional args
	args := []string{"tool", "pprof"}
	args = append(args, pprofArgs...)
	args = append(args, profilePath)

	cmd := gocmd.Command(args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return cli.Exit("", exitErr.ExitCode())
		}
		return fmt.Errorf("failed to run go tool pprof: %w", err)
	}
	return nil
}
