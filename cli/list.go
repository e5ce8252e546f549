package cli

// This file contains the list command for displaying recorded reports.

import (
	"fmt"
	"io"
	"time"

	"github.com/playtest/playtest/history"
	"github.com/playtest/playtest/model"
	"github.com/playtest/playtest/testargs"
	"github.com/playtest/playtest/viewer"
	"github.com/urfave/cli/v2"
)

func (a *App) list(ctx *cli.Context) error {
	date := ctx.String("date")
	limit := ctx.Int("limit")

	if date != "" {
		if _, err := time.Parse(model.DateLayout, date); err != nil {
			return fmt.Errorf("invalid date %q (expected DD-MM-YYYY): %w", date, err)
		}
	}

	root, err := history.GetReportsRoot(a.reportsDir(ctx))
	if err != nil {
		return err
	}

	files, err := history.Discover(root)
	if err != nil {
		return err
	}
	files = history.FilterByDate(files, date)

	w := ctx.App.Writer
	if len(files) == 0 {
		if date != "" {
			fmt.Fprintf(w, "No reports found for date: %s\n", date)
		} else {
			fmt.Fprintln(w, "No reports found")
		}
		return nil
	}

	// Apply limit
	displayFiles := files
	if limit > 0 && limit < len(displayFiles) {
		displayFiles = displayFiles[:limit]
	}

	entries, err := history.LoadEntries(ctx.Context, a.logger, displayFiles)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n=== Reports (%d total) ===\n\n", len(files))
	for _, entry := range entries {
		printEntry(w, entry)
	}

	fmt.Fprintf(w, "\nView a report: %s view [INDEX|NAME|SESSION-ID]\n", AppName)
	return nil
}

func printEntry(w io.Writer, entry history.Entry) {
	info, err := viewer.RunInfo(entry.Report)
	if err != nil {
		fmt.Fprintf(w, "?  %s  (%v)\n   %s\n\n", entry.Name(), err, entry.Path)
		return
	}

	// Determine status indicator
	status := "✓"
	exitCode := "?"
	if info.ExitStatus != nil {
		exitCode = fmt.Sprint(*info.ExitStatus)
		if *info.ExitStatus != 0 {
			status = "✗"
		}
	}

	duration := "?"
	if d, err := viewer.TotalDuration(entry.Report); err == nil {
		duration = viewer.FormatSeconds(d) + "s"
	}

	counts := viewer.CountOutcomes(entry.Report)
	fmt.Fprintf(w, "%s  %s  [%s]  exit=%s  passed=%d  failed=%d", status, entry.Name(), duration, exitCode, counts.Passed, counts.Failed)
	if id := entry.SessionID(); id != "" {
		fmt.Fprintf(w, "  id=%s", shortID(id))
	}
	fmt.Fprintln(w)

	if runType := testargs.RunType(info.Args); runType != "" {
		fmt.Fprintf(w, "   Run: %s\n", runType)
	}
	if info.Git != nil && info.Git.Commit != "" {
		fmt.Fprintf(w, "   Commit: %s", shortID(info.Git.Commit))
		if info.Git.Branch != "" {
			fmt.Fprintf(w, " (%s)", info.Git.Branch)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "   %s\n\n", entry.Path)
}

// shortID returns the first 8 characters of id.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
