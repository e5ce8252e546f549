package viewer

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/playtest/playtest/model"
)

// RenderOptions controls terminal rendering.
type RenderOptions struct {
	Color        bool
	FailuresOnly bool
}

type palette struct {
	red, green, yellow, bold *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		red:    color.New(color.FgRed),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		bold:   color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.red, p.green, p.yellow, p.bold} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) outcome(o model.Outcome) *color.Color {
	switch o {
	case model.OutcomePassed:
		return nil
	case model.OutcomeIncomplete:
		return p.yellow
	}
	return p.red
}

// FormatSeconds formats a duration in seconds with 2 decimals.
func FormatSeconds(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// RenderTerminal writes the summary to w.
func RenderTerminal(w io.Writer, s *Summary, opts RenderOptions) error {
	if s == nil {
		return fmt.Errorf("summary is required")
	}
	p := newPalette(opts.Color)

	fmt.Fprintln(w)
	p.bold.Fprintln(w, "=== Playtest Report ===")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Report:    %s\n", s.Path)
	if s.Info.SessionID != "" {
		fmt.Fprintf(w, "Session:   %s\n", s.Info.SessionID)
	}
	if s.Info.StartedAt != nil {
		fmt.Fprintf(w, "Started:   %s\n", s.Info.StartedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if v := s.Info.Version(); v != "" {
		fmt.Fprintf(w, "Version:   %s\n", v)
	}
	if s.Info.ExitStatus != nil {
		fmt.Fprintf(w, "Exit Code: %d\n", *s.Info.ExitStatus)
	}
	if s.RunType != "" {
		fmt.Fprintf(w, "Run Type:  %s\n", s.RunType)
	}
	if s.Command != "" {
		fmt.Fprintf(w, "Command:   %s\n", s.Command)
	}
	if g := s.Info.Git; g != nil && g.Commit != "" {
		commit := g.Commit
		if len(commit) > 8 {
			commit = commit[:8]
		}
		fmt.Fprintf(w, "Commit:    %s", commit)
		if g.Branch != "" {
			fmt.Fprintf(w, " (%s)", g.Branch)
		}
		fmt.Fprintln(w)
	}
	for _, warning := range s.Warnings {
		p.yellow.Fprintf(w, "Warning:   %s\n", warning)
	}
	fmt.Fprintln(w)

	duration := "unknown"
	if s.Duration != nil {
		duration = FormatSeconds(*s.Duration) + "s"
	}
	fmt.Fprintf(w, "Total duration: %s   Number of tests: %d   %s   %s\n",
		duration,
		s.Tests,
		p.green.Sprintf("Passed: %d", s.Counts.Passed),
		p.red.Sprintf("Failed: %d", s.Counts.Failed))
	fmt.Fprintln(w)

	if !opts.FailuresOnly && len(s.Rows) > 0 {
		renderRows(w, p, s.Rows)
		fmt.Fprintln(w)
	}

	if len(s.Failures) > 0 {
		p.bold.Fprintln(w, "Failed tests:")
		renderFailures(w, p, s.Failures)
	} else if s.Counts.Failed == 0 {
		fmt.Fprintln(w, "No failed tests.")
		fmt.Fprintln(w)
	}

	if len(s.Errors) > 0 {
		p.bold.Fprintln(w, "Setup and teardown errors:")
		renderFailures(w, p, s.Errors)
	}

	return nil
}

func renderRows(w io.Writer, p palette, rows []model.ReportRow) {
	width := len("TEST CASE")
	for _, row := range rows {
		if len(row.TestCase) > width {
			width = len(row.TestCase)
		}
	}

	header := fmt.Sprintf("%-*s  %-10s  %8s  %8s  %8s  %8s", width, "TEST CASE", "OUTCOME", "SETUP", "CALL", "TEARDOWN", "TOTAL")
	p.bold.Fprintln(w, header)

	for _, row := range rows {
		line := fmt.Sprintf("%-*s  %-10s  %8s  %8s  %8s  %8s",
			width,
			row.TestCase,
			row.Outcome,
			FormatSeconds(row.SetupDuration),
			FormatSeconds(row.CallDuration),
			FormatSeconds(row.TeardownDuration),
			FormatSeconds(row.TotalDuration))
		// Pad first, colour after, so escape codes do not skew the columns
		if c := p.outcome(row.Outcome); c != nil {
			line = c.Sprint(line)
		}
		fmt.Fprintln(w, line)
	}
}

func renderFailures(w io.Writer, p palette, failures []Failure) {
	for _, f := range failures {
		p.red.Fprintf(w, "  %s\n", f.NodeID)
		if f.Path != "" {
			fmt.Fprintf(w, "    Path:    %s\n", f.Path)
			fmt.Fprintf(w, "    Line:    %d\n", f.Line)
		}
		if f.Message != "" {
			fmt.Fprintln(w, "    Message:")
			for _, line := range strings.Split(f.Message, "\n") {
				fmt.Fprintf(w, "      %s\n", line)
			}
		}
		if f.Rerun != "" {
			fmt.Fprintf(w, "    Rerun:   %s\n", f.Rerun)
		}
		fmt.Fprintln(w)
	}
}
