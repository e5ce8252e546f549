package viewer

import (
	"fmt"
	"strings"

	"github.com/playtest/playtest/model"
)

// RenderMarkdown renders the summary as Markdown, e.g. for a CI job summary.
func RenderMarkdown(s *Summary) string {
	if s == nil {
		return ""
	}

	var sb strings.Builder

	sb.WriteString("# Playtest Report\n\n")

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	if s.RunType != "" {
		sb.WriteString(fmt.Sprintf("| Run Type | %s |\n", escapeMarkdown(s.RunType)))
	}
	if s.Info.ExitStatus != nil {
		sb.WriteString(fmt.Sprintf("| Exit Code | %d |\n", *s.Info.ExitStatus))
	}
	if s.Duration != nil {
		sb.WriteString(fmt.Sprintf("| Total Duration | %ss |\n", FormatSeconds(*s.Duration)))
	}
	sb.WriteString(fmt.Sprintf("| Number of Tests | %d |\n", s.Tests))
	sb.WriteString(fmt.Sprintf("| Passed | %d |\n", s.Counts.Passed))
	sb.WriteString(fmt.Sprintf("| Failed | %d |\n", s.Counts.Failed))
	sb.WriteString("\n")

	if len(s.Rows) > 0 {
		sb.WriteString("## Results\n\n")
		sb.WriteString("| Test Case | Outcome | Setup | Call | Teardown | Total |\n")
		sb.WriteString("|-----------|---------|-------|------|----------|-------|\n")
		for _, row := range s.Rows {
			outcome := string(row.Outcome)
			if row.Outcome != model.OutcomePassed {
				outcome = "**" + outcome + "**"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
				escapeMarkdown(row.TestCase),
				outcome,
				FormatSeconds(row.SetupDuration),
				FormatSeconds(row.CallDuration),
				FormatSeconds(row.TeardownDuration),
				FormatSeconds(row.TotalDuration)))
		}
		sb.WriteString("\n")
	}

	if len(s.Failures) > 0 {
		sb.WriteString("## Failed Tests\n\n")
		writeMarkdownFailures(&sb, s.Failures)
	}
	if len(s.Errors) > 0 {
		sb.WriteString("## Setup and Teardown Errors\n\n")
		writeMarkdownFailures(&sb, s.Errors)
	}

	return sb.String()
}

func writeMarkdownFailures(sb *strings.Builder, failures []Failure) {
	for _, f := range failures {
		sb.WriteString(fmt.Sprintf("### `%s`\n\n", f.NodeID))
		if f.Path != "" {
			sb.WriteString(fmt.Sprintf("- Path: `%s`\n", f.Path))
			sb.WriteString(fmt.Sprintf("- Line: %d\n", f.Line))
		}
		if f.Rerun != "" {
			sb.WriteString(fmt.Sprintf("- Rerun: `%s`\n", f.Rerun))
		}
		sb.WriteString("\n")
		if f.Message != "" {
			sb.WriteString("```\n")
			sb.WriteString(f.Message)
			sb.WriteString("\n```\n\n")
		}
	}
}

// escapeMarkdown escapes characters that break table cells.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
