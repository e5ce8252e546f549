package viewer

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/playtest/playtest/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goReport() *model.RunReport {
	failed := rec("example.com/calc::TestDiv/by_zero", model.PhaseCall, model.OutcomeFailed, 0.004)
	failed.LongRepr = model.NewLongRepr("calc_test.go", 27, []string{"calc_test.go:27: want error, got nil"})

	return &model.RunReport{
		Metadata: []model.Metadata{
			{
				SessionID:   "5c0e1f56-7f5b-4bd0-9d0e-3c7d1f4b1a11",
				ToolVersion: "1.0.0",
				ExitStatus:  ptr(1),
				Args:        []string{"test", "-json", "-tags", "integration", "./..."},
				Git:         &model.Git{Commit: "0123456789abcdef", Branch: "main"},
			},
			{TotalDuration: ptr(1.234)},
		},
		CollectData: []model.CollectRecord{},
		TestData: []model.PhaseRecord{
			rec("example.com/calc::TestAdd", model.PhaseCall, model.OutcomePassed, 1.23),
			failed,
		},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize("reports/x/playtest_report.json", goReport())

	assert.Equal(t, "By build tags - integration", s.RunType)
	assert.Equal(t, "go test -json -tags integration ./...", s.Command)
	require.NotNil(t, s.Duration)
	assert.Equal(t, 1.234, *s.Duration)
	assert.Equal(t, 2, s.Tests)
	assert.Equal(t, model.OutcomeCounts{Passed: 1, Failed: 1}, s.Counts)
	assert.Empty(t, s.Warnings)

	require.Len(t, s.Failures, 1)
	assert.Equal(t, "calc_test.go", s.Failures[0].Path)
	assert.Equal(t, "go test -tags integration -run '^TestDiv$/^by_zero$' example.com/calc", s.Failures[0].Rerun)
}

func TestSummarize_MissingMetadata(t *testing.T) {
	report := goReport()
	report.Metadata = nil

	s := Summarize("r.json", report)
	assert.Nil(t, s.Duration)
	assert.Len(t, s.Warnings, 2)
	assert.Equal(t, 2, s.Tests)
}

func TestRenderTerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTerminal(&buf, Summarize("r.json", goReport()), RenderOptions{}))
	out := buf.String()

	assert.Contains(t, out, "=== Playtest Report ===")
	assert.Contains(t, out, "Run Type:  By build tags - integration")
	assert.Contains(t, out, "Commit:    01234567 (main)")
	assert.Contains(t, out, "Total duration: 1.23s   Number of tests: 2   Passed: 1   Failed: 1")
	assert.Contains(t, out, "1.23")
	assert.Contains(t, out, "0.00")
	assert.Contains(t, out, "Failed tests:")
	assert.Contains(t, out, "    Path:    calc_test.go\n    Line:    27\n")
	assert.Contains(t, out, "      calc_test.go:27: want error, got nil\n")
	assert.NotContains(t, out, "\x1b[")

	var rowLine string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "example.com/calc::TestAdd") {
			rowLine = line
		}
	}
	assert.Equal(t, []string{"example.com/calc::TestAdd", "passed", "0.00", "1.23", "0.00", "1.23"}, strings.Fields(rowLine))
}

func TestRenderTerminal_Color(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTerminal(&buf, Summarize("r.json", goReport()), RenderOptions{Color: true}))
	assert.Contains(t, buf.String(), "\x1b[31m")
}

func TestRenderTerminal_FailuresOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTerminal(&buf, Summarize("r.json", goReport()), RenderOptions{FailuresOnly: true}))
	out := buf.String()
	assert.NotContains(t, out, "TEST CASE")
	assert.Contains(t, out, "example.com/calc::TestDiv/by_zero")
}

func TestRenderTerminal_NoFailures(t *testing.T) {
	report := goReport()
	report.TestData = report.TestData[:1]

	var buf bytes.Buffer
	require.NoError(t, RenderTerminal(&buf, Summarize("r.json", report), RenderOptions{}))
	assert.Contains(t, buf.String(), "No failed tests.")
}

func TestRenderTerminal_Nil(t *testing.T) {
	assert.Error(t, RenderTerminal(&bytes.Buffer{}, nil, RenderOptions{}))
}

func TestRenderMarkdown(t *testing.T) {
	report, err := Load(filepath.Join("testdata", "pytest_report.json"))
	require.NoError(t, err)

	out := RenderMarkdown(Summarize("r.json", report))
	assert.Contains(t, out, "# Playtest Report")
	assert.Contains(t, out, "| Run Type | By test file - tests/test_demo.py |")
	assert.Contains(t, out, "| Total Duration | 0.39s |")
	assert.Contains(t, out, "| tests/test_demo.py::test_fail | **failed** | 0.01 | 0.20 | 0.01 | 0.22 |")
	assert.Contains(t, out, "| tests/test_demo.py::test_skip | **incomplete** |")
	assert.Contains(t, out, "- Rerun: `pytest tests/test_demo.py::test_fail`")
	assert.Contains(t, out, "```\nline1\nline2\n```")

	assert.Empty(t, RenderMarkdown(nil))
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `a\|b c`, escapeMarkdown("a|b\nc"))
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "0.00", FormatSeconds(0))
	assert.Equal(t, "1.24", FormatSeconds(1.235001))
	assert.Equal(t, "12.50", FormatSeconds(12.5))
}
