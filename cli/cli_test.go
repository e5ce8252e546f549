package cli

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/playtest/playtest/model"
	"github.com/playtest/playtest/recorder"
	"github.com/playtest/playtest/viewer"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const sampleEvents = `{"Action":"start","Package":"example.com/calc"}
{"Action":"run","Package":"example.com/calc","Test":"TestAdd"}
{"Action":"output","Package":"example.com/calc","Test":"TestAdd","Output":"--- PASS: TestAdd (0.10s)\n"}
{"Action":"pass","Package":"example.com/calc","Test":"TestAdd","Elapsed":0.1}
{"Action":"run","Package":"example.com/calc","Test":"TestDiv"}
{"Action":"output","Package":"example.com/calc","Test":"TestDiv","Output":"    calc_test.go:27: want error\n"}
{"Action":"output","Package":"example.com/calc","Test":"TestDiv","Output":"--- FAIL: TestDiv (0.20s)\n"}
{"Action":"fail","Package":"example.com/calc","Test":"TestDiv","Elapsed":0.2}
{"Action":"fail","Package":"example.com/calc","Elapsed":0.3}
`

// recordSession writes a report below root the way the test command does.
func recordSession(t *testing.T, root string, started time.Time, records ...model.PhaseRecord) string {
	t.Helper()
	rec := recorder.New(zerolog.Nop(), recorder.Options{
		ReportsDir:  root,
		ToolVersion: "dev",
		Args:        []string{"test", "-json", "./..."},
		Now:         func() time.Time { return started },
	})
	require.NoError(t, rec.Start())
	for _, r := range records {
		require.NoError(t, rec.OnPhaseComplete(r))
	}
	exit := 0
	for _, r := range records {
		if r.Outcome == model.OutcomeFailed {
			exit = 1
		}
	}
	_, err := rec.OnSessionFinish(exit)
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(rec.Path(), started, started))
	return rec.Path()
}

func setupReports(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	started := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

	failed := model.PhaseRecord{NodeID: "example.com/calc::TestDiv", When: model.PhaseCall, Outcome: model.OutcomeFailed, Duration: 0.2}
	failed.LongRepr = model.NewLongRepr("example.com/calc/calc_test.go", 27, []string{"calc_test.go:27: want error"})
	recordSession(t, root, started,
		model.PhaseRecord{NodeID: "example.com/calc::TestAdd", When: model.PhaseCall, Outcome: model.OutcomePassed, Duration: 0.1},
		failed,
	)
	recordSession(t, root, started.Add(time.Hour),
		model.PhaseRecord{NodeID: "example.com/calc::TestAdd", When: model.PhaseCall, Outcome: model.OutcomePassed, Duration: 0.1},
		model.PhaseRecord{NodeID: "example.com/broken", When: model.PhaseSetup, Outcome: model.OutcomeFailed, Duration: 0},
	)
	return root
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := New()
	app.logger = zerolog.Nop()
	app.cli.Writer = &out
	app.cli.ErrWriter = &out
	// Keep exit codes as returned errors instead of exiting the test binary
	app.cli.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{AppName, "--no-color"}, args...))
	return out.String(), err
}

func TestApp_List(t *testing.T) {
	root := setupReports(t)

	out, err := runApp(t, "list", "--dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "=== Reports (2 total) ===")
	assert.Contains(t, out, "✗  09-03-2024_15-05-07  [0.10s]  exit=1  passed=1  failed=0")
	assert.Contains(t, out, "✗  09-03-2024_14-05-07  [0.30s]  exit=1  passed=1  failed=1")
	assert.Contains(t, out, "Run: All tests")
	assert.Less(t, strings.Index(out, "15-05-07"), strings.Index(out, "14-05-07"))

	out, err = runApp(t, "list", "--dir", root, "--limit", "1")
	require.NoError(t, err)
	assert.NotContains(t, out, "14-05-07")

	out, err = runApp(t, "list", "--dir", root, "--date", "01-01-2020")
	require.NoError(t, err)
	assert.Contains(t, out, "No reports found for date: 01-01-2020")

	_, err = runApp(t, "list", "--dir", root, "--date", "2024-03-09")
	assert.Error(t, err)
}

func TestApp_View(t *testing.T) {
	root := setupReports(t)

	out, err := runApp(t, "view", "--dir", root, "--", "-1")
	require.NoError(t, err)
	assert.Contains(t, out, "=== Playtest Report ===")
	assert.Contains(t, out, "Total duration: 0.30s   Number of tests: 2   Passed: 1   Failed: 1")
	assert.Contains(t, out, "Path:    example.com/calc/calc_test.go")
	assert.Contains(t, out, "Rerun:   go test -run '^TestDiv$' example.com/calc")

	out, err = runApp(t, "view", "--dir", root, "--markdown", "09-03-2024_14")
	require.NoError(t, err)
	assert.Contains(t, out, "| Failed | 1 |")
}

func TestApp_ViewByPath(t *testing.T) {
	root := setupReports(t)
	dir := filepath.Join(root, "09-03-2024_14-05-07")

	out, err := runApp(t, "view", dir)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, model.ReportFileName))
}

func TestApp_ViewStrict(t *testing.T) {
	root := setupReports(t)

	// the latest session has a package that failed before any test ran
	out, err := runApp(t, "view", "--dir", root, "--strict")
	assert.ErrorIs(t, err, model.ErrIncompleteTestRecord)
	assert.Contains(t, out, "Setup and teardown errors:")
	assert.Contains(t, out, "incomplete")
}

func TestApp_ViewPprof(t *testing.T) {
	root := setupReports(t)
	profilePath := filepath.Join(t.TempDir(), "durations.pb.gz")

	_, err := runApp(t, "view", "--dir", root, "--pprof", profilePath)
	require.NoError(t, err)
	assert.FileExists(t, profilePath)
}

func TestApp_ViewMissing(t *testing.T) {
	root := setupReports(t)

	out, err := runApp(t, "view", "--dir", root, "no-such-session")
	assert.ErrorIs(t, err, model.ErrReportNotFound)
	assert.Contains(t, out, "Could not read report")
	assert.Contains(t, out, "Available reports:")
	assert.Contains(t, out, "09-03-2024_15-05-07")
}

func TestApp_ViewCorrupt(t *testing.T) {
	root := setupReports(t)
	corrupt := filepath.Join(root, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte(`{"metadata": [`), 0644))

	out, err := runApp(t, "view", "--dir", root, corrupt)
	assert.ErrorIs(t, err, model.ErrReportCorrupt)
	assert.Contains(t, out, "Available reports:")
}

func TestApp_Query(t *testing.T) {
	root := setupReports(t)

	out, err := runApp(t, "query", "--dir", root, "--", "-1", `.test_data[] | select(.outcome == "failed") | .nodeid`)
	require.NoError(t, err)
	assert.Equal(t, "example.com/calc::TestDiv\n", out)

	out, err = runApp(t, "query", "--dir", root, ".metadata[1]")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_duration": 0.1}`, out)
}

func TestExecuteTests(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	events := filepath.Join(t.TempDir(), "events.json")
	require.NoError(t, os.WriteFile(events, []byte(sampleEvents), 0644))

	app := &App{logger: zerolog.Nop()}
	rec := recorder.New(zerolog.Nop(), recorder.Options{ReportPath: t.TempDir()})
	require.NoError(t, rec.Start())

	var out bytes.Buffer
	cmd := exec.Command("sh", "-c", `cat "$0"; exit 3`, events)
	code, err := app.executeTests(cmd, rec, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Contains(t, out.String(), "--- FAIL: TestDiv (0.20s)")

	report, err := rec.OnSessionFinish(code)
	require.NoError(t, err)
	assert.Len(t, report.TestData, 2)
	assert.Len(t, report.CollectData, 1)
	assert.Equal(t, 3, *report.Metadata[0].ExitStatus)
	assert.Equal(t, 0.3, *report.Metadata[1].TotalDuration)
}

func TestExecuteTests_StartFailure(t *testing.T) {
	app := &App{logger: zerolog.Nop()}
	rec := recorder.New(zerolog.Nop(), recorder.Options{ReportPath: t.TempDir()})
	require.NoError(t, rec.Start())

	_, err := app.executeTests(exec.Command(filepath.Join(t.TempDir(), "missing")), rec, &bytes.Buffer{})
	assert.Error(t, err)
}

// fakeGoroot installs a go binary that prints events and exits with code.
func fakeGoroot(t *testing.T, events string, code int) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	root := t.TempDir()
	eventsFile := filepath.Join(root, "events.json")
	require.NoError(t, os.WriteFile(eventsFile, []byte(events), 0644))

	script := fmt.Sprintf("#!/bin/sh\ncat '%s'\nexit %d\n", eventsFile, code)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bin", "go"), []byte(script), 0755))
	t.Setenv("GOROOT", root)
}

func TestApp_Test(t *testing.T) {
	fakeGoroot(t, sampleEvents, 1)
	report := filepath.Join(t.TempDir(), "session.json")

	out, err := runApp(t, "test", "--report", report, "./...")
	var exitErr cli.ExitCoder
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Contains(t, out, "--- FAIL: TestDiv (0.20s)")

	loaded, err := viewer.Load(report)
	require.NoError(t, err)
	assert.Len(t, loaded.TestData, 2)
	assert.Equal(t, 1, *loaded.Metadata[0].ExitStatus)
	assert.Equal(t, []string{"test", "-json", "./..."}, loaded.Metadata[0].Args)
}

func TestApp_TestPassing(t *testing.T) {
	events := `{"Action":"run","Package":"example.com/calc","Test":"TestAdd"}
{"Action":"pass","Package":"example.com/calc","Test":"TestAdd","Elapsed":0.1}
{"Action":"pass","Package":"example.com/calc","Elapsed":0.1}
`
	fakeGoroot(t, events, 0)
	dir := t.TempDir()

	_, err := runApp(t, "test", "--report", dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, model.ReportFileName))
}

func TestApp_TestReportErrorKeepsExitStatus(t *testing.T) {
	tests := []struct {
		name   string
		report func(t *testing.T) string
	}{
		{
			name: "report already exists",
			report: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "session.json")
				require.NoError(t, os.WriteFile(path, []byte("previous session"), 0644))
				return path
			},
		},
		{
			name: "report directory unwritable",
			report: func(t *testing.T) string {
				blocker := filepath.Join(t.TempDir(), "blocker")
				require.NoError(t, os.WriteFile(blocker, []byte("previous session"), 0644))
				return filepath.Join(blocker, "session.json")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakeGoroot(t, sampleEvents, 1)
			report := tt.report(t)

			_, err := runApp(t, "test", "--report", report)
			var exitErr cli.ExitCoder
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 1, exitErr.ExitCode())
		})
	}

	t.Run("existing report is untouched", func(t *testing.T) {
		fakeGoroot(t, sampleEvents, 1)
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte("previous session"), 0644))

		_, err := runApp(t, "test", "--report", path)
		require.Error(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "previous session", string(data))
	})
}
