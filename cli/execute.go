package cli

// This file contains the execution of go test and the streaming of its
// events into the recorder.

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/playtest/playtest/testevents"
)

// executeTests runs cmd, which must write go test -json events to stdout,
// and feeds the events to sink. Human-readable test output goes to out.
// It returns the exit code of cmd; an error is only returned when cmd could
// not be run at all.
func (a *App) executeTests(cmd *exec.Cmd, sink testevents.Sink, out io.Writer) (int, error) {
	a.logger.Debug().
		Str("path", cmd.Path).
		Strs("args", cmd.Args[1:]).
		Msg("Starting test execution")

	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("failed to open test output: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start go test: %w", err)
	}

	if err := testevents.New(a.logger, out).Parse(stdout, sink); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to read all test events")
		// Drain so the child does not block on a full pipe
		_, _ = io.Copy(io.Discard, stdout)
	}

	if err := cmd.Wait(); err != nil {
		// Test failures are expected to return non-zero exit codes
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			a.logger.Info().
				Int("exit_code", exitErr.ExitCode()).
				Msg("Tests completed with failures")
			return exitErr.ExitCode(), nil
		}
		return 0, fmt.Errorf("failed to execute tests: %w", err)
	}

	a.logger.Info().Msg("Tests completed successfully")
	return 0, nil
}
