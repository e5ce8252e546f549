package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logMaxSizeMB  = 10
	logMaxBackups = 3
	logMaxAgeDays = 28
)

// newLogFileWriter creates a rotating file writer at path.
func newLogFileWriter(path string) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
	}, nil
}

// setupLogFile sends log output to the console and to a rotating file.
func (a *App) setupLogFile(path string) error {
	lj, err := newLogFileWriter(path)
	if err != nil {
		return err
	}
	a.logFile = lj

	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339Nano,
	}
	a.logger = zerolog.New(zerolog.MultiLevelWriter(console, lj)).With().Timestamp().Logger()
	a.logger.Debug().Str("path", path).Msg("Logging to file")
	return nil
}
