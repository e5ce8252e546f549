package model

import (
	"errors"
	"fmt"
)

var (
	// Read side
	ErrReportNotFound       = errors.New("report not found")
	ErrReportCorrupt        = errors.New("report corrupt")
	ErrMetadataMissing      = errors.New("metadata missing")
	ErrIncompleteTestRecord = errors.New("test has no call phase")
	ErrNoFailureDetail      = errors.New("record has no failure detail")

	// Write side
	ErrArtifactWriteConflict       = errors.New("artifact already exists")
	ErrArtifactDirectoryUnwritable = errors.New("artifact directory unwritable")

	// Recorder state
	ErrSessionNotStarted = errors.New("session not started")
	ErrSessionFinalized  = errors.New("session already finalized")
	ErrInvalidRecord     = errors.New("invalid record")
	ErrDuplicatePhase    = errors.New("duplicate phase record")
)

// ParseError describes an artifact that could not be decoded.
type ParseError struct {
	File    string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Unwrap makes errors.Is(err, ErrReportCorrupt) hold for every ParseError.
func (e *ParseError) Unwrap() error {
	return ErrReportCorrupt
}
