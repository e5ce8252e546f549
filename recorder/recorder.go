// Package recorder captures the lifecycle events of one test session and
// persists them as a single JSON artifact.
package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playtest/playtest/model"
	"github.com/rs/zerolog"
)

// DefaultReportsDir is the root used when no report path is given.
const DefaultReportsDir = "reports"

// State is the lifecycle state of a Recorder.
type State int

const (
	StateIdle State = iota
	StateCollecting
	StateRunning
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollecting:
		return "collecting"
	case StateRunning:
		return "running"
	case StateFinalized:
		return "finalized"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options configures a Recorder.
type Options struct {
	// ReportPath is either a directory, which receives playtest_report.json,
	// or a path ending in .json. Empty derives a timestamped directory below
	// ReportsDir.
	ReportPath string
	// ReportsDir is the root for derived report paths (default: reports)
	ReportsDir string
	// ToolVersion is written to the first metadata fragment
	ToolVersion string
	// Args are the arguments the session was launched with
	Args []string
	// Git is optional repository information
	Git *model.Git
	// Summary receives the one line notice naming the artifact
	Summary io.Writer
	// Now defaults to time.Now
	Now func() time.Time
}

type phaseKey struct {
	nodeID string
	phase  model.Phase
}

// Recorder accumulates the events of exactly one session. It is safe for
// concurrent use by multiple workers.
type Recorder struct {
	logger zerolog.Logger
	opts   Options

	mu          sync.Mutex
	state       State
	sessionID   string
	startedAt   time.Time
	path        string
	metadata    []model.Metadata
	collectData []model.CollectRecord
	testData    []model.PhaseRecord
	seen        map[phaseKey]struct{}
}

// New returns an idle Recorder.
func New(logger zerolog.Logger, opts Options) *Recorder {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReportsDir == "" {
		opts.ReportsDir = DefaultReportsDir
	}
	if opts.Summary == nil {
		opts.Summary = io.Discard
	}
	return &Recorder{
		logger: logger,
		opts:   opts,
	}
}

// ResolvePath returns the artifact path for a session started at now.
func ResolvePath(reportPath, reportsDir string, now time.Time) string {
	if reportPath != "" {
		if strings.EqualFold(filepath.Ext(reportPath), ".json") {
			return reportPath
		}
		return filepath.Join(reportPath, model.ReportFileName)
	}
	if reportsDir == "" {
		reportsDir = DefaultReportsDir
	}
	return filepath.Join(reportsDir, now.Format(model.TimestampLayout), model.ReportFileName)
}

// Start begins the session and resolves the artifact path.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return fmt.Errorf("cannot start session in state %s", r.state)
	}

	now := r.opts.Now()
	r.startedAt = now.Round(0).UTC()
	r.sessionID = uuid.New().String()
	r.path = ResolvePath(r.opts.ReportPath, r.opts.ReportsDir, now)
	r.metadata = []model.Metadata{}
	r.collectData = []model.CollectRecord{}
	r.testData = []model.PhaseRecord{}
	r.seen = make(map[phaseKey]struct{})
	r.state = StateCollecting

	r.logger.Debug().
		Str("session", r.sessionID).
		Str("path", r.path).
		Msg("Session started")
	return nil
}

// Path returns the artifact path. It is empty before Start.
func (r *Recorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// SessionID returns the session's unique ID. It is empty before Start.
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recorder) acceptingLocked() error {
	switch r.state {
	case StateIdle:
		return model.ErrSessionNotStarted
	case StateFinalized:
		return model.ErrSessionFinalized
	}
	return nil
}

// OnCollect records one discovery event.
func (r *Recorder) OnCollect(rec model.CollectRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.acceptingLocked(); err != nil {
		r.logger.Warn().Err(err).Str("nodeid", rec.NodeID).Msg("Dropped collect record")
		return err
	}

	rec.Node = nil
	r.collectData = append(r.collectData, rec)
	return nil
}

// OnPhaseComplete records the completion of one test phase. Malformed or
// duplicate records are logged and rejected without affecting the session.
func (r *Recorder) OnPhaseComplete(rec model.PhaseRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.acceptingLocked(); err != nil {
		r.logger.Warn().Err(err).Str("nodeid", rec.NodeID).Msg("Dropped phase record")
		return err
	}

	if err := rec.Validate(); err != nil {
		r.logger.Warn().Err(err).Msg("Dropped malformed phase record")
		return fmt.Errorf("%w: %v", model.ErrInvalidRecord, err)
	}

	key := phaseKey{nodeID: rec.NodeID, phase: rec.When}
	if _, ok := r.seen[key]; ok {
		r.logger.Warn().
			Str("nodeid", rec.NodeID).
			Str("when", string(rec.When)).
			Msg("Dropped duplicate phase record")
		return fmt.Errorf("%w: %s (%s)", model.ErrDuplicatePhase, rec.NodeID, rec.When)
	}
	r.seen[key] = struct{}{}

	rec.Node = nil
	r.testData = append(r.testData, rec)
	r.state = StateRunning
	return nil
}

// OnSessionFinish finalizes the session and writes the artifact. The
// assembled report is returned even when writing fails.
func (r *Recorder) OnSessionFinish(exitStatus int) (*model.RunReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.acceptingLocked(); err != nil {
		return nil, err
	}
	r.state = StateFinalized

	status := exitStatus
	startedAt := r.startedAt
	r.metadata = append(r.metadata, model.Metadata{
		SessionID:   r.sessionID,
		ToolVersion: r.opts.ToolVersion,
		ExitStatus:  &status,
		Args:        append([]string(nil), r.opts.Args...),
		StartedAt:   &startedAt,
		Git:         r.opts.Git,
	})

	total := sumDurations(r.testData)
	r.metadata = append(r.metadata, model.Metadata{TotalDuration: &total})

	report := &model.RunReport{
		Metadata:    r.metadata,
		CollectData: r.collectData,
		TestData:    r.testData,
	}

	if err := writeArtifact(r.path, report); err != nil {
		r.logger.Error().Err(err).Str("path", r.path).Msg("Failed to write report")
		return report, err
	}

	r.logger.Debug().
		Str("path", r.path).
		Int("tests", len(r.testData)).
		Float64("total_duration", total).
		Msg("Report written")
	fmt.Fprintf(r.opts.Summary, "generated report file: %s\n", r.path)
	return report, nil
}

// sumDurations adds every phase duration and rounds to 2 decimals.
func sumDurations(records []model.PhaseRecord) float64 {
	var total float64
	for _, rec := range records {
		total += rec.Duration
	}
	return math.Round(total*100) / 100
}

func writeArtifact(path string, report *model.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrArtifactDirectoryUnwritable, dir, err)
	}

	// O_EXCL keeps an earlier session's artifact intact on a path collision
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", model.ErrArtifactWriteConflict, path)
		}
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %s: %v", model.ErrArtifactDirectoryUnwritable, dir, err)
		}
		return fmt.Errorf("failed to create report file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return f.Close()
}
