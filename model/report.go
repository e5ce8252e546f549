package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// ReportFileName is the artifact name used when a report path names a directory.
const ReportFileName = "playtest_report.json"

// Phase is one of the lifecycle stages of a single test.
type Phase string

const (
	PhaseSetup    Phase = "setup"
	PhaseCall     Phase = "call"
	PhaseTeardown Phase = "teardown"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseSetup, PhaseCall, PhaseTeardown:
		return true
	}
	return false
}

// Outcome is the result of a phase, or of a whole test in a ReportRow.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
	// OutcomeIncomplete is only ever derived, for tests without a call phase.
	OutcomeIncomplete Outcome = "incomplete"
)

// Valid reports whether o may appear in a recorded phase.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomePassed, OutcomeFailed, OutcomeSkipped:
		return true
	}
	return false
}

// RunReport is the persisted artifact of one test session.
type RunReport struct {
	// Metadata fragments in the order they were appended.
	// Fragment 0 holds the run info, fragment 1 the total duration.
	Metadata []Metadata `json:"metadata"`
	// Discovery events
	CollectData []CollectRecord `json:"collect_data"`
	// Phase completion events, in arrival order
	TestData []PhaseRecord `json:"test_data"`
}

// Metadata is one fragment of run metadata. Each fragment sets a subset of
// the fields.
type Metadata struct {
	// Unique ID of the session (UUID)
	SessionID string `json:"session_id,omitempty"`
	// Version of the tool that produced the artifact
	ToolVersion string `json:"tool_version,omitempty"`
	// Set instead of ToolVersion by artifacts written by the pytest plugin
	PytestVersion string `json:"pytest_version,omitempty"`
	// Exit status of the session
	ExitStatus *int `json:"exitstatus,omitempty"`
	// Arguments the session was launched with
	Args []string `json:"args,omitempty"`
	// Time the session started
	StartedAt *time.Time `json:"started_at,omitempty"`
	// Git information, when the session ran inside a repository
	Git *Git `json:"git,omitempty"`
	// Sum of every phase duration in seconds, rounded to 2 decimals
	TotalDuration *float64 `json:"total_duration,omitempty"`
}

// Version returns the tool version regardless of which tool wrote the fragment.
func (m Metadata) Version() string {
	if m.ToolVersion != "" {
		return m.ToolVersion
	}
	return m.PytestVersion
}

// MarshalJSON always writes tool_version and args on the session fragment,
// the one carrying the session ID, even when they are empty.
func (m Metadata) MarshalJSON() ([]byte, error) {
	type plain Metadata
	if m.SessionID == "" || m.PytestVersion != "" {
		return json.Marshal(plain(m))
	}
	args := m.Args
	if args == nil {
		args = []string{}
	}
	return json.Marshal(struct {
		plain
		ToolVersion string   `json:"tool_version"`
		Args        []string `json:"args"`
	}{plain(m), m.ToolVersion, args})
}

// Git contains git repository information
type Git struct {
	// Git commit hash at time of execution
	Commit string `json:"commit,omitempty"`
	// Git branch at time of execution
	Branch string `json:"branch,omitempty"`
}

// CollectRecord describes one discovery event. It is passed through to the
// artifact as is.
type CollectRecord struct {
	// Identifier of the collected package, file or directory
	NodeID string `json:"nodeid"`
	// Outcome of the collection
	Outcome Outcome `json:"outcome"`
	// Error raised during collection, if any
	LongRepr *LongRepr `json:"longrepr,omitempty"`
	// Items discovered below this node
	Result []CollectItem `json:"result,omitempty"`

	// Live handle of the host engine. Never persisted.
	Node any `json:"-"`
}

// CollectItem is one item found while collecting a node.
type CollectItem struct {
	NodeID string `json:"nodeid"`
	Type   string `json:"type,omitempty"`
}

// PhaseRecord is the completion of one phase of one test.
type PhaseRecord struct {
	// Stable test identifier, e.g. "<package>::<TestName>"
	NodeID string `json:"nodeid"`
	// Phase that completed
	When Phase `json:"when"`
	// Outcome of the phase
	Outcome Outcome `json:"outcome"`
	// Duration of the phase in seconds
	Duration float64 `json:"duration"`
	// Failure detail, present for non-passing phases
	LongRepr *LongRepr `json:"longrepr,omitempty"`

	// Live handle of the host engine. Never persisted.
	Node any `json:"-"`
}

// Validate checks the fields every phase record must carry.
func (r PhaseRecord) Validate() error {
	if r.NodeID == "" {
		return fmt.Errorf("missing nodeid")
	}
	if !r.When.Valid() {
		return fmt.Errorf("invalid phase %q for %s", r.When, r.NodeID)
	}
	if !r.Outcome.Valid() {
		return fmt.Errorf("invalid outcome %q for %s", r.Outcome, r.NodeID)
	}
	if r.Duration < 0 || math.IsNaN(r.Duration) || math.IsInf(r.Duration, 0) {
		return fmt.Errorf("invalid duration %v for %s", r.Duration, r.NodeID)
	}
	return nil
}

// LongRepr is the failure representation of a phase.
type LongRepr struct {
	ReprCrash     *ReprCrash     `json:"reprcrash,omitempty"`
	ReprTraceback *ReprTraceback `json:"reprtraceback,omitempty"`
}

// ReprCrash points at the source location of a failure.
type ReprCrash struct {
	Path    string `json:"path"`
	LineNo  int    `json:"lineno"`
	Message string `json:"message,omitempty"`
}

// ReprTraceback holds the traceback entries of a failure.
type ReprTraceback struct {
	ReprEntries []ReprEntry `json:"reprentries"`
}

// ReprEntry is one traceback entry.
type ReprEntry struct {
	Type string        `json:"type,omitempty"`
	Data ReprEntryData `json:"data"`
}

// ReprEntryData holds the message lines of a traceback entry.
type ReprEntryData struct {
	Lines []string `json:"lines"`
}

// NewLongRepr builds a failure representation from a location and message lines.
func NewLongRepr(path string, line int, lines []string) *LongRepr {
	l := &LongRepr{
		ReprTraceback: &ReprTraceback{
			ReprEntries: []ReprEntry{{Data: ReprEntryData{Lines: lines}}},
		},
	}
	if path != "" {
		l.ReprCrash = &ReprCrash{Path: path, LineNo: line}
		if len(lines) > 0 {
			l.ReprCrash.Message = lines[len(lines)-1]
		}
	}
	return l
}

// Lines returns the message lines of the first traceback entry.
func (l *LongRepr) Lines() []string {
	if l == nil || l.ReprTraceback == nil || len(l.ReprTraceback.ReprEntries) == 0 {
		return nil
	}
	return l.ReprTraceback.ReprEntries[0].Data.Lines
}

// UnmarshalJSON accepts the object form as well as the list form
// ([path, lineno, message]) and plain string form used by pytest for skip
// reports and collection errors.
func (l *LongRepr) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '[':
		var parts []json.RawMessage
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		if len(parts) != 3 {
			return fmt.Errorf("longrepr: expected [path, lineno, message], got %d elements", len(parts))
		}
		var (
			path    string
			line    int
			message string
		)
		if err := json.Unmarshal(parts[0], &path); err != nil {
			return fmt.Errorf("longrepr path: %w", err)
		}
		if err := json.Unmarshal(parts[1], &line); err != nil {
			return fmt.Errorf("longrepr lineno: %w", err)
		}
		if err := json.Unmarshal(parts[2], &message); err != nil {
			return fmt.Errorf("longrepr message: %w", err)
		}
		*l = *NewLongRepr(path, line, strings.Split(message, "\n"))
		return nil
	case '"':
		var message string
		if err := json.Unmarshal(data, &message); err != nil {
			return err
		}
		*l = *NewLongRepr("", 0, strings.Split(message, "\n"))
		return nil
	}

	// plain has no methods, so this does not recurse
	type plain LongRepr
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = LongRepr(p)
	return nil
}

const (
	// TimestampLayout names session directories: DD-MM-YYYY_HH-MM-SS.
	TimestampLayout = "02-01-2006_15-04-05"
	// DateLayout is the date prefix of TimestampLayout.
	DateLayout = "02-01-2006"
)
