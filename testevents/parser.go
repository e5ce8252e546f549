// Package testevents turns the structured event stream of `go test -json`
// into recorder events.
package testevents

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/playtest/playtest/model"
	"github.com/rs/zerolog"
)

// Sink receives recorder events. *recorder.Recorder implements it.
type Sink interface {
	OnCollect(rec model.CollectRecord) error
	OnPhaseComplete(rec model.PhaseRecord) error
}

// Event is one line of `go test -json` output.
type Event struct {
	Time        time.Time `json:"Time"`
	Action      string    `json:"Action"`
	Package     string    `json:"Package"`
	Test        string    `json:"Test"`
	Elapsed     float64   `json:"Elapsed"`
	Output      string    `json:"Output"`
	ImportPath  string    `json:"ImportPath"`
	FailedBuild string    `json:"FailedBuild"`
}

// NodeID returns the node identifier of a test in a package.
func NodeID(pkg, test string) string {
	if test == "" {
		return pkg
	}
	return pkg + "::" + test
}

// fileLine matches the "file_test.go:42:" prefix testing.T adds to messages.
var fileLine = regexp.MustCompile(`^\s*([\w.\-/]+\.go):(\d+):`)

var framing = []string{"=== RUN", "=== PAUSE", "=== CONT", "=== NAME", "--- PASS", "--- FAIL", "--- SKIP"}

type testState struct {
	output []string
	done   bool
}

type packageState struct {
	tests  map[string]*testState
	order  []string
	output []string
	ran    bool
}

// Parser decodes `go test -json` events. A Parser is used for one stream.
type Parser struct {
	logger   zerolog.Logger
	output   io.Writer
	packages map[string]*packageState
	builds   map[string][]string
}

// New creates a parser. The human readable test output is copied to output.
func New(logger zerolog.Logger, output io.Writer) *Parser {
	if output == nil {
		output = io.Discard
	}
	return &Parser{
		logger:   logger,
		output:   output,
		packages: make(map[string]*packageState),
		builds:   make(map[string][]string),
	}
}

func (p *Parser) pkg(name string) *packageState {
	ps, ok := p.packages[name]
	if !ok {
		ps = &packageState{tests: make(map[string]*testState)}
		p.packages[name] = ps
	}
	return ps
}

// Parse reads events from r until EOF and forwards them to sink. Sink errors
// are logged and do not stop parsing.
func (p *Parser) Parse(r io.Reader, sink Sink) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if line[0] != '{' {
			p.logger.Debug().Str("line", string(line)).Msg("Skipping non-JSON output")
			fmt.Fprintln(p.output, string(line))
			continue
		}

		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			p.logger.Debug().Err(err).Str("line", string(line)).Msg("Skipping undecodable event")
			continue
		}
		p.handle(ev, sink)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading test events: %w", err)
	}
	return nil
}

func (p *Parser) handle(ev Event, sink Sink) {
	switch ev.Action {
	case "build-output":
		p.builds[ev.ImportPath] = append(p.builds[ev.ImportPath], strings.TrimRight(ev.Output, "\n"))
		io.WriteString(p.output, ev.Output)
	case "start":
		p.pkg(ev.Package)
	case "run":
		ps := p.pkg(ev.Package)
		if _, ok := ps.tests[ev.Test]; !ok {
			ps.tests[ev.Test] = &testState{}
			ps.order = append(ps.order, ev.Test)
		}
	case "output":
		io.WriteString(p.output, ev.Output)
		ps := p.pkg(ev.Package)
		text := strings.TrimRight(ev.Output, "\n")
		if ev.Test == "" {
			ps.output = append(ps.output, text)
			return
		}
		ts, ok := ps.tests[ev.Test]
		if !ok {
			ts = &testState{}
			ps.tests[ev.Test] = ts
			ps.order = append(ps.order, ev.Test)
		}
		ts.output = append(ts.output, text)
	case "pass", "fail", "skip":
		if ev.Test != "" {
			p.finishTest(ev, sink)
		} else {
			p.finishPackage(ev, sink)
		}
	}
}

func outcomeOf(action string) model.Outcome {
	switch action {
	case "pass":
		return model.OutcomePassed
	case "skip":
		return model.OutcomeSkipped
	}
	return model.OutcomeFailed
}

func (p *Parser) finishTest(ev Event, sink Sink) {
	ps := p.pkg(ev.Package)
	ps.ran = true

	rec := model.PhaseRecord{
		NodeID:   NodeID(ev.Package, ev.Test),
		When:     model.PhaseCall,
		Outcome:  outcomeOf(ev.Action),
		Duration: elapsed(ev.Elapsed),
	}
	if rec.Outcome != model.OutcomePassed {
		var lines []string
		if ts, ok := ps.tests[ev.Test]; ok {
			lines = ts.output
		}
		rec.LongRepr = failureRepr(ev.Package, lines)
	}
	if ts, ok := ps.tests[ev.Test]; ok {
		ts.done = true
	}

	if err := sink.OnPhaseComplete(rec); err != nil {
		p.logger.Warn().Err(err).Str("nodeid", rec.NodeID).Msg("Failed to record test")
	}
}

func (p *Parser) finishPackage(ev Event, sink Sink) {
	ps := p.pkg(ev.Package)

	collect := model.CollectRecord{
		NodeID:  ev.Package,
		Outcome: outcomeOf(ev.Action),
	}
	for _, test := range ps.order {
		collect.Result = append(collect.Result, model.CollectItem{
			NodeID: NodeID(ev.Package, test),
			Type:   "Function",
		})
	}

	// Tests that started but never finished were killed with the binary,
	// typically by a -timeout panic.
	var unfinished []string
	for _, test := range ps.order {
		if !ps.tests[test].done {
			unfinished = append(unfinished, test)
		}
	}

	var phases []model.PhaseRecord
	if ev.Action == "fail" {
		switch {
		case len(unfinished) > 0:
			for _, test := range unfinished {
				lines := append([]string{}, ps.tests[test].output...)
				lines = append(lines, ps.output...)
				phases = append(phases, model.PhaseRecord{
					NodeID:   NodeID(ev.Package, test),
					When:     model.PhaseCall,
					Outcome:  model.OutcomeFailed,
					LongRepr: failureRepr(ev.Package, lines),
				})
			}
		case !ps.ran:
			// A failing package without any test never reached its tests:
			// build failure, init panic or TestMain exiting early.
			lines := append([]string{}, p.builds[ev.FailedBuild]...)
			lines = append(lines, ps.output...)
			repr := failureRepr(ev.Package, lines)
			collect.LongRepr = repr
			phases = append(phases, model.PhaseRecord{
				NodeID:   ev.Package,
				When:     model.PhaseSetup,
				Outcome:  model.OutcomeFailed,
				Duration: elapsed(ev.Elapsed),
				LongRepr: repr,
			})
		}
	}

	if err := sink.OnCollect(collect); err != nil {
		p.logger.Warn().Err(err).Str("package", ev.Package).Msg("Failed to record package")
	}
	for _, rec := range phases {
		if err := sink.OnPhaseComplete(rec); err != nil {
			p.logger.Warn().Err(err).Str("nodeid", rec.NodeID).Msg("Failed to record package failure")
		}
	}

	delete(p.packages, ev.Package)
}

func elapsed(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// failureRepr builds failure detail from the output of a test. The first
// file:line reference becomes the crash location.
func failureRepr(pkg string, output []string) *model.LongRepr {
	lines := []string{}
	crashPath, crashLine := "", 0

	for _, line := range output {
		if isFraming(line) {
			continue
		}
		line = strings.TrimPrefix(line, "    ")
		lines = append(lines, line)

		if crashPath != "" {
			continue
		}
		if m := fileLine.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			crashPath, crashLine = m[1], n
			if !strings.Contains(crashPath, "/") {
				crashPath = path.Join(pkg, crashPath)
			}
		}
	}

	return model.NewLongRepr(crashPath, crashLine, lines)
}

func isFraming(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range framing {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}
