// Package durprof converts the phase durations of a report into a pprof
// profile, so `go tool pprof` can show where test time goes.
package durprof

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/pprof/profile"
	"github.com/playtest/playtest/model"
	"github.com/playtest/playtest/testargs"
)

// builder holds the state for building one profile
type builder struct {
	profile   *profile.Profile
	functions map[string]*profile.Function
	locations map[string]*profile.Location
	nextID    uint64
}

func newBuilder() *builder {
	return &builder{
		profile: &profile.Profile{
			SampleType: []*profile.ValueType{{Type: "duration", Unit: "nanoseconds"}},
			PeriodType: &profile.ValueType{Type: "duration", Unit: "nanoseconds"},
			Period:     1,
		},
		functions: make(map[string]*profile.Function),
		locations: make(map[string]*profile.Location),
		nextID:    1,
	}
}

// location returns the location of a single frame, creating it on first use
func (b *builder) location(name, file string) *profile.Location {
	if loc, ok := b.locations[name]; ok {
		return loc
	}

	fn, ok := b.functions[name]
	if !ok {
		fn = &profile.Function{
			ID:         b.nextID,
			Name:       name,
			SystemName: name,
			Filename:   file,
		}
		b.nextID++
		b.functions[name] = fn
		b.profile.Function = append(b.profile.Function, fn)
	}

	loc := &profile.Location{
		ID:   b.nextID,
		Line: []profile.Line{{Function: fn}},
	}
	b.nextID++
	b.locations[name] = loc
	b.profile.Location = append(b.profile.Location, loc)
	return loc
}

// stack returns the frames of a phase record, leaf first:
// phase, subtests, test, package.
func (b *builder) stack(rec model.PhaseRecord) []*profile.Location {
	pkg, test := testargs.SplitNodeID(rec.NodeID)

	var file string
	if rec.LongRepr != nil && rec.LongRepr.ReprCrash != nil {
		file = rec.LongRepr.ReprCrash.Path
	}

	frames := []*profile.Location{b.location(pkg, "")}
	if test != "" {
		parts := strings.Split(test, "/")
		for i := range parts {
			name := testargs.JoinNodeID(pkg, parts[:i+1])
			frames = append(frames, b.location(name, file))
		}
	}
	frames = append(frames, b.location(rec.NodeID+" ["+string(rec.When)+"]", file))

	// pprof expects the leaf first
	for i, j := 0, len(frames)-1; i < j; i, j = i+1, j-1 {
		frames[i], frames[j] = frames[j], frames[i]
	}
	return frames
}

// Build converts every phase record of report into one sample.
func Build(report *model.RunReport) (*profile.Profile, error) {
	b := newBuilder()

	var total int64
	for _, rec := range report.TestData {
		value := int64(rec.Duration * 1e9)
		total += value
		b.profile.Sample = append(b.profile.Sample, &profile.Sample{
			Location: b.stack(rec),
			Value:    []int64{value},
			Label: map[string][]string{
				"phase":   {string(rec.When)},
				"outcome": {string(rec.Outcome)},
			},
		})
	}
	b.profile.DurationNanos = total

	if len(report.Metadata) > 0 && report.Metadata[0].StartedAt != nil {
		b.profile.TimeNanos = report.Metadata[0].StartedAt.UnixNano()
	}

	if err := b.profile.CheckValid(); err != nil {
		return nil, fmt.Errorf("invalid duration profile: %w", err)
	}
	return b.profile, nil
}

// Write builds the profile of report and writes it gzipped to path.
func Write(report *model.RunReport, path string) error {
	prof, err := Build(report)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	if err := prof.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close profile: %w", err)
	}
	return nil
}
