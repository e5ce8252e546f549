// Package viewer loads report artifacts and derives per-test summaries from
// them. Nothing in this package modifies a report.
package viewer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/playtest/playtest/model"
)

// LoadRaw reads an artifact without decoding it.
func LoadRaw(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", model.ErrReportNotFound, path)
		}
		return nil, fmt.Errorf("failed to read report %s: %w", path, err)
	}
	return data, nil
}

// Load reads and validates the artifact at path.
func Load(path string) (*model.RunReport, error) {
	data, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

// Parse validates and decodes an artifact. file is only used in errors.
func Parse(file string, data []byte) (*model.RunReport, error) {
	if err := validateSchema(file, data); err != nil {
		return nil, err
	}

	var report model.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, &model.ParseError{File: file, Message: fmt.Sprintf("invalid report: %v", err)}
	}
	return &report, nil
}

// ListDistinctTests returns every nodeid in test_data once, sorted.
func ListDistinctTests(report *model.RunReport) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, rec := range report.TestData {
		if _, ok := seen[rec.NodeID]; ok {
			continue
		}
		seen[rec.NodeID] = struct{}{}
		ids = append(ids, rec.NodeID)
	}
	sort.Strings(ids)
	return ids
}

// BuildReportRows merges the phases of each nodeID into one row, in the order
// given. Tests without a call phase get OutcomeIncomplete.
func BuildReportRows(report *model.RunReport, nodeIDs []string) []model.ReportRow {
	phases := make(map[string][]model.PhaseRecord)
	for _, rec := range report.TestData {
		phases[rec.NodeID] = append(phases[rec.NodeID], rec)
	}

	rows := make([]model.ReportRow, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		row := model.ReportRow{
			TestCase: id,
			Outcome:  model.OutcomeIncomplete,
		}
		for _, rec := range phases[id] {
			switch rec.When {
			case model.PhaseSetup:
				row.SetupDuration = rec.Duration
			case model.PhaseCall:
				row.CallDuration = rec.Duration
				row.Outcome = rec.Outcome
			case model.PhaseTeardown:
				row.TeardownDuration = rec.Duration
			}
		}
		row.TotalDuration = row.SetupDuration + row.CallDuration + row.TeardownDuration
		rows = append(rows, row)
	}
	return rows
}

// CheckComplete returns ErrIncompleteTestRecord naming every row without a
// call phase.
func CheckComplete(rows []model.ReportRow) error {
	var incomplete []string
	for _, row := range rows {
		if row.Outcome == model.OutcomeIncomplete {
			incomplete = append(incomplete, row.TestCase)
		}
	}
	if len(incomplete) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", model.ErrIncompleteTestRecord, strings.Join(incomplete, ", "))
}

// CountOutcomes counts call phases. Every outcome other than passed counts
// as failed.
func CountOutcomes(report *model.RunReport) model.OutcomeCounts {
	var counts model.OutcomeCounts
	for _, rec := range report.TestData {
		if rec.When != model.PhaseCall {
			continue
		}
		if rec.Outcome == model.OutcomePassed {
			counts.Passed++
		} else {
			counts.Failed++
		}
	}
	return counts
}

// RunInfo returns the first metadata fragment.
func RunInfo(report *model.RunReport) (model.Metadata, error) {
	if len(report.Metadata) == 0 {
		return model.Metadata{}, fmt.Errorf("%w: no run info fragment", model.ErrMetadataMissing)
	}
	return report.Metadata[0], nil
}

// TotalDuration returns total_duration from the second metadata fragment.
func TotalDuration(report *model.RunReport) (float64, error) {
	if len(report.Metadata) < 2 || report.Metadata[1].TotalDuration == nil {
		return 0, fmt.Errorf("%w: no total_duration fragment", model.ErrMetadataMissing)
	}
	return *report.Metadata[1].TotalDuration, nil
}

// ExtractFailureDetail returns the location and message of a non-passing
// call record.
func ExtractFailureDetail(rec model.PhaseRecord) (model.FailureDetail, error) {
	if rec.When != model.PhaseCall || rec.Outcome == model.OutcomePassed {
		return model.FailureDetail{}, fmt.Errorf("%w: %s (%s, %s)", model.ErrNoFailureDetail, rec.NodeID, rec.When, rec.Outcome)
	}
	return detailOf(rec), nil
}

func detailOf(rec model.PhaseRecord) model.FailureDetail {
	detail := model.FailureDetail{NodeID: rec.NodeID}
	if rec.LongRepr == nil {
		return detail
	}
	if crash := rec.LongRepr.ReprCrash; crash != nil {
		detail.Path = crash.Path
		detail.Line = crash.LineNo
	}
	detail.Message = strings.Join(rec.LongRepr.Lines(), "\n")
	return detail
}

// Failures returns the failure detail of every non-passing call record, in
// recorded order.
func Failures(report *model.RunReport) []model.FailureDetail {
	var failures []model.FailureDetail
	for _, rec := range report.TestData {
		if rec.When != model.PhaseCall || rec.Outcome == model.OutcomePassed {
			continue
		}
		detail, err := ExtractFailureDetail(rec)
		if err != nil {
			continue
		}
		failures = append(failures, detail)
	}
	return failures
}

// PhaseErrors returns the detail of failed setup and teardown records.
func PhaseErrors(report *model.RunReport) []model.FailureDetail {
	var errs []model.FailureDetail
	for _, rec := range report.TestData {
		if rec.When == model.PhaseCall || rec.Outcome != model.OutcomeFailed {
			continue
		}
		errs = append(errs, detailOf(rec))
	}
	return errs
}
