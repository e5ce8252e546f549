package viewer

import (
	"github.com/playtest/playtest/model"
	"github.com/playtest/playtest/testargs"
)

// Failure is failure detail together with a command that reruns the test.
type Failure struct {
	model.FailureDetail
	Rerun string
}

// Summary is everything the view renders for one artifact.
type Summary struct {
	Path     string
	Info     model.Metadata
	RunType  string
	Command  string
	Duration *float64
	Tests    int
	Counts   model.OutcomeCounts
	Rows     []model.ReportRow
	Failures []Failure
	// Failed setup and teardown phases
	Errors []Failure
	// Problems found while summarizing, e.g. missing metadata
	Warnings []string
}

// Summarize derives the summary of report, loaded from path.
func Summarize(path string, report *model.RunReport) *Summary {
	s := &Summary{Path: path}

	if info, err := RunInfo(report); err == nil {
		s.Info = info
		s.RunType = testargs.RunType(info.Args)
		if len(info.Args) > 0 {
			s.Command = testargs.CommandLine(info.Args)
		}
	} else {
		s.Warnings = append(s.Warnings, err.Error())
	}

	if total, err := TotalDuration(report); err == nil {
		s.Duration = &total
	} else {
		s.Warnings = append(s.Warnings, err.Error())
	}

	ids := ListDistinctTests(report)
	s.Tests = len(ids)
	s.Rows = BuildReportRows(report, ids)
	s.Counts = CountOutcomes(report)

	for _, detail := range Failures(report) {
		s.Failures = append(s.Failures, Failure{
			FailureDetail: detail,
			Rerun:         testargs.RerunCommand(s.Info.Args, detail.NodeID),
		})
	}
	for _, detail := range PhaseErrors(report) {
		s.Errors = append(s.Errors, Failure{
			FailureDetail: detail,
			Rerun:         testargs.RerunCommand(s.Info.Args, detail.NodeID),
		})
	}

	return s
}
