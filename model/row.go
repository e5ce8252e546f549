package model

// ReportRow is the merged view of all phases of one test.
// It is derived by the viewer and never persisted.
type ReportRow struct {
	TestCase         string  `json:"test_case"`
	Outcome          Outcome `json:"outcome"`
	SetupDuration    float64 `json:"setup_duration"`
	CallDuration     float64 `json:"call_duration"`
	TeardownDuration float64 `json:"teardown_duration"`
	TotalDuration    float64 `json:"total_duration"`
}

// OutcomeCounts holds the number of passed and failed call phases.
type OutcomeCounts struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// FailureDetail is the source location and message of a failed test.
type FailureDetail struct {
	NodeID  string `json:"nodeid"`
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}
