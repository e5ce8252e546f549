package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveFirstDashDash(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "empty slice",
			in:   []string{},
			want: []string{},
		},
		{
			name: "starts with --",
			in:   []string{"--", "-top", "-cum"},
			want: []string{"-top", "-cum"},
		},
		{
			name: "no --",
			in:   []string{"-top"},
			want: []string{"-top"},
		},
		{
			name: "only --",
			in:   []string{"--"},
			want: []string{},
		},
		{
			name: "-- in middle",
			in:   []string{"-top", "--", "-cum"},
			want: []string{"-top", "--", "-cum"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, removeFirstDashDash(tt.in))
		})
	}
}

func TestParseViewArgs(t *testing.T) {
	tests := []struct {
		name          string
		in            []string
		wantID        string
		wantPprofArgs []string
	}{
		{
			name:   "empty args - latest report",
			in:     []string{},
			wantID: "0",
		},
		{
			name:          "negative index",
			in:            []string{"-1"},
			wantID:        "-1",
			wantPprofArgs: []string{},
		},
		{
			name:          "session directory name",
			in:            []string{"09-03-2024_14-05-07"},
			wantID:        "09-03-2024_14-05-07",
			wantPprofArgs: []string{},
		},
		{
			name:          "report path",
			in:            []string{"reports/nightly.json"},
			wantID:        "reports/nightly.json",
			wantPprofArgs: []string{},
		},
		{
			name:          "only pprof args",
			in:            []string{"-top"},
			wantID:        "0",
			wantPprofArgs: []string{"-top"},
		},
		{
			name:          "session ID with -- and pprof args",
			in:            []string{"5c0e1f56", "--", "-top", "-cum"},
			wantID:        "5c0e1f56",
			wantPprofArgs: []string{"-top", "-cum"},
		},
		{
			name:          "negative index with pprof args",
			in:            []string{"-2", "-http=:8080"},
			wantID:        "-2",
			wantPprofArgs: []string{"-http=:8080"},
		},
		{
			name:          "only -- uses latest report",
			in:            []string{"--", "-top"},
			wantID:        "0",
			wantPprofArgs: []string{"-top"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotPprofArgs := parseViewArgs(tt.in)
			assert.Equal(t, tt.wantID, gotID)
			assert.Equal(t, tt.wantPprofArgs, gotPprofArgs)
		})
	}
}

func TestParseQueryArgs(t *testing.T) {
	tests := []struct {
		name     string
		in       []string
		wantID   string
		wantExpr string
		wantErr  bool
	}{
		{name: "expression only", in: []string{".metadata"}, wantID: "0", wantExpr: ".metadata"},
		{name: "selector and expression", in: []string{"-1", ".test_data | length"}, wantID: "-1", wantExpr: ".test_data | length"},
		{name: "leading --", in: []string{"--", "-1", "."}, wantID: "-1", wantExpr: "."},
		{name: "no arguments", in: nil, wantErr: true},
		{name: "too many arguments", in: []string{"0", ".", "."}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, expr, err := parseQueryArgs(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantExpr, expr)
		})
	}
}
