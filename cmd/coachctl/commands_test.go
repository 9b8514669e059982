// cmd/coachctl/commands_test.go
package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"coaching-workers/internal/common/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c := &cli{
		stdin:  strings.NewReader(stdin),
		out:    &out,
		now:    func() time.Time { return fixedNow },
		logger: logger.NewTestLogger(t),
	}
	cmd := c.rootCmd()
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const pillarDiagnosis = `{
  "strengths": ["a", "b", "c"],
  "challenges": ["x"],
  "situationAnalysis": {"progressLevel": "Good momentum"},
  "pillarRecommendations": [{"pillar": "clarity"}, {"pillar": "focus"}]
}`

func TestScore_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagnosis.json")
	require.NoError(t, os.WriteFile(path, []byte(pillarDiagnosis), 0o644))

	out, err := run(t, "", "score", "--type", "pillar", "--file", path)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "score: 49 (emerging)\n"))
	assert.Contains(t, out, "pillarRecommendations")
}

func TestScore_StdinJSON(t *testing.T) {
	out, err := run(t, pillarDiagnosis, "score", "--type", "pillar", "--json")
	require.NoError(t, err)

	var got struct {
		ImprovementScore int    `json:"improvementScore"`
		ImprovementBand  string `json:"improvementBand"`
		ScoreFactors     []struct {
			Signal string `json:"signal"`
			Value  int    `json:"value"`
		} `json:"scoreFactors"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	assert.Equal(t, 49, got.ImprovementScore)
	assert.Equal(t, "emerging", got.ImprovementBand)
	values := make([]int, 0, len(got.ScoreFactors))
	for _, f := range got.ScoreFactors {
		values = append(values, f.Value)
	}
	if diff := cmp.Diff([]int{30, 40, 75, 50}, values); diff != "" {
		t.Errorf("factor values mismatch (-want +got):\n%s", diff)
	}
}

func TestScore_Edges(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		args    []string
		want    string
		wantErr string
	}{
		{name: "null diagnosis", stdin: "null", args: []string{"score", "--type", "workbook"}, want: "score: 0 (stalled)\n"},
		{name: "empty input", stdin: "", args: []string{"score", "--type", "workbook"}, want: "score: 0 (stalled)\n"},
		{name: "no signals", stdin: "{}", args: []string{"score", "--type", "pillar"}, want: "score: 50 (steady)\n"},
		{name: "null fields ignored", stdin: `{"strengths":["a","b","c"],"challenges":null,"situationAnalysis":null}`, args: []string{"score", "--type", "pillar"}, want: "score: 30 (emerging)\n"},
		{name: "unknown type", stdin: "{}", args: []string{"score", "--type", "journal"}, wantErr: "--type must be pillar or workbook"},
		{name: "wrong shape", stdin: `{"strengths": 3}`, args: []string{"score", "--type", "pillar"}, wantErr: "invalid diagnosis"},
		{name: "missing file", args: []string{"score", "--type", "pillar", "--file", "/nonexistent/d.json"}, wantErr: "read diagnosis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.stdin, tt.args...)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestSchedulingCommands(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr string
	}{
		{name: "interval level 1", args: []string{"interval", "1"}, want: "7 days\n"},
		{name: "interval level 4", args: []string{"interval", "4"}, want: "45 days\n"},
		{name: "interval out of range", args: []string{"interval", "0"}, want: "30 days\n"},
		{name: "interval not a number", args: []string{"interval", "high"}, wantErr: "level must be an integer"},
		{name: "next date", args: []string{"next-date", "2"}, want: "2026-03-24T09:30:00Z\n"},
		{name: "next date from", args: []string{"next-date", "5", "--from", "2026-01-31T00:00:00Z"}, want: "2026-04-01T00:00:00Z\n"},
		{name: "next date bad from", args: []string{"next-date", "5", "--from", "soon"}, wantErr: "--from must be RFC3339"},
		{name: "elapsed unknown", args: []string{"elapsed"}, want: "Unknown\n"},
		{name: "elapsed days", args: []string{"elapsed", "2026-03-07T09:30:00Z"}, want: "3 days\n"},
		{name: "elapsed ten days", args: []string{"elapsed", "2026-02-28T09:30:00Z"}, want: "1 week\n"},
		{name: "elapsed bad", args: []string{"elapsed", "last week"}, wantErr: "createdAt must be RFC3339"},
		{name: "band strong", args: []string{"band", "75"}, want: "strong\n"},
		{name: "band stalled", args: []string{"band", "29"}, want: "stalled\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, "", tt.args...)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestJSONOutput(t *testing.T) {
	out, err := run(t, "", "next-date", "3", "--json")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	want := map[string]interface{}{
		"progressLevel":           float64(3),
		"recommendedIntervalDays": float64(30),
		"nextFollowupDate":        "2026-04-09T09:30:00Z",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("next-date --json mismatch (-want +got):\n%s", diff)
	}

	out, err = run(t, "", "band", "64", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"improvementScore":64,"improvementBand":"steady","progressLevel":4}`, out)

	out, err = run(t, "", "elapsed", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"createdAt":null,"elapsed":"Unknown"}`, out)
}
