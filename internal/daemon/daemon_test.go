package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oss-dev/supervisor/internal/state"
)

// Property 5 / testable property: PID exclusivity.
func TestPIDExclusivity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")

	require.NoError(t, acquirePIDFile(path))
	err := acquirePIDFile(path)
	require.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, releasePIDFile(path))
	require.NoError(t, acquirePIDFile(path))
}

func TestStalePIDFileIsReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")

	// A pid that is extremely unlikely to be alive on this machine.
	require.NoError(t, os.WriteFile(path, []byte("999999\n"), 0o644))

	require.NoError(t, acquirePIDFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, "999999\n", string(data))
}

// Property 6: issue prioritization.
func TestPrioritizeIssuesPicksError(t *testing.T) {
	issues := []state.Issue{
		{Type: "a", Severity: state.SeverityInfo},
		{Type: "b", Severity: state.SeverityWarning},
		{Type: "c", Severity: state.SeverityError},
	}

	got := PrioritizeIssues(issues)
	require.NotNil(t, got)
	assert.Equal(t, "c", got.Type)
}

func TestPrioritizeIssuesEmptyIsNil(t *testing.T) {
	assert.Nil(t, PrioritizeIssues(nil))
}

func TestPrioritizeIssuesTiesPreserveFirst(t *testing.T) {
	issues := []state.Issue{
		{Type: "first", Severity: state.SeverityWarning},
		{Type: "second", Severity: state.SeverityWarning},
	}

	got := PrioritizeIssues(issues)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Type)
}

type stubMonitor struct {
	name  string
	issue *state.Issue
}

func (s stubMonitor) Name() string { return s.name }
func (s stubMonitor) Poll(ctx context.Context) (*state.Issue, error) {
	return s.issue, nil
}

func TestTickWritesHeartbeatAndWinningIssue(t *testing.T) {
	dir := t.TempDir()
	st := state.New(filepath.Join(dir, "workflow-state.json"))

	d := New(Config{
		PIDFilePath:    filepath.Join(dir, "daemon.pid"),
		CheckInterval:  10 * time.Millisecond,
		MonitorTimeout: time.Second,
		State:          st,
		Monitors: []Monitor{
			stubMonitor{name: "info-mon", issue: &state.Issue{Type: "info-issue", Severity: state.SeverityInfo}},
			stubMonitor{name: "error-mon", issue: &state.Issue{Type: "error-issue", Severity: state.SeverityError}},
		},
	})

	d.runTick(context.Background())

	doc := st.Read()
	require.NotNil(t, doc.Issue)
	assert.Equal(t, "error-issue", doc.Issue.Type)
	assert.NotNil(t, doc.DaemonHeartbeat)
}

func TestTickClearsIssueWhenNoMonitorFires(t *testing.T) {
	dir := t.TempDir()
	st := state.New(filepath.Join(dir, "workflow-state.json"))
	require.NoError(t, st.ReportIssue(state.Issue{Type: "stale", Severity: state.SeverityWarning}))

	d := New(Config{
		PIDFilePath:    filepath.Join(dir, "daemon.pid"),
		CheckInterval:  10 * time.Millisecond,
		MonitorTimeout: time.Second,
		State:          st,
		Monitors:       []Monitor{stubMonitor{name: "quiet"}},
	})

	d.runTick(context.Background())

	doc := st.Read()
	assert.Nil(t, doc.Issue)
}
