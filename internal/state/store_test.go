package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// E3: state document starts {}; call setTddPhase("red"),
// setActiveAgent({type:"test-engineer",task:"login"}),
// reportIssue({type:"stale_tdd_phase", message:"RED phase stuck for 30+
// minutes", severity:"warning"}); resulting document contains all three
// unchanged after a read-write cycle.
func TestE3MutatorsPreserveEachOther(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow-state.json")
	s := New(path)

	require.NoError(t, s.SetTddPhase(TddPhaseRed))
	require.NoError(t, s.SetActiveAgent(ActiveAgent{Type: "test-engineer", Task: "login"}))
	require.NoError(t, s.ReportIssue(Issue{
		Type:     "stale_tdd_phase",
		Message:  "RED phase stuck for 30+ minutes",
		Severity: SeverityWarning,
	}))

	doc := s.Read()
	assert.Equal(t, TddPhaseRed, doc.TddPhase)
	require.NotNil(t, doc.TddPhaseStarted)
	require.NotNil(t, doc.ActiveAgent)
	assert.Equal(t, "test-engineer", doc.ActiveAgent.Type)
	assert.Equal(t, "login", doc.ActiveAgent.Task)
	require.NotNil(t, doc.Issue)
	assert.Equal(t, "stale_tdd_phase", doc.Issue.Type)
	assert.Equal(t, SeverityWarning, doc.Issue.Severity)
}

func TestMissingFileReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow-state.json")
	s := New(path)

	doc := s.Read()
	assert.Equal(t, Document{}, doc)
}

func TestCorruptFileReadsEmptyAndIsOverwritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow-state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := New(path)
	doc := s.Read()
	assert.Equal(t, Document{}, doc)

	require.NoError(t, s.SetMessage("hello"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestReportIssuePreservesExtensionKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow-state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"customKey":"customValue","message":"existing"}`), 0o644))

	s := New(path)
	require.NoError(t, s.ReportIssue(Issue{Type: "x", Message: "m", Severity: SeverityInfo}))

	doc := s.Read()
	assert.Equal(t, "existing", doc.Message)
	require.NotNil(t, doc.Issue)
	assert.Equal(t, "customValue", doc.Extra["customKey"])
}

func TestWriteNeverLeavesTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow-state.json")
	s := New(path)

	for i := 0; i < 20; i++ {
		require.NoError(t, s.SetMessage("tick"))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var doc Document
		require.NoError(t, jsonValid(data, &doc))
	}
}

func jsonValid(data []byte, v *Document) error {
	return v.UnmarshalJSON(data)
}
