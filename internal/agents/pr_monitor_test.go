package agents

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/oss-dev/supervisor/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeForge struct {
	comments []PRComment
	replied  []string
}

func (f *fakeForge) ListOpenPRComments(ctx context.Context) ([]PRComment, error) {
	return f.comments, nil
}
func (f *fakeForge) ReplyToComment(ctx context.Context, prNumber int, commentID, body string) error {
	f.replied = append(f.replied, commentID)
	return nil
}

func TestIsChangeRequest(t *testing.T) {
	assert.True(t, IsChangeRequest("Could you please fix the null check here?"))
	assert.False(t, IsChangeRequest("lgtm, nice work"))
	assert.False(t, IsChangeRequest("👍"))
	assert.False(t, IsChangeRequest("looks fine to me"))
}

func TestSuggestAgent(t *testing.T) {
	assert.Equal(t, "typescript-engineer", SuggestAgent("please fix this .ts file"))
	assert.Equal(t, "test-engineer", SuggestAgent("this needs a test"))
	assert.Equal(t, "debugger", SuggestAgent("please clean this up"))
}

func TestPRMonitorPollQueuesTaskForUnseenChangeRequest(t *testing.T) {
	dir := t.TempDir()
	q := queue.New(queue.Paths{
		Queue:   filepath.Join(dir, "queue.json"),
		Failed:  filepath.Join(dir, "queue-failed.json"),
		Expired: filepath.Join(dir, "queue-expired.json"),
	})

	forge := &fakeForge{comments: []PRComment{
		{ID: "c1", PR: 42, Branch: "fix/null-check", Path: "a.go", Line: 10, Body: "please fix the nil check"},
		{ID: "c2", PR: 42, Branch: "fix/null-check", Path: "b.go", Line: 2, Body: "lgtm"},
	}}

	m := NewPRMonitor(forge, q, filepath.Join(dir, "processed.json"))
	require.NoError(t, m.Initialize(context.Background()))
	require.NoError(t, m.Poll(context.Background()))

	task, ok, err := q.NextPending()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pr_remediation", task.AnomalyType)
	assert.Equal(t, "c1", task.Context["commentId"])
	assert.Contains(t, forge.replied, "c1")

	stats := m.Stats()
	assert.Equal(t, 2, stats.CommentsSeen)
	assert.Equal(t, 1, stats.ChangesRequested)
	assert.Equal(t, 1, stats.TasksQueued)
}

func TestPRMonitorSkipsAlreadyProcessedComment(t *testing.T) {
	dir := t.TempDir()
	q := queue.New(queue.Paths{
		Queue:   filepath.Join(dir, "queue.json"),
		Failed:  filepath.Join(dir, "queue-failed.json"),
		Expired: filepath.Join(dir, "queue-expired.json"),
	})
	forge := &fakeForge{comments: []PRComment{
		{ID: "c1", PR: 1, Body: "please fix this"},
	}}
	m := NewPRMonitor(forge, q, filepath.Join(dir, "processed.json"))
	require.NoError(t, m.Initialize(context.Background()))

	require.NoError(t, m.Poll(context.Background()))
	require.NoError(t, m.Poll(context.Background()))

	assert.Equal(t, 1, m.Stats().TasksQueued)
}

func TestPRMonitorPersistsProcessedAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	q := queue.New(queue.Paths{
		Queue:   filepath.Join(dir, "queue.json"),
		Failed:  filepath.Join(dir, "queue-failed.json"),
		Expired: filepath.Join(dir, "queue-expired.json"),
	})
	statePath := filepath.Join(dir, "processed.json")
	forge := &fakeForge{comments: []PRComment{{ID: "c1", PR: 1, Body: "please fix this"}}}

	m1 := NewPRMonitor(forge, q, statePath)
	require.NoError(t, m1.Initialize(context.Background()))
	require.NoError(t, m1.Poll(context.Background()))
	require.NoError(t, m1.Stop(context.Background()))

	m2 := NewPRMonitor(forge, q, statePath)
	require.NoError(t, m2.Initialize(context.Background()))
	require.NoError(t, m2.Poll(context.Background()))

	assert.Equal(t, 0, m2.Stats().TasksQueued)
}
