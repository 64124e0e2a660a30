package queue

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPaths(t *testing.T) Paths {
	dir := t.TempDir()
	return Paths{
		Queue:   filepath.Join(dir, "queue.json"),
		Failed:  filepath.Join(dir, "queue-failed.json"),
		Expired: filepath.Join(dir, "queue-expired.json"),
	}
}

// E1: add tasks with priorities [low, critical, high, low] in that order;
// nextPending yields the critical task; its created_at is after the first
// low, proving priority wins over age.
func TestE1PriorityWinsOverAge(t *testing.T) {
	m := New(testPaths(t))

	low1, err := m.Add(AddInput{Priority: PriorityLow, Source: "test", Prompt: "low1"})
	require.NoError(t, err)
	_, err = m.Add(AddInput{Priority: PriorityCritical, Source: "test", Prompt: "critical"})
	require.NoError(t, err)
	_, err = m.Add(AddInput{Priority: PriorityHigh, Source: "test", Prompt: "high"})
	require.NoError(t, err)
	_, err = m.Add(AddInput{Priority: PriorityLow, Source: "test", Prompt: "low2"})
	require.NoError(t, err)

	head, ok, err := m.NextPending()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, PriorityCritical, head.Priority)
	assert.True(t, head.CreatedAt.After(low1.CreatedAt) || head.CreatedAt.Equal(low1.CreatedAt))
}

func TestQueueOrderingStableForEqualKeys(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := New(testPaths(t), WithClock(func() time.Time { return fixed }))

	first, err := m.Add(AddInput{Priority: PriorityMedium, Source: "a", Prompt: "first"})
	require.NoError(t, err)
	second, err := m.Add(AddInput{Priority: PriorityMedium, Source: "b", Prompt: "second"})
	require.NoError(t, err)

	doc, err := readDocument(testPathsQueue(m))
	require.NoError(t, err)
	require.Len(t, doc.Tasks, 2)
	assert.Equal(t, first.ID, doc.Tasks[0].ID)
	assert.Equal(t, second.ID, doc.Tasks[1].ID)
}

func testPathsQueue(m *Manager) string { return m.paths.Queue }

func TestBoundedSizeEvictsToExpiredArchive(t *testing.T) {
	paths := testPaths(t)
	m := New(paths, WithMaxSize(2))

	_, err := m.Add(AddInput{Priority: PriorityLow, Source: "a", Prompt: "1"})
	require.NoError(t, err)
	_, err = m.Add(AddInput{Priority: PriorityLow, Source: "a", Prompt: "2"})
	require.NoError(t, err)
	_, err = m.Add(AddInput{Priority: PriorityHigh, Source: "a", Prompt: "3"})
	require.NoError(t, err)

	doc, err := readDocument(paths.Queue)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(doc.Tasks), 2)

	archive, err := readArchive(paths.Expired)
	require.NoError(t, err)
	require.Len(t, archive.Tasks, 1)
	assert.Equal(t, ArchiveReasonDropped, archive.Tasks[0].ArchiveReason)
	assert.Equal(t, PriorityLow, archive.Tasks[0].Priority)
}

func TestTerminalTaskRejectsUpdate(t *testing.T) {
	m := New(testPaths(t))

	task, err := m.Add(AddInput{Priority: PriorityMedium, Source: "a", Prompt: "p"})
	require.NoError(t, err)

	completed := StatusCompleted
	_, err = m.Update(task.ID, Patch{Status: &completed})
	require.NoError(t, err)

	failed := StatusFailed
	_, err = m.Update(task.ID, Patch{Status: &failed})
	require.ErrorIs(t, err, ErrTerminalTask)
}

func TestUpdateSetsCompletedAt(t *testing.T) {
	m := New(testPaths(t))

	task, err := m.Add(AddInput{Priority: PriorityMedium, Source: "a", Prompt: "p"})
	require.NoError(t, err)

	completed := StatusCompleted
	updated, err := m.Update(task.ID, Patch{Status: &completed})
	require.NoError(t, err)
	require.NotNil(t, updated.CompletedAt)
}

type recordingListener struct {
	events []Event
}

func (r *recordingListener) OnQueueEvent(e Event) { r.events = append(r.events, e) }

type panickingListener struct{}

func (panickingListener) OnQueueEvent(Event) { panic("boom") }

func TestListenerPanicDoesNotCorruptState(t *testing.T) {
	rec := &recordingListener{}
	m := New(testPaths(t), WithListeners(panickingListener{}, rec))

	_, err := m.Add(AddInput{Priority: PriorityMedium, Source: "a", Prompt: "p"})
	require.NoError(t, err)

	require.Len(t, rec.events, 1)
	assert.Equal(t, EventTaskAdded, rec.events[0].Type)
}

func TestClearEmitsQueueCleared(t *testing.T) {
	rec := &recordingListener{}
	m := New(testPaths(t), WithListeners(rec))

	_, err := m.Add(AddInput{Priority: PriorityMedium, Source: "a", Prompt: "p"})
	require.NoError(t, err)
	require.NoError(t, m.Clear())

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, EventQueueCleared, last.Type)

	doc, err := readDocument(m.paths.Queue)
	require.NoError(t, err)
	assert.Empty(t, doc.Tasks)
}

func TestMoveToFailedArchives(t *testing.T) {
	paths := testPaths(t)
	m := New(paths)

	task, err := m.Add(AddInput{Priority: PriorityMedium, Source: "a", Prompt: "p"})
	require.NoError(t, err)

	require.NoError(t, m.MoveToFailed(task.ID, "exhausted retries"))

	doc, err := readDocument(paths.Queue)
	require.NoError(t, err)
	assert.Empty(t, doc.Tasks)

	archive, err := readArchive(paths.Failed)
	require.NoError(t, err)
	require.Len(t, archive.Tasks, 1)
	assert.Equal(t, "exhausted retries", archive.Tasks[0].Error)
}
