package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/oss-dev/supervisor/internal/log"
)

// DefaultMaxSize is the default bound M on the live queue (§3).
const DefaultMaxSize = 50

// Paths bundles the three document paths the Manager owns exclusively.
type Paths struct {
	Queue   string
	Failed  string
	Expired string
}

// Manager is the Queue Manager (§4.1): a persistent, ordered, bounded task
// store with synchronous event emission. All mutations go through a single
// Manager instance per daemon process (§5).
type Manager struct {
	mu        sync.Mutex
	paths     Paths
	maxSize   int
	listeners []Listener
	now       func() time.Time
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithMaxSize overrides DefaultMaxSize.
func WithMaxSize(n int) Option {
	return func(m *Manager) { m.maxSize = n }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithListeners registers listeners at construction time, per §9's
// requirement that listeners are registered during construction.
func WithListeners(ls ...Listener) Option {
	return func(m *Manager) { m.listeners = append(m.listeners, ls...) }
}

// New builds a Manager backed by the three documents at paths.
func New(paths Paths, opts ...Option) *Manager {
	m := &Manager{
		paths:   paths,
		maxSize: DefaultMaxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func sortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Priority.Rank() != tasks[j].Priority.Rank() {
			return tasks[i].Priority.Rank() < tasks[j].Priority.Rank()
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}

// Add assigns an id and timestamps, inserts the task, re-sorts by
// (priority, created_at), and enforces the size bound by evicting the
// lowest-priority oldest task to the expired archive. Emits task_added.
func (m *Manager) Add(input AddInput) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := readDocument(m.paths.Queue)
	if err != nil {
		return Task{}, err
	}

	now := m.now()
	task := Task{
		ID:             newID(now),
		Priority:       input.Priority,
		CreatedAt:      now,
		Status:         StatusPending,
		Source:         input.Source,
		AnomalyType:    input.AnomalyType,
		Prompt:         input.Prompt,
		SuggestedAgent: input.SuggestedAgent,
		Context:        input.Context,
		Attempts:       0,
	}

	doc.Tasks = append(doc.Tasks, task)
	sortTasks(doc.Tasks)

	if len(doc.Tasks) > m.maxSize {
		evicted := evictWorst(&doc.Tasks)
		if err := m.archive(m.paths.Expired, evicted, ArchiveReasonDropped, now); err != nil {
			return Task{}, err
		}
	}

	doc.Version++
	doc.UpdatedAt = now
	if err := writeAtomic(m.paths.Queue, doc); err != nil {
		return Task{}, err
	}

	pending := countPending(doc.Tasks)
	m.notify(Event{Type: EventTaskAdded, Task: &task, PendingCount: pending})
	log.Info(log.CatQueue, "task added", "id", task.ID, "priority", task.Priority.String(), "pending", pending)

	return task, nil
}

// evictWorst removes and returns the oldest task within the worst (highest
// rank) priority tier present in an already-sorted slice.
func evictWorst(tasks *[]Task) Task {
	t := *tasks
	worstRank := t[len(t)-1].Priority.Rank()

	idx := 0
	for i, task := range t {
		if task.Priority.Rank() == worstRank {
			idx = i
			break
		}
	}

	evicted := t[idx]
	*tasks = append(t[:idx], t[idx+1:]...)

	return evicted
}

func countPending(tasks []Task) int {
	n := 0
	for _, t := range tasks {
		if t.Status == StatusPending {
			n++
		}
	}
	return n
}

// NextPending returns the head of the pending queue in ordering, without
// mutating the document.
func (m *Manager) NextPending() (Task, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := readDocument(m.paths.Queue)
	if err != nil {
		return Task{}, false, err
	}

	for _, t := range doc.Tasks {
		if t.Status == StatusPending {
			return t, true, nil
		}
	}

	return Task{}, false, nil
}

// Update applies patch to the task with the given id. If the patch
// transitions status to completed, completed_at is set. Forbidden if the
// task is already terminal. Emits task_completed or task_failed as
// applicable.
func (m *Manager) Update(id string, patch Patch) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := readDocument(m.paths.Queue)
	if err != nil {
		return Task{}, err
	}

	idx := -1
	for i, t := range doc.Tasks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Task{}, ErrTaskNotFound
	}

	task := doc.Tasks[idx]
	if task.Status.IsTerminal() {
		return Task{}, ErrTerminalTask
	}

	now := m.now()
	if patch.Status != nil {
		task.Status = *patch.Status
		if task.Status == StatusCompleted {
			task.CompletedAt = &now
		}
	}
	if patch.Error != nil {
		task.Error = *patch.Error
	}
	if patch.Attempts != nil {
		task.Attempts = *patch.Attempts
	}

	doc.Tasks[idx] = task
	doc.Version++
	doc.UpdatedAt = now

	if err := writeAtomic(m.paths.Queue, doc); err != nil {
		return Task{}, err
	}

	pending := countPending(doc.Tasks)
	switch task.Status {
	case StatusCompleted:
		m.notify(Event{Type: EventTaskCompleted, Task: &task, PendingCount: pending})
	case StatusFailed:
		m.notify(Event{Type: EventTaskFailed, Task: &task, PendingCount: pending})
	}

	return task, nil
}

// MoveToFailed appends the task to the failed archive with the given error
// and removes it from the active document.
func (m *Manager) MoveToFailed(id string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := readDocument(m.paths.Queue)
	if err != nil {
		return err
	}

	idx := -1
	for i, t := range doc.Tasks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrTaskNotFound
	}

	now := m.now()
	task := doc.Tasks[idx]
	task.Status = StatusFailed
	task.Error = reason

	doc.Tasks = append(doc.Tasks[:idx], doc.Tasks[idx+1:]...)
	doc.Version++
	doc.UpdatedAt = now

	if err := m.archive(m.paths.Failed, task, ArchiveReasonFailed, now); err != nil {
		return err
	}
	if err := writeAtomic(m.paths.Queue, doc); err != nil {
		return err
	}

	pending := countPending(doc.Tasks)
	m.notify(Event{Type: EventTaskFailed, Task: &task, PendingCount: pending})

	return nil
}

// Clear removes all active tasks and emits queue_cleared.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	doc := Document{Version: 1, UpdatedAt: now, Tasks: []Task{}}
	if err := writeAtomic(m.paths.Queue, doc); err != nil {
		return err
	}

	m.notify(Event{Type: EventQueueCleared, PendingCount: 0})

	return nil
}

func (m *Manager) archive(path string, task Task, reason ArchiveReason, now time.Time) error {
	doc, err := readArchive(path)
	if err != nil {
		return err
	}

	doc.Tasks = append(doc.Tasks, ArchivedTask{Task: task, ArchiveReason: reason, ArchivedAt: now})
	doc.Version++
	doc.UpdatedAt = now

	return writeAtomic(path, doc)
}
