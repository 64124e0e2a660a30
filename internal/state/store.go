package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oss-dev/supervisor/internal/log"
)

// Store owns a single state document file with read-modify-write semantics:
// every mutation reads the current value, applies a function, writes
// atomically (§4.2).
type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// New builds a Store backed by path.
func New(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Read loads the current document. A missing file reads as empty {}; a
// corrupt file also reads as empty, and is overwritten on the next write
// (§4.2).
func (s *Store) Read() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) read() Document {
	data, err := os.ReadFile(s.path) //nolint:gosec // G304: path is operator-controlled state directory
	if err != nil {
		return Document{}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn(log.CatState, "corrupt state document, treating as empty", "path", s.path, "error", err.Error())
		return Document{}
	}

	return doc
}

// mutate applies fn to the current document and writes the result
// atomically, holding the store's lock for the whole read-modify-write
// cycle.
func (s *Store) mutate(fn func(*Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.read()
	fn(&doc)

	return s.writeAtomic(doc)
}

func (s *Store) writeAtomic(doc Document) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state document: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".workflow-state.json.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// SetSupervisor sets the supervisor activity state.
func (s *Store) SetSupervisor(v Supervisor) error {
	return s.mutate(func(d *Document) { d.Supervisor = v })
}

// SetActiveStep sets the currently executing command.
func (s *Store) SetActiveStep(cmd string) error {
	return s.mutate(func(d *Document) { d.ActiveStep = cmd })
}

// SetTddPhase sets the TDD phase and stamps tddPhaseStarted, resolving the
// open question in §9: the staleness monitor depends on this field being
// written whenever the phase changes.
func (s *Store) SetTddPhase(p TddPhase) error {
	now := s.now()
	return s.mutate(func(d *Document) {
		d.TddPhase = p
		d.TddPhaseStarted = &now
	})
}

// SetActiveAgent records the agent currently executing a task.
func (s *Store) SetActiveAgent(a ActiveAgent) error {
	return s.mutate(func(d *Document) { d.ActiveAgent = &a })
}

// ClearActiveAgent removes the active agent field.
func (s *Store) ClearActiveAgent() error {
	return s.mutate(func(d *Document) { d.ActiveAgent = nil })
}

// SetMessage sets the free-text status message.
func (s *Store) SetMessage(m string) error {
	return s.mutate(func(d *Document) { d.Message = m })
}

// ReportIssue sets the issue field, preserving all unrelated keys.
func (s *Store) ReportIssue(i Issue) error {
	return s.mutate(func(d *Document) { d.Issue = &i })
}

// ClearIssue removes the issue field.
func (s *Store) ClearIssue() error {
	return s.mutate(func(d *Document) { d.Issue = nil })
}

// SetDaemonHeartbeat stamps the heartbeat with now.
func (s *Store) SetDaemonHeartbeat(now time.Time) error {
	return s.mutate(func(d *Document) { d.DaemonHeartbeat = &now })
}
