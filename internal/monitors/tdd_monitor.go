package monitors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oss-dev/supervisor/internal/state"
)

// TddMonitor reports a stale_tdd_phase issue when the current TDD phase
// has persisted longer than staleThreshold (§4.4).
type TddMonitor struct {
	store          *state.Store
	staleThreshold time.Duration
	now            func() time.Time
}

// NewTddMonitor builds a TddMonitor backed by store.
func NewTddMonitor(store *state.Store, staleThreshold time.Duration) *TddMonitor {
	return &TddMonitor{store: store, staleThreshold: staleThreshold, now: time.Now}
}

// Name satisfies daemon.Monitor.
func (m *TddMonitor) Name() string { return "tdd" }

// Poll reads the state document and checks whether the active phase has
// exceeded the staleness threshold.
func (m *TddMonitor) Poll(ctx context.Context) (*state.Issue, error) {
	doc := m.store.Read()
	if doc.TddPhase == "" || doc.TddPhaseStarted == nil {
		return nil, nil
	}

	elapsed := m.now().Sub(*doc.TddPhaseStarted)
	if elapsed < m.staleThreshold {
		return nil, nil
	}

	return &state.Issue{
		Type:     "stale_tdd_phase",
		Message:  fmt.Sprintf("%s phase stuck for %s", strings.ToUpper(string(doc.TddPhase)), elapsed.Round(time.Minute)),
		Severity: state.SeverityWarning,
	}, nil
}
