package monitors

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/oss-dev/supervisor/internal/queue"
	"github.com/oss-dev/supervisor/internal/state"
)

var (
	lawViolationPattern = regexp.MustCompile(`❌\s*LAW\s*#(\d+):\s*(.*)`)
	lawPassPattern      = regexp.MustCompile(`✅\s*LAW\s*#(\d+):\s*(.*)`)
)

// IronLawMonitor scans session-log lines for `❌ LAW #N:` / `✅ LAW #N:`
// outcomes, escalating repeated violations of the same law per the
// recurrence policy in §4.4 (PRE-CHECK marker lines are not examined):
//
//	1st violation -> nothing
//	2nd violation -> low-priority iron_law_violation
//	3rd+ violation -> high-priority iron_law_repeated, with a corrective hint
//	a pass for a law clears its counter
type IronLawMonitor struct {
	mu     sync.Mutex
	counts map[int]int
	queue  *queue.Manager
}

// NewIronLawMonitor builds an IronLawMonitor backed by q.
func NewIronLawMonitor(q *queue.Manager) *IronLawMonitor {
	return &IronLawMonitor{counts: make(map[int]int), queue: q}
}

// Name satisfies daemon.Monitor.
func (m *IronLawMonitor) Name() string { return "iron-law" }

// Poll is a no-op for IronLawMonitor: it reacts to log lines pushed via
// IngestLine rather than polling a source directly, and never itself
// reports an issue onto the state document.
func (m *IronLawMonitor) Poll(ctx context.Context) (*state.Issue, error) {
	return nil, nil
}

// IngestLine scans a single session-log line for a law outcome marker and
// applies the recurrence policy, queuing an escalation task when warranted.
func (m *IronLawMonitor) IngestLine(line string) error {
	if match := lawViolationPattern.FindStringSubmatch(line); match != nil {
		return m.recordViolation(match[1], match[2])
	}
	if match := lawPassPattern.FindStringSubmatch(line); match != nil {
		m.recordPass(match[1])
	}
	return nil
}

func (m *IronLawMonitor) recordViolation(lawID, description string) error {
	m.mu.Lock()
	law := parseLawID(lawID)
	m.counts[law]++
	count := m.counts[law]
	m.mu.Unlock()

	if count < 2 || m.queue == nil {
		return nil
	}

	if count == 2 {
		_, err := m.queue.Add(queue.AddInput{
			Priority:    queue.PriorityLow,
			Source:      "iron-law-monitor",
			AnomalyType: "iron_law_violation",
			Prompt:      fmt.Sprintf("Iron law #%d violated again: %s", law, description),
			Context:     map[string]any{"law": law, "count": count},
		})
		return err
	}

	_, err := m.queue.Add(queue.AddInput{
		Priority:    queue.PriorityHigh,
		Source:      "iron-law-monitor",
		AnomalyType: "iron_law_repeated",
		Prompt:      fmt.Sprintf("Iron law #%d repeatedly violated (%dx): %s. %s", law, count, description, correctiveHint(law)),
		Context:     map[string]any{"law": law, "count": count},
	})
	return err
}

func (m *IronLawMonitor) recordPass(lawID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, parseLawID(lawID))
}

func parseLawID(s string) int {
	var n int
	_, _ = fmt.Sscanf(s, "%d", &n)
	return n
}

// correctiveHint returns a built-in remediation hint for a given law
// number. Laws without a specific hint fall back to a generic nudge.
func correctiveHint(law int) string {
	switch law {
	case 1:
		return "Write the failing test before touching implementation code."
	case 2:
		return "Run the full test suite before claiming the task is done."
	case 3:
		return "Keep commits scoped to a single logical change."
	case 4:
		return "Never push directly to the main or master branch."
	default:
		return "Review the project's iron laws before continuing."
	}
}
