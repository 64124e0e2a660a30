package monitors

import (
	"sync"
	"time"

	"github.com/oss-dev/supervisor/internal/analyzer"
	"github.com/oss-dev/supervisor/internal/queue"
)

// DefaultRingBufferSize is the default bound on LogMonitor's line buffer.
const DefaultRingBufferSize = 100

// LogMonitor streams session-log lines into a bounded ring buffer, running
// the Rule Engine over each line (§4.4).
type LogMonitor struct {
	mu               sync.Mutex
	buffer           []string
	maxLines         int
	rules            []analyzer.Rule
	queue            *queue.Manager
	lastActivityTime time.Time
	stuckReported    bool
	now              func() time.Time
}

// NewLogMonitor builds a LogMonitor backed by q, using analyzer.DefaultRules.
func NewLogMonitor(q *queue.Manager) *LogMonitor {
	return &LogMonitor{
		maxLines: DefaultRingBufferSize,
		rules:    analyzer.DefaultRules,
		queue:    q,
		now:      time.Now,
	}
}

// IngestLine appends line to the ring buffer, evicting the oldest line if
// full, runs the Rule Engine, and resets the stuck-detection flag.
func (m *LogMonitor) IngestLine(line string) error {
	m.mu.Lock()
	m.buffer = append(m.buffer, line)
	if len(m.buffer) > m.maxLines {
		m.buffer = m.buffer[len(m.buffer)-m.maxLines:]
	}
	m.lastActivityTime = m.now()
	m.stuckReported = false
	m.mu.Unlock()

	match := analyzer.Analyze(line, m.rules)
	if match == nil || m.queue == nil {
		return nil
	}

	response := analyzer.GenerateResponse(analyzer.WorkflowIssue{
		Type:           match.AnomalyType,
		Confidence:     match.Confidence,
		Title:          match.AnomalyType,
		Message:        match.Prompt,
		SuggestedAgent: match.SuggestedAgent,
	})
	if !response.QueueTask {
		return nil
	}

	_, err := m.queue.Add(queue.AddInput{
		Priority:       priorityFromString(response.TaskPriority),
		Source:         "log-monitor",
		AnomalyType:    match.AnomalyType,
		Prompt:         response.Message,
		SuggestedAgent: response.SuggestedAgent,
		Context:        match.Context,
	})

	return err
}

func priorityFromString(s string) queue.Priority {
	switch s {
	case "critical":
		return queue.PriorityCritical
	case "high":
		return queue.PriorityHigh
	case "low":
		return queue.PriorityLow
	default:
		return queue.PriorityMedium
	}
}

// Lines returns a copy of the current ring buffer contents.
func (m *LogMonitor) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.buffer))
	copy(out, m.buffer)
	return out
}

// CheckAndReportStuck emits a single agent_stuck task per stuck window: if
// no line has arrived for timeout, and a stuck task hasn't already been
// reported for this window, queue one. The one-shot flag resets on any new
// line (IngestLine above).
func (m *LogMonitor) CheckAndReportStuck(timeout time.Duration) error {
	m.mu.Lock()
	if m.lastActivityTime.IsZero() || m.stuckReported {
		m.mu.Unlock()
		return nil
	}
	stuck := m.now().Sub(m.lastActivityTime) >= timeout
	if stuck {
		m.stuckReported = true
	}
	m.mu.Unlock()

	if !stuck || m.queue == nil {
		return nil
	}

	_, err := m.queue.Add(queue.AddInput{
		Priority:    queue.PriorityHigh,
		Source:      "log-monitor",
		AnomalyType: "agent_stuck",
		Prompt:      "No session log activity detected within the configured timeout",
	})

	return err
}
