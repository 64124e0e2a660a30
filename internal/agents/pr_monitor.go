package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/oss-dev/supervisor/internal/cachemanager"
	"github.com/oss-dev/supervisor/internal/queue"
)

// ProcessedTTL is how long a processed comment id is remembered before
// cleanup, per §4.6.1.
const ProcessedTTL = 30 * 24 * time.Hour

var approvalPattern = regexp.MustCompile(`(?i)\b(lgtm|approved)\b|👍`)
var changeRequestPattern = regexp.MustCompile(`(?i)\b(fix|please|could you|should|refactor|change|update)\b`)

// PRComment is a single review comment fetched from the forge CLI.
type PRComment struct {
	ID     string
	PR     int
	Branch string
	Path   string
	Line   int
	Body   string
}

// ForgeClient is the external git-forge integration PRMonitor polls
// through. An acknowledgment reply and the list of open PR comments are the
// only operations the monitor needs.
type ForgeClient interface {
	ListOpenPRComments(ctx context.Context) ([]PRComment, error)
	ReplyToComment(ctx context.Context, prNumber int, commentID, body string) error
}

// Stats are the PR monitor's running counters, updated on each event
// (§4.6.1).
type Stats struct {
	CommentsSeen     int
	ChangesRequested int
	AcksSent         int
	TasksQueued      int
}

// PRMonitor polls open PRs for unseen change-request comments, queues a
// remediation task for each, and acknowledges it (§4.6.1). It implements
// BackgroundAgent.
type PRMonitor struct {
	mu        sync.Mutex
	client    ForgeClient
	queue     *queue.Manager
	processed *cachemanager.InMemoryCacheManager[string, time.Time]
	statePath string
	stats     Stats
	now       func() time.Time
}

// NewPRMonitor builds a PRMonitor. statePath is where the processed-id set
// is persisted across restarts.
func NewPRMonitor(client ForgeClient, q *queue.Manager, statePath string) *PRMonitor {
	return &PRMonitor{
		client:    client,
		queue:     q,
		processed: cachemanager.NewInMemoryCacheManager[string, time.Time]("pr-monitor-processed", ProcessedTTL, time.Hour),
		statePath: statePath,
		now:       time.Now,
	}
}

// Metadata satisfies BackgroundAgent.
func (m *PRMonitor) Metadata() Metadata {
	return Metadata{Name: "pr-monitor", Description: "Polls open PRs for change-request review comments"}
}

// Initialize loads the persisted processed-id set, dropping entries older
// than ProcessedTTL.
func (m *PRMonitor) Initialize(ctx context.Context) error {
	return m.loadProcessed()
}

// Start is a no-op; all state is already loaded by Initialize.
func (m *PRMonitor) Start(ctx context.Context) error { return nil }

// Stop persists the processed-id set, pruning entries older than
// ProcessedTTL.
func (m *PRMonitor) Stop(ctx context.Context) error {
	return m.saveProcessed()
}

// Poll fetches open PR comments and processes any unseen change request.
func (m *PRMonitor) Poll(ctx context.Context) error {
	comments, err := m.client.ListOpenPRComments(ctx)
	if err != nil {
		return err
	}

	for _, c := range comments {
		m.mu.Lock()
		m.stats.CommentsSeen++
		m.mu.Unlock()

		if _, seen := m.processed.Get(ctx, c.ID); seen {
			continue
		}
		if !IsChangeRequest(c.Body) {
			continue
		}

		m.mu.Lock()
		m.stats.ChangesRequested++
		m.mu.Unlock()

		suggested := SuggestAgent(c.Body)

		if _, err := m.queue.Add(queue.AddInput{
			Priority:       queue.PriorityHigh,
			Source:         "pr-monitor",
			AnomalyType:    "pr_remediation",
			Prompt:         fmt.Sprintf("PR #%d review comment on %s:%d requests changes: %s", c.PR, c.Path, c.Line, c.Body),
			SuggestedAgent: suggested,
			Context: map[string]any{
				"prNumber":       c.PR,
				"branch":         c.Branch,
				"path":           c.Path,
				"line":           c.Line,
				"commentId":      c.ID,
				"commentBody":    c.Body,
				"suggestedAgent": suggested,
			},
		}); err != nil {
			return err
		}
		m.mu.Lock()
		m.stats.TasksQueued++
		m.mu.Unlock()

		if err := m.client.ReplyToComment(ctx, c.PR, c.ID, "Acknowledged, queuing a fix."); err != nil {
			return err
		}
		m.mu.Lock()
		m.stats.AcksSent++
		m.mu.Unlock()

		m.processed.Set(ctx, c.ID, m.now(), ProcessedTTL)
	}

	return nil
}

// Stats returns a snapshot of the running counters.
func (m *PRMonitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// IsChangeRequest classifies a review comment body per §4.6.1: explicit
// approval markers are non-matches; otherwise any change-request verb
// triggers a match.
func IsChangeRequest(body string) bool {
	if approvalPattern.MatchString(body) {
		return false
	}
	return changeRequestPattern.MatchString(body)
}

// SuggestAgent heuristically picks a suggested agent from a comment body's
// vocabulary (§4.6.1): typescript / testing / performance / security /
// refactor / debugger default.
func SuggestAgent(body string) string {
	lower := strings.ToLower(body)
	switch {
	case strings.Contains(lower, "typescript") || strings.Contains(lower, ".ts"):
		return "typescript-engineer"
	case strings.Contains(lower, "test"):
		return "test-engineer"
	case strings.Contains(lower, "perf") || strings.Contains(lower, "slow"):
		return "performance-engineer"
	case strings.Contains(lower, "security") || strings.Contains(lower, "vulnerab"):
		return "security-engineer"
	case strings.Contains(lower, "refactor"):
		return "refactor-engineer"
	default:
		return "debugger"
	}
}

// processedRecord is the on-disk shape of the persisted processed-id set.
type processedRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func (m *PRMonitor) loadProcessed() error {
	data, err := os.ReadFile(m.statePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var records []processedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}

	cutoff := m.now().Add(-ProcessedTTL)
	for _, r := range records {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		remaining := r.Timestamp.Add(ProcessedTTL).Sub(m.now())
		m.processed.Set(context.Background(), r.ID, r.Timestamp, remaining)
	}
	return nil
}

func (m *PRMonitor) saveProcessed() error {
	// The in-memory cache evicts expired entries itself; anything still
	// present at save time is, by construction, within the TTL window.
	keys := m.processed.Keys()
	records := make([]processedRecord, 0, len(keys))
	for _, k := range keys {
		if ts, ok := m.processed.Get(context.Background(), k); ok {
			records = append(records, processedRecord{ID: k, Timestamp: ts})
		}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dirOf(m.statePath), ".pr-monitor-processed.json.tmp.*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), m.statePath)
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
