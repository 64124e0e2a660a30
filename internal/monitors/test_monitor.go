package monitors

import (
	"context"
	"sync"

	"github.com/oss-dev/supervisor/internal/queue"
	"github.com/oss-dev/supervisor/internal/state"
)

// TestResult is one feature's test outcome as parsed from test-runner
// output.
type TestResult struct {
	Feature string
	Passed  int
	Failed  int
	Total   int
}

// FeatureTesting is the testing document maintained per feature: the most
// recent result plus whether the previous run passed, used to detect
// regressions.
type FeatureTesting struct {
	Last       TestResult
	PrevPassed bool
	HasPrev    bool
}

// TestMonitor parses test-runner output per feature, keeps a per-feature
// testing document, and emits a task when a feature regresses from
// all-passing to failing (§4.4).
type TestMonitor struct {
	mu       sync.Mutex
	features map[string]*FeatureTesting
	parse    func(output string) ([]TestResult, error)
	queue    *queue.Manager
}

// NewTestMonitor builds a TestMonitor backed by q, parsing output with
// parse.
func NewTestMonitor(q *queue.Manager, parse func(output string) ([]TestResult, error)) *TestMonitor {
	return &TestMonitor{
		features: make(map[string]*FeatureTesting),
		parse:    parse,
		queue:    q,
	}
}

// Name satisfies daemon.Monitor.
func (m *TestMonitor) Name() string { return "test" }

// Poll is a no-op: TestMonitor reacts to runner output pushed via
// IngestOutput rather than sampling a source itself.
func (m *TestMonitor) Poll(ctx context.Context) (*state.Issue, error) {
	return nil, nil
}

// IngestOutput parses raw test-runner output, updates each feature's
// testing document, and queues a regression task for any feature that
// previously passed fully and now has failures.
func (m *TestMonitor) IngestOutput(output string) error {
	results, err := m.parse(output)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range results {
		doc, ok := m.features[r.Feature]
		if !ok {
			doc = &FeatureTesting{}
			m.features[r.Feature] = doc
		}

		regressed := doc.HasPrev && doc.PrevPassed && r.Failed > 0

		doc.Last = r
		doc.PrevPassed = r.Failed == 0
		doc.HasPrev = true

		if regressed && m.queue != nil {
			_, err := m.queue.Add(queue.AddInput{
				Priority:    queue.PriorityHigh,
				Source:      "test-monitor",
				AnomalyType: "test_regression",
				Prompt:      "Feature \"" + r.Feature + "\" regressed: previously passing tests now fail",
				Context: map[string]any{
					"feature": r.Feature,
					"failed":  r.Failed,
					"total":   r.Total,
				},
			})
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// FeatureState returns the current testing document for a feature.
func (m *TestMonitor) FeatureState(feature string) (FeatureTesting, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.features[feature]
	if !ok {
		return FeatureTesting{}, false
	}
	return *doc, true
}
