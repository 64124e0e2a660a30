package monitors

import (
	"context"
	"strings"

	"github.com/oss-dev/supervisor/internal/queue"
	"github.com/oss-dev/supervisor/internal/state"
)

// SpecItemStatus is an item's checkbox state within a spec document
// section.
type SpecItemStatus string

const (
	SpecItemChecked   SpecItemStatus = "checked"
	SpecItemUnchecked SpecItemStatus = "unchecked"
)

// SpecItem is one line item within a components/criteria/behaviors
// section: {id, description, status}.
type SpecItem struct {
	ID          string
	Description string
	Status      SpecItemStatus
}

// SpecSections is a parsed spec document's three item sections (§4.4).
type SpecSections struct {
	Components []SpecItem
	Criteria   []SpecItem
	Behaviors  []SpecItem
}

// SectionCoverage is implemented/total for one section; 1.0 when total is
// zero (Property 11 — an empty section is vacuously fully covered).
type SectionCoverage struct {
	Implemented int
	Total       int
}

// Ratio returns Implemented/Total, or 1.0 when Total is zero.
func (c SectionCoverage) Ratio() float64 {
	if c.Total == 0 {
		return 1.0
	}
	return float64(c.Implemented) / float64(c.Total)
}

// FeatureMetrics aggregates coverage across all three sections for a
// feature.
type FeatureMetrics struct {
	Components SectionCoverage
	Criteria   SectionCoverage
	Behaviors  SectionCoverage
}

// SpecMonitor compares a feature's spec document against its
// implementation files and test files, emitting drift tasks (§4.4).
type SpecMonitor struct {
	feature          string
	sections         SpecSections
	implFiles        []string // implementation file identifiers (e.g. component ids with a match)
	testFileContents []string // raw contents of test files, searched for criteria ids
	queue            *queue.Manager
}

// NewSpecMonitor builds a SpecMonitor for one feature.
func NewSpecMonitor(feature string, sections SpecSections, implFiles, testFileContents []string, q *queue.Manager) *SpecMonitor {
	return &SpecMonitor{
		feature:          feature,
		sections:         sections,
		implFiles:        implFiles,
		testFileContents: testFileContents,
		queue:            q,
	}
}

// Name satisfies daemon.Monitor.
func (m *SpecMonitor) Name() string { return "spec" }

// Poll runs drift detection and queues one task per detected drift. It
// never itself reports a state.Issue; drift surfaces only via the queue.
func (m *SpecMonitor) Poll(ctx context.Context) (*state.Issue, error) {
	for _, item := range m.sections.Components {
		if !containsString(m.implFiles, item.ID) {
			if err := m.queueDrift("spec_drift_structural", queue.PriorityHigh,
				"Spec component \""+item.ID+"\" ("+item.Description+") has no matching implementation file",
				map[string]any{"component": item.ID, "confidence": 1.0}); err != nil {
				return nil, err
			}
		}
	}

	for _, file := range m.implFiles {
		if !specItemsContainID(m.sections.Components, file) {
			if err := m.queueDrift("spec_drift_structural", queue.PriorityHigh,
				"Implementation file \""+file+"\" has no corresponding spec component",
				map[string]any{"file": file, "confidence": 1.0}); err != nil {
				return nil, err
			}
		}
	}

	for _, item := range m.sections.Criteria {
		if item.Status == SpecItemChecked {
			continue
		}
		if !anyContains(m.testFileContents, item.ID) {
			if err := m.queueDrift("spec_drift_criteria", queue.PriorityMedium,
				"Unchecked criterion \""+item.ID+"\" ("+item.Description+") is not referenced by any test file",
				map[string]any{"criterion": item.ID, "confidence": 0.8}); err != nil {
				return nil, err
			}
		}
	}

	return nil, nil
}

func (m *SpecMonitor) queueDrift(anomalyType string, priority queue.Priority, prompt string, ctx map[string]any) error {
	if m.queue == nil {
		return nil
	}
	ctx["feature"] = m.feature
	_, err := m.queue.Add(queue.AddInput{
		Priority:    priority,
		Source:      "spec-monitor",
		AnomalyType: anomalyType,
		Prompt:      prompt,
		Context:     ctx,
	})
	return err
}

// Metrics computes per-section coverage and aggregates it for the feature.
func (m *SpecMonitor) Metrics() FeatureMetrics {
	return FeatureMetrics{
		Components: coverage(m.sections.Components),
		Criteria:   coverage(m.sections.Criteria),
		Behaviors:  coverage(m.sections.Behaviors),
	}
}

func coverage(items []SpecItem) SectionCoverage {
	c := SectionCoverage{Total: len(items)}
	for _, it := range items {
		if it.Status == SpecItemChecked {
			c.Implemented++
		}
	}
	return c
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func specItemsContainID(items []SpecItem, id string) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}

func anyContains(contents []string, needle string) bool {
	for _, c := range contents {
		if strings.Contains(c, needle) {
			return true
		}
	}
	return false
}
