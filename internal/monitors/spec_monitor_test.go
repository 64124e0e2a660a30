package monitors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecMonitorStructuralMissing(t *testing.T) {
	q := testQueue(t)
	sections := SpecSections{
		Components: []SpecItem{{ID: "queue_manager", Description: "Task queue", Status: SpecItemChecked}},
	}
	m := NewSpecMonitor("supervisor", sections, nil, nil, q)

	_, err := m.Poll(context.Background())
	require.NoError(t, err)

	tasks := mustDrain(t, q)
	require.Len(t, tasks, 1)
	assert.Equal(t, "spec_drift_structural", tasks[0].AnomalyType)
	assert.Equal(t, "queue_manager", tasks[0].Context["component"])
}

func TestSpecMonitorStructuralExtra(t *testing.T) {
	q := testQueue(t)
	sections := SpecSections{
		Components: []SpecItem{{ID: "queue_manager", Status: SpecItemChecked}},
	}
	m := NewSpecMonitor("supervisor", sections, []string{"queue_manager", "orphan_file"}, nil, q)

	_, err := m.Poll(context.Background())
	require.NoError(t, err)

	tasks := mustDrain(t, q)
	require.Len(t, tasks, 1)
	assert.Equal(t, "orphan_file", tasks[0].Context["file"])
}

func TestSpecMonitorCriteriaIncompleteExcludesChecked(t *testing.T) {
	q := testQueue(t)
	sections := SpecSections{
		Criteria: []SpecItem{
			{ID: "C1", Description: "must validate input", Status: SpecItemUnchecked},
			{ID: "C2", Description: "already covered", Status: SpecItemChecked},
		},
	}
	m := NewSpecMonitor("supervisor", sections, nil, []string{"no mention of covered ids here"}, q)

	_, err := m.Poll(context.Background())
	require.NoError(t, err)

	tasks := mustDrain(t, q)
	require.Len(t, tasks, 1)
	assert.Equal(t, "C1", tasks[0].Context["criterion"])
}

func TestSpecMonitorCriteriaFoundInTestFileIsNotDrift(t *testing.T) {
	q := testQueue(t)
	sections := SpecSections{
		Criteria: []SpecItem{{ID: "C1", Status: SpecItemUnchecked}},
	}
	m := NewSpecMonitor("supervisor", sections, nil, []string{"func TestC1(t *testing.T) {}"}, q)

	_, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, mustDrain(t, q))
}

// TestProperty11CoverageArithmetic checks the coverage formula, including
// the vacuous-full-coverage case when a section is empty.
func TestProperty11CoverageArithmetic(t *testing.T) {
	empty := SectionCoverage{Implemented: 0, Total: 0}
	assert.Equal(t, 1.0, empty.Ratio())

	half := SectionCoverage{Implemented: 1, Total: 2}
	assert.Equal(t, 0.5, half.Ratio())

	full := SectionCoverage{Implemented: 3, Total: 3}
	assert.Equal(t, 1.0, full.Ratio())
}

func TestSpecMonitorMetricsAggregatesSections(t *testing.T) {
	sections := SpecSections{
		Components: []SpecItem{{ID: "a", Status: SpecItemChecked}, {ID: "b", Status: SpecItemUnchecked}},
		Criteria:   []SpecItem{{ID: "c", Status: SpecItemChecked}},
	}
	m := NewSpecMonitor("f", sections, nil, nil, nil)

	metrics := m.Metrics()
	assert.Equal(t, 0.5, metrics.Components.Ratio())
	assert.Equal(t, 1.0, metrics.Criteria.Ratio())
	assert.Equal(t, 1.0, metrics.Behaviors.Ratio())
}
