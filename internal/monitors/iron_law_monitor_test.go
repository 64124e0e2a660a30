package monitors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestE6IronLawEscalation is the concrete E6 scenario: a law violated three
// times in a row emits 0, then 1 low-priority, then 1 high-priority task; a
// subsequent pass resets the counter so the next violation again emits 0.
func TestE6IronLawEscalation(t *testing.T) {
	q := testQueue(t)
	m := NewIronLawMonitor(q)

	require.NoError(t, m.IngestLine("❌ LAW #4: On main branch"))
	assert.Empty(t, mustDrain(t, q))

	require.NoError(t, m.IngestLine("❌ LAW #4: On main branch"))
	tasks := mustDrain(t, q)
	require.Len(t, tasks, 1)
	assert.Equal(t, "iron_law_violation", tasks[0].AnomalyType)

	require.NoError(t, m.IngestLine("❌ LAW #4: On main branch"))
	tasks = mustDrain(t, q)
	require.Len(t, tasks, 1)
	assert.Equal(t, "iron_law_repeated", tasks[0].AnomalyType)

	require.NoError(t, m.IngestLine("✅ LAW #4: branch ok"))
	require.NoError(t, m.IngestLine("❌ LAW #4: On main branch"))
	assert.Empty(t, mustDrain(t, q))
}

func TestIronLawMonitorTracksLawsIndependently(t *testing.T) {
	q := testQueue(t)
	m := NewIronLawMonitor(q)

	require.NoError(t, m.IngestLine("❌ LAW #1: missing test"))
	require.NoError(t, m.IngestLine("❌ LAW #2: suite not run"))
	require.NoError(t, m.IngestLine("❌ LAW #2: suite not run"))

	tasks := mustDrain(t, q)
	require.Len(t, tasks, 1)
	// Tasks are read back from the JSON queue document, so numbers decode as float64.
	assert.Equal(t, float64(2), tasks[0].Context["law"])
}
