package modelrouting

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCostTrackerRecordsAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usage.json")

	tracker, err := NewCostTracker(path, PricingRegistry{
		"claude": {InputPer1M: 3, OutputPer1M: 15},
	})
	require.NoError(t, err)

	require.NoError(t, tracker.Record("ship", "claude", 1_000_000, 1_000_000))

	reloaded, err := NewCostTracker(path, PricingRegistry{"claude": {InputPer1M: 3, OutputPer1M: 15}})
	require.NoError(t, err)

	totals := reloaded.Totals(dayKeyForTest(reloaded))
	usage, ok := totals["ship"]
	require.True(t, ok)
	assert.Equal(t, 2_000_000, usage.Tokens)
	assert.InDelta(t, 18.0, usage.CostUSD, 0.0001)
}

func TestCostTrackerLocalModelIsFree(t *testing.T) {
	dir := t.TempDir()
	tracker, err := NewCostTracker(filepath.Join(dir, "usage.json"), PricingRegistry{})
	require.NoError(t, err)

	require.NoError(t, tracker.Record("plan", "local/llama", 500, 500))
	totals := tracker.Totals(dayKeyForTest(tracker))
	assert.Equal(t, 0.0, totals["plan"].CostUSD)
}

func dayKeyForTest(t *CostTracker) string {
	return t.now().UTC().Format("2006-01-02")
}
