package modelrouting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Pricing is a model's per-million-token rate; local models are priced at
// $0 (§4.8).
type Pricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// PricingRegistry maps a model id to its Pricing.
type PricingRegistry map[string]Pricing

// Usage is one day's per-command accumulation.
type Usage struct {
	Tokens  int     `json:"tokens"`
	CostUSD float64 `json:"cost_usd"`
}

// UsageDocument is the on-disk shape of usage.json: day -> command -> Usage.
type UsageDocument map[string]map[string]Usage

// CostTracker accumulates per-day per-command token usage and cost,
// persisted to a rolling JSON file (§4.8, §6).
type CostTracker struct {
	mu       sync.Mutex
	path     string
	pricing  PricingRegistry
	now      func() time.Time
	document UsageDocument
}

// NewCostTracker builds a CostTracker backed by path, loading any existing
// usage document.
func NewCostTracker(path string, pricing PricingRegistry) (*CostTracker, error) {
	t := &CostTracker{path: path, pricing: pricing, now: time.Now, document: UsageDocument{}}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *CostTracker) load() error {
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &t.document)
}

// Record adds inputTokens/outputTokens of model usage under command for
// today's date, computing cost from the pricing registry (unknown models
// cost $0, same as local models).
func (t *CostTracker) Record(command, model string, inputTokens, outputTokens int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	day := t.now().UTC().Format("2006-01-02")
	if t.document[day] == nil {
		t.document[day] = map[string]Usage{}
	}

	price := t.pricing[model]
	cost := float64(inputTokens)/1_000_000*price.InputPer1M + float64(outputTokens)/1_000_000*price.OutputPer1M

	existing := t.document[day][command]
	existing.Tokens += inputTokens + outputTokens
	existing.CostUSD += cost
	t.document[day][command] = existing

	return t.writeLocked()
}

// Totals returns the aggregate usage for a given day.
func (t *CostTracker) Totals(day string) map[string]Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Usage, len(t.document[day]))
	for k, v := range t.document[day] {
		out[k] = v
	}
	return out
}

func (t *CostTracker) writeLocked() error {
	data, err := json.MarshalIndent(t.document, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".usage.json.tmp.*")
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
	return os.Rename(tmp.Name(), t.path)
}
