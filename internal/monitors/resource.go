package monitors

// Usage is a two-sample delta of memory and CPU utilization.
type Usage struct {
	MemoryPercent float64
	CPUPercent    float64
}

// Thresholds configures ResourceMonitor.CheckThresholds.
type Thresholds struct {
	MemoryPercent float64
	CPUPercent    float64
}

// Alert describes a single threshold breach.
type Alert struct {
	Resource string
	Value    float64
	Limit    float64
}

// ResourceMonitor samples memory and CPU usage and flags threshold
// breaches.
type ResourceMonitor struct {
	sample func() (Usage, error)
}

// NewResourceMonitor builds a ResourceMonitor using the given sampler.
func NewResourceMonitor(sample func() (Usage, error)) *ResourceMonitor {
	return &ResourceMonitor{sample: sample}
}

// Sample returns the current resource usage snapshot.
func (m *ResourceMonitor) Sample() (Usage, error) {
	return m.sample()
}

// CheckThresholds returns an alert for every resource whose usage exceeds
// the configured threshold.
func CheckThresholds(usage Usage, t Thresholds) []Alert {
	var alerts []Alert

	if t.MemoryPercent > 0 && usage.MemoryPercent > t.MemoryPercent {
		alerts = append(alerts, Alert{Resource: "memory", Value: usage.MemoryPercent, Limit: t.MemoryPercent})
	}
	if t.CPUPercent > 0 && usage.CPUPercent > t.CPUPercent {
		alerts = append(alerts, Alert{Resource: "cpu", Value: usage.CPUPercent, Limit: t.CPUPercent})
	}

	return alerts
}
