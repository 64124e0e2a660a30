// Package metrics exposes the daemon's internal health as Prometheus
// collectors on a loopback-only /metrics endpoint (§10 ambient stack):
// tick duration, queue depth, agent health, and webhook accept/reject
// counts. Grounded on the FluxForge control plane's
// `http.Handle("/metrics", promhttp.Handler())` pattern, adapted to a
// dedicated registry rather than the global default one.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects the supervisor's tick/queue/agent/webhook gauges and
// counters and serves them on /metrics.
type Recorder struct {
	registry    *prometheus.Registry
	tickSeconds prometheus.Histogram
	queueDepth  prometheus.Gauge
	agentHealth *prometheus.GaugeVec
	webhook     *prometheus.CounterVec
	server      *http.Server
}

// New builds a Recorder with its own registry, isolated from any
// process-global Prometheus state.
func New() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		tickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "supervisor",
			Subsystem: "daemon",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of each daemon tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "supervisor",
			Subsystem: "queue",
			Name:      "pending_tasks",
			Help:      "Pending task count as of the last queue mutation.",
		}),
		agentHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "supervisor",
			Subsystem: "agents",
			Name:      "healthy",
			Help:      "1 if the named background agent is healthy, 0 if unhealthy.",
		}, []string{"agent"}),
		webhook: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supervisor",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Webhook deliveries by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(r.tickSeconds, r.queueDepth, r.agentHealth, r.webhook)
	return r
}

// ObserveTick implements daemon.TickObserver.
func (r *Recorder) ObserveTick(d time.Duration) {
	r.tickSeconds.Observe(d.Seconds())
}

// SetQueueDepth implements the queue depth gauge updated from queue.Event.
func (r *Recorder) SetQueueDepth(pending int) {
	r.queueDepth.Set(float64(pending))
}

// SetAgentHealthy implements the agent-health gauge fed from the Agent
// Registry's health-event broker.
func (r *Recorder) SetAgentHealthy(agent string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	r.agentHealth.WithLabelValues(agent).Set(v)
}

// IncWebhookOutcome implements webhook.Recorder.
func (r *Recorder) IncWebhookOutcome(outcome string) {
	r.webhook.WithLabelValues(outcome).Inc()
}

// Serve binds addr (which must be a loopback address) and serves /metrics
// in the background until ctx is canceled.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding metrics listener: %w", err)
	}

	r.server = &http.Server{Handler: mux}
	go func() {
		if err := r.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = err
		}
	}()

	go func() {
		<-ctx.Done()
		_ = r.server.Close()
	}()

	return nil
}
