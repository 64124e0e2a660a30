// Package agents implements the Agent Registry (§4.6): a collection of
// pluggable BackgroundAgents polled on independent intervals, plus the
// reference PR Monitor and PR Task Executor built on top of it.
package agents

import (
	"context"
	"sync"
	"time"

	"github.com/oss-dev/supervisor/internal/log"
	"github.com/oss-dev/supervisor/internal/pubsub"
)

// UnhealthyThreshold is the consecutive-error-count at which an agent is
// reported unhealthy (§4.6).
const UnhealthyThreshold = 3

// Metadata describes a registered agent.
type Metadata struct {
	Name        string
	Description string
}

// BackgroundAgent is the lifecycle contract every registered agent
// implements.
type BackgroundAgent interface {
	Metadata() Metadata
	Initialize(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Poll(ctx context.Context) error
}

// HealthEventType distinguishes the two health transitions the registry
// publishes.
type HealthEventType string

const (
	HealthEventHealthy   HealthEventType = "agent:healthy"
	HealthEventUnhealthy HealthEventType = "agent:unhealthy"
)

// HealthEvent is published on the registry's broker whenever an agent
// crosses a health-state boundary.
type HealthEvent struct {
	Agent string
	Type  HealthEventType
}

// runtime is the registry's per-agent bookkeeping (§4.6): isRunning,
// interval handle, lastPollTime, errorCount, lastError.
type runtime struct {
	agent        BackgroundAgent
	interval     time.Duration
	isRunning    bool
	cancel       context.CancelFunc
	lastPollTime time.Time
	errorCount   int
	lastError    error
	wasUnhealthy bool
}

// Registry tracks and schedules a set of BackgroundAgents.
type Registry struct {
	mu      sync.Mutex
	agents  map[string]*runtime
	broker  *pubsub.Broker[HealthEvent]
	wg      sync.WaitGroup
	nowFunc func() time.Time
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		agents:  make(map[string]*runtime),
		broker:  pubsub.NewBroker[HealthEvent](),
		nowFunc: time.Now,
	}
}

// Subscribe returns a channel of health events for ctx's lifetime.
func (r *Registry) Subscribe(ctx context.Context) <-chan pubsub.Event[HealthEvent] {
	return r.broker.Subscribe(ctx)
}

// Register adds an agent to the registry without starting it.
func (r *Registry) Register(agent BackgroundAgent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.Metadata().Name] = &runtime{agent: agent}
}

// StartAgent initializes and starts the named agent, then schedules Poll
// every interval until the registry's context or StopAgent cancels it.
func (r *Registry) StartAgent(ctx context.Context, name string, interval time.Duration) error {
	r.mu.Lock()
	rt, ok := r.agents[name]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownAgent
	}
	if rt.isRunning {
		r.mu.Unlock()
		return nil
	}
	rt.interval = interval
	agentCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel
	rt.isRunning = true
	r.mu.Unlock()

	if err := rt.agent.Initialize(agentCtx); err != nil {
		return err
	}
	if err := rt.agent.Start(agentCtx); err != nil {
		return err
	}

	r.wg.Add(1)
	go r.pollLoop(agentCtx, name, rt)
	return nil
}

func (r *Registry) pollLoop(ctx context.Context, name string, rt *runtime) {
	defer r.wg.Done()
	ticker := time.NewTicker(rt.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollOne(ctx, name, rt)
		}
	}
}

func (r *Registry) pollOne(ctx context.Context, name string, rt *runtime) {
	err := rt.agent.Poll(ctx)

	r.mu.Lock()
	rt.lastPollTime = r.nowFunc()
	if err != nil {
		rt.errorCount++
		rt.lastError = err
		log.Warn(log.CatAgent, "agent poll failed", "agent", name, "errorCount", rt.errorCount, "error", err.Error())
		if rt.errorCount >= UnhealthyThreshold && !rt.wasUnhealthy {
			rt.wasUnhealthy = true
			r.mu.Unlock()
			r.broker.Publish(pubsub.UpdatedEvent, HealthEvent{Agent: name, Type: HealthEventUnhealthy})
			return
		}
		r.mu.Unlock()
		return
	}

	wasUnhealthy := rt.wasUnhealthy
	rt.errorCount = 0
	rt.lastError = nil
	rt.wasUnhealthy = false
	r.mu.Unlock()

	if wasUnhealthy {
		r.broker.Publish(pubsub.UpdatedEvent, HealthEvent{Agent: name, Type: HealthEventHealthy})
	}
}

// StopAgent stops the named agent's poll loop and calls its Stop hook.
func (r *Registry) StopAgent(ctx context.Context, name string) error {
	r.mu.Lock()
	rt, ok := r.agents[name]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownAgent
	}
	if !rt.isRunning {
		r.mu.Unlock()
		return nil
	}
	rt.isRunning = false
	cancel := rt.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return rt.agent.Stop(ctx)
}

// Restart stops then starts the named agent with the same interval.
func (r *Registry) Restart(ctx context.Context, name string) error {
	r.mu.Lock()
	rt, ok := r.agents[name]
	interval := time.Duration(0)
	if ok {
		interval = rt.interval
	}
	r.mu.Unlock()
	if !ok {
		return ErrUnknownAgent
	}
	if err := r.StopAgent(ctx, name); err != nil {
		return err
	}
	return r.StartAgent(ctx, name, interval)
}

// StartAll starts every registered agent with the given interval.
func (r *Registry) StartAll(ctx context.Context, interval time.Duration) error {
	r.mu.Lock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	r.mu.Unlock()

	for _, name := range names {
		if err := r.StartAgent(ctx, name, interval); err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops every running agent and waits for poll loops to exit.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	r.mu.Unlock()

	for _, name := range names {
		if err := r.StopAgent(ctx, name); err != nil {
			return err
		}
	}
	r.wg.Wait()
	return nil
}

// Status is a snapshot of an agent's runtime bookkeeping, returned by
// GetStatus.
type Status struct {
	IsRunning    bool
	LastPollTime time.Time
	ErrorCount   int
	LastError    error
}

// GetStatus returns the named agent's current runtime status.
func (r *Registry) GetStatus(name string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.agents[name]
	if !ok {
		return Status{}, false
	}
	return Status{
		IsRunning:    rt.isRunning,
		LastPollTime: rt.lastPollTime,
		ErrorCount:   rt.errorCount,
		LastError:    rt.lastError,
	}, true
}
