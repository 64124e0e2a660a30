package modelrouting

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/oss-dev/supervisor/internal/log"
)

// ErrUnknownProvider is returned for a model id whose provider has no
// registered transformer.
var ErrUnknownProvider = errors.New("modelrouting: unknown provider")

// NativeClient executes a request via the default/claude native path (no
// proxy translation needed).
type NativeClient interface {
	Execute(ctx context.Context, req Request) (Response, error)
}

// Notifier surfaces a fallback-used notification to the user.
type Notifier interface {
	Notify(message string) error
}

// Executor routes a Request to its model's provider, either natively
// (default/claude) or through the proxy, falling back to native on
// provider failure when enabled (§4.8).
type Executor struct {
	native          NativeClient
	proxy           *Proxy
	notifier        Notifier
	fallbackEnabled bool
	breaker         *gobreaker.CircuitBreaker
}

// NewExecutor builds an Executor.
func NewExecutor(native NativeClient, proxy *Proxy, notifier Notifier, fallbackEnabled bool) *Executor {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "modelrouting-executor",
		MaxRequests: 1,
	})
	return &Executor{native: native, proxy: proxy, notifier: notifier, fallbackEnabled: fallbackEnabled, breaker: breaker}
}

// providerOf extracts the provider segment from a "provider/model" id, or
// returns "" for a bare model name (treated as native/claude).
func providerOf(modelID string) string {
	for i, r := range modelID {
		if r == '/' {
			return modelID[:i]
		}
	}
	return ""
}

// Execute runs req against the routed model, per §4.8's executor contract.
func (e *Executor) Execute(ctx context.Context, req Request) (Response, error) {
	if !IsValidModelID(req.Model) {
		return Response{}, fmt.Errorf("modelrouting: invalid model id %q", req.Model)
	}

	provider := providerOf(req.Model)
	if provider == "" || provider == "claude" || req.Model == "default" {
		return e.native.Execute(ctx, req)
	}

	result, err := e.breaker.Execute(func() (any, error) {
		if e.proxy == nil {
			return Response{}, ErrUnknownProvider
		}
		if !e.proxy.Running() {
			if startErr := e.proxy.Start(ctx); startErr != nil {
				return Response{}, startErr
			}
		}
		return e.proxy.Dispatch(ctx, req)
	})

	if err == nil {
		return result.(Response), nil
	}

	if !e.fallbackEnabled {
		return Response{}, err
	}

	log.Warn(log.CatModelRouting, "provider failed, falling back to native path", "model", req.Model, "error", err.Error())
	if e.notifier != nil {
		_ = e.notifier.Notify(fmt.Sprintf("Model %q failed; falling back to native path", req.Model))
	}

	req.Extra = mergeFallbackFlag(req.Extra)
	return e.native.Execute(ctx, req)
}

func mergeFallbackFlag(extra map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range extra {
		out[k] = v
	}
	out["fallbackUsed"] = true
	return out
}
