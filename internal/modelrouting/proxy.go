package modelrouting

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oss-dev/supervisor/internal/log"
)

// ProviderClient dispatches an encoded request to a specific provider and
// returns its raw wire response.
type ProviderClient interface {
	Send(ctx context.Context, wire map[string]any) (map[string]any, error)
}

// Proxy is the local HTTP proxy server that exposes the canonical
// /v1/messages and /health endpoints and routes by provider (§4.8).
type Proxy struct {
	mu           sync.Mutex
	transformers map[Dialect]Transformer
	clients      map[Dialect]ProviderClient
	server       *http.Server
	listener     net.Listener
	running      bool
}

// NewProxy builds a Proxy with no registered providers; call Register for
// each dialect the proxy should route to.
func NewProxy() *Proxy {
	return &Proxy{
		transformers: map[Dialect]Transformer{},
		clients:      map[Dialect]ProviderClient{},
	}
}

// Register wires a dialect's transformer and client into the proxy.
func (p *Proxy) Register(d Dialect, t Transformer, c ProviderClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transformers[d] = t
	p.clients[d] = c
}

// Running reports whether the proxy is currently serving.
func (p *Proxy) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Addr returns the bound address once Start has succeeded.
func (p *Proxy) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// Start binds to an available loopback port and begins serving.
func (p *Proxy) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		p.mu.Unlock()
		return err
	}

	router := chi.NewRouter()
	router.Post("/v1/messages", p.handleMessages)
	router.Get("/health", p.handleHealth)

	p.listener = listener
	p.server = &http.Server{Handler: router}
	p.running = true
	p.mu.Unlock()

	go func() {
		if err := p.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.ErrorErr(log.CatModelRouting, "model proxy stopped unexpectedly", err)
		}
	}()

	return nil
}

// Stop cleanly shuts the proxy down, releasing the bound port.
func (p *Proxy) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	server := p.server
	p.running = false
	p.mu.Unlock()

	return server.Shutdown(ctx)
}

func (p *Proxy) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"healthy": true})
}

func (p *Proxy) handleMessages(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	resp, err := p.Dispatch(r.Context(), req)
	if err != nil {
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Dispatch routes req to the provider named by its model id's provider
// prefix, encoding via that provider's transformer and decoding its
// response back to the canonical shape.
func (p *Proxy) Dispatch(ctx context.Context, req Request) (Response, error) {
	dialect := dialectOf(providerOf(req.Model))

	p.mu.Lock()
	transformer, tok := p.transformers[dialect]
	client, cok := p.clients[dialect]
	p.mu.Unlock()

	if !tok || !cok {
		return Response{}, ErrUnknownProvider
	}

	wire, err := transformer.EncodeRequest(req)
	if err != nil {
		return Response{}, err
	}

	raw, err := client.Send(ctx, wire)
	if err != nil {
		return Response{}, err
	}

	return transformer.DecodeResponse(raw)
}

func dialectOf(provider string) Dialect {
	switch provider {
	case "openai":
		return DialectOpenAI
	case "gemini":
		return DialectGemini
	default:
		return DialectAnthropic
	}
}

// waitForReady polls until Running() is true or the deadline elapses; used
// by tests that need the listener address before issuing requests.
func (p *Proxy) waitForReady(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if p.Running() && p.Addr() != "" {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}
