// Package webhook implements the Webhook Receiver (§4.7): an HTTP endpoint
// that ingests HMAC-signed review events from an external git-forge and
// hands matching ones to the PR monitor's webhook-processing path.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"

	"github.com/oss-dev/supervisor/internal/log"
)

// MaxPayloadBytes is the enforced request body size limit (§4.7).
const MaxPayloadBytes = 1 << 20 // 1 MiB

// SignatureHeader is the header carrying the HMAC signature.
const SignatureHeader = "X-Hub-Signature-256"

// Event is the parsed shape of an inbound review event.
type Event struct {
	Type        string `json:"type"`
	ReviewState string `json:"reviewState"`
	PRNumber    int    `json:"prNumber"`
	CommentID   string `json:"commentId"`
	Body        string `json:"body"`
}

// Processor handles a matching review event without polling (§4.7).
type Processor interface {
	ProcessWebhookEvent(ctx context.Context, event Event) error
}

// HealthStatus is returned by /health.
type HealthStatus struct {
	Healthy  bool   `json:"healthy"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// HealthSource supplies the model-proxy pairing info for /health, when one
// is configured.
type HealthSource func() (provider, model string, ok bool)

// Recorder records each webhook delivery's outcome by label, for the
// daemon's internal /metrics endpoint. A nil Recorder disables
// instrumentation.
type Recorder interface {
	IncWebhookOutcome(outcome string)
}

// Config configures the Webhook Receiver.
type Config struct {
	Secret       string
	EventType    string // only this event type is acted upon; default "review"
	RateLimitRPM int    // requests per minute per-process; default 10
	Addr         string // loopback bind address, e.g. "127.0.0.1:9091"
}

// Receiver is the Webhook Receiver HTTP server.
type Receiver struct {
	cfg       Config
	processor Processor
	health    HealthSource
	limiter   *rateLimiter
	server    *http.Server
	tracer    trace.Tracer
	recorder  Recorder
}

// NewReceiver builds a Receiver bound to cfg.Addr, which must be a loopback
// address. tracer and recorder may be nil to disable span/metric
// instrumentation.
func NewReceiver(cfg Config, processor Processor, health HealthSource, tracer trace.Tracer, recorder Recorder) *Receiver {
	if cfg.EventType == "" {
		cfg.EventType = "review"
	}
	if cfg.RateLimitRPM <= 0 {
		cfg.RateLimitRPM = 10
	}

	r := &Receiver{
		cfg:       cfg,
		processor: processor,
		health:    health,
		limiter:   newRateLimiter(cfg.RateLimitRPM, time.Minute),
		tracer:    tracer,
		recorder:  recorder,
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{AllowedOrigins: []string{}}))
	router.Get("/health", r.handleHealth)
	router.Post("/webhook", r.handleEvent)

	r.server = &http.Server{Addr: cfg.Addr, Handler: router}
	return r
}

// Start binds and serves in the background. It returns once the listener is
// ready or an error occurs while binding.
func (r *Receiver) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(50 * time.Millisecond):
		log.Info(log.CatWebhook, "webhook receiver listening", "addr", r.cfg.Addr)
		return nil
	}
}

// Stop shuts the HTTP server down gracefully, tied to the daemon's lifecycle
// (§4.7).
func (r *Receiver) Stop(ctx context.Context) error {
	return r.server.Shutdown(ctx)
}

func (r *Receiver) handleHealth(w http.ResponseWriter, req *http.Request) {
	status := HealthStatus{Healthy: true}
	if r.health != nil {
		if provider, model, ok := r.health(); ok {
			status.Provider = provider
			status.Model = model
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (r *Receiver) handleEvent(w http.ResponseWriter, req *http.Request) {
	if r.tracer != nil {
		ctx, span := r.tracer.Start(req.Context(), "webhook.handle_event")
		defer span.End()
		req = req.WithContext(ctx)
	}

	if !r.limiter.Allow() {
		r.record("rate_limited")
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, MaxPayloadBytes+1))
	if err != nil {
		r.record("bad_request")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if len(body) > MaxPayloadBytes {
		r.record("oversized")
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	sig := req.Header.Get(SignatureHeader)
	if sig == "" || !VerifySignature(r.cfg.Secret, body, sig) {
		r.record("unauthorized")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		r.record("bad_request")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if event.Type != r.cfg.EventType {
		r.record("ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	if event.ReviewState != "changes_requested" {
		r.record("ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := r.processor.ProcessWebhookEvent(req.Context(), event); err != nil {
		log.ErrorErr(log.CatWebhook, "webhook event processing failed", err)
		r.record("error")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	r.record("accepted")
	w.WriteHeader(http.StatusOK)
}

func (r *Receiver) record(outcome string) {
	if r.recorder != nil {
		r.recorder.IncWebhookOutcome(outcome)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// VerifySignature reports whether sig (an "sha256=<hex>" string) is the
// correct HMAC-SHA256 of body under secret, using a timing-safe comparison
// (§4.7).
func VerifySignature(secret string, body []byte, sig string) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(sig, prefix) {
		return false
	}
	given, err := hex.DecodeString(strings.TrimPrefix(sig, prefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	return subtle.ConstantTimeCompare(given, expected) == 1
}

// rateLimiter is a simple fixed-window limiter: up to limit events per
// window, reset each time the window elapses.
type rateLimiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	windowStart time.Time
	count       int
	now         func() time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{limit: limit, window: window, now: time.Now}
}

func (l *rateLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}
	if l.count >= l.limit {
		return false
	}
	l.count++
	return true
}
