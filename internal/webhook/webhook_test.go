package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

type recordingProcessor struct {
	events []Event
}

func (p *recordingProcessor) ProcessWebhookEvent(ctx context.Context, event Event) error {
	p.events = append(p.events, event)
	return nil
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"review"}`)
	sig := sign("topsecret", body)
	assert.True(t, VerifySignature("topsecret", body, sig))
	assert.False(t, VerifySignature("wrongsecret", body, sig))
	assert.False(t, VerifySignature("topsecret", body, "sha256=deadbeef"))
	assert.False(t, VerifySignature("topsecret", body, "not-prefixed"))
}

func newTestReceiver(processor Processor) *Receiver {
	return NewReceiver(Config{Secret: "topsecret", Addr: "127.0.0.1:0"}, processor, nil, nil, nil)
}

func TestHandleEventRejectsMissingSignature(t *testing.T) {
	proc := &recordingProcessor{}
	r := newTestReceiver(proc)

	body, _ := json.Marshal(Event{Type: "review", ReviewState: "changes_requested"})
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	r.handleEvent(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleEventRejectsBadSignature(t *testing.T) {
	proc := &recordingProcessor{}
	r := newTestReceiver(proc)

	body, _ := json.Marshal(Event{Type: "review", ReviewState: "changes_requested"})
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, "sha256=0000")
	rec := httptest.NewRecorder()

	r.handleEvent(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleEventProcessesChangesRequested(t *testing.T) {
	proc := &recordingProcessor{}
	r := newTestReceiver(proc)

	body, _ := json.Marshal(Event{Type: "review", ReviewState: "changes_requested", PRNumber: 7})
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, sign("topsecret", body))
	rec := httptest.NewRecorder()

	r.handleEvent(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, proc.events, 1)
	assert.Equal(t, 7, proc.events[0].PRNumber)
}

func TestHandleEventDropsOtherEventTypes(t *testing.T) {
	proc := &recordingProcessor{}
	r := newTestReceiver(proc)

	body, _ := json.Marshal(Event{Type: "push", ReviewState: "changes_requested"})
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, sign("topsecret", body))
	rec := httptest.NewRecorder()

	r.handleEvent(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, proc.events)
}

func TestHandleEventDropsNonChangesRequestedState(t *testing.T) {
	proc := &recordingProcessor{}
	r := newTestReceiver(proc)

	body, _ := json.Marshal(Event{Type: "review", ReviewState: "approved"})
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, sign("topsecret", body))
	rec := httptest.NewRecorder()

	r.handleEvent(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, proc.events)
}

func TestHandleEventEnforcesPayloadSizeLimit(t *testing.T) {
	proc := &recordingProcessor{}
	r := newTestReceiver(proc)

	oversized := bytes.Repeat([]byte("a"), MaxPayloadBytes+10)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(oversized))
	req.Header.Set(SignatureHeader, sign("topsecret", oversized))
	rec := httptest.NewRecorder()

	r.handleEvent(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRateLimiterAllowsUpToLimitPerWindow(t *testing.T) {
	fixed := time.Now()
	limiter := newRateLimiter(2, time.Minute)
	limiter.now = func() time.Time { return fixed }

	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())

	limiter.now = func() time.Time { return fixed.Add(2 * time.Minute) }
	assert.True(t, limiter.Allow())
}

func TestHandleHealthDefaultsToHealthyOnly(t *testing.T) {
	r := newTestReceiver(&recordingProcessor{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	r.handleHealth(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Healthy)
	assert.Empty(t, status.Provider)
}

func TestHandleHealthIncludesModelPairing(t *testing.T) {
	health := func() (string, string, bool) { return "anthropic", "claude", true }
	r := NewReceiver(Config{Secret: "s", Addr: "127.0.0.1:0"}, &recordingProcessor{}, health, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.handleHealth(rec, req)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "anthropic", status.Provider)
	assert.Equal(t, "claude", status.Model)
}
