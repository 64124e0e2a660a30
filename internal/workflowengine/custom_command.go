package workflowengine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// httpCustomCommandTimeout bounds each custom-command fetch.
const httpCustomCommandTimeout = 10 * time.Second

// Custom-command prefixes (§4.9): "team:" fetches are blocking (a failure
// stops the chain), "team-optional:" fetches are non-blocking (a failure
// becomes a warning).
const (
	teamPrefix         = "team:"
	teamOptionalPrefix = "team-optional:"
)

// maxCustomCommandBody bounds the fetched prompt body, matching the
// webhook receiver's payload ceiling (§4.7) rather than inventing a new
// constant for the same concern.
const maxCustomCommandBody = 1 << 20

// HTTPCustomCommandExecutor resolves team-prefixed chain commands by
// fetching their prompt from an HTTP endpoint under BaseURL and invoking it
// through Invoker. No retry-HTTP library exists anywhere in this module's
// dependency set, so this stays on net/http directly.
type HTTPCustomCommandExecutor struct {
	baseURL string
	client  *http.Client
	invoker Invoker
}

// NewHTTPCustomCommandExecutor builds an executor that fetches prompts from
// baseURL and runs them through invoker.
func NewHTTPCustomCommandExecutor(baseURL string, invoker Invoker) *HTTPCustomCommandExecutor {
	return &HTTPCustomCommandExecutor{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: httpCustomCommandTimeout},
		invoker: invoker,
	}
}

// IsCustomCommand reports whether command carries a team-prefix marker.
func (e *HTTPCustomCommandExecutor) IsCustomCommand(command string) bool {
	return strings.HasPrefix(command, teamPrefix) || strings.HasPrefix(command, teamOptionalPrefix)
}

// Resolve fetches the named command's prompt and runs it through the
// injected Invoker. isBlocking is true for the "team:" prefix, false for
// "team-optional:".
func (e *HTTPCustomCommandExecutor) Resolve(ctx context.Context, command string) (bool, error) {
	name, blocking := strings.CutPrefix(command, teamPrefix)
	if !blocking {
		name = strings.TrimPrefix(command, teamOptionalPrefix)
	}
	isBlocking := strings.HasPrefix(command, teamPrefix)

	prompt, err := e.fetchPrompt(ctx, name)
	if err != nil {
		return isBlocking, fmt.Errorf("fetching custom command %s: %w", name, err)
	}

	if err := e.invoker(ctx, prompt); err != nil {
		return isBlocking, fmt.Errorf("invoking custom command %s: %w", name, err)
	}
	return isBlocking, nil
}

func (e *HTTPCustomCommandExecutor) fetchPrompt(ctx context.Context, name string) (string, error) {
	url := e.baseURL + "/" + name

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCustomCommandBody+1))
	if err != nil {
		return "", err
	}
	if len(body) > maxCustomCommandBody {
		return "", fmt.Errorf("custom command response exceeds %d bytes", maxCustomCommandBody)
	}

	return string(body), nil
}
