// Package modelrouting implements the Model Routing Core (§4.8): routing a
// unit of work to a model id, dispatching it natively or through a local
// proxy, and translating between the canonical (Anthropic-shaped) wire
// dialect and OpenAI/Gemini equivalents.
package modelrouting

import (
	"errors"
	"regexp"
)

// modelIDPattern bounds valid model identifiers: provider/model or a bare
// model name, word characters, dots, dashes, colons and slashes only.
var modelIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:/-]+$`)

// supportedProviders mirrors the provider API keys recognized by config
// resolution (§6's environment variables): openrouter, openai, gemini, plus
// the native claude/default path.
var supportedProviders = map[string]bool{
	"openrouter": true,
	"openai":     true,
	"gemini":     true,
}

// ErrUnsupportedProvider is returned by ParseProvider for a provider
// segment not in supportedProviders.
var ErrUnsupportedProvider = errors.New("modelrouting: unsupported provider")

// ParseProvider extracts and validates the provider segment of a model id
// (Property 10). A bare model name (no "/") or "default"/"claude" resolves
// to the native "claude" provider.
func ParseProvider(id string) (string, error) {
	if id == "" {
		return "", ErrUnsupportedProvider
	}

	provider := providerOf(id)
	if provider == "" || provider == "claude" || id == "default" {
		return "claude", nil
	}

	model := id[len(provider)+1:]
	if model == "" || !supportedProviders[provider] {
		return "", ErrUnsupportedProvider
	}

	return provider, nil
}

// IsValidModelID reports whether id is both syntactically valid and
// resolves to a supported provider (§4.8, Property 10).
func IsValidModelID(id string) bool {
	if id == "" || !modelIDPattern.MatchString(id) {
		return false
	}
	_, err := ParseProvider(id)
	return err == nil
}

// Dialect distinguishes a model API's request/response wire shape.
type Dialect string

const (
	DialectAnthropic Dialect = "anthropic" // the canonical dialect
	DialectOpenAI    Dialect = "openai"
	DialectGemini    Dialect = "gemini"
)

// ToolUse is the canonical representation of a model invoking a tool.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

// ContentBlock is one unit of a canonical message's content: either text or
// a tool invocation.
type ContentBlock struct {
	Type string // "text" | "tool_use" | "tool_result"
	Text string
	Tool *ToolUse
}

// Message is the canonical (Anthropic-shaped) chat message.
type Message struct {
	Role    string
	Content []ContentBlock
}

// Request is the canonical request to /v1/messages.
type Request struct {
	Model     string
	Messages  []Message
	MaxTokens int
	Stream    bool
	// Extra carries provider-specific fields a transformer doesn't
	// recognize; they are dropped silently on cross-dialect translation
	// rather than propagated (§4.8).
	Extra map[string]any
}

// Response is the canonical response from /v1/messages.
type Response struct {
	Model   string
	Content []ContentBlock
	Stop    string
}

// StreamChunk is one partial event of a streamed response.
type StreamChunk struct {
	Delta   string
	ToolUse *ToolUse
	Done    bool
}
