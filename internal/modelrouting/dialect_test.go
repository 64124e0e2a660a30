package modelrouting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidModelID(t *testing.T) {
	assert.True(t, IsValidModelID("default"))
	assert.True(t, IsValidModelID("claude"))
	assert.True(t, IsValidModelID("openai/gpt-4o"))
	assert.True(t, IsValidModelID("gemini/gemini-1.5-pro"))
	assert.False(t, IsValidModelID(""))
	assert.False(t, IsValidModelID("bad model; rm -rf"))
}

// TestProperty10ModelIDParsing: parseProvider(id) is a supported provider
// or claude; isValidModelId(id) is true; a malformed id fails both.
func TestProperty10ModelIDParsing(t *testing.T) {
	valid := []string{"default", "claude", "openai/gpt-4o", "gemini/gemini-1.5-pro", "openrouter/anthropic/claude-3"}
	for _, id := range valid {
		assert.True(t, IsValidModelID(id), id)
		provider, err := ParseProvider(id)
		assert.NoError(t, err, id)
		assert.NotEmpty(t, provider, id)
	}

	malformed := []string{"openrouter/", "unknown/foo", ""}
	for _, id := range malformed {
		assert.False(t, IsValidModelID(id), id)
		_, err := ParseProvider(id)
		assert.Error(t, err, id)
	}
}
