package modelrouting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTransformersEncodeRequest: every provider transformer encodes a
// canonical text request into a non-empty wire map without error.
func TestTransformersEncodeRequest(t *testing.T) {
	for _, tr := range []Transformer{NewOpenAITransformer(), NewGeminiTransformer()} {
		req := Request{
			Model:     "some-model",
			Messages:  []Message{{Role: "user", Content: []ContentBlock{{Type: "text", Text: "hello"}}}},
			MaxTokens: 100,
		}
		wire, err := tr.EncodeRequest(req)
		require.NoError(t, err, tr.Dialect())
		assert.NotEmpty(t, wire, tr.Dialect())
	}
}

func TestOpenAITransformerDecodeResponse(t *testing.T) {
	tr := NewOpenAITransformer()
	wire := map[string]any{
		"model": "gpt-4o",
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message": map[string]any{
					"content": "hi there",
				},
			},
		},
	}

	resp, err := tr.DecodeResponse(wire)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", resp.Model)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "hi there", resp.Content[0].Text)
	assert.Equal(t, "stop", resp.Stop)
}

func TestOpenAITransformerDecodesToolCall(t *testing.T) {
	tr := NewOpenAITransformer()
	wire := map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{
					"function_call": map[string]any{
						"name":      "search",
						"arguments": map[string]any{"query": "go"},
					},
				},
			},
		},
	}

	resp, err := tr.DecodeResponse(wire)
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "tool_use", resp.Content[0].Type)
	assert.Equal(t, "search", resp.Content[0].Tool.Name)
}

func TestGeminiTransformerDecodeResponse(t *testing.T) {
	tr := NewGeminiTransformer()
	wire := map[string]any{
		"candidates": []any{
			map[string]any{
				"finishReason": "STOP",
				"content": map[string]any{
					"parts": []any{map[string]any{"text": "bonjour"}},
				},
			},
		},
	}

	resp, err := tr.DecodeResponse(wire)
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "bonjour", resp.Content[0].Text)
}

func TestStreamBufferAccumulatesUntilDone(t *testing.T) {
	buf := NewStreamBuffer()

	_, ok := buf.Feed(StreamChunk{Delta: "hel"})
	assert.False(t, ok)

	_, ok = buf.Feed(StreamChunk{Delta: "lo"})
	assert.False(t, ok)

	out, ok := buf.Feed(StreamChunk{Delta: "!", Done: true})
	require.True(t, ok)
	assert.Equal(t, "hello!", out.Delta)
}

func TestStreamBufferToolUseIsImmediateEvent(t *testing.T) {
	buf := NewStreamBuffer()
	out, ok := buf.Feed(StreamChunk{ToolUse: &ToolUse{Name: "search"}})
	require.True(t, ok)
	assert.Equal(t, "search", out.ToolUse.Name)
}
