package modelrouting

// Transformer translates a canonical Request/Response to and from a
// provider-specific wire shape, represented here as a generic map so each
// concrete transformer owns its own field names (§4.8).
type Transformer interface {
	Dialect() Dialect
	EncodeRequest(req Request) (map[string]any, error)
	DecodeResponse(wire map[string]any) (Response, error)
	DecodeStreamChunk(wire map[string]any) (StreamChunk, error)
}

// openAITransformer translates canonical <-> OpenAI chat-completions shape.
// Tool-use blocks become OpenAI "function calls"; unrecognized canonical
// fields are dropped.
type openAITransformer struct{}

// NewOpenAITransformer builds the canonical<->OpenAI transformer.
func NewOpenAITransformer() Transformer { return openAITransformer{} }

func (openAITransformer) Dialect() Dialect { return DialectOpenAI }

func (openAITransformer) EncodeRequest(req Request) (map[string]any, error) {
	messages := make([]map[string]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, map[string]any{
			"role":    m.Role,
			"content": flattenText(m.Content),
		})
	}

	wire := map[string]any{
		"model":      req.Model,
		"messages":   messages,
		"max_tokens": req.MaxTokens,
		"stream":     req.Stream,
	}

	for _, block := range flattenToolUses(req.Messages) {
		functions, _ := wire["functions"].([]map[string]any)
		functions = append(functions, map[string]any{
			"name":      block.Name,
			"arguments": block.Input,
		})
		wire["functions"] = functions
	}

	return wire, nil
}

func (openAITransformer) DecodeResponse(wire map[string]any) (Response, error) {
	resp := Response{Model: stringField(wire, "model")}

	choices, _ := wire["choices"].([]any)
	for _, c := range choices {
		choice, ok := c.(map[string]any)
		if !ok {
			continue
		}
		message, _ := choice["message"].(map[string]any)
		if text := stringField(message, "content"); text != "" {
			resp.Content = append(resp.Content, ContentBlock{Type: "text", Text: text})
		}
		if call, ok := message["function_call"].(map[string]any); ok {
			args, _ := call["arguments"].(map[string]any)
			resp.Content = append(resp.Content, ContentBlock{
				Type: "tool_use",
				Tool: &ToolUse{Name: stringField(call, "name"), Input: args},
			})
		}
		resp.Stop = stringField(choice, "finish_reason")
	}

	return resp, nil
}

func (openAITransformer) DecodeStreamChunk(wire map[string]any) (StreamChunk, error) {
	choices, _ := wire["choices"].([]any)
	if len(choices) == 0 {
		return StreamChunk{Done: true}, nil
	}
	choice, _ := choices[0].(map[string]any)
	delta, _ := choice["delta"].(map[string]any)
	return StreamChunk{
		Delta: stringField(delta, "content"),
		Done:  stringField(choice, "finish_reason") != "",
	}, nil
}

// geminiTransformer translates canonical <-> Gemini generateContent shape.
type geminiTransformer struct{}

// NewGeminiTransformer builds the canonical<->Gemini transformer.
func NewGeminiTransformer() Transformer { return geminiTransformer{} }

func (geminiTransformer) Dialect() Dialect { return DialectGemini }

func (geminiTransformer) EncodeRequest(req Request) (map[string]any, error) {
	contents := make([]map[string]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		contents = append(contents, map[string]any{
			"role":  geminiRole(m.Role),
			"parts": []map[string]any{{"text": flattenText(m.Content)}},
		})
	}

	return map[string]any{
		"contents": contents,
		"generationConfig": map[string]any{
			"maxOutputTokens": req.MaxTokens,
		},
	}, nil
}

func (geminiTransformer) DecodeResponse(wire map[string]any) (Response, error) {
	resp := Response{Model: stringField(wire, "modelVersion")}

	candidates, _ := wire["candidates"].([]any)
	for _, c := range candidates {
		candidate, ok := c.(map[string]any)
		if !ok {
			continue
		}
		content, _ := candidate["content"].(map[string]any)
		parts, _ := content["parts"].([]any)
		for _, p := range parts {
			part, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if text := stringField(part, "text"); text != "" {
				resp.Content = append(resp.Content, ContentBlock{Type: "text", Text: text})
			}
			if call, ok := part["functionCall"].(map[string]any); ok {
				args, _ := call["args"].(map[string]any)
				resp.Content = append(resp.Content, ContentBlock{
					Type: "tool_use",
					Tool: &ToolUse{Name: stringField(call, "name"), Input: args},
				})
			}
		}
		resp.Stop = stringField(candidate, "finishReason")
	}

	return resp, nil
}

func (geminiTransformer) DecodeStreamChunk(wire map[string]any) (StreamChunk, error) {
	candidates, _ := wire["candidates"].([]any)
	if len(candidates) == 0 {
		return StreamChunk{Done: true}, nil
	}
	candidate, _ := candidates[0].(map[string]any)
	content, _ := candidate["content"].(map[string]any)
	parts, _ := content["parts"].([]any)
	var text string
	if len(parts) > 0 {
		if part, ok := parts[0].(map[string]any); ok {
			text = stringField(part, "text")
		}
	}
	return StreamChunk{
		Delta: text,
		Done:  stringField(candidate, "finishReason") != "",
	}, nil
}

func geminiRole(role string) string {
	if role == "assistant" {
		return "model"
	}
	return "user"
}

func flattenText(blocks []ContentBlock) string {
	var out string
	for _, b := range blocks {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

func flattenToolUses(messages []Message) []*ToolUse {
	var out []*ToolUse
	for _, m := range messages {
		for _, b := range m.Content {
			if b.Type == "tool_use" && b.Tool != nil {
				out = append(out, b.Tool)
			}
		}
	}
	return out
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
