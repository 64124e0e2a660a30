package modelrouting

import "strings"

// StreamBuffer accumulates StreamChunk deltas until a complete event (a
// chunk marked Done, or one carrying a tool invocation) can be emitted,
// per §4.8's "streaming buffers partial chunks until a complete event can
// be emitted."
type StreamBuffer struct {
	pending strings.Builder
}

// NewStreamBuffer builds an empty StreamBuffer.
func NewStreamBuffer() *StreamBuffer { return &StreamBuffer{} }

// Feed accumulates chunk and returns a complete StreamChunk once one is
// ready to emit, or ok=false if more input is needed.
func (b *StreamBuffer) Feed(chunk StreamChunk) (out StreamChunk, ok bool) {
	if chunk.ToolUse != nil {
		// A tool invocation is always a complete event on its own; any
		// accumulated text is flushed first by the caller via Flush.
		return chunk, true
	}

	b.pending.WriteString(chunk.Delta)

	if !chunk.Done {
		return StreamChunk{}, false
	}

	out = StreamChunk{Delta: b.pending.String(), Done: true}
	b.pending.Reset()
	return out, true
}

// Flush returns whatever text has accumulated without waiting for Done,
// used when a tool-use event preempts the in-progress text run.
func (b *StreamBuffer) Flush() (out StreamChunk, ok bool) {
	if b.pending.Len() == 0 {
		return StreamChunk{}, false
	}
	out = StreamChunk{Delta: b.pending.String()}
	b.pending.Reset()
	return out, true
}
