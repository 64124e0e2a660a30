package modelrouting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyStartStopReleasesPort(t *testing.T) {
	p := NewProxy()
	require.NoError(t, p.Start(context.Background()))
	require.True(t, p.waitForReady(time.Second))
	assert.NotEmpty(t, p.Addr())

	require.NoError(t, p.Stop(context.Background()))
	assert.False(t, p.Running())
}

func TestProxyDispatchRoutesByProvider(t *testing.T) {
	p := NewProxy()
	p.Register(DialectOpenAI, NewOpenAITransformer(), okProxyClient{})

	resp, err := p.Dispatch(context.Background(), Request{Model: "openai/gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "remote", resp.Model)
}

func TestProxyDispatchUnknownProvider(t *testing.T) {
	p := NewProxy()
	_, err := p.Dispatch(context.Background(), Request{Model: "gemini/gemini-1.5"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
