package monitors

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckRunRecordsResult(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "health-check.log")
	s := NewHealthCheckScheduler("echo ok", logPath)

	result := s.Run(context.Background())
	assert.True(t, result.Success)
	assert.Contains(t, result.Output, "ok")

	last, ok := s.LastResult()
	require.True(t, ok)
	assert.Equal(t, result.Timestamp, last.Timestamp)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "success=true")
}

func TestHealthCheckRunRecordsFailure(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "health-check.log")
	s := NewHealthCheckScheduler("exit 1", logPath)

	result := s.Run(context.Background())
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}
