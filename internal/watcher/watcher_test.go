package watcher_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oss-dev/supervisor/internal/watcher"
)

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "session.log")
	err := os.WriteFile(target, []byte("test"), 0644)
	require.NoError(t, err, "failed to create test file")

	w, err := watcher.New(watcher.Config{
		Paths:       []string{target},
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")

	// Rapid writes should coalesce into single notification
	for i := 0; i < 10; i++ {
		err := os.WriteFile(target, []byte(fmt.Sprintf("test%d", i)), 0644)
		require.NoError(t, err, "failed to write file")
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-onChange:
		// Expected
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected notification but got timeout")
	}

	select {
	case <-onChange:
		t.Fatal("unexpected second notification")
	case <-time.After(100 * time.Millisecond):
		// Expected - no second notification
	}
}

func TestWatcher_IgnoresIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "session.log")
	otherPath := filepath.Join(dir, "other.txt")
	err := os.WriteFile(target, []byte("log"), 0644)
	require.NoError(t, err, "failed to create target file")
	err = os.WriteFile(otherPath, []byte("initial"), 0644)
	require.NoError(t, err, "failed to create other file")

	w, err := watcher.New(watcher.Config{
		Paths:       []string{target},
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")

	err = os.WriteFile(otherPath, []byte("other content"), 0644)
	require.NoError(t, err, "failed to write other file")

	select {
	case <-onChange:
		t.Fatal("should not notify for unrelated files")
	case <-time.After(100 * time.Millisecond):
		// Expected - no notification for unrelated file
	}
}

func TestWatcher_Stop(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "session.log")
	err := os.WriteFile(target, []byte("test"), 0644)
	require.NoError(t, err, "failed to create test file")

	w, err := watcher.New(watcher.Config{
		Paths:       []string{target},
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")

	_, err = w.Start()
	require.NoError(t, err, "failed to start watcher")

	done := make(chan struct{})
	go func() {
		err := w.Stop()
		assert.NoError(t, err, "Stop returned error")
		close(done)
	}()

	select {
	case <-done:
		// Expected - stop completed successfully
	case <-time.After(1 * time.Second):
		t.Fatal("Stop() timed out - possible deadlock")
	}
}

func TestWatcher_WatchesMultipleTargetsInSameDir(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "session.log")
	specPath := filepath.Join(dir, "spec.md")

	err := os.WriteFile(logPath, []byte("log"), 0644)
	require.NoError(t, err, "failed to create log file")

	w, err := watcher.New(watcher.Config{
		Paths:       []string{logPath, specPath},
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")

	err = os.WriteFile(specPath, []byte("spec content"), 0644)
	require.NoError(t, err, "failed to write spec file")

	select {
	case <-onChange:
		// Expected - write to a second watched target notifies
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected notification for spec.md write")
	}
}

func TestDefaultConfig(t *testing.T) {
	target := "/test/session.log"
	cfg := watcher.DefaultConfig(target)

	assert.Equal(t, []string{target}, cfg.Paths)
	assert.Equal(t, 100*time.Millisecond, cfg.DebounceDur)
}
