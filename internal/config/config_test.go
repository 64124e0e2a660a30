package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	d := Defaults()
	require.NoError(t, Validate(&d))
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Defaults()
	cfg.APIKey = "sk-test"
	cfg.Webhook.Secret = "s3cr3t"

	require.NoError(t, Save(path, cfg))

	v := NewViper()
	loaded, err := Load(v, path, dir, dir)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", loaded.APIKey)
	assert.Equal(t, "s3cr3t", loaded.Webhook.Secret)
	assert.Equal(t, cfg.Daemon.CheckIntervalMs, loaded.Daemon.CheckIntervalMs)
}

func TestLoadWritesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()

	v := NewViper()
	loaded, err := Load(v, "", dir, dir)
	require.NoError(t, err)
	assert.Equal(t, Defaults().APIURL, loaded.APIURL)

	_, err = os.Stat(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
}

func TestResolveAPIKeyEnvOverride(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	cfg := Config{APIKey: "stored-key"}
	assert.Equal(t, "env-key", ResolveAPIKey(&cfg, "OPENAI_API_KEY"))
}

func TestResolveAPIKeyFallsBackToStored(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := Config{APIKey: "stored-key"}
	assert.Equal(t, "stored-key", ResolveAPIKey(&cfg, "OPENAI_API_KEY"))
}
