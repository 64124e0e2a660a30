// Package config provides configuration types, defaults, loading, and
// precedence resolution for the supervisor daemon.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// WebhookConfig configures the signed GitHub event receiver (§4.7).
type WebhookConfig struct {
	Enabled      bool   `mapstructure:"enabled" json:"enabled"`
	Secret       string `mapstructure:"secret" json:"secret"`
	Port         int    `mapstructure:"port" json:"port" validate:"omitempty,min=1,max=65535"`
	EventType    string `mapstructure:"eventType" json:"eventType"`
	RateLimitRPM int    `mapstructure:"rateLimitRpm" json:"rateLimitRpm" validate:"min=1"`
}

// ModelsConfig holds the static model-routing config layer (the "project
// config" / "user config" rungs of the five-level precedence chain; CLI and
// frontmatter overrides are supplied at call time, see Resolver).
type ModelsConfig struct {
	Default         string            `mapstructure:"default" json:"default"`
	Commands        map[string]string `mapstructure:"commands" json:"commands"`
	Agents          map[string]string `mapstructure:"agents" json:"agents"`
	Skills          map[string]string `mapstructure:"skills" json:"skills"`
	Hooks           map[string]string `mapstructure:"hooks" json:"hooks"`
	FallbackEnabled bool              `mapstructure:"fallbackEnabled" json:"fallbackEnabled"`
	// CLIPath is the coding-agent CLI invoked for the native (non-proxy)
	// execution path, e.g. "claude".
	CLIPath string `mapstructure:"cliPath" json:"cliPath"`
}

// DaemonConfig configures the tick loop and monitor thresholds.
type DaemonConfig struct {
	CheckIntervalMs    int    `mapstructure:"checkIntervalMs" json:"checkIntervalMs" validate:"min=100"`
	ShellTimeoutMs     int    `mapstructure:"shellTimeoutMs" json:"shellTimeoutMs" validate:"min=100"`
	HealthCheckCommand string `mapstructure:"healthCheckCommand" json:"healthCheckCommand"`
	ProcessFilter      string `mapstructure:"processFilter" json:"processFilter"`
}

// SlackConfig configures the optional notify_suggest/notify_only
// intervention delivery channel. Empty Token or Channel disables it; the
// notifier falls back to log-only delivery.
type SlackConfig struct {
	Token   string `mapstructure:"token" json:"token"`
	Channel string `mapstructure:"channel" json:"channel"`
}

// MetricsConfig configures the internal Prometheus /metrics endpoint.
// Disabled by default; when enabled it binds loopback-only, like the
// webhook receiver.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	Port    int  `mapstructure:"port" json:"port" validate:"omitempty,min=1,max=65535"`
}

// WorkflowConfig configures the optional Custom Command Executor (§4.9):
// team-prefixed chain commands have their prompt fetched from this base URL
// and then run through the injected Invoker. Empty CustomCommandBaseURL
// disables custom-command resolution entirely.
type WorkflowConfig struct {
	CustomCommandBaseURL string `mapstructure:"customCommandBaseUrl" json:"customCommandBaseUrl" validate:"omitempty,url"`
}

// TracingConfig configures OpenTelemetry span export for the daemon tick
// loop and webhook receiver.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" json:"enabled"`
	Exporter    string  `mapstructure:"exporter" json:"exporter" validate:"omitempty,oneof=none stdout"`
	SampleRate  float64 `mapstructure:"sampleRate" json:"sampleRate" validate:"omitempty,min=0,max=1"`
	ServiceName string  `mapstructure:"serviceName" json:"serviceName"`
}

// Config is the root configuration document. It is stored as config.json per
// the filesystem layout table and loaded through viper (see Load): values in
// the chosen config file override the built-in defaults; environment
// variables and CLI flags are not bound.
type Config struct {
	APIKey   string         `mapstructure:"apiKey" json:"apiKey"`
	APIURL   string         `mapstructure:"apiUrl" json:"apiUrl" validate:"omitempty,url"`
	Webhook  WebhookConfig  `mapstructure:"webhook" json:"webhook"`
	Models   ModelsConfig   `mapstructure:"models" json:"models"`
	Daemon   DaemonConfig   `mapstructure:"daemon" json:"daemon"`
	Slack    SlackConfig    `mapstructure:"slack" json:"slack"`
	Tracing  TracingConfig  `mapstructure:"tracing" json:"tracing"`
	Metrics  MetricsConfig  `mapstructure:"metrics" json:"metrics"`
	Workflow WorkflowConfig `mapstructure:"workflow" json:"workflow"`
}

// Defaults returns the built-in configuration used to seed a fresh config
// file and as the fallback rung of the precedence chain.
func Defaults() Config {
	return Config{
		APIURL: "https://api.anthropic.com",
		Webhook: WebhookConfig{
			Enabled:      false,
			EventType:    "review",
			RateLimitRPM: 10,
		},
		Models: ModelsConfig{
			Default:         "default",
			Commands:        map[string]string{},
			Agents:          map[string]string{},
			Skills:          map[string]string{},
			Hooks:           map[string]string{},
			FallbackEnabled: true,
			CLIPath:         "claude",
		},
		Daemon: DaemonConfig{
			CheckIntervalMs:    5000,
			ShellTimeoutMs:     5000,
			HealthCheckCommand: "true",
			ProcessFilter:      "node",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "none",
			SampleRate:  1.0,
			ServiceName: "supervisord",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

var validate = validator.New()

// Validate checks the config's well-formedness. It does not check that
// required API keys are present; that check is contextual and performed by
// the model router at execution time (UserConfigError, see §7).
func Validate(c *Config) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// ResolveAPIKey applies the environment-variable override documented in §6:
// provider API keys set in the environment override stored keys.
func ResolveAPIKey(c *Config, envVar string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}

	return c.APIKey
}
