// Package cmd implements the supervisor CLI: start/stop/status/install
// subcommands wired to the daemon core, queue manager, state store,
// monitors, agent registry, webhook receiver, and model router (§6).
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	viperlib "github.com/spf13/viper"

	"github.com/oss-dev/supervisor/internal/config"
	"github.com/oss-dev/supervisor/internal/log"
	"github.com/oss-dev/supervisor/internal/paths"
)

var (
	version   = "dev"
	cfgFile   string
	cfg       config.Config
	debugFlag bool

	// viper uses "::" as its key delimiter instead of "." so dotted model
	// identifiers (openrouter/anthropic/claude-3) are never mistaken for
	// nested config paths.
	viper = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:     "supervisord",
	Short:   "A developer-workflow supervisor daemon",
	Long:    `Watches an AI coding session, detects anomalies, and drives interventions through a persistent task queue.`,
	Version: version,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .oss/config.json, falling back to ~/.oss/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"enable debug logging (also: OSS_DEBUG=1)")
}

func initConfig() {
	userRoot, err := paths.UserRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolving user root: %v\n", err)
		userRoot = ".oss"
	}
	projectRoot := paths.ProjectRoot("")

	if err := paths.EnsureDir(userRoot); err != nil {
		fmt.Fprintf(os.Stderr, "creating user root: %v\n", err)
	}

	loaded, err := config.Load(viper, cfgFile, projectRoot, userRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		loaded = config.Defaults()
	}
	cfg = loaded
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string, called from main with ldflags.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// isDebug reports whether debug logging was requested via flag or
// environment variable.
func isDebug() bool {
	return debugFlag || os.Getenv("OSS_DEBUG") != ""
}

// initLogging wires up the structured logger against root's daemon
// directory and returns a cleanup func. Logging is always-on (the daemon
// always needs an audit trail); debug mode only changes verbosity.
func initLogging(root string) (func(), error) {
	logPath := filepath.Join(root, "daemon.log")
	cleanup, err := log.Init(logPath)
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	if isDebug() {
		log.SetMinLevel(log.LevelDebug)
		log.Info(log.CatConfig, "debug logging enabled")
	} else {
		log.SetMinLevel(log.LevelInfo)
	}
	return cleanup, nil
}
