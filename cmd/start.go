package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oss-dev/supervisor/internal/agents"
	"github.com/oss-dev/supervisor/internal/config"
	"github.com/oss-dev/supervisor/internal/daemon"
	"github.com/oss-dev/supervisor/internal/git"
	"github.com/oss-dev/supervisor/internal/log"
	"github.com/oss-dev/supervisor/internal/metrics"
	"github.com/oss-dev/supervisor/internal/modelrouting"
	"github.com/oss-dev/supervisor/internal/monitors"
	"github.com/oss-dev/supervisor/internal/paths"
	"github.com/oss-dev/supervisor/internal/queue"
	"github.com/oss-dev/supervisor/internal/state"
	"github.com/oss-dev/supervisor/internal/tracing"
	"github.com/oss-dev/supervisor/internal/watcher"
	"github.com/oss-dev/supervisor/internal/webhook"
	"github.com/oss-dev/supervisor/internal/workflowengine"
)

var (
	daemonizeFlag bool
	dryRunFlag    bool
)

func init() {
	startCmd.Flags().BoolVar(&daemonizeFlag, "daemonize", false, "detach into the background after startup")
	startCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "start all monitors; tasks are still queued but never executed")
	rootCmd.AddCommand(startCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the supervisor daemon",
	RunE:  runStart,
}

// staleThreshold is how long a TDD phase may sit unchanged before the TDD
// monitor reports it stale (§4.4).
const staleThreshold = 20 * time.Minute

func runStart(c *cobra.Command, args []string) error {
	userRoot, err := paths.UserRoot()
	if err != nil {
		return fmt.Errorf("resolving user root: %w", err)
	}
	if err := paths.EnsureDir(userRoot); err != nil {
		return fmt.Errorf("creating user root: %w", err)
	}

	cleanup, err := initLogging(userRoot)
	if err != nil {
		return err
	}
	defer cleanup()

	if daemonizeFlag {
		return daemonizeSelf()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, teardown, err := wireDaemon(ctx, userRoot)
	if err != nil {
		return err
	}
	defer teardown(ctx)

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}

	<-ctx.Done()
	log.Daemon("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.Stop(stopCtx)
}

// daemonizeSelf re-execs the current binary without --daemonize, detached
// from the controlling terminal, and returns immediately once the child has
// written its PID file.
func daemonizeSelf() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable: %w", err)
	}

	childArgs := make([]string, 0, len(os.Args))
	for _, a := range os.Args[1:] {
		if a != "--daemonize" {
			childArgs = append(childArgs, a)
		}
	}

	cmd := exec.Command(exe, childArgs...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawning detached daemon: %w", err)
	}

	userRoot, err := paths.UserRoot()
	if err != nil {
		return fmt.Errorf("resolving user root: %w", err)
	}
	pidPath := paths.In(userRoot, "daemon.pid")
	for i := 0; i < 100; i++ {
		if pid, ok := daemon.ReadPID(pidPath); ok && pid == cmd.Process.Pid {
			fmt.Printf("supervisord started (pid %d)\n", cmd.Process.Pid)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("detached daemon (pid %d) did not write its pid file within 10s", cmd.Process.Pid)
}

// wireDaemon constructs every SPEC_FULL.md component and returns a ready-to-Start
// Daemon plus a teardown func that releases the webhook listener and agent
// registry in reverse dependency order.
func wireDaemon(ctx context.Context, userRoot string) (*daemon.Daemon, func(context.Context), error) {
	v := config.NewViper()
	projectRoot := paths.ProjectRoot("")
	cfg, err := config.Load(v, cfgFile, projectRoot, userRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.Validate(&cfg); err != nil {
		return nil, nil, err
	}

	tracerProvider, err := tracing.NewProvider(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Exporter:    cfg.Tracing.Exporter,
		SampleRate:  cfg.Tracing.SampleRate,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initializing tracing: %w", err)
	}

	stateStore := state.New(paths.In(userRoot, "state.json"))

	recorder := metrics.New()
	if cfg.Metrics.Enabled {
		if err := recorder.Serve(ctx, fmt.Sprintf("127.0.0.1:%d", cfg.Metrics.Port)); err != nil {
			return nil, nil, fmt.Errorf("starting metrics server: %w", err)
		}
	}

	depthListener := queueDepthListener{recorder: recorder}
	qm := queue.New(queue.Paths{
		Queue:   paths.In(userRoot, "queue.json"),
		Failed:  paths.In(userRoot, "failed.json"),
		Expired: paths.In(userRoot, "expired.json"),
	}, queue.WithListeners(depthListener))
	if dryRunFlag {
		log.Info(log.CatQueue, "dry-run: monitors active and tasks are queued, but queued tasks are not executed")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("resolving working directory: %w", err)
	}
	gitExecutor := git.NewRealExecutor(cwd)

	gitMonitor := monitors.NewGitMonitor(gitExecutor, qm, monitors.RunGHPRChecks)
	tddMonitor := monitors.NewTddMonitor(stateStore, staleThreshold)
	ironLawMonitor := monitors.NewIronLawMonitor(qm)
	logMonitor := monitors.NewLogMonitor(qm)
	testMonitor := monitors.NewTestMonitor(qm, parseGoTestOutput)

	daemonMonitors := []daemon.Monitor{gitMonitor, tddMonitor, ironLawMonitor, testMonitor}
	specMonitor, err := discoverSpecMonitor(cwd, qm)
	if err != nil {
		log.ErrorErr(log.CatMonitor, "failed to build spec drift monitor", err)
	} else if specMonitor != nil {
		daemonMonitors = append(daemonMonitors, specMonitor)
	}

	d := daemon.New(daemon.Config{
		PIDFilePath:    paths.In(userRoot, "daemon.pid"),
		CheckInterval:  time.Duration(cfg.Daemon.CheckIntervalMs) * time.Millisecond,
		MonitorTimeout: time.Duration(cfg.Daemon.ShellTimeoutMs) * time.Millisecond,
		Monitors:       daemonMonitors,
		State:          stateStore,
		Tracer:         tracerProvider.Tracer(),
		Metrics:        recorder,
	})

	processMonitor := monitors.NewProcessMonitor(cfg.Daemon.ProcessFilter)
	resourceMonitor := monitors.NewResourceMonitor(sampleHostUsage)
	hungKiller := monitors.NewHungProcessKiller()
	healthScheduler := monitors.NewHealthCheckScheduler(cfg.Daemon.HealthCheckCommand, paths.In(userRoot, "health-check.log"))
	stopTickers := startSideMonitors(ctx, processMonitor, resourceMonitor, hungKiller, healthScheduler)

	logWatcher, err := watcher.New(watcher.DefaultConfig(paths.In(userRoot, "session.log")))
	if err != nil {
		return nil, nil, fmt.Errorf("building log watcher: %w", err)
	}
	changes, err := logWatcher.Start()
	if err != nil {
		return nil, nil, fmt.Errorf("starting log watcher: %w", err)
	}
	go feedLogMonitors(ctx, changes, paths.In(userRoot, "session.log"), logMonitor, ironLawMonitor)

	registry := agents.NewRegistry()
	prMonitor := agents.NewPRMonitor(agents.NewGHForgeClient(), qm, paths.In(userRoot, "pr-monitor-state.json"))
	registry.Register(prMonitor)
	if err := registry.StartAll(ctx, 30*time.Second); err != nil {
		log.ErrorErr(log.CatAgent, "failed to start background agents", err)
	}
	go watchAgentHealth(ctx, registry, recorder)

	userModels := func(kind config.Kind, name string) (string, bool) {
		var table map[string]string
		switch kind {
		case config.KindCommand:
			table = cfg.Models.Commands
		case config.KindAgent:
			table = cfg.Models.Agents
		case config.KindSkill:
			table = cfg.Models.Skills
		case config.KindHook:
			table = cfg.Models.Hooks
		}
		id, ok := table[name]
		return id, ok
	}
	resolver := config.NewResolver(userModels, cfg.Models.Default)

	var notifier modelrouting.Notifier
	if sn := modelrouting.NewSlackNotifier(cfg.Slack.Token, cfg.Slack.Channel); sn != nil {
		notifier = sn
	}
	proxy := modelrouting.NewProxy()
	executor := modelrouting.NewExecutor(newCLINativeClient(cfg), proxy, notifier, cfg.Models.FallbackEnabled)

	invoker := func(ctx context.Context, agentCmd string) error {
		model := resolver.Resolve(config.KindAgent, agentCmd, config.Overrides{})
		_, err := executor.Execute(ctx, modelrouting.Request{Model: model})
		if err != nil {
			log.ErrorErr(log.CatWorkflowEngine, "agent invocation failed", err, "agent", agentCmd)
		}
		return err
	}

	var customExec workflowengine.CustomCommandExecutor
	if cfg.Workflow.CustomCommandBaseURL != "" {
		customExec = workflowengine.NewHTTPCustomCommandExecutor(cfg.Workflow.CustomCommandBaseURL, invoker)
	}
	engine := workflowengine.NewEngine(invoker, customExec)

	prExecutor := agents.NewPRTaskExecutor(gitExecutor, fixerFromExecutor(executor, resolver), []agents.QualityGate{newTestQualityGate(testMonitor)}, 3)
	stopConsumer := runTaskConsumer(ctx, qm, prExecutor, engine, cwd, dryRunFlag)

	var receiver *webhook.Receiver
	if cfg.Webhook.Enabled {
		forgeClient := agents.NewGHForgeClient()
		health := func() (string, string, bool) {
			model := resolver.Resolve(config.KindCommand, "webhook-health", config.Overrides{})
			provider, err := modelrouting.ParseProvider(model)
			if err != nil {
				return "", "", false
			}
			return provider, model, true
		}
		receiver = webhook.NewReceiver(webhook.Config{
			Secret:       cfg.Webhook.Secret,
			EventType:    cfg.Webhook.EventType,
			RateLimitRPM: cfg.Webhook.RateLimitRPM,
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Webhook.Port),
		}, newWebhookProcessor(qm, forgeClient), health, tracerProvider.Tracer(), recorder)
		if err := receiver.Start(ctx); err != nil {
			return nil, nil, fmt.Errorf("starting webhook receiver: %w", err)
		}
	}

	teardown := func(ctx context.Context) {
		if receiver != nil {
			_ = receiver.Stop(ctx)
		}
		stopConsumer()
		if err := registry.StopAll(ctx); err != nil {
			log.ErrorErr(log.CatAgent, "failed to stop background agents", err)
		}
		_ = logWatcher.Stop()
		stopTickers()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.ErrorErr(log.CatDaemon, "failed to shut down tracer provider", err)
		}
	}

	return d, teardown, nil
}
