package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oss-dev/supervisor/internal/agents"
	"github.com/oss-dev/supervisor/internal/config"
	"github.com/oss-dev/supervisor/internal/log"
	"github.com/oss-dev/supervisor/internal/metrics"
	"github.com/oss-dev/supervisor/internal/modelrouting"
	"github.com/oss-dev/supervisor/internal/monitors"
	"github.com/oss-dev/supervisor/internal/queue"
	"github.com/oss-dev/supervisor/internal/webhook"
	"github.com/oss-dev/supervisor/internal/workflowengine"
)

// queueDepthListener forwards every queue mutation's pending count to the
// metrics recorder's gauge, avoiding a separate polling loop over the
// Queue Manager.
type queueDepthListener struct {
	recorder *metrics.Recorder
}

func (l queueDepthListener) OnQueueEvent(evt queue.Event) {
	l.recorder.SetQueueDepth(evt.PendingCount)
}

// watchAgentHealth drains the Agent Registry's health-event broker for
// ctx's lifetime, reflecting each transition into the agent-health gauge.
func watchAgentHealth(ctx context.Context, registry *agents.Registry, recorder *metrics.Recorder) {
	for ev := range registry.Subscribe(ctx) {
		recorder.SetAgentHealthy(ev.Payload.Agent, ev.Payload.Type == agents.HealthEventHealthy)
	}
}

// specFileCandidates lists the spec document names the Spec Drift Monitor
// looks for at the project root, in order.
var specFileCandidates = []string{"SPEC_FULL.md", "SPEC.md", "spec.md"}

// discoverSpecMonitor looks for a spec document at projectRoot and, if
// found, builds a SpecMonitor from it plus the project's .go implementation
// and test files. It returns (nil, nil) when no spec document is present:
// the Spec Drift Monitor (§4.4) is optional, not every project ships one.
func discoverSpecMonitor(projectRoot string, qm *queue.Manager) (*monitors.SpecMonitor, error) {
	var specPath string
	for _, name := range specFileCandidates {
		candidate := filepath.Join(projectRoot, name)
		if _, err := os.Stat(candidate); err == nil {
			specPath = candidate
			break
		}
	}
	if specPath == "" {
		return nil, nil
	}

	doc, err := os.ReadFile(specPath) //nolint:gosec // G304: path built from operator-controlled candidates
	if err != nil {
		return nil, fmt.Errorf("reading spec document %s: %w", specPath, err)
	}
	sections := monitors.ParseSpecMarkdown(string(doc))

	var implFiles, testFileContents []string
	walkErr := filepath.WalkDir(projectRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "_examples" || d.Name() == "vendor" || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".go") {
			return nil
		}

		stem := strings.TrimSuffix(d.Name(), ".go")
		if strings.HasSuffix(stem, "_test") {
			content, err := os.ReadFile(path) //nolint:gosec // G304: path from filepath.WalkDir over the project tree
			if err != nil {
				return err
			}
			testFileContents = append(testFileContents, string(content))
			return nil
		}

		implFiles = append(implFiles, stem)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walking project tree for spec monitor: %w", walkErr)
	}

	return monitors.NewSpecMonitor(filepath.Base(projectRoot), sections, implFiles, testFileContents, qm), nil
}

// newTestQualityGate builds a QualityGate that runs the project's test
// suite and feeds its output to testMonitor, so the PR Task Executor's
// pre-push gate and the Test Pass Rate Monitor (§4.4) observe the same run
// instead of executing `go test` twice.
func newTestQualityGate(testMonitor *monitors.TestMonitor) agents.QualityGate {
	return agents.QualityGate{
		Name: "go test",
		Run: func(ctx context.Context) error {
			cmd := exec.CommandContext(ctx, "go", "test", "-v", "./...")
			output, runErr := cmd.CombinedOutput()

			if ingestErr := testMonitor.IngestOutput(string(output)); ingestErr != nil {
				log.ErrorErr(log.CatMonitor, "test monitor ingest failed", ingestErr)
			}

			if runErr != nil {
				return fmt.Errorf("go test failed: %w\n%s", runErr, output)
			}
			return nil
		},
	}
}

// startSideMonitors drives the monitors that do not implement daemon.Monitor
// on their own tickers: process listing, resource sampling, hung-process
// cleanup, and the health-check scheduler (§4.4). It returns a cancel func
// that stops all of them.
func startSideMonitors(ctx context.Context, pm *monitors.ProcessMonitor, rm *monitors.ResourceMonitor, killer *monitors.HungProcessKiller, health *monitors.HealthCheckScheduler) func() {
	sideCtx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-sideCtx.Done():
				return
			case <-ticker.C:
				procs, err := pm.List()
				if err != nil {
					log.ErrorErr(log.CatMonitor, "process listing failed", err)
					continue
				}
				for _, p := range procs {
					killer.Kill(p, false)
				}
			}
		}
	}()

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-sideCtx.Done():
				return
			case <-ticker.C:
				usage, err := rm.Sample()
				if err != nil {
					log.ErrorErr(log.CatMonitor, "resource sampling failed", err)
					continue
				}
				alerts := monitors.CheckThresholds(usage, monitors.Thresholds{MemoryPercent: 90, CPUPercent: 90})
				for _, a := range alerts {
					log.Warn(log.CatMonitor, fmt.Sprintf("resource threshold breached: %s at %.1f (limit %.1f)", a.Resource, a.Value, a.Limit))
				}
			}
		}
	}()

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sideCtx.Done():
				return
			case <-ticker.C:
				health.Run(sideCtx)
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

// sampleHostUsage reads instantaneous memory and CPU utilization from
// /proc. There is no third-party sysinfo library in this module's
// dependency set, so this stays on the standard library plus /proc parsing,
// in keeping with the rest of the monitors package's direct-exec style
// (e.g. ProcessMonitor's `ps aux`).
func sampleHostUsage() (monitors.Usage, error) {
	mem, err := memoryPercent()
	if err != nil {
		return monitors.Usage{}, err
	}
	cpu, err := loadAvgAsCPUPercent()
	if err != nil {
		return monitors.Usage{}, err
	}
	return monitors.Usage{MemoryPercent: mem, CPUPercent: cpu}, nil
}

func memoryPercent() (float64, error) {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0, err
	}

	var total, available float64
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total, _ = strconv.ParseFloat(fields[1], 64)
		case "MemAvailable:":
			available, _ = strconv.ParseFloat(fields[1], 64)
		}
	}
	if total == 0 {
		return 0, fmt.Errorf("sampling memory usage: MemTotal not found in /proc/meminfo")
	}
	return (total - available) / total * 100, nil
}

func loadAvgAsCPUPercent() (float64, error) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, fmt.Errorf("sampling cpu usage: empty /proc/loadavg")
	}
	load1, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, err
	}
	cores := float64(max(1, countCPUs()))
	percent := load1 / cores * 100
	if percent > 100 {
		percent = 100
	}
	return percent, nil
}

func countCPUs() int {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return 1
	}
	n := strings.Count(string(data), "processor\t:")
	if n == 0 {
		return 1
	}
	return n
}

var (
	goTestFailPattern = regexp.MustCompile(`^--- FAIL: \S+ \(`)
	goTestPassPattern = regexp.MustCompile(`^--- PASS: \S+ \(`)
	goTestPkgPattern  = regexp.MustCompile(`^(ok|FAIL)\s+(\S+)\s`)
)

// parseGoTestOutput parses `go test -v` output into one TestResult per
// package, counting top-level `--- PASS`/`--- FAIL` lines (indented subtest
// lines are not counted). A package's test lines precede its `ok`/`FAIL`
// summary line, so counts are held until that summary line names the package.
func parseGoTestOutput(output string) ([]monitors.TestResult, error) {
	results := make(map[string]*monitors.TestResult)
	order := make([]string, 0)
	pendingPassed, pendingFailed := 0, 0

	ensure := func(pkg string) *monitors.TestResult {
		if _, ok := results[pkg]; !ok {
			results[pkg] = &monitors.TestResult{Feature: pkg}
			order = append(order, pkg)
		}
		return results[pkg]
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case goTestFailPattern.MatchString(line):
			pendingFailed++
		case goTestPassPattern.MatchString(line):
			pendingPassed++
		default:
			if m := goTestPkgPattern.FindStringSubmatch(line); m != nil {
				r := ensure(m[2])
				r.Passed += pendingPassed
				r.Failed += pendingFailed
				r.Total += pendingPassed + pendingFailed
				pendingPassed, pendingFailed = 0, 0
			}
		}
	}

	out := make([]monitors.TestResult, 0, len(order))
	for _, pkg := range order {
		out = append(out, *results[pkg])
	}
	return out, nil
}

// feedLogMonitors tails logPath, forwarding each newly appended line to
// every interested monitor whenever the watcher signals a change.
func feedLogMonitors(ctx context.Context, changes <-chan struct{}, logPath string, logMonitor *monitors.LogMonitor, ironLaw *monitors.IronLawMonitor) {
	var offset int64

	readNew := func() {
		f, err := os.Open(logPath)
		if err != nil {
			return
		}
		defer f.Close()

		if _, err := f.Seek(offset, 0); err != nil {
			return
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if err := logMonitor.IngestLine(line); err != nil {
				log.ErrorErr(log.CatMonitor, "log monitor ingest failed", err)
			}
			if err := ironLaw.IngestLine(line); err != nil {
				log.ErrorErr(log.CatMonitor, "iron law monitor ingest failed", err)
			}
		}
		if pos, err := f.Seek(0, 1); err == nil {
			offset = pos
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			readNew()
		}
	}
}

// cliNativeClient implements modelrouting.NativeClient by shelling out to
// the configured coding-agent CLI in non-interactive mode and wrapping its
// stdout as a single text content block.
type cliNativeClient struct {
	path string
}

func newCLINativeClient(cfg config.Config) *cliNativeClient {
	return &cliNativeClient{path: cfg.Models.CLIPath}
}

func (c *cliNativeClient) Execute(ctx context.Context, req modelrouting.Request) (modelrouting.Response, error) {
	prompt := flattenMessages(req.Messages)

	cmd := exec.CommandContext(ctx, c.path, "-p", prompt) //nolint:gosec // G204: path is operator-configured, not user input
	out, err := cmd.Output()
	if err != nil {
		return modelrouting.Response{}, fmt.Errorf("invoking native cli %s: %w", c.path, err)
	}

	return modelrouting.Response{
		Model:   req.Model,
		Content: []modelrouting.ContentBlock{{Type: "text", Text: string(out)}},
		Stop:    "end_turn",
	}, nil
}

func flattenMessages(messages []modelrouting.Message) string {
	var b strings.Builder
	for _, m := range messages {
		for _, block := range m.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// webhookProcessor adapts a change-requested review Event into the same
// queue-remediation shape PRMonitor.Poll produces for a polled comment,
// satisfying webhook.Processor without duplicating PRMonitor's internal
// dedup/ack loop (the webhook path is a push shortcut to the same queue,
// not a replacement poller).
type webhookProcessor struct {
	queue  *queue.Manager
	client agents.ForgeClient
}

func newWebhookProcessor(q *queue.Manager, client agents.ForgeClient) *webhookProcessor {
	return &webhookProcessor{queue: q, client: client}
}

func (p *webhookProcessor) ProcessWebhookEvent(ctx context.Context, event webhook.Event) error {
	if !agents.IsChangeRequest(event.Body) {
		return nil
	}

	suggested := agents.SuggestAgent(event.Body)
	if _, err := p.queue.Add(queue.AddInput{
		Priority:       queue.PriorityHigh,
		Source:         "webhook",
		AnomalyType:    "pr_remediation",
		Prompt:         fmt.Sprintf("PR #%d review comment requests changes: %s", event.PRNumber, event.Body),
		SuggestedAgent: suggested,
		Context: map[string]any{
			"prNumber":       event.PRNumber,
			"commentId":      event.CommentID,
			"commentBody":    event.Body,
			"suggestedAgent": suggested,
		},
	}); err != nil {
		return err
	}

	if p.client == nil || event.CommentID == "" {
		return nil
	}
	return p.client.ReplyToComment(ctx, event.PRNumber, event.CommentID, "Acknowledged, queuing a fix.")
}

// fixerFromExecutor builds a PRTaskExecutor Fixer that drives the task's
// prompt through the Model Routing Core and takes the first line of its
// response as the commit message. The model id is resolved through the
// five-level precedence chain (§4.8) keyed by the task's anomaly type.
func fixerFromExecutor(executor *modelrouting.Executor, resolver *config.Resolver) agents.Fixer {
	return func(ctx context.Context, task queue.Task) (string, error) {
		model := resolver.Resolve(config.KindCommand, task.AnomalyType, config.Overrides{})
		resp, err := executor.Execute(ctx, modelrouting.Request{
			Model: model,
			Messages: []modelrouting.Message{
				{Role: "user", Content: []modelrouting.ContentBlock{{Type: "text", Text: task.Prompt}}},
			},
		})
		if err != nil {
			return "", err
		}

		var text string
		for _, block := range resp.Content {
			if block.Type == "text" && block.Text != "" {
				text = block.Text
				break
			}
		}
		if text == "" {
			text = fmt.Sprintf("fix: %s", task.AnomalyType)
		}
		if line, _, ok := strings.Cut(text, "\n"); ok {
			text = line
		}
		return text, nil
	}
}

// workflowConfigPath returns the path a declarative chain file for
// anomalyType would live at, under <projectRoot>/.supervisor/workflows/.
func workflowConfigPath(projectRoot, anomalyType string) string {
	return filepath.Join(projectRoot, ".supervisor", "workflows", anomalyType+".yaml")
}

// resolveWorkflowConfig loads a declarative chain file for task's anomaly
// type if the project defines one, falling back to a single-agent chain
// running the monitor's suggested agent when it doesn't (§4.9).
func resolveWorkflowConfig(projectRoot string, task queue.Task) workflowengine.WorkflowConfig {
	path := workflowConfigPath(projectRoot, task.AnomalyType)
	if _, err := os.Stat(path); err == nil {
		cfg, err := workflowengine.LoadWorkflowConfig(path)
		if err == nil {
			return cfg
		}
		log.ErrorErr(log.CatWorkflowEngine, "failed to load declarative workflow config, falling back to single-agent chain", err, "path", path)
	}

	return workflowengine.WorkflowConfig{
		Agents: []workflowengine.AgentStep{{Agent: task.SuggestedAgent, Always: true}},
	}
}

// runTaskConsumer polls the queue for pending work. pr_remediation tasks go
// through prExecutor's fix/verify/push cycle; every other anomaly type
// chains through the workflow engine, using a declarative chain file for
// its anomaly type if the project defines one, or its suggested agent as
// the sole step otherwise. dryRun logs the decision without mutating the
// queue.
func runTaskConsumer(ctx context.Context, qm *queue.Manager, prExecutor *agents.PRTaskExecutor, engine *workflowengine.Engine, projectRoot string, dryRun bool) func() {
	consumerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-consumerCtx.Done():
				return
			case <-ticker.C:
				task, ok, err := qm.NextPending()
				if err != nil {
					log.ErrorErr(log.CatQueue, "failed to read next pending task", err)
					continue
				}
				if !ok {
					continue
				}
				if dryRun {
					log.Info(log.CatQueue, "dry-run: would execute task", "task", task.ID)
					continue
				}

				if task.AnomalyType == "pr_remediation" {
					recordPRResult(qm, task, prExecutor.Execute(consumerCtx, task))
					continue
				}
				recordWorkflowResult(qm, task, engine.Run(consumerCtx, resolveWorkflowConfig(projectRoot, task), workflowengine.WorkflowContext{}))
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func recordPRResult(qm *queue.Manager, task queue.Task, result agents.Result) {
	status := queue.StatusCompleted
	errMsg := ""
	if !result.Success {
		status = queue.StatusFailed
		if result.Err != nil {
			errMsg = result.Err.Error()
		}
	}
	if _, err := qm.Update(task.ID, queue.Patch{Status: &status, Error: &errMsg}); err != nil {
		log.ErrorErr(log.CatQueue, "failed to record task result", err, "task", task.ID)
	}
}

func recordWorkflowResult(qm *queue.Manager, task queue.Task, result workflowengine.Result) {
	status := queue.StatusCompleted
	if result.Status == workflowengine.StatusError {
		status = queue.StatusFailed
	}
	errMsg := result.Error
	if _, err := qm.Update(task.ID, queue.Patch{Status: &status, Error: &errMsg}); err != nil {
		log.ErrorErr(log.CatQueue, "failed to record task result", err, "task", task.ID)
	}
}
