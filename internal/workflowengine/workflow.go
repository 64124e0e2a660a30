// Package workflowengine executes a declarative WorkflowConfig as an
// ordered chain of commands and agent spawns, with conditional steps and a
// final checkpoint (§4.9).
package workflowengine

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/oss-dev/supervisor/internal/log"
)

// Checkpoint distinguishes whether a completed chain hands control back to
// a human or proceeds automatically.
type Checkpoint string

const (
	CheckpointHuman Checkpoint = "human"
	CheckpointAuto  Checkpoint = "auto"
)

// ChainStep is one item in a WorkflowConfig's chains_to list.
type ChainStep struct {
	Command   string
	Always    bool
	Condition string
}

// AgentStep is one item in a WorkflowConfig's agents list.
type AgentStep struct {
	Agent     string
	Always    bool
	Condition string
}

// QualityGates configures the optional gate run at the end of a chain.
type QualityGates struct {
	Parallel    bool
	Agents      []string
	AllMustPass bool
}

// TddPhase is one item of task_loop.
type TddPhase string

const (
	TddRed      TddPhase = "red"
	TddGreen    TddPhase = "green"
	TddRefactor TddPhase = "refactor"
)

// WorkflowConfig is the declarative chain definition (§3).
type WorkflowConfig struct {
	ChainsTo     []ChainStep
	TaskLoop     []TddPhase
	Agents       []AgentStep
	QualityGates *QualityGates
	Checkpoint   Checkpoint
}

// WorkflowContext is the evaluation context for built-in conditions.
type WorkflowContext struct {
	DesignContent  string
	ChangedFiles   []string
	LastTestResult string // "pass" | "fail" | ""
}

// Status is the terminal status of a chain run.
type Status string

const (
	StatusCompleted  Status = "completed"
	StatusCheckpoint Status = "checkpoint"
	StatusError      Status = "error"
)

// Result is the outcome of running a WorkflowConfig's chain.
type Result struct {
	Status   Status
	Message  string
	Error    string
	Warnings []string
	Invoked  []string
}

// Invoker executes a resolved command, e.g. by driving the AI session.
type Invoker func(ctx context.Context, command string) error

// CustomCommandExecutor resolves a team-prefixed command marker into a
// prompt via HTTP fetch (§4.9).
type CustomCommandExecutor interface {
	// IsCustomCommand reports whether command carries a team-prefix
	// marker this executor should resolve.
	IsCustomCommand(command string) bool
	// Resolve fetches the prompt for command and runs it. isBlocking
	// controls whether a failure here stops the chain.
	Resolve(ctx context.Context, command string) (isBlocking bool, err error)
}

// Engine runs WorkflowConfig chains against an injected Invoker and an
// optional CustomCommandExecutor.
type Engine struct {
	invoker Invoker
	custom  CustomCommandExecutor
}

// NewEngine builds an Engine.
func NewEngine(invoker Invoker, custom CustomCommandExecutor) *Engine {
	return &Engine{invoker: invoker, custom: custom}
}

// Run executes cfg's chain against ctxInput, per §4.9's five-step
// procedure, then applies the checkpoint.
func (e *Engine) Run(ctx context.Context, cfg WorkflowConfig, ctxInput WorkflowContext) Result {
	var warnings []string
	var invoked []string

	for _, step := range cfg.ChainsTo {
		if !shouldExecute(step.Always, step.Condition, ctxInput) {
			log.Info(log.CatWorkflowEngine, "[skip] "+step.Command)
			continue
		}

		if e.custom != nil && e.custom.IsCustomCommand(step.Command) {
			isBlocking, err := e.custom.Resolve(ctx, step.Command)
			if err != nil {
				if isBlocking {
					return Result{Status: StatusError, Error: err.Error(), Warnings: warnings, Invoked: invoked}
				}
				warnings = append(warnings, fmt.Sprintf("%s: %v", step.Command, err))
				continue
			}
			invoked = append(invoked, step.Command)
			continue
		}

		if err := e.invoker(ctx, step.Command); err != nil {
			return Result{Status: StatusError, Error: err.Error(), Warnings: warnings, Invoked: invoked}
		}
		invoked = append(invoked, step.Command)
	}

	agentResults := e.SpawnAgents(ctx, cfg.Agents, ctxInput, false)
	for _, r := range agentResults {
		if r.Skipped {
			log.Info(log.CatWorkflowEngine, "[skip] "+r.Agent)
			continue
		}
		invoked = append(invoked, r.Agent)
		if r.Err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", r.Agent, r.Err))
		}
	}

	if cfg.QualityGates != nil {
		gateResults := e.runQualityGates(ctx, *cfg.QualityGates)
		for _, r := range gateResults {
			if r.Err != nil {
				warnings = append(warnings, fmt.Sprintf("gate %s: %v", r.Agent, r.Err))
				if cfg.QualityGates.AllMustPass {
					return Result{Status: StatusError, Error: fmt.Sprintf("quality gate %s failed: %v", r.Agent, r.Err), Warnings: warnings, Invoked: invoked}
				}
			}
		}
	}

	if cfg.Checkpoint == CheckpointHuman {
		return Result{Status: StatusCheckpoint, Message: "awaiting human checkpoint", Warnings: warnings, Invoked: invoked}
	}
	return Result{Status: StatusCompleted, Warnings: warnings, Invoked: invoked}
}

// AgentResult is one agent's outcome from SpawnAgents. Skipped is true when
// the step's condition evaluated false; Err is nil on success.
type AgentResult struct {
	Agent   string
	Skipped bool
	Err     error
}

// SpawnAgents runs steps either sequentially or in parallel, always
// collecting every result: an individual agent's failure never prevents the
// others from running or being reported (§4.9).
func (e *Engine) SpawnAgents(ctx context.Context, steps []AgentStep, ctxInput WorkflowContext, parallel bool) []AgentResult {
	results := make([]AgentResult, len(steps))

	run := func(i int) {
		step := steps[i]
		if !shouldExecute(step.Always, step.Condition, ctxInput) {
			results[i] = AgentResult{Agent: step.Agent, Skipped: true}
			return
		}
		results[i] = AgentResult{Agent: step.Agent, Err: e.invoker(ctx, step.Agent)}
	}

	if !parallel {
		for i := range steps {
			run(i)
		}
		return results
	}

	var wg sync.WaitGroup
	for i := range steps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			run(i)
		}(i)
	}
	wg.Wait()
	return results
}

// runQualityGates invokes cfg.Agents through SpawnAgents, honoring
// cfg.Parallel, and reports every gate's outcome.
func (e *Engine) runQualityGates(ctx context.Context, cfg QualityGates) []AgentResult {
	steps := make([]AgentStep, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		steps = append(steps, AgentStep{Agent: a, Always: true})
	}
	return e.SpawnAgents(ctx, steps, WorkflowContext{}, cfg.Parallel)
}

func shouldExecute(always bool, condition string, ctxInput WorkflowContext) bool {
	if always {
		return true
	}
	return EvaluateCondition(condition, ctxInput)
}

var workPatterns = map[string]*patternSet{
	"has_api_work":  newPatternSet(`\bapi\b`, `\bendpoint`, `\brest\b`, `\bgraphql\b`),
	"has_db_work":   newPatternSet(`\bdatabase\b`, `\bschema\b`, `\bmigration\b`, `\bsql\b`),
	"has_ui_work":   newPatternSet(`\bui\b`, `\bcomponent\b`, `\bfrontend\b`, `\bcss\b`),
	"has_cli_work":  newPatternSet(`\bcli\b`, `\bcommand\b`, `\bflag\b`),
	"has_auth_work": newPatternSet(`\bauth\b`, `\blogin\b`, `\bpermission\b`, `\btoken\b`),
}

// EvaluateCondition evaluates a named built-in condition against ctxInput;
// unknown conditions default to false, conservatively (§4.9).
func EvaluateCondition(condition string, ctxInput WorkflowContext) bool {
	switch condition {
	case "always":
		return true
	case "never":
		return false
	case "has_test_failures":
		return ctxInput.LastTestResult == "fail"
	}

	if set, ok := workPatterns[condition]; ok {
		return set.matches(ctxInput.DesignContent) || set.matchesAny(ctxInput.ChangedFiles)
	}

	return false
}

type patternSet struct {
	patterns []*regexp.Regexp
}

func newPatternSet(patterns ...string) *patternSet {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile("(?i)"+p))
	}
	return &patternSet{patterns: compiled}
}

func (p *patternSet) matches(text string) bool {
	for _, pat := range p.patterns {
		if pat.MatchString(text) {
			return true
		}
	}
	return false
}

func (p *patternSet) matchesAny(texts []string) bool {
	for _, t := range texts {
		if p.matches(t) {
			return true
		}
	}
	return false
}
