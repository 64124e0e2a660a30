// Package state implements the Workflow State Store (§4.2): the public
// session-state document read by the status line and AI session.
package state

import "time"

// Supervisor is the daemon's high-level activity state.
type Supervisor string

const (
	SupervisorWatching    Supervisor = "watching"
	SupervisorIntervening Supervisor = "intervening"
	SupervisorIdle        Supervisor = "idle"
)

// TddPhase is one of the TDD cycle phases, or empty when none is active.
type TddPhase string

const (
	TddPhaseRed      TddPhase = "red"
	TddPhaseGreen    TddPhase = "green"
	TddPhaseRefactor TddPhase = "refactor"
)

// Severity is an issue's urgency.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ActiveAgent describes the agent currently executing a task.
type ActiveAgent struct {
	Type      string    `json:"type"`
	Task      string    `json:"task"`
	StartedAt time.Time `json:"startedAt"`
}

// Issue is a single reported problem surfaced to the state document.
type Issue struct {
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Document is the full public state document (§3). Extension is additive:
// Extra holds any keys not modeled explicitly so mutators never clobber
// unrelated data written by other components.
type Document struct {
	Supervisor      Supervisor      `json:"supervisor,omitempty"`
	ActiveStep      string          `json:"activeStep,omitempty"`
	TddPhase        TddPhase        `json:"tddPhase,omitempty"`
	TddPhaseStarted *time.Time      `json:"tddPhaseStarted,omitempty"`
	ActiveAgent     *ActiveAgent    `json:"activeAgent,omitempty"`
	Progress        float64         `json:"progress,omitempty"`
	Message         string          `json:"message,omitempty"`
	Issue           *Issue          `json:"issue,omitempty"`
	DaemonHeartbeat *time.Time      `json:"daemonHeartbeat,omitempty"`
	Extra           map[string]any  `json:"-"`
}
