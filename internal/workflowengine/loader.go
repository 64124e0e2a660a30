package workflowengine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlChainStep mirrors ChainStep's shape in a declarative chain file.
type yamlChainStep struct {
	Command   string `yaml:"command"`
	Always    bool   `yaml:"always"`
	Condition string `yaml:"condition"`
}

// yamlAgentStep mirrors AgentStep's shape in a declarative chain file.
type yamlAgentStep struct {
	Agent     string `yaml:"agent"`
	Always    bool   `yaml:"always"`
	Condition string `yaml:"condition"`
}

// yamlQualityGates mirrors QualityGates's shape in a declarative chain file.
type yamlQualityGates struct {
	Parallel    bool     `yaml:"parallel"`
	Agents      []string `yaml:"agents"`
	AllMustPass bool     `yaml:"allMustPass"`
}

// yamlWorkflowConfig is the on-disk shape of a WorkflowConfig declarative
// chain file (§3, §4.9).
type yamlWorkflowConfig struct {
	ChainsTo     []yamlChainStep   `yaml:"chainsTo"`
	TaskLoop     []string          `yaml:"taskLoop"`
	Agents       []yamlAgentStep   `yaml:"agents"`
	QualityGates *yamlQualityGates `yaml:"qualityGates"`
	Checkpoint   string            `yaml:"checkpoint"`
}

// LoadWorkflowConfig reads and parses a declarative chain file at path into
// a WorkflowConfig. Unknown task_loop phases are rejected; everything else
// mirrors the YAML document directly.
func LoadWorkflowConfig(path string) (WorkflowConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator-configured, not user input
	if err != nil {
		return WorkflowConfig{}, fmt.Errorf("reading workflow config %s: %w", path, err)
	}

	var doc yamlWorkflowConfig
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return WorkflowConfig{}, fmt.Errorf("parsing workflow config %s: %w", path, err)
	}

	cfg := WorkflowConfig{
		Checkpoint: Checkpoint(doc.Checkpoint),
	}

	for _, s := range doc.ChainsTo {
		cfg.ChainsTo = append(cfg.ChainsTo, ChainStep{Command: s.Command, Always: s.Always, Condition: s.Condition})
	}
	for _, s := range doc.Agents {
		cfg.Agents = append(cfg.Agents, AgentStep{Agent: s.Agent, Always: s.Always, Condition: s.Condition})
	}
	for _, phase := range doc.TaskLoop {
		p := TddPhase(phase)
		switch p {
		case TddRed, TddGreen, TddRefactor:
			cfg.TaskLoop = append(cfg.TaskLoop, p)
		default:
			return WorkflowConfig{}, fmt.Errorf("parsing workflow config %s: unknown task_loop phase %q", path, phase)
		}
	}
	if doc.QualityGates != nil {
		cfg.QualityGates = &QualityGates{
			Parallel:    doc.QualityGates.Parallel,
			Agents:      doc.QualityGates.Agents,
			AllMustPass: doc.QualityGates.AllMustPass,
		}
	}

	return cfg, nil
}
