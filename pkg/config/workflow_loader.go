package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dara-labs/control-plane/pkg/contracts"
)

// WorkflowDefinition is an operator-authored workflow file. Definitions are
// seeded at startup alongside the built-in workflows and never mutated
// afterwards.
type WorkflowDefinition struct {
	ID    string           `yaml:"id"`
	Name  string           `yaml:"name"`
	Steps []StepDefinition `yaml:"steps"`
}

// StepDefinition mirrors contracts.Step in YAML form.
type StepDefinition struct {
	Type       string `yaml:"type"`
	Name       string `yaml:"name,omitempty"`
	ActionType string `yaml:"action_type,omitempty"`
	ToolName   string `yaml:"tool_name,omitempty"`
	Write      bool   `yaml:"write,omitempty"`
	Command    string `yaml:"command,omitempty"`
	Artifact   string `yaml:"artifact,omitempty"`
}

// LoadWorkflowDefinitions reads every *.yaml / *.yml file in dir and
// converts it into a validated workflow. A missing or empty dir yields no
// definitions; a malformed file is an error, not a skip, because workflow
// schemas must be rejected at load time.
func LoadWorkflowDefinitions(dir string) ([]contracts.Workflow, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read workflows dir: %w", err)
	}

	var workflows []contracts.Workflow
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		wf, err := loadWorkflowFile(path)
		if err != nil {
			return nil, fmt.Errorf("workflow file %s: %w", entry.Name(), err)
		}
		workflows = append(workflows, *wf)
	}
	return workflows, nil
}

func loadWorkflowFile(path string) (*contracts.Workflow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var def WorkflowDefinition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrValidation, err)
	}
	if def.ID == "" {
		return nil, fmt.Errorf("%w: workflow definition requires an id", contracts.ErrValidation)
	}

	schema := contracts.WorkflowSchema{Name: def.Name}
	for _, s := range def.Steps {
		schema.Steps = append(schema.Steps, contracts.Step{
			Type:       contracts.StepType(s.Type),
			Name:       s.Name,
			ActionType: s.ActionType,
			ToolName:   s.ToolName,
			Write:      s.Write,
			Command:    s.Command,
			Artifact:   s.Artifact,
		})
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	return &contracts.Workflow{
		ID:        def.ID,
		Name:      schema.Name,
		Schema:    schema,
		CreatedAt: contracts.NowUTC(),
	}, nil
}
