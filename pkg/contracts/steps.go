package contracts

import "fmt"

// StepType tags the step variant.
type StepType string

const (
	StepAgent        StepType = "agent_step"
	StepApprovalGate StepType = "approval_gate"
	StepTool         StepType = "tool_step"
	StepHTTP         StepType = "http_step"
)

// ShellTool is the tool name routed to the local shell instead of the
// connector service.
const ShellTool = "shell_command"

// Step is one tagged operation in a workflow schema. Exactly one of the
// four StepType variants; the fields that apply depend on the tag.
type Step struct {
	Type       StepType `json:"type"`
	Name       string   `json:"name,omitempty"`
	ActionType string   `json:"action_type,omitempty"`
	ToolName   string   `json:"tool_name,omitempty"`
	Write      bool     `json:"write,omitempty"`
	Command    string   `json:"command,omitempty"`
	Artifact   string   `json:"artifact,omitempty"`
}

// Validate rejects unknown tags and variant-specific omissions. Runs at
// workflow-load time so the interpreter never sees a malformed step.
func (s Step) Validate() error {
	switch s.Type {
	case StepAgent, StepHTTP:
		return nil
	case StepApprovalGate:
		return nil
	case StepTool:
		if s.ToolName == "" {
			return fmt.Errorf("%w: tool_step requires tool_name", ErrValidation)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown step type %q", ErrValidation, s.Type)
	}
}

// Gated reports whether executing the step requires a prior human approval.
func (s Step) Gated() bool {
	return s.Type == StepApprovalGate || (s.Type == StepTool && s.Write)
}

// GateAction is the action_type recorded on the approval row for the step.
func (s Step) GateAction() string {
	switch s.Type {
	case StepApprovalGate:
		if s.ActionType == "" {
			return "approval"
		}
		return s.ActionType
	case StepTool:
		if s.ToolName == "" {
			return "tool"
		}
		return s.ToolName
	default:
		return ""
	}
}

// ArtifactName returns the artifact filename, defaulted per step kind.
func (s Step) ArtifactName() string {
	if s.Artifact != "" {
		return s.Artifact
	}
	switch s.Type {
	case StepAgent:
		return "draft.txt"
	case StepTool:
		return "tool_output.json"
	case StepHTTP:
		return "http_response.txt"
	default:
		return ""
	}
}

// Validate checks the schema document: a name and at least a well-formed
// step list. Approval gates alone are permitted; an empty step list is not.
func (w WorkflowSchema) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("%w: workflow schema requires a name", ErrValidation)
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("%w: workflow schema requires at least one step", ErrValidation)
	}
	for i, step := range w.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}
