package contracts_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dara-labs/control-plane/pkg/contracts"
)

func TestParseSchemaAcceptsWellFormed(t *testing.T) {
	raw := []byte(`{
		"name": "Draft Email + Schedule Follow-up",
		"steps": [
			{"type": "agent_step", "name": "draft_email", "artifact": "draft_email.txt"},
			{"type": "approval_gate", "action_type": "approve_email_send"},
			{"type": "tool_step", "tool_name": "send_email", "write": true, "artifact": "email_payload.json"}
		]
	}`)

	ws, err := contracts.ParseSchema(raw)
	require.NoError(t, err)
	assert.Equal(t, "Draft Email + Schedule Follow-up", ws.Name)
	require.Len(t, ws.Steps, 3)
	assert.Equal(t, contracts.StepApprovalGate, ws.Steps[1].Type)
	assert.True(t, ws.Steps[2].Write)
}

func TestParseSchemaRejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{"name": `},
		{"unknown step type", `{"name":"x","steps":[{"type":"teleport_step"}]}`},
		{"unknown field", `{"name":"x","steps":[{"type":"agent_step","surprise":true}]}`},
		{"tool step without tool_name", `{"name":"x","steps":[{"type":"tool_step"}]}`},
		{"empty steps", `{"name":"x","steps":[]}`},
		{"missing name", `{"steps":[{"type":"agent_step"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := contracts.ParseSchema([]byte(tc.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, contracts.ErrValidation), "expected validation error, got %v", err)
		})
	}
}

func TestEncodeSchemaRoundTrip(t *testing.T) {
	ws := &contracts.WorkflowSchema{
		Name: "Shell",
		Steps: []contracts.Step{
			{Type: contracts.StepTool, ToolName: contracts.ShellTool, Command: "echo 'a > b'", Artifact: "out.txt"},
		},
	}
	encoded, err := contracts.EncodeSchema(ws)
	require.NoError(t, err)
	// No HTML escaping of the shell command.
	assert.Contains(t, encoded, "echo 'a > b'")

	parsed, err := contracts.ParseSchema([]byte(encoded))
	require.NoError(t, err)
	assert.Equal(t, ws.Steps[0].Command, parsed.Steps[0].Command)
}

func TestStepGated(t *testing.T) {
	assert.True(t, contracts.Step{Type: contracts.StepApprovalGate}.Gated())
	assert.True(t, contracts.Step{Type: contracts.StepTool, ToolName: "send_email", Write: true}.Gated())
	assert.False(t, contracts.Step{Type: contracts.StepTool, ToolName: contracts.ShellTool}.Gated())
	assert.False(t, contracts.Step{Type: contracts.StepAgent}.Gated())
	assert.False(t, contracts.Step{Type: contracts.StepHTTP}.Gated())
}

func TestStepGateAction(t *testing.T) {
	assert.Equal(t, "approve_email_send",
		contracts.Step{Type: contracts.StepApprovalGate, ActionType: "approve_email_send"}.GateAction())
	assert.Equal(t, "approval", contracts.Step{Type: contracts.StepApprovalGate}.GateAction())
	assert.Equal(t, "send_email",
		contracts.Step{Type: contracts.StepTool, ToolName: "send_email", Write: true}.GateAction())
}

func TestStepArtifactNameDefaults(t *testing.T) {
	assert.Equal(t, "custom.txt", contracts.Step{Type: contracts.StepAgent, Artifact: "custom.txt"}.ArtifactName())
	assert.Equal(t, "draft.txt", contracts.Step{Type: contracts.StepAgent}.ArtifactName())
	assert.Equal(t, "tool_output.json", contracts.Step{Type: contracts.StepTool, ToolName: "t"}.ArtifactName())
	assert.Equal(t, "http_response.txt", contracts.Step{Type: contracts.StepHTTP}.ArtifactName())
}

func TestRunStatusTerminal(t *testing.T) {
	assert.False(t, contracts.RunRunning.Terminal())
	assert.False(t, contracts.RunWaitingApproval.Terminal())
	assert.True(t, contracts.RunCompleted.Terminal())
	assert.True(t, contracts.RunRejected.Terminal())
	assert.True(t, contracts.RunFailed.Terminal())
}
