package engine

import (
	"context"

	"github.com/dara-labs/control-plane/pkg/contracts"
	"github.com/dara-labs/control-plane/pkg/store"
)

// defaultWorkflows returns the built-in workflow catalog. The secretary
// workflow exercises every gated path; the smoke workflow runs three
// ungated shell tools.
func defaultWorkflows() []contracts.Workflow {
	now := contracts.NowUTC()
	return []contracts.Workflow{
		{
			ID:   "secretary-default",
			Name: "Draft Email + Schedule Follow-up",
			Schema: contracts.WorkflowSchema{
				Name: "Draft Email + Schedule Follow-up",
				Steps: []contracts.Step{
					{Type: contracts.StepAgent, Name: "draft_email", Artifact: "draft_email.txt"},
					{Type: contracts.StepApprovalGate, ActionType: "approve_email_send"},
					{Type: contracts.StepTool, ToolName: "send_email", Write: true, Artifact: "email_payload.json"},
					{Type: contracts.StepTool, ToolName: "create_calendar_event", Write: true, Artifact: "calendar_payload.json"},
				},
			},
			CreatedAt: now,
		},
		{
			ID:   "agent0-smoke",
			Name: "Agent 0 Smoke Test",
			Schema: contracts.WorkflowSchema{
				Name: "Agent 0 Smoke Test",
				Steps: []contracts.Step{
					{Type: contracts.StepTool, ToolName: contracts.ShellTool, Command: "node -v", Artifact: "node_version.txt"},
					{Type: contracts.StepTool, ToolName: contracts.ShellTool, Command: "python --version", Artifact: "python_version.txt"},
					{Type: contracts.StepTool, ToolName: contracts.ShellTool, Command: "echo 'smoke ok' > smoke.txt", Artifact: "smoke.txt"},
				},
			},
			CreatedAt: now,
		},
	}
}

// SeedWorkflows inserts the built-in workflows plus any operator-defined
// extras, validating each schema first. Seeding is idempotent: existing
// rows are never overwritten, so the catalog is immutable once created.
func (e *Engine) SeedWorkflows(ctx context.Context, extras []contracts.Workflow) error {
	workflows := append(defaultWorkflows(), extras...)
	for i := range workflows {
		if err := workflows[i].Schema.Validate(); err != nil {
			return err
		}
	}
	return e.store.Tx(ctx, func(tx *store.Tx) error {
		for i := range workflows {
			if err := tx.SeedWorkflow(&workflows[i]); err != nil {
				return err
			}
		}
		return nil
	})
}
