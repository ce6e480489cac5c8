// Package engine owns the run state machine and the step interpreter.
// Runs execute synchronously on the caller's goroutine: CreateRun and
// Decide drive the interpreter until the run completes, fails, or
// suspends on an approval gate.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dara-labs/control-plane/pkg/canonical"
	"github.com/dara-labs/control-plane/pkg/contracts"
	"github.com/dara-labs/control-plane/pkg/redact"
	"github.com/dara-labs/control-plane/pkg/store"
)

// ToolInvoker calls a named tool on the external connector service.
type ToolInvoker interface {
	Invoke(ctx context.Context, toolName string, args map[string]any, runID string) (map[string]any, error)
}

// CompletionNotifier delivers the completion webhook for a finished run.
type CompletionNotifier interface {
	NotifyCompletion(ctx context.Context, runID string) error
}

// SecretSource supplies the plaintext secret set used to seed the
// redactor before any artifact reaches disk.
type SecretSource interface {
	Plaintexts(ctx context.Context) ([]string, error)
}

// Engine interprets workflow steps against the store. A nil secrets
// source means no vault is configured and artifacts are written with
// pattern redaction only; a nil notifier disables completion webhooks.
type Engine struct {
	store         *store.Store
	secrets       SecretSource
	tools         ToolInvoker
	notifier      CompletionNotifier
	artifactsRoot string
	logger        *slog.Logger
	tracer        trace.Tracer
}

// New wires the engine to its collaborators.
func New(st *store.Store, secrets SecretSource, tools ToolInvoker, notifier CompletionNotifier, artifactsRoot string) *Engine {
	return &Engine{
		store:         st,
		secrets:       secrets,
		tools:         tools,
		notifier:      notifier,
		artifactsRoot: artifactsRoot,
		logger:        slog.Default().With("component", "engine"),
		tracer:        otel.Tracer("control-plane/engine"),
	}
}

// ListWorkflows returns the seeded workflow catalog.
func (e *Engine) ListWorkflows(ctx context.Context) ([]contracts.Workflow, error) {
	return e.store.ListWorkflows(ctx)
}

// GetRun returns a run together with its approval history.
func (e *Engine) GetRun(ctx context.Context, runID string) (*contracts.RunView, error) {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	approvals, err := e.store.ListApprovals(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &contracts.RunView{Run: *run, Approvals: approvals}, nil
}

// ListArtifacts returns a run's artifact records in step order.
func (e *Engine) ListArtifacts(ctx context.Context, runID string) ([]contracts.Artifact, error) {
	if _, err := e.store.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return e.store.ListArtifacts(ctx, runID)
}

// CreateRun allocates a run for the workflow and drives the interpreter
// until it completes or suspends. Unknown workflow ids are rejected.
func (e *Engine) CreateRun(ctx context.Context, workflowID string, input map[string]any) (*contracts.Run, error) {
	if _, err := e.store.GetWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}

	now := contracts.NowUTC()
	run := &contracts.Run{
		ID:          uuid.New().String(),
		WorkflowID:  workflowID,
		Status:      contracts.RunRunning,
		CurrentStep: 0,
		Input:       input,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := e.store.Tx(ctx, func(tx *store.Tx) error {
		return tx.InsertRun(run)
	})
	if err != nil {
		return nil, err
	}

	if err := e.execute(ctx, run.ID); err != nil {
		return nil, err
	}
	return e.store.GetRun(ctx, run.ID)
}

// Decide records a decision on an approval row. An approved decision
// re-enters the interpreter at the gated step; a rejection terminates the
// run without advancing it.
func (e *Engine) Decide(ctx context.Context, runID, approvalID string, decision contracts.ApprovalStatus, decidedBy string) (*contracts.RunView, error) {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() {
		return nil, fmt.Errorf("%w: run %s is %s", contracts.ErrValidation, runID, run.Status)
	}

	err = e.store.Tx(ctx, func(tx *store.Tx) error {
		if err := tx.DecideApproval(approvalID, decision, decidedBy, contracts.NowUTC()); err != nil {
			return err
		}
		if decision == contracts.ApprovalApproved {
			return tx.UpdateRun(runID, contracts.RunRunning, run.CurrentStep, contracts.NowUTC())
		}
		return tx.UpdateRun(runID, contracts.RunRejected, run.CurrentStep, contracts.NowUTC())
	})
	if err != nil {
		return nil, err
	}

	if decision == contracts.ApprovalApproved {
		if err := e.execute(ctx, runID); err != nil {
			return nil, err
		}
	}
	return e.GetRun(ctx, runID)
}

// execute interprets steps from the run's current index. Returning nil
// means the run reached a stable state: completed, suspended, or failed.
func (e *Engine) execute(ctx context.Context, runID string) error {
	ctx, span := e.tracer.Start(ctx, "engine.execute",
		trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return nil
	}
	workflow, err := e.store.GetWorkflow(ctx, run.WorkflowID)
	if err != nil {
		return err
	}
	steps := workflow.Schema.Steps

	for i := run.CurrentStep; i < len(steps); i++ {
		step := steps[i]
		suspended, err := e.executeStep(ctx, run, workflow, step, i)
		if err != nil {
			return err
		}
		if suspended {
			return nil
		}
	}

	if err := e.updateRun(ctx, runID, contracts.RunCompleted, len(steps)); err != nil {
		return err
	}
	if e.notifier != nil {
		if err := e.notifier.NotifyCompletion(ctx, runID); err != nil {
			e.logger.Warn("completion notification failed", "run_id", runID, "error", err)
		}
	}
	return nil
}

// executeStep runs a single step. Returns suspended=true when the run
// parked on an approval gate and the interpreter must stop.
func (e *Engine) executeStep(ctx context.Context, run *contracts.Run, workflow *contracts.Workflow, step contracts.Step, index int) (suspended bool, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.step",
		trace.WithAttributes(
			attribute.String("run.id", run.ID),
			attribute.String("step.type", string(step.Type)),
			attribute.Int("step.index", index)))
	defer span.End()

	if step.Gated() {
		approved, err := e.gateSatisfied(ctx, run.ID, step)
		if err != nil {
			return false, err
		}
		if !approved {
			return true, e.suspend(ctx, run.ID, step, index)
		}
		if step.Type == contracts.StepApprovalGate {
			// The gate itself produces no artifact on the pass-through.
			return false, e.updateRun(ctx, run.ID, contracts.RunRunning, index+1)
		}
	}

	switch step.Type {
	case contracts.StepAgent:
		input, err := canonical.Marshal(run.Input)
		if err != nil {
			return false, err
		}
		content := fmt.Sprintf("Draft for workflow %s.\nInput: %s", workflow.Name, input)
		if err := e.writeArtifact(ctx, run.ID, step.ArtifactName(), content); err != nil {
			return false, err
		}

	case contracts.StepTool:
		var result map[string]any
		if step.ToolName == contracts.ShellTool {
			result = e.runShell(ctx, step.Command)
		} else {
			result, err = e.tools.Invoke(ctx, step.ToolName, map[string]any{"input": run.Input}, run.ID)
			if err != nil {
				if ferr := e.updateRun(ctx, run.ID, contracts.RunFailed, index); ferr != nil {
					return false, ferr
				}
				return false, fmt.Errorf("tool %s: %w", step.ToolName, err)
			}
		}
		encoded, err := canonical.Marshal(result)
		if err != nil {
			return false, err
		}
		if err := e.writeArtifact(ctx, run.ID, step.ArtifactName(), string(encoded)); err != nil {
			return false, err
		}

	case contracts.StepHTTP:
		if err := e.writeArtifact(ctx, run.ID, step.ArtifactName(), "HTTP step executed"); err != nil {
			return false, err
		}
	}

	return false, e.updateRun(ctx, run.ID, contracts.RunRunning, index+1)
}

// gateSatisfied reports whether an approved row already exists for the
// step's fingerprint. The check is by hash, so any approved row for the
// same gate satisfies it regardless of which approval id was decided.
func (e *Engine) gateSatisfied(ctx context.Context, runID string, step contracts.Step) (bool, error) {
	hash, err := canonical.Fingerprint(step)
	if err != nil {
		return false, err
	}
	return e.store.HasApproved(ctx, runID, hash)
}

// suspend parks the run on the gate: one pending approval row per
// (run_id, payload_hash), status waiting_approval, current_step held at
// the gate's own index.
func (e *Engine) suspend(ctx context.Context, runID string, step contracts.Step, index int) error {
	hash, err := canonical.Fingerprint(step)
	if err != nil {
		return err
	}
	return e.store.Tx(ctx, func(tx *store.Tx) error {
		pending, err := tx.HasPendingApproval(runID, hash)
		if err != nil {
			return err
		}
		if !pending {
			approval := &contracts.Approval{
				ID:          uuid.New().String(),
				RunID:       runID,
				ActionType:  step.GateAction(),
				PayloadHash: hash,
				Status:      contracts.ApprovalPending,
			}
			if err := tx.InsertApproval(approval); err != nil {
				return err
			}
		}
		return tx.UpdateRun(runID, contracts.RunWaitingApproval, index, contracts.NowUTC())
	})
}

func (e *Engine) updateRun(ctx context.Context, runID string, status contracts.RunStatus, currentStep int) error {
	return e.store.Tx(ctx, func(tx *store.Tx) error {
		return tx.UpdateRun(runID, status, currentStep, contracts.NowUTC())
	})
}

// writeArtifact redacts content against the vault's plaintext set, writes
// it under <root>/runs/<run_id>/, and records the artifacts row. Redaction
// is the barrier between secrets at rest and files on disk.
func (e *Engine) writeArtifact(ctx context.Context, runID, filename, content string) error {
	var secrets []string
	if e.secrets != nil {
		var err error
		secrets, err = e.secrets.Plaintexts(ctx)
		if err != nil {
			return err
		}
	}
	redacted := redact.Redact(content, secrets)

	dir := filepath.Join(e.artifactsRoot, "runs", runID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: artifact dir: %v", contracts.ErrStore, err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(redacted), 0o644); err != nil {
		return fmt.Errorf("%w: write artifact: %v", contracts.ErrStore, err)
	}

	return e.store.Tx(ctx, func(tx *store.Tx) error {
		return tx.InsertArtifact(&contracts.Artifact{
			ID:        uuid.New().String(),
			RunID:     runID,
			Path:      path,
			Type:      "text",
			CreatedAt: contracts.NowUTC(),
		})
	})
}

// runShell executes a command through the host shell with stdout and
// stderr combined. Workflow schemas are operator-authored, so the command
// string is trusted. An empty command is skipped without executing.
func (e *Engine) runShell(ctx context.Context, command string) map[string]any {
	if command == "" {
		return map[string]any{"status": "skipped", "output": "no command provided"}
	}
	out, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
	status := "ok"
	if err != nil {
		status = "error"
	}
	return map[string]any{
		"status":  status,
		"output":  strings.TrimSpace(string(out)),
		"command": command,
	}
}
