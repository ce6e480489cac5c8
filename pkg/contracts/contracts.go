// Package contracts defines the shared data model of the workflow control
// plane: workflow definitions and their step variants, run and approval
// state, artifact and connector records, and the error taxonomy the HTTP
// boundary maps onto status codes.
package contracts

import "time"

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	RunRunning         RunStatus = "running"
	RunWaitingApproval RunStatus = "waiting_approval"
	RunCompleted       RunStatus = "completed"
	RunRejected        RunStatus = "rejected"
	RunFailed          RunStatus = "failed"
)

// Terminal reports whether no further transitions may leave the status.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunRejected || s == RunFailed
}

// ApprovalStatus is the decision state of an approval row.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Workflow is a named, immutable, ordered list of steps.
type Workflow struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Schema    WorkflowSchema `json:"schema"`
	CreatedAt string         `json:"created_at"`
}

// WorkflowSchema is the structured document stored per workflow.
type WorkflowSchema struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// Run is one execution of a workflow with a specific input.
type Run struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	Status      RunStatus      `json:"status"`
	CurrentStep int            `json:"current_step"`
	Input       map[string]any `json:"input,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// RunView is a run with its approval history, as returned to clients.
type RunView struct {
	Run
	Approvals []Approval `json:"approvals"`
}

// Approval is a human decision record keyed by the gated step's fingerprint.
type Approval struct {
	ID          string         `json:"id"`
	RunID       string         `json:"run_id"`
	ActionType  string         `json:"action_type"`
	PayloadHash string         `json:"payload_hash"`
	Status      ApprovalStatus `json:"status"`
	DecidedBy   string         `json:"decided_by,omitempty"`
	DecidedAt   string         `json:"decided_at,omitempty"`
}

// Artifact is a file produced by a step, stored on disk after redaction.
type Artifact struct {
	ID        string `json:"id"`
	RunID     string `json:"run_id"`
	Path      string `json:"path"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
}

// Connector is the cached record of a successful connect call.
type Connector struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt string         `json:"created_at"`
}

// SecretHeader identifies a vault secret without exposing its value.
type SecretHeader struct {
	ID        string `json:"id"`
	Scope     string `json:"scope"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// ModelPreset maps a preset name to a model identifier.
type ModelPreset struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

// PresetState points at the active preset.
type PresetState struct {
	Active    string `json:"active"`
	UpdatedAt string `json:"updated_at"`
}

// NowUTC returns the current time as an ISO-8601 UTC string, the wire and
// storage format for every timestamp in the control plane.
func NowUTC() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
