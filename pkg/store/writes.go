package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dara-labs/control-plane/pkg/contracts"
)

// SeedWorkflow inserts a workflow unless the id already exists. Workflows
// are immutable after creation, so seeding never overwrites.
func (t *Tx) SeedWorkflow(wf *contracts.Workflow) error {
	schemaJSON, err := contracts.EncodeSchema(&wf.Schema)
	if err != nil {
		return fmt.Errorf("%w: %v", contracts.ErrStore, err)
	}
	_, err = t.tx.Exec(
		`INSERT OR IGNORE INTO workflows (id, name, schema, created_at) VALUES (?, ?, ?, ?)`,
		wf.ID, wf.Name, schemaJSON, wf.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: seed workflow: %v", contracts.ErrStore, err)
	}
	return nil
}

// InsertRun stores a new run row.
func (t *Tx) InsertRun(run *contracts.Run) error {
	var input any
	if run.Input != nil {
		encoded, err := json.Marshal(run.Input)
		if err != nil {
			return fmt.Errorf("%w: run input encode: %v", contracts.ErrStore, err)
		}
		input = string(encoded)
	}
	_, err := t.tx.Exec(
		`INSERT INTO runs (id, workflow_id, status, current_step, input, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WorkflowID, run.Status, run.CurrentStep, input, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert run: %v", contracts.ErrStore, err)
	}
	return nil
}

// UpdateRun transitions a run's status and step index.
func (t *Tx) UpdateRun(id string, status contracts.RunStatus, currentStep int, updatedAt string) error {
	_, err := t.tx.Exec(
		`UPDATE runs SET status = ?, current_step = ?, updated_at = ? WHERE id = ?`,
		status, currentStep, updatedAt, id)
	if err != nil {
		return fmt.Errorf("%w: update run: %v", contracts.ErrStore, err)
	}
	return nil
}

// InsertApproval stores a new pending approval row.
func (t *Tx) InsertApproval(a *contracts.Approval) error {
	_, err := t.tx.Exec(
		`INSERT INTO approvals (id, run_id, action_type, payload_hash, status, decided_by, decided_at)
		 VALUES (?, ?, ?, ?, ?, NULL, NULL)`,
		a.ID, a.RunID, a.ActionType, a.PayloadHash, a.Status)
	if err != nil {
		return fmt.Errorf("%w: insert approval: %v", contracts.ErrStore, err)
	}
	return nil
}

// HasPendingApproval reports whether a pending row already exists for the
// fingerprint. Checked inside the suspending transaction so that at most
// one pending row exists per (run_id, payload_hash).
func (t *Tx) HasPendingApproval(runID, payloadHash string) (bool, error) {
	row := t.tx.QueryRow(
		`SELECT 1 FROM approvals WHERE run_id = ? AND payload_hash = ? AND status = ? LIMIT 1`,
		runID, payloadHash, contracts.ApprovalPending)
	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: pending lookup: %v", contracts.ErrStore, err)
	}
	return true, nil
}

// DecideApproval records a decision on a specific approval row. Returns
// contracts.ErrNotFound when the id does not exist.
func (t *Tx) DecideApproval(id string, status contracts.ApprovalStatus, decidedBy, decidedAt string) error {
	res, err := t.tx.Exec(
		`UPDATE approvals SET status = ?, decided_by = ?, decided_at = ? WHERE id = ?`,
		status, decidedBy, decidedAt, id)
	if err != nil {
		return fmt.Errorf("%w: decide approval: %v", contracts.ErrStore, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: decide approval: %v", contracts.ErrStore, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: approval %s", contracts.ErrNotFound, id)
	}
	return nil
}

// InsertArtifact stores an artifact record. Artifacts are append-only.
func (t *Tx) InsertArtifact(a *contracts.Artifact) error {
	_, err := t.tx.Exec(
		`INSERT INTO artifacts (id, run_id, path, type, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.RunID, a.Path, a.Type, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert artifact: %v", contracts.ErrStore, err)
	}
	return nil
}

// UpsertConnector caches a connector record, replacing any previous row
// with the same id.
func (t *Tx) UpsertConnector(c *contracts.Connector) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("%w: connector metadata encode: %v", contracts.ErrStore, err)
	}
	_, err = t.tx.Exec(
		`INSERT OR REPLACE INTO connectors (id, name, status, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Status, string(metadata), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: upsert connector: %v", contracts.ErrStore, err)
	}
	return nil
}

// InsertSecret stores an encrypted secret row. Plaintext never reaches the
// store.
func (t *Tx) InsertSecret(id, scope, name, ciphertext, createdAt string) error {
	_, err := t.tx.Exec(
		`INSERT INTO secrets (id, scope, name, value, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, scope, name, ciphertext, createdAt)
	if err != nil {
		return fmt.Errorf("%w: insert secret: %v", contracts.ErrStore, err)
	}
	return nil
}

// SeedPreset inserts a preset unless the name already exists.
func (t *Tx) SeedPreset(name, model string) error {
	_, err := t.tx.Exec(
		`INSERT OR IGNORE INTO model_presets (name, model) VALUES (?, ?)`, name, model)
	if err != nil {
		return fmt.Errorf("%w: seed preset: %v", contracts.ErrStore, err)
	}
	return nil
}

// SeedPresetState inserts the active-preset row unless one exists.
func (t *Tx) SeedPresetState(active string) error {
	_, err := t.tx.Exec(
		`INSERT OR IGNORE INTO model_preset_state (id, active_preset) VALUES (1, ?)`, active)
	if err != nil {
		return fmt.Errorf("%w: seed preset state: %v", contracts.ErrStore, err)
	}
	return nil
}

// SetActivePreset points the single state row at a preset.
func (t *Tx) SetActivePreset(name string) error {
	_, err := t.tx.Exec(`UPDATE model_preset_state SET active_preset = ? WHERE id = 1`, name)
	if err != nil {
		return fmt.Errorf("%w: set active preset: %v", contracts.ErrStore, err)
	}
	return nil
}
