package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dara-labs/control-plane/pkg/contracts"
)

// GetWorkflow returns a workflow by id, contracts.ErrNotFound if unknown.
func (s *Store) GetWorkflow(ctx context.Context, id string) (*contracts.Workflow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, schema, created_at FROM workflows WHERE id = ?`, id)
	return scanWorkflow(row)
}

// ListWorkflows returns all stored workflows.
func (s *Store) ListWorkflows(ctx context.Context) ([]contracts.Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, schema, created_at FROM workflows ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list workflows: %v", contracts.ErrStore, err)
	}
	defer func() { _ = rows.Close() }()

	var workflows []contracts.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, *wf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list workflows: %v", contracts.ErrStore, err)
	}
	return workflows, nil
}

// GetRun returns a run by id, contracts.ErrNotFound if unknown.
func (s *Store) GetRun(ctx context.Context, id string) (*contracts.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, status, current_step, input, created_at, updated_at
		 FROM runs WHERE id = ?`, id)

	var r contracts.Run
	var input sql.NullString
	err := row.Scan(&r.ID, &r.WorkflowID, &r.Status, &r.CurrentStep, &input, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", contracts.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get run: %v", contracts.ErrStore, err)
	}
	if input.Valid && input.String != "" {
		if err := json.Unmarshal([]byte(input.String), &r.Input); err != nil {
			return nil, fmt.Errorf("%w: run input decode: %v", contracts.ErrStore, err)
		}
	}
	return &r, nil
}

// ListApprovals returns the approval history of a run in creation order.
func (s *Store) ListApprovals(ctx context.Context, runID string) ([]contracts.Approval, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, action_type, payload_hash, status, decided_by, decided_at
		 FROM approvals WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: list approvals: %v", contracts.ErrStore, err)
	}
	defer func() { _ = rows.Close() }()

	var approvals []contracts.Approval
	for rows.Next() {
		var a contracts.Approval
		var decidedBy, decidedAt sql.NullString
		if err := rows.Scan(&a.ID, &a.RunID, &a.ActionType, &a.PayloadHash, &a.Status, &decidedBy, &decidedAt); err != nil {
			return nil, fmt.Errorf("%w: scan approval: %v", contracts.ErrStore, err)
		}
		a.DecidedBy = decidedBy.String
		a.DecidedAt = decidedAt.String
		approvals = append(approvals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list approvals: %v", contracts.ErrStore, err)
	}
	return approvals, nil
}

// HasApproved reports whether any approved row exists for the fingerprint.
// The gate is satisfied by fingerprint, not by approval id.
func (s *Store) HasApproved(ctx context.Context, runID, payloadHash string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM approvals WHERE run_id = ? AND payload_hash = ? AND status = ? LIMIT 1`,
		runID, payloadHash, contracts.ApprovalApproved)
	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: approval lookup: %v", contracts.ErrStore, err)
	}
	return true, nil
}

// ListArtifacts returns a run's artifact records in step order.
func (s *Store) ListArtifacts(ctx context.Context, runID string) ([]contracts.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, path, type, created_at FROM artifacts WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: list artifacts: %v", contracts.ErrStore, err)
	}
	defer func() { _ = rows.Close() }()

	var artifacts []contracts.Artifact
	for rows.Next() {
		var a contracts.Artifact
		if err := rows.Scan(&a.ID, &a.RunID, &a.Path, &a.Type, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan artifact: %v", contracts.ErrStore, err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list artifacts: %v", contracts.ErrStore, err)
	}
	return artifacts, nil
}

// ListConnectors returns the cached connector records.
func (s *Store) ListConnectors(ctx context.Context) ([]contracts.Connector, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, status, metadata, created_at FROM connectors ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: list connectors: %v", contracts.ErrStore, err)
	}
	defer func() { _ = rows.Close() }()

	var connectors []contracts.Connector
	for rows.Next() {
		var c contracts.Connector
		var metadata sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Status, &metadata, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan connector: %v", contracts.ErrStore, err)
		}
		if metadata.Valid && metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &c.Metadata)
		}
		if c.Metadata == nil {
			c.Metadata = map[string]any{}
		}
		connectors = append(connectors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list connectors: %v", contracts.ErrStore, err)
	}
	return connectors, nil
}

// ListSecretHeaders returns secret headers, optionally filtered by scope.
// Never returns plaintext or ciphertext.
func (s *Store) ListSecretHeaders(ctx context.Context, scope string) ([]contracts.SecretHeader, error) {
	query := `SELECT id, scope, name, created_at FROM secrets`
	args := []any{}
	if scope != "" {
		query += ` WHERE scope = ?`
		args = append(args, scope)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list secrets: %v", contracts.ErrStore, err)
	}
	defer func() { _ = rows.Close() }()

	var headers []contracts.SecretHeader
	for rows.Next() {
		var h contracts.SecretHeader
		if err := rows.Scan(&h.ID, &h.Scope, &h.Name, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan secret: %v", contracts.ErrStore, err)
		}
		headers = append(headers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list secrets: %v", contracts.ErrStore, err)
	}
	return headers, nil
}

// SecretCiphertext returns the stored ciphertext for a secret id.
func (s *Store) SecretCiphertext(ctx context.Context, id string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM secrets WHERE id = ?`, id)
	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: secret %s", contracts.ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("%w: get secret: %v", contracts.ErrStore, err)
	}
	return value, nil
}

// ListSecretCiphertexts returns every stored ciphertext.
func (s *Store) ListSecretCiphertexts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT value FROM secrets ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: list secret values: %v", contracts.ErrStore, err)
	}
	defer func() { _ = rows.Close() }()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%w: scan secret value: %v", contracts.ErrStore, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list secret values: %v", contracts.ErrStore, err)
	}
	return values, nil
}

// ListPresets returns the model preset catalog.
func (s *Store) ListPresets(ctx context.Context) ([]contracts.ModelPreset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, model FROM model_presets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: list presets: %v", contracts.ErrStore, err)
	}
	defer func() { _ = rows.Close() }()

	var presets []contracts.ModelPreset
	for rows.Next() {
		var p contracts.ModelPreset
		if err := rows.Scan(&p.Name, &p.Model); err != nil {
			return nil, fmt.Errorf("%w: scan preset: %v", contracts.ErrStore, err)
		}
		presets = append(presets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list presets: %v", contracts.ErrStore, err)
	}
	return presets, nil
}

// ActivePreset returns the name of the active preset, empty if unset.
func (s *Store) ActivePreset(ctx context.Context) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT active_preset FROM model_preset_state WHERE id = 1`)
	var active string
	err := row.Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: get active preset: %v", contracts.ErrStore, err)
	}
	return active, nil
}

func scanWorkflow(row interface{ Scan(...any) error }) (*contracts.Workflow, error) {
	var wf contracts.Workflow
	var schemaJSON string
	err := row.Scan(&wf.ID, &wf.Name, &schemaJSON, &wf.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: workflow", contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan workflow: %v", contracts.ErrStore, err)
	}
	schema, err := contracts.ParseSchema([]byte(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("%w: stored schema for %s: %v", contracts.ErrStore, wf.ID, err)
	}
	wf.Schema = *schema
	return &wf, nil
}
