package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dara-labs/control-plane/pkg/contracts"
	"github.com/dara-labs/control-plane/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testWorkflow(id string) *contracts.Workflow {
	return &contracts.Workflow{
		ID:   id,
		Name: "Test Workflow",
		Schema: contracts.WorkflowSchema{
			Name: "Test Workflow",
			Steps: []contracts.Step{
				{Type: contracts.StepAgent, Artifact: "draft.txt"},
			},
		},
		CreatedAt: contracts.NowUTC(),
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(dir)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// Re-opening the same directory re-applies the additive schema.
	st, err = store.Open(dir)
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func TestSeedWorkflowNeverOverwrites(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Tx(ctx, func(tx *store.Tx) error {
		return tx.SeedWorkflow(testWorkflow("wf-1"))
	}))

	altered := testWorkflow("wf-1")
	altered.Name = "Renamed"
	altered.Schema.Name = "Renamed"
	require.NoError(t, st.Tx(ctx, func(tx *store.Tx) error {
		return tx.SeedWorkflow(altered)
	}))

	wf, err := st.GetWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Test Workflow", wf.Name)
}

func TestGetWorkflowNotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetWorkflow(context.Background(), "missing")
	assert.True(t, errors.Is(err, contracts.ErrNotFound))
}

func TestRunLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run := &contracts.Run{
		ID:          "run-1",
		WorkflowID:  "wf-1",
		Status:      contracts.RunRunning,
		CurrentStep: 0,
		Input:       map[string]any{"recipient": "test"},
		CreatedAt:   contracts.NowUTC(),
		UpdatedAt:   contracts.NowUTC(),
	}
	require.NoError(t, st.Tx(ctx, func(tx *store.Tx) error {
		return tx.InsertRun(run)
	}))

	got, err := st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, contracts.RunRunning, got.Status)
	assert.Equal(t, "test", got.Input["recipient"])

	require.NoError(t, st.Tx(ctx, func(tx *store.Tx) error {
		return tx.UpdateRun("run-1", contracts.RunWaitingApproval, 1, contracts.NowUTC())
	}))
	got, err = st.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, contracts.RunWaitingApproval, got.Status)
	assert.Equal(t, 1, got.CurrentStep)

	_, err = st.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, contracts.ErrNotFound))
}

func TestApprovalGateQueries(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	approval := &contracts.Approval{
		ID:          "ap-1",
		RunID:       "run-1",
		ActionType:  "approve_email_send",
		PayloadHash: "hash-a",
		Status:      contracts.ApprovalPending,
	}
	require.NoError(t, st.Tx(ctx, func(tx *store.Tx) error {
		return tx.InsertApproval(approval)
	}))

	// Pending row exists for the hash, no approved row yet.
	require.NoError(t, st.Tx(ctx, func(tx *store.Tx) error {
		pending, err := tx.HasPendingApproval("run-1", "hash-a")
		require.NoError(t, err)
		assert.True(t, pending)
		return nil
	}))
	approved, err := st.HasApproved(ctx, "run-1", "hash-a")
	require.NoError(t, err)
	assert.False(t, approved)

	require.NoError(t, st.Tx(ctx, func(tx *store.Tx) error {
		return tx.DecideApproval("ap-1", contracts.ApprovalApproved, "alice", contracts.NowUTC())
	}))

	approved, err = st.HasApproved(ctx, "run-1", "hash-a")
	require.NoError(t, err)
	assert.True(t, approved)

	// Other runs and hashes are unaffected.
	approved, err = st.HasApproved(ctx, "run-2", "hash-a")
	require.NoError(t, err)
	assert.False(t, approved)
	approved, err = st.HasApproved(ctx, "run-1", "hash-b")
	require.NoError(t, err)
	assert.False(t, approved)

	approvals, err := st.ListApprovals(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, "alice", approvals[0].DecidedBy)
	assert.NotEmpty(t, approvals[0].DecidedAt)
}

func TestDecideApprovalUnknownID(t *testing.T) {
	st := newTestStore(t)
	err := st.Tx(context.Background(), func(tx *store.Tx) error {
		return tx.DecideApproval("nope", contracts.ApprovalApproved, "alice", contracts.NowUTC())
	})
	assert.True(t, errors.Is(err, contracts.ErrNotFound))
}

func TestTxRollbackOnError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := st.Tx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertRun(&contracts.Run{
			ID: "run-rb", WorkflowID: "wf", Status: contracts.RunRunning,
			CreatedAt: contracts.NowUTC(), UpdatedAt: contracts.NowUTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = st.GetRun(ctx, "run-rb")
	assert.True(t, errors.Is(err, contracts.ErrNotFound), "insert must have been rolled back")
}

func TestConnectorUpsertReplaces(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	conn := &contracts.Connector{
		ID: "c-1", Name: "gmail", Status: "connected",
		Metadata:  map[string]any{"account": "a@example.com"},
		CreatedAt: contracts.NowUTC(),
	}
	require.NoError(t, st.Tx(ctx, func(tx *store.Tx) error { return tx.UpsertConnector(conn) }))

	conn.Status = "expired"
	require.NoError(t, st.Tx(ctx, func(tx *store.Tx) error { return tx.UpsertConnector(conn) }))

	connectors, err := st.ListConnectors(ctx)
	require.NoError(t, err)
	require.Len(t, connectors, 1)
	assert.Equal(t, "expired", connectors[0].Status)
	assert.Equal(t, "a@example.com", connectors[0].Metadata["account"])
}

func TestSecretQueriesNeverReturnValues(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Tx(ctx, func(tx *store.Tx) error {
		return tx.InsertSecret("s-1", "connector", "token", "ciphertext-bytes", contracts.NowUTC())
	}))

	headers, err := st.ListSecretHeaders(ctx, "")
	require.NoError(t, err)
	require.Len(t, headers, 1)
	assert.Equal(t, "token", headers[0].Name)

	headers, err = st.ListSecretHeaders(ctx, "other-scope")
	require.NoError(t, err)
	assert.Empty(t, headers)

	ct, err := st.SecretCiphertext(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "ciphertext-bytes", ct)

	_, err = st.SecretCiphertext(ctx, "missing")
	assert.True(t, errors.Is(err, contracts.ErrNotFound))
}

func TestPresetSeedAndActivate(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Tx(ctx, func(tx *store.Tx) error {
		if err := tx.SeedPreset("quality", "glm-quality"); err != nil {
			return err
		}
		if err := tx.SeedPreset("fast", "glm-fast"); err != nil {
			return err
		}
		return tx.SeedPresetState("quality")
	}))

	// Re-seeding keeps existing rows.
	require.NoError(t, st.Tx(ctx, func(tx *store.Tx) error {
		if err := tx.SeedPreset("quality", "other-model"); err != nil {
			return err
		}
		return tx.SeedPresetState("fast")
	}))

	presets, err := st.ListPresets(ctx)
	require.NoError(t, err)
	require.Len(t, presets, 2)

	active, err := st.ActivePreset(ctx)
	require.NoError(t, err)
	assert.Equal(t, "quality", active)

	require.NoError(t, st.Tx(ctx, func(tx *store.Tx) error {
		return tx.SetActivePreset("fast")
	}))
	active, err = st.ActivePreset(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fast", active)
}
