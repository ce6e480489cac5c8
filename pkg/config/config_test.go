package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dara-labs/control-plane/pkg/config"
	"github.com/dara-labs/control-plane/pkg/contracts"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "DATA_DIR", "ARTIFACTS_DIR", "NOTIFY_ON_COMPLETE",
		"TTS_PROVIDER", "DEFAULT_MODEL_PRESET", "MODEL_PRESET_QUALITY",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := config.Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "/data", cfg.DataDir)
	assert.Equal(t, "/data/artifacts", cfg.ArtifactsDir)
	assert.True(t, cfg.NotifyOnComplete)
	assert.Equal(t, "none", cfg.TTSProvider)
	assert.Equal(t, "quality", cfg.DefaultPreset)
	assert.Equal(t, "glm-quality", cfg.PresetDefaults["quality"])
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("NOTIFY_ON_COMPLETE", "false")
	t.Setenv("MODEL_PRESET_FAST", "custom-fast")
	t.Setenv("MCP_RUBE_URL", "https://tools.example.com")

	cfg := config.Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.NotifyOnComplete)
	assert.Equal(t, "custom-fast", cfg.PresetDefaults["fast"])
	assert.Equal(t, "https://tools.example.com", cfg.ConnectorURL)
}

func TestLoadWorkflowDefinitions(t *testing.T) {
	dir := t.TempDir()
	good := `id: review-pipeline
name: Review Pipeline
steps:
  - type: agent_step
    name: draft
    artifact: review.txt
  - type: approval_gate
    action_type: approve_review
  - type: tool_step
    tool_name: shell_command
    command: echo done
    artifact: done.json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "review.yaml"), []byte(good), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	workflows, err := config.LoadWorkflowDefinitions(dir)
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, "review-pipeline", workflows[0].ID)
	assert.Equal(t, "Review Pipeline", workflows[0].Name)
	require.Len(t, workflows[0].Schema.Steps, 3)
	assert.Equal(t, contracts.StepApprovalGate, workflows[0].Schema.Steps[1].Type)
	assert.NotEmpty(t, workflows[0].CreatedAt)
}

func TestLoadWorkflowDefinitionsMissingDir(t *testing.T) {
	workflows, err := config.LoadWorkflowDefinitions("")
	require.NoError(t, err)
	assert.Nil(t, workflows)

	workflows, err = config.LoadWorkflowDefinitions(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Nil(t, workflows)
}

func TestLoadWorkflowDefinitionsRejectsMalformed(t *testing.T) {
	dir := t.TempDir()
	bad := `id: broken
name: Broken
steps:
  - type: teleport_step
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(bad), 0o644))

	_, err := config.LoadWorkflowDefinitions(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrValidation))
}
