// Package notify emits the signed completion webhook for finished runs,
// optionally enriched with synthesized audio. It fires at most once per
// run, only on terminal success, and its failures never fail the run.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dara-labs/control-plane/pkg/contracts"
	"github.com/dara-labs/control-plane/pkg/presets"
	"github.com/dara-labs/control-plane/pkg/store"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Dara-Signature"

const (
	webhookTimeout = 15 * time.Second
	ttsTimeout     = 30 * time.Second

	defaultElevenLabsURL = "https://api.elevenlabs.io/v1/text-to-speech"
	defaultOpenAIURL     = "https://api.openai.com/v1/audio/speech"
)

// Config holds the notifier's delivery settings.
type Config struct {
	WebhookURL       string
	WebhookSecret    string
	NotifyOnComplete bool
	TTSProvider      string // "none" | "elevenlabs" | "openai"
	TTSVoice         string
	TTSAPIKey        string
}

// Notifier assembles and delivers completion webhooks.
type Notifier struct {
	store   *store.Store
	presets *presets.Registry
	cfg     Config
	client  *http.Client
	logger  *slog.Logger

	elevenLabsURL string
	openAIURL     string
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithHTTPClient overrides the HTTP client, for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) { n.client = client }
}

// WithTTSEndpoints overrides the synthesis endpoints, for tests.
func WithTTSEndpoints(elevenLabs, openAI string) Option {
	return func(n *Notifier) {
		n.elevenLabsURL = elevenLabs
		n.openAIURL = openAI
	}
}

// New creates a notifier bound to the store and preset registry.
func New(st *store.Store, registry *presets.Registry, cfg Config, opts ...Option) *Notifier {
	n := &Notifier{
		store:         st,
		presets:       registry,
		cfg:           cfg,
		client:        &http.Client{},
		logger:        slog.Default().With("component", "notifier"),
		elevenLabsURL: defaultElevenLabsURL,
		openAIURL:     defaultOpenAIURL,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type artifactRef struct {
	Path      string `json:"path"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
}

type completionPayload struct {
	RunID       string        `json:"run_id"`
	Status      string        `json:"status"`
	Summary     string        `json:"summary"`
	Artifacts   []artifactRef `json:"artifacts"`
	ModelPreset string        `json:"model_preset"`
	TokensUsed  int           `json:"tokens_used"`
	FinishedAt  string        `json:"finished_at"`
	TTSAudio    *string       `json:"tts_audio"`
}

// NotifyCompletion posts the signed completion payload for a run. It is a
// no-op when no webhook URL is configured or notification is disabled.
func (n *Notifier) NotifyCompletion(ctx context.Context, runID string) error {
	if !n.cfg.NotifyOnComplete || n.cfg.WebhookURL == "" {
		return nil
	}

	run, err := n.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	records, err := n.store.ListArtifacts(ctx, runID)
	if err != nil {
		return err
	}
	artifacts := make([]artifactRef, 0, len(records))
	for _, a := range records {
		artifacts = append(artifacts, artifactRef{Path: a.Path, Type: a.Type, CreatedAt: a.CreatedAt})
	}

	_, state, err := n.presets.List(ctx)
	if err != nil {
		return err
	}

	summary := fmt.Sprintf("Run %s completed", runID)
	payload := completionPayload{
		RunID:       runID,
		Status:      string(run.Status),
		Summary:     summary,
		Artifacts:   artifacts,
		ModelPreset: state.Active,
		TokensUsed:  0,
		FinishedAt:  contracts.NowUTC(),
	}

	// Synthesis failures are tolerated; the payload goes out without audio.
	if audio, err := n.synthesize(ctx, summary); err != nil {
		n.logger.Warn("tts synthesis failed, sending without audio", "error", err)
	} else if audio != "" {
		payload.TTSAudio = &audio
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build webhook request: %v", contracts.ErrExternal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sig := n.sign(body); sig != "" {
		req.Header.Set(SignatureHeader, sig)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: webhook post: %v", contracts.ErrExternal, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: webhook returned %d", contracts.ErrExternal, resp.StatusCode)
	}
	return nil
}

// sign returns the hex HMAC-SHA256 of body, empty when no secret is set.
func (n *Notifier) sign(body []byte) string {
	if n.cfg.WebhookSecret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(n.cfg.WebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// synthesize converts message to base64 audio via the configured provider.
// Returns empty with no error when synthesis is not configured.
func (n *Notifier) synthesize(ctx context.Context, message string) (string, error) {
	if n.cfg.TTSProvider == "" || n.cfg.TTSProvider == "none" || n.cfg.TTSAPIKey == "" {
		return "", nil
	}

	var endpoint string
	var body map[string]any
	headers := map[string]string{"Content-Type": "application/json"}

	switch n.cfg.TTSProvider {
	case "elevenlabs":
		endpoint = n.elevenLabsURL
		body = map[string]any{"text": message, "voice": n.cfg.TTSVoice}
		headers["xi-api-key"] = n.cfg.TTSAPIKey
	case "openai":
		endpoint = n.openAIURL
		body = map[string]any{"model": "gpt-4o-mini-tts", "voice": n.cfg.TTSVoice, "input": message}
		headers["Authorization"] = "Bearer " + n.cfg.TTSAPIKey
	default:
		return "", nil
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode tts request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, ttsTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("%w: build tts request: %v", contracts.ErrExternal, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: tts post: %v", contracts.ErrExternal, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: tts returned %d", contracts.ErrExternal, resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: tts body: %v", contracts.ErrExternal, err)
	}
	return base64.StdEncoding.EncodeToString(audio), nil
}
