// Package connector provides the outbound HTTP client for the external
// tool-invocation service, with a URL safety gate applied at construction.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dara-labs/control-plane/pkg/canonical"
	"github.com/dara-labs/control-plane/pkg/contracts"
	"github.com/dara-labs/control-plane/pkg/store"
)

// Per-call timeouts.
const (
	listTimeout    = 15 * time.Second
	connectTimeout = 20 * time.Second
	invokeTimeout  = 30 * time.Second
)

// Client talks to the configured tool-invocation service. A client whose
// base URL is unset or fails the safety gate is disabled: it reports an
// empty connector list and refuses any invoke.
type Client struct {
	store   *store.Store
	baseURL string
	apiKey  string
	enabled bool
	client  *http.Client
	logger  *slog.Logger
}

// New builds a client for baseURL. Unsafe URLs (non-http schemes, loopback
// or private-range hosts) disable the client rather than fail startup.
func New(st *store.Store, baseURL, apiKey string) *Client {
	logger := slog.Default().With("component", "connector")
	c := &Client{
		store:   st,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{},
		logger:  logger,
	}
	if c.baseURL == "" {
		return c
	}
	if err := checkURLSafety(c.baseURL); err != nil {
		logger.Warn("connector base URL rejected, client disabled", "error", err)
		return c
	}
	c.enabled = true
	return c
}

// Enabled reports whether outbound calls are permitted.
func (c *Client) Enabled() bool {
	return c.enabled
}

// checkURLSafety rejects URLs that could reach the local host or private
// address space from a server-side request.
func checkURLSafety(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: parse connector URL: %v", contracts.ErrConfiguration, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: connector URL scheme %q not allowed", contracts.ErrConfiguration, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return fmt.Errorf("%w: connector URL resolves to loopback", contracts.ErrConfiguration)
	}
	for _, prefix := range []string{"10.", "172.16.", "192.168.", "169.254."} {
		if strings.HasPrefix(host, prefix) {
			return fmt.Errorf("%w: connector URL targets private address space", contracts.ErrConfiguration)
		}
	}
	return nil
}

// List fetches the live connector catalog. A disabled client returns an
// empty list, not an error.
func (c *Client) List(ctx context.Context) ([]contracts.Connector, error) {
	if !c.enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	var items []map[string]any
	if err := c.do(ctx, http.MethodGet, "/connectors", nil, &items); err != nil {
		return nil, err
	}

	connectors := make([]contracts.Connector, 0, len(items))
	for _, item := range items {
		connectors = append(connectors, contracts.Connector{
			ID:        stringField(item, "id", uuid.New().String()),
			Name:      stringField(item, "name", "unknown"),
			Status:    stringField(item, "status", "available"),
			Metadata:  item,
			CreatedAt: stringField(item, "created_at", contracts.NowUTC()),
		})
	}
	return connectors, nil
}

// Connect establishes a connector with the service and caches the record.
func (c *Client) Connect(ctx context.Context, name string, payload map[string]any) (*contracts.Connector, error) {
	if !c.enabled {
		return nil, fmt.Errorf("%w: connector service not configured", contracts.ErrConfiguration)
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	body := map[string]any{"name": name, "payload": payload}
	var data map[string]any
	if err := c.do(ctx, http.MethodPost, "/connectors/connect", body, &data); err != nil {
		return nil, err
	}

	conn := &contracts.Connector{
		ID:        stringField(data, "id", uuid.New().String()),
		Name:      name,
		Status:    stringField(data, "status", "connected"),
		Metadata:  data,
		CreatedAt: contracts.NowUTC(),
	}
	err := c.store.Tx(ctx, func(tx *store.Tx) error {
		return tx.UpsertConnector(conn)
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Cached returns the connector records previously cached by Connect.
func (c *Client) Cached(ctx context.Context) ([]contracts.Connector, error) {
	return c.store.ListConnectors(ctx)
}

// Invoke calls a tool on the service and returns its structured result.
func (c *Client) Invoke(ctx context.Context, toolName string, args map[string]any, runID string) (map[string]any, error) {
	if !c.enabled {
		return nil, fmt.Errorf("%w: connector service not configured", contracts.ErrConfiguration)
	}
	ctx, cancel := context.WithTimeout(ctx, invokeTimeout)
	defer cancel()

	body := map[string]any{"tool_name": toolName, "args": args, "run_id": runID}
	var result map[string]any
	if err := c.do(ctx, http.MethodPost, "/tools/invoke", body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Fingerprint returns the hex SHA-256 of the canonical JSON encoding of v.
func (c *Client) Fingerprint(v any) (string, error) {
	return canonical.Fingerprint(v)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", contracts.ErrExternal, err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", contracts.ErrExternal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", contracts.ErrExternal, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s returned %d", contracts.ErrExternal, method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", contracts.ErrExternal, err)
	}
	return nil
}

func stringField(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
