package connector_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dara-labs/control-plane/pkg/connector"
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

func TestURLSafetyGate(t *testing.T) {
	cases := []struct {
		name    string
		baseURL string
		enabled bool
	}{
		{"empty url", "", false},
		{"public https", "https://tools.example.com", true},
		{"public http", "http://tools.example.com", true},
		{"localhost", "http://localhost:8080", false},
		{"loopback v4", "http://127.0.0.1:8080", false},
		{"loopback v6", "http://[::1]:8080", false},
		{"private 10", "http://10.0.0.5", false},
		{"private 172.16", "http://172.16.0.1", false},
		{"private 192.168", "http://192.168.1.1", false},
		{"link local", "http://169.254.169.254", false},
		{"file scheme", "file:///etc/passwd", false},
		{"ftp scheme", "ftp://tools.example.com", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := connector.New(newTestStore(t), tc.baseURL, "")
			assert.Equal(t, tc.enabled, c.Enabled())
		})
	}
}

func TestDisabledClientSemantics(t *testing.T) {
	c := connector.New(newTestStore(t), "", "")
	ctx := context.Background()

	list, err := c.List(ctx)
	require.NoError(t, err)
	assert.Nil(t, list)

	_, err = c.Connect(ctx, "gmail", nil)
	assert.True(t, errors.Is(err, contracts.ErrConfiguration))

	_, err = c.Invoke(ctx, "send_email", nil, "run-1")
	assert.True(t, errors.Is(err, contracts.ErrConfiguration))
}

func TestInvokeRoundTrip(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "sent", "id": "msg-1"})
	})
	ts := httptest.NewServer(handler)
	defer ts.Close()

	c := connector.NewForTest(newTestStore(t), ts.URL, "api-key-1")
	result, err := c.Invoke(context.Background(), "send_email", map[string]any{"input": map[string]any{"to": "x"}}, "run-1")
	require.NoError(t, err)

	assert.Equal(t, "/tools/invoke", gotPath)
	assert.Equal(t, "Bearer api-key-1", gotAuth)
	assert.Equal(t, "send_email", gotBody["tool_name"])
	assert.Equal(t, "run-1", gotBody["run_id"])
	assert.Equal(t, "sent", result["status"])
}

func TestInvokeNon2xxIsExternalError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := connector.NewForTest(newTestStore(t), ts.URL, "")
	_, err := c.Invoke(context.Background(), "send_email", nil, "run-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrExternal))
}

func TestConnectCachesRecord(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/connectors/connect", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "conn-1", "status": "connected"})
	}))
	defer ts.Close()

	st := newTestStore(t)
	c := connector.NewForTest(st, ts.URL, "")
	ctx := context.Background()

	conn, err := c.Connect(ctx, "gmail", map[string]any{"code": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "conn-1", conn.ID)
	assert.Equal(t, "gmail", conn.Name)

	cached, err := c.Cached(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "conn-1", cached[0].ID)
}

func TestListNormalizesItems(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/connectors", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "c-1", "name": "gmail", "status": "available"},
			{"name": "calendar"},
		})
	}))
	defer ts.Close()

	c := connector.NewForTest(newTestStore(t), ts.URL, "")
	list, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c-1", list[0].ID)
	assert.Equal(t, "calendar", list[1].Name)
	assert.NotEmpty(t, list[1].ID)
	assert.Equal(t, "available", list[1].Status)
}
