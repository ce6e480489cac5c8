package connector

import "github.com/dara-labs/control-plane/pkg/store"

// NewForTest builds an enabled client regardless of the URL safety gate,
// so tests can target httptest servers on loopback.
func NewForTest(st *store.Store, baseURL, apiKey string) *Client {
	c := New(st, baseURL, apiKey)
	c.enabled = true
	return c
}
