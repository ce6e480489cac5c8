package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dara-labs/control-plane/pkg/connector"
	"github.com/dara-labs/control-plane/pkg/engine"
	"github.com/dara-labs/control-plane/pkg/presets"
	"github.com/dara-labs/control-plane/pkg/vault"
)

const maxBodyBytes = 1 << 20 // 1MB limit

// Server binds the control plane services to HTTP routes. The vault may
// be nil when no master key is configured; its routes then report a
// configuration error instead of serving.
type Server struct {
	engine    *engine.Engine
	vault     *vault.Vault
	connector *connector.Client
	presets   *presets.Registry
	logger    *slog.Logger
}

// NewServer wires the services into a route handler.
func NewServer(eng *engine.Engine, v *vault.Vault, conn *connector.Client, reg *presets.Registry) *Server {
	return &Server{
		engine:    eng,
		vault:     v,
		connector: conn,
		presets:   reg,
		logger:    slog.Default().With("component", "api"),
	}
}

// Routes returns the route table.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /api/workflows", s.handleListWorkflows)
	mux.HandleFunc("POST /api/workflows/run", s.handleCreateRun)
	mux.HandleFunc("GET /api/workflows/run/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/workflows/run/{id}/artifacts", s.handleListArtifacts)
	mux.HandleFunc("POST /api/workflows/run/{id}/approve", s.handleApprove)

	mux.HandleFunc("POST /api/vault/secrets", s.handleStoreSecret)
	mux.HandleFunc("GET /api/vault/secrets", s.handleListSecrets)

	mux.HandleFunc("GET /api/models/presets", s.handleListPresets)
	mux.HandleFunc("POST /api/models/presets/active", s.handleSetActivePreset)

	mux.HandleFunc("GET /api/connectors", s.handleListConnectors)
	mux.HandleFunc("POST /api/connectors/connect", s.handleConnect)
	mux.HandleFunc("GET /api/connectors/status", s.handleConnectorStatus)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody decodes a bounded JSON request body into dst. A false return
// means the error response has already been written.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return false
	}
	return true
}
