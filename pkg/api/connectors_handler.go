package api

import (
	"net/http"

	"github.com/dara-labs/control-plane/pkg/contracts"
)

func (s *Server) handleListConnectors(w http.ResponseWriter, r *http.Request) {
	connectors, err := s.connector.List(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if connectors == nil {
		connectors = []contracts.Connector{}
	}
	writeJSON(w, connectors)
}

// ConnectRequest establishes a connector with the external service.
type ConnectRequest struct {
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		WriteBadRequest(w, "Missing required field: name")
		return
	}

	conn, err := s.connector.Connect(r.Context(), req.Name, req.Payload)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, conn)
}

func (s *Server) handleConnectorStatus(w http.ResponseWriter, r *http.Request) {
	connectors, err := s.connector.Cached(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if connectors == nil {
		connectors = []contracts.Connector{}
	}
	writeJSON(w, connectors)
}
