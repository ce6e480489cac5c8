package api

import (
	"fmt"
	"net/http"

	"github.com/dara-labs/control-plane/pkg/contracts"
)

// StoreSecretRequest stores one secret in the vault.
type StoreSecretRequest struct {
	Scope string `json:"scope"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (s *Server) handleStoreSecret(w http.ResponseWriter, r *http.Request) {
	if s.vault == nil {
		WriteDomainError(w, fmt.Errorf("%w: vault not configured, set MASTER_KEY", contracts.ErrConfiguration))
		return
	}
	var req StoreSecretRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Scope == "" || req.Name == "" || req.Value == "" {
		WriteBadRequest(w, "Missing required fields: scope, name, value")
		return
	}

	header, err := s.vault.Store(r.Context(), req.Scope, req.Name, req.Value)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, header)
}

func (s *Server) handleListSecrets(w http.ResponseWriter, r *http.Request) {
	if s.vault == nil {
		WriteDomainError(w, fmt.Errorf("%w: vault not configured, set MASTER_KEY", contracts.ErrConfiguration))
		return
	}
	headers, err := s.vault.List(r.Context(), r.URL.Query().Get("scope"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if headers == nil {
		headers = []contracts.SecretHeader{}
	}
	writeJSON(w, headers)
}
