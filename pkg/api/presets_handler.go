package api

import (
	"net/http"

	"github.com/dara-labs/control-plane/pkg/contracts"
)

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	catalog, state, err := s.presets.List(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if catalog == nil {
		catalog = []contracts.ModelPreset{}
	}
	writeJSON(w, map[string]any{"presets": catalog, "state": state})
}

// SetActivePresetRequest selects the active model preset.
type SetActivePresetRequest struct {
	Preset string `json:"preset"`
}

func (s *Server) handleSetActivePreset(w http.ResponseWriter, r *http.Request) {
	var req SetActivePresetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Preset == "" {
		WriteBadRequest(w, "Missing required field: preset")
		return
	}

	state, err := s.presets.SetActive(r.Context(), req.Preset)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, state)
}
