package api

import (
	"net/http"

	"github.com/dara-labs/control-plane/pkg/contracts"
)

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.engine.ListWorkflows(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if workflows == nil {
		workflows = []contracts.Workflow{}
	}
	writeJSON(w, workflows)
}

// CreateRunRequest starts a workflow run.
type CreateRunRequest struct {
	WorkflowID string         `json:"workflow_id"`
	Input      map[string]any `json:"input"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.WorkflowID == "" {
		WriteBadRequest(w, "Missing required field: workflow_id")
		return
	}

	run, err := s.engine.CreateRun(r.Context(), req.WorkflowID, req.Input)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, map[string]string{"run_id": run.ID})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	artifacts, err := s.engine.ListArtifacts(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if artifacts == nil {
		artifacts = []contracts.Artifact{}
	}
	writeJSON(w, artifacts)
}

// ApproveRequest decides a pending approval.
type ApproveRequest struct {
	ApprovalID string `json:"approval_id"`
	Decision   string `json:"decision"`
	DecidedBy  string `json:"decided_by"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ApprovalID == "" {
		WriteBadRequest(w, "Missing required field: approval_id")
		return
	}
	decision := contracts.ApprovalStatus(req.Decision)
	if decision != contracts.ApprovalApproved && decision != contracts.ApprovalRejected {
		WriteBadRequest(w, `Field decision must be "approved" or "rejected"`)
		return
	}
	if req.DecidedBy == "" {
		WriteBadRequest(w, "Missing required field: decided_by")
		return
	}

	view, err := s.engine.Decide(r.Context(), r.PathValue("id"), req.ApprovalID, decision, req.DecidedBy)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeJSON(w, view)
}
