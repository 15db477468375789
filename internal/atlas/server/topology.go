package server

import (
	"net/http"
)

type buildRequest struct {
	DeviceIDs []string `json:"device_ids,omitempty"`
}

func (s *Server) handleBuildTopology(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if r.ContentLength > 0 {
		if err := s.decode(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
	}
	snapshot, err := s.svc.BuildTopology(r.Context(), req.DeviceIDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleBaseline(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.svc.Baseline(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

type draftRequest struct {
	Actor string `json:"actor"`
}

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if r.ContentLength > 0 {
		if err := s.decode(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
	}
	draft, err := s.svc.CreateDraft(r.Context(), req.Actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, draft)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := s.svc.GetDraft(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteDraft(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

type edgeUpdateRequest struct {
	Source          string `json:"source"`
	Target          string `json:"target"`
	SourceInterface string `json:"source_interface,omitempty"`
	Cost            int    `json:"cost"`
}

func (s *Server) handleUpdateDraftEdge(w http.ResponseWriter, r *http.Request) {
	var req edgeUpdateRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.UpdateDraftEdge(r.Context(), req.Source, req.Target, req.SourceInterface, req.Cost); err != nil {
		s.writeError(w, err)
		return
	}
	draft, err := s.svc.GetDraft(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.RunImpact(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}
