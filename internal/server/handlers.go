package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/semindex/internal/models"
	"github.com/hyperjump/semindex/internal/queue"
	"github.com/hyperjump/semindex/internal/registry"
	"github.com/hyperjump/semindex/internal/search"
	"github.com/hyperjump/semindex/internal/workspace"
)

type indexRequest struct {
	Index string `json:"index"`
	Force bool   `json:"force"`
}

type notifyRequest struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Index == "" {
		req.Index = models.AllIndexes
	}
	s.logger.Debug("index request", zap.String("index", req.Index), zap.Bool("force", req.Force))
	reports, err := s.ws.Index(r.Context(), req.Index, req.Force, nil)
	if err != nil {
		s.fail(w, "indexing failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"reports": reports})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.String("index", req.Index), zap.Int("limit", req.Limit))
	response, err := s.ws.Search(r.Context(), req)
	if err != nil {
		s.fail(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("index")
	if name == "" {
		name = models.AllIndexes
	}
	statuses, err := s.ws.Status(r.Context(), name)
	if err != nil {
		s.fail(w, "status failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"indexes": statuses})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.logger.Debug("clear request", zap.String("index", name))
	cleared, err := s.ws.Clear(r.Context(), name)
	if err != nil {
		s.fail(w, "clear failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"cleared": cleared})
}

func (s *Server) handleSetEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if err := s.ws.SetEnabled(name, enabled); err != nil {
			s.fail(w, "toggle index failed", err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"index": name, "enabled": enabled})
	}
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	kind := queue.EventWrite
	if req.Kind != "" {
		k, ok := queue.ParseEventKind(req.Kind)
		if !ok {
			s.respondError(w, http.StatusBadRequest, "unknown event kind: "+req.Kind)
			return
		}
		kind = k
	}
	queued := s.ws.Notify(req.Path, kind)
	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{"path": req.Path, "queued": queued})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail maps err to a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrUnknownIndex), errors.Is(err, search.ErrUnknownIndex):
		return http.StatusNotFound
	case errors.Is(err, workspace.ErrDisabled), errors.Is(err, workspace.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, workspace.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
