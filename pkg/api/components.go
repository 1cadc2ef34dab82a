package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rmax-ai/pipeforge/pkg/componentref"
	"github.com/rmax-ai/pipeforge/pkg/ctxlog"
	"github.com/rmax-ai/pipeforge/pkg/store"
)

// handleHydrate resolves one component reference.
func (s *Server) handleHydrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req HydrateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	if componentref.IsInvalid(req.Reference) {
		http.Error(w, `{"error":"missing_reference_fields"}`, http.StatusBadRequest)
		return
	}

	hydrated := s.hydrator.Hydrate(r.Context(), req.Reference)
	if hydrated == nil {
		http.Error(w, `{"error":"unresolvable_reference"}`, http.StatusUnprocessableEntity)
		return
	}
	s.writeJSON(w, r, http.StatusOK, HydrateResponse{Hydrated: hydrated})
}

// handleComponents lists cached records, or looks one up by url.
func (s *Server) handleComponents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	logger := ctxlog.FromContext(r.Context())

	if url := r.URL.Query().Get("url"); url != "" {
		rec, err := s.store.GetByURL(r.Context(), url)
		if err != nil {
			logger.Error("failed_to_read_component", "url", url, "error", err.Error())
			http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			return
		}
		if rec == nil {
			http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
			return
		}
		s.writeJSON(w, r, http.StatusOK, rec)
		return
	}

	limit := store.DefaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}

	records, err := s.store.List(r.Context(), limit)
	if err != nil {
		logger.Error("failed_to_list_components", "error", err.Error())
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	s.writeJSON(w, r, http.StatusOK, records)
}

// handleComponent returns a single record by id.
func (s *Server) handleComponent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/components/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}

	rec, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		ctxlog.FromContext(r.Context()).Error("failed_to_read_component", "id", id, "error", err.Error())
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}
	s.writeJSON(w, r, http.StatusOK, rec)
}
