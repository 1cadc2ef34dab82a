package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rmax-ai/pipeforge/pkg/componentspec"
	"github.com/rmax-ai/pipeforge/pkg/ctxlog"
	"github.com/rmax-ai/pipeforge/pkg/fetch"
)

// handleLibraries loads a component library by url.
func (s *Server) handleLibraries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.libraries == nil {
		http.Error(w, `{"error":"libraries_not_configured"}`, http.StatusServiceUnavailable)
		return
	}

	var req LibraryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, `{"error":"missing_required_fields"}`, http.StatusBadRequest)
		return
	}

	report, err := s.libraries.Load(r.Context(), req.URL)
	if err != nil {
		logger := ctxlog.FromContext(r.Context())
		switch {
		case errors.Is(err, fetch.ErrNetwork):
			logger.Warn("library_fetch_failed", "url", req.URL, "error", err.Error())
			http.Error(w, `{"error":"library_fetch_failed"}`, http.StatusBadGateway)
		case errors.Is(err, componentspec.ErrParse):
			logger.Warn("library_invalid", "url", req.URL, "error", err.Error())
			http.Error(w, `{"error":"invalid_library"}`, http.StatusUnprocessableEntity)
		default:
			logger.Error("failed_to_load_library", "url", req.URL, "error", err.Error())
			http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		}
		return
	}
	s.writeJSON(w, r, http.StatusOK, report)
}

// handleExport writes a snapshot of the component store to blob storage.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.exporter == nil {
		http.Error(w, `{"error":"export_not_configured"}`, http.StatusServiceUnavailable)
		return
	}

	res, err := s.exporter.Export(r.Context())
	if err != nil {
		ctxlog.FromContext(r.Context()).Error("failed_to_export_components", "error", err.Error())
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, r, http.StatusOK, res)
}
