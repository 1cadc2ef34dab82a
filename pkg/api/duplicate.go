package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rmax-ai/pipeforge/pkg/componentspec"
	"github.com/rmax-ai/pipeforge/pkg/ctxlog"
	"github.com/rmax-ai/pipeforge/pkg/duplicate"
)

// handleDuplicate copies the selected nodes of a graph component and returns
// the whole updated component.
func (s *Server) handleDuplicate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	logger := ctxlog.FromContext(r.Context())

	var req DuplicateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}

	mode, err := duplicate.ParseMode(string(req.Config.Connection))
	if err != nil {
		http.Error(w, `{"error":"invalid_connection_mode"}`, http.StatusBadRequest)
		return
	}
	req.Config.Connection = mode

	spec, err := componentspec.Parse(req.ComponentText)
	if err != nil {
		logger.Info("duplicate_rejected", "error", err.Error())
		http.Error(w, `{"error":"invalid_component_text"}`, http.StatusBadRequest)
		return
	}

	res, err := duplicate.Duplicate(spec, req.Nodes, req.Config)
	if err != nil {
		if errors.Is(err, duplicate.ErrGraphShape) {
			http.Error(w, `{"error":"not_a_graph_component"}`, http.StatusUnprocessableEntity)
			return
		}
		logger.Error("failed_to_duplicate", "error", err.Error())
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}

	text, err := componentspec.Serialize(res.Spec)
	if err != nil {
		logger.Error("failed_to_serialize_component", "error", err.Error())
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}

	DuplicationsTotal.WithLabelValues(string(mode)).Inc()
	logger.Info("nodes_duplicated",
		"connection", string(mode),
		"requested", len(req.Nodes),
		"duplicated", len(res.NewNodes),
	)
	s.writeJSON(w, r, http.StatusOK, DuplicateResponse{
		ComponentText: text,
		NodeIDMap:     res.NodeIDMap,
		NewNodes:      res.NewNodes,
		OriginalNodes: res.OriginalNodes,
	})
}
