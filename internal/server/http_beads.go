package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/alfredjeanlab/kquery/internal/filter"
)

// handleSearch handles POST /v1/search/{entity}. An empty body searches with
// no predicates.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req filter.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	entity := r.PathValue("entity")
	page, err := s.search(r.Context(), entity, &req)
	if err != nil {
		writeOpError(w, err, entity)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entity":  entity,
		"results": page,
		"count":   len(page),
	})
}

// handleCreateBead handles POST /v1/beads.
func (s *Server) handleCreateBead(w http.ResponseWriter, r *http.Request) {
	var in createBeadInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	bead, err := s.createBead(r.Context(), in)
	if err != nil {
		writeOpError(w, err, "bead")
		return
	}
	writeJSON(w, http.StatusCreated, bead)
}

// handleGetBead handles GET /v1/beads/{id}.
func (s *Server) handleGetBead(w http.ResponseWriter, r *http.Request) {
	bead, err := s.getBead(r.Context(), r.PathValue("id"))
	if err != nil {
		writeOpError(w, err, "bead")
		return
	}
	writeJSON(w, http.StatusOK, bead)
}

// handleUpdateBead handles PATCH /v1/beads/{id}.
func (s *Server) handleUpdateBead(w http.ResponseWriter, r *http.Request) {
	var in updateBeadInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	bead, err := s.updateBead(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeOpError(w, err, "bead")
		return
	}
	writeJSON(w, http.StatusOK, bead)
}

// handleDeleteBead handles DELETE /v1/beads/{id}.
func (s *Server) handleDeleteBead(w http.ResponseWriter, r *http.Request) {
	if err := s.deleteBead(r.Context(), r.PathValue("id")); err != nil {
		writeOpError(w, err, "bead")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddComment handles POST /v1/beads/{id}/comments.
func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	comment, err := s.addComment(r.Context(), r.PathValue("id"), in.Text)
	if err != nil {
		writeOpError(w, err, "bead")
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// handleGetHistory handles GET /v1/beads/{id}/history.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.beadHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeOpError(w, err, "bead")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}
