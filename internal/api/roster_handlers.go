package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/skyops/propilot/pkg/logger"
)

// ImportRoster parses a roster CSV body into pending trips. The optional tz
// query parameter names the location the feed's local times are in.
func (h *Handler) ImportRoster(w http.ResponseWriter, r *http.Request) {
	loc := time.UTC
	if tz := r.URL.Query().Get("tz"); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			http.Error(w, "Invalid tz parameter", http.StatusBadRequest)
			return
		}
		loc = parsed
	}

	result, err := h.rosterService.ImportCSV(r.Body, loc)
	if err != nil {
		h.logger.Error("Roster import failed", logger.Error(err))
		http.Error(w, "Roster import failed", http.StatusInternalServerError)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// GetPendingTrips returns all open pending trips
func (h *Handler) GetPendingTrips(w http.ResponseWriter, r *http.Request) {
	pending, err := h.rosterService.Pending()
	if err != nil {
		h.logger.Error("Failed to list pending trips", logger.Error(err))
		http.Error(w, "Failed to list pending trips", http.StatusInternalServerError)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"pending": pending, "count": len(pending)})
}

// GetPendingConnections returns the pending trips that connect onto one
func (h *Handler) GetPendingConnections(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pendingID(w, r)
	if !ok {
		return
	}

	connections, err := h.rosterService.Connections(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"connections": connections})
}

// MergePendingTrips appends another pending trip's legs onto this one
func (h *Handler) MergePendingTrips(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pendingID(w, r)
	if !ok {
		return
	}

	var req struct {
		SourceID uuid.UUID `json:"source_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	merged, err := h.rosterService.Merge(id, req.SourceID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	WriteJSON(w, http.StatusOK, merged)
}

// ConfirmPendingTrip converts a pending trip into a real trip
func (h *Handler) ConfirmPendingTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pendingID(w, r)
	if !ok {
		return
	}

	t, err := h.rosterService.Confirm(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	WriteJSON(w, http.StatusCreated, t)
}

// DiscardPendingTrip drops a pending trip
func (h *Handler) DiscardPendingTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pendingID(w, r)
	if !ok {
		return
	}

	if err := h.rosterService.Discard(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"status": "discarded"})
}

// pendingID extracts and validates the {id} URL parameter
func (h *Handler) pendingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "Invalid pending trip ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
