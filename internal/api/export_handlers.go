package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/skyops/propilot/internal/export"
	"github.com/skyops/propilot/pkg/logger"
)

// trackWindow parses the optional from/to query parameters (RFC 3339)
func trackWindow(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, fmt.Errorf("invalid from parameter: %w", err)
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, fmt.Errorf("invalid to parameter: %w", err)
		}
		to = parsed
	}
	return from, to, nil
}

// ExportGPX streams the stored GPS track as GPX
func (h *Handler) ExportGPX(w http.ResponseWriter, r *http.Request) {
	from, to, err := trackWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	samples, err := h.trackStorage.Samples(from, to)
	if err != nil {
		h.logger.Error("Failed to load track samples", logger.Error(err))
		http.Error(w, "Failed to load track", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/gpx+xml")
	w.Header().Set("Content-Disposition", `attachment; filename="track.gpx"`)
	if err := export.WriteGPX(w, export.TrackName("Flight track", time.Now()), samples); err != nil {
		h.logger.Error("GPX export failed", logger.Error(err))
	}
}

// ExportKML streams the stored GPS track as KML with a flyover tour
func (h *Handler) ExportKML(w http.ResponseWriter, r *http.Request) {
	from, to, err := trackWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	samples, err := h.trackStorage.Samples(from, to)
	if err != nil {
		h.logger.Error("Failed to load track samples", logger.Error(err))
		http.Error(w, "Failed to load track", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	w.Header().Set("Content-Disposition", `attachment; filename="track.kml"`)
	if err := export.WriteKML(w, export.TrackName("Flight track", time.Now()), samples); err != nil {
		h.logger.Error("KML export failed", logger.Error(err))
	}
}

// ExportLogbookCSV streams all trips as logbook rows
func (h *Handler) ExportLogbookCSV(w http.ResponseWriter, r *http.Request) {
	trips, err := h.tripService.GetAll()
	if err != nil {
		h.logger.Error("Failed to load trips for export", logger.Error(err))
		http.Error(w, "Failed to load trips", http.StatusInternalServerError)
		return
	}

	zulu := r.URL.Query().Get("zulu") != "false"

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="logbook.csv"`)
	if err := export.WriteCSV(w, trips, zulu); err != nil {
		h.logger.Error("CSV export failed", logger.Error(err))
	}
}

// ImportLogbookCSV parses logbook rows and stores them as completed trips
func (h *Handler) ImportLogbookCSV(w http.ResponseWriter, r *http.Request) {
	trips, err := export.ReadCSV(r.Body, time.UTC)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	for _, t := range trips {
		if err := h.tripService.Save(t); err != nil {
			h.logger.Error("Failed to save imported trip",
				logger.String("trip", t.Number),
				logger.Error(err))
			http.Error(w, "Failed to save imported trips", http.StatusInternalServerError)
			return
		}
	}

	h.logger.Info("Logbook imported", logger.Int("trips", len(trips)))
	WriteJSON(w, http.StatusCreated, map[string]any{"imported": len(trips)})
}

// ExportBackup streams all trips as a JSON backup document
func (h *Handler) ExportBackup(w http.ResponseWriter, r *http.Request) {
	trips, err := h.tripService.GetAll()
	if err != nil {
		h.logger.Error("Failed to load trips for backup", logger.Error(err))
		http.Error(w, "Failed to load trips", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="propilot-backup.json"`)
	if err := export.WriteBackup(w, trips); err != nil {
		h.logger.Error("Backup export failed", logger.Error(err))
	}
}

// RestoreBackup loads a backup document and stores every trip in it
func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	trips, err := export.ReadBackup(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	for _, t := range trips {
		if err := h.tripService.Save(t); err != nil {
			h.logger.Error("Failed to restore trip",
				logger.String("trip", t.Number),
				logger.Error(err))
			http.Error(w, "Failed to restore trips", http.StatusInternalServerError)
			return
		}
	}

	h.logger.Info("Backup restored", logger.Int("trips", len(trips)))
	WriteJSON(w, http.StatusCreated, map[string]any{"restored": len(trips)})
}
