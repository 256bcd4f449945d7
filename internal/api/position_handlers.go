package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/skyops/propilot/internal/ooi"
	"github.com/skyops/propilot/internal/websocket"
	"github.com/skyops/propilot/pkg/logger"
)

// positionRequest is one GPS fix from the device. speed_kts may be omitted;
// -1 tells the monitor to derive it from the previous fix.
type positionRequest struct {
	Lat       float64    `json:"lat"`
	Lon       float64    `json:"lon"`
	SpeedKts  *float64   `json:"speed_kts"`
	Timestamp *time.Time `json:"timestamp"`
}

// IngestPosition feeds one position sample into the OOOI monitor
func (h *Handler) IngestPosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Lat < -90 || req.Lat > 90 || req.Lon < -180 || req.Lon > 180 {
		http.Error(w, "Invalid coordinates", http.StatusBadRequest)
		return
	}

	sample := ooi.PositionSample{
		Lat:      req.Lat,
		Lon:      req.Lon,
		SpeedKts: -1,
	}
	if req.SpeedKts != nil {
		if *req.SpeedKts < 0 || *req.SpeedKts > 700 {
			http.Error(w, "Invalid speed (0-700 knots)", http.StatusBadRequest)
			return
		}
		sample.SpeedKts = *req.SpeedKts
	}
	if req.Timestamp != nil {
		sample.Timestamp = *req.Timestamp
	}

	accepted := h.monitor.Ingest(sample)

	if accepted {
		h.wsServer.Broadcast(&websocket.Message{
			Type: websocket.MessageTypePositionUpdate,
			Data: map[string]any{
				"lat":       sample.Lat,
				"lon":       sample.Lon,
				"speed_kts": sample.SpeedKts,
				"timestamp": sample.Timestamp,
			},
		})
	}

	WriteJSON(w, http.StatusOK, map[string]any{"accepted": accepted})
}

// GetMonitorStatus returns the OOOI monitor state
func (h *Handler) GetMonitorStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.monitor.Status())
}

// ResetMonitor rearms the speed machine
func (h *Handler) ResetMonitor(w http.ResponseWriter, r *http.Request) {
	h.monitor.Reset()
	WriteJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

// StartSimulatedFlight starts the synthetic GPS feed between two airports
func (h *Handler) StartSimulatedFlight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Departure string `json:"departure"`
		Arrival   string `json:"arrival"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	flight, err := h.simService.StartFlight(req.Departure, req.Arrival)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	h.logger.Info("Simulated flight started via API",
		logger.String("departure", flight.Departure),
		logger.String("arrival", flight.Arrival))
	WriteJSON(w, http.StatusCreated, flight)
}

// StopSimulatedFlight aborts the running simulated flight
func (h *Handler) StopSimulatedFlight(w http.ResponseWriter, r *http.Request) {
	h.simService.StopFlight()
	WriteJSON(w, http.StatusOK, map[string]any{"status": "stopped"})
}

// GetSimulatedFlight returns the in-progress simulated flight
func (h *Handler) GetSimulatedFlight(w http.ResponseWriter, r *http.Request) {
	flight, ok := h.simService.Current()
	if !ok {
		http.Error(w, "No simulated flight running", http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, flight)
}
