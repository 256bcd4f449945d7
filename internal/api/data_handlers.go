package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// GetAirport resolves an airport code (ICAO, IATA, or user mapping)
func (h *Handler) GetAirport(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		http.Error(w, "Missing airport code", http.StatusBadRequest)
		return
	}

	apt, ok := h.mappings.Resolve(code)
	if !ok {
		http.Error(w, "Airport not found", http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, apt)
}

// GetNearestAirport returns the closest known airport to a position
func (h *Handler) GetNearestAirport(w http.ResponseWriter, r *http.Request) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err1 != nil || err2 != nil {
		http.Error(w, "lat and lon query parameters are required", http.StatusBadRequest)
		return
	}

	apt, distNM, ok := h.airports.Nearest(lat, lon)
	if !ok {
		http.Error(w, "No airports loaded", http.StatusNotFound)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"airport":     apt,
		"distance_nm": distNM,
		"in_range":    distNM <= h.config.Airports.AirportRangeNM,
	})
}

// GetUnknownCodes returns airport codes seen in roster feeds that resolved to
// nothing, with their occurrence counts.
func (h *Handler) GetUnknownCodes(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"unknown_codes": h.mappings.UnknownCodes()})
}

// GetCodeMappings returns the user-defined code mappings
func (h *Handler) GetCodeMappings(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"mappings": h.mappings.Mappings()})
}

// AddCodeMapping maps a feed airport code to an ICAO identifier
func (h *Handler) AddCodeMapping(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
		ICAO string `json:"icao"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := h.mappings.AddMapping(req.Code, req.ICAO); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"status": "mapped"})
}

// GetWeather returns METAR/TAF/D-ATIS for an airport, from cache when fresh
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		http.Error(w, "Missing airport code", http.StatusBadRequest)
		return
	}

	// Resolve so IATA and user codes work here too
	if apt, ok := h.mappings.Resolve(code); ok {
		code = apt.ICAO
	}

	WriteJSON(w, http.StatusOK, h.weatherService.Get(code))
}

// RefreshWeather triggers an immediate home base weather refresh
func (h *Handler) RefreshWeather(w http.ResponseWriter, r *http.Request) {
	h.weatherService.RefreshNow()
	WriteJSON(w, http.StatusAccepted, map[string]any{"status": "refreshing"})
}

// GetWeatherStats returns weather cache statistics
func (h *Handler) GetWeatherStats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.weatherService.CacheStats())
}

// SearchSchedules looks up scheduled flights by number and date
func (h *Handler) SearchSchedules(w http.ResponseWriter, r *http.Request) {
	flightNumber := r.URL.Query().Get("flight")
	if flightNumber == "" {
		http.Error(w, "flight query parameter is required", http.StatusBadRequest)
		return
	}

	var date time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "Invalid date (expected YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	flights, err := h.scheduleService.Search(flightNumber, date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"flights": flights, "count": len(flights)})
}
