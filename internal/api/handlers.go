// Package api exposes the HTTP surface: trip and roster operations, position
// ingest, airport lookups, weather, schedules, exports, and the WebSocket
// event stream.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/skyops/propilot/internal/airport"
	"github.com/skyops/propilot/internal/config"
	"github.com/skyops/propilot/internal/ooi"
	"github.com/skyops/propilot/internal/roster"
	"github.com/skyops/propilot/internal/schedules"
	"github.com/skyops/propilot/internal/simulation"
	"github.com/skyops/propilot/internal/storage/sqlite"
	"github.com/skyops/propilot/internal/trip"
	"github.com/skyops/propilot/internal/websocket"
	"github.com/skyops/propilot/internal/wx"
	"github.com/skyops/propilot/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	tripService     *trip.Service
	rosterService   *roster.Service
	monitor         *ooi.Monitor
	weatherService  *wx.Service
	scheduleService *schedules.Service
	simService      *simulation.Service
	airports        *airport.Database
	mappings        *airport.CodeMappings
	trackStorage    *sqlite.TrackStorage
	config          *config.Config
	logger          *logger.Logger
	wsServer        *websocket.Server
}

// NewHandler creates a new API handler
func NewHandler(
	tripService *trip.Service,
	rosterService *roster.Service,
	monitor *ooi.Monitor,
	weatherService *wx.Service,
	scheduleService *schedules.Service,
	simService *simulation.Service,
	airports *airport.Database,
	mappings *airport.CodeMappings,
	trackStorage *sqlite.TrackStorage,
	cfg *config.Config,
	log *logger.Logger,
	wsServer *websocket.Server,
) *Handler {
	return &Handler{
		tripService:     tripService,
		rosterService:   rosterService,
		monitor:         monitor,
		weatherService:  weatherService,
		scheduleService: scheduleService,
		simService:      simService,
		airports:        airports,
		mappings:        mappings,
		trackStorage:    trackStorage,
		config:          cfg,
		logger:          log.Named("api-handler"),
		wsServer:        wsServer,
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := h.monitor.Status()

	response := map[string]any{
		"status":        "ok",
		"airports":      h.airports.Count(),
		"samples_seen":  status.SamplesSeen,
		"samples_stale": status.SamplesStale,
		"ws_clients":    h.wsServer.ClientCount(),
	}
	WriteJSON(w, http.StatusOK, response)
}

// GetConfig returns the public configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	publicConfig := map[string]any{
		"airports": map[string]any{
			"airport_range_nm": h.config.Airports.AirportRangeNM,
			"home_base":        h.config.Airports.HomeBase,
		},
		"roster": map[string]any{
			"grouping_mode":           h.config.Roster.GroupingMode,
			"duty_break_hours":        h.config.Roster.DutyBreakHours,
			"separate_duty_gap_hours": h.config.Roster.SeparateDutyGapHours,
			"max_calendar_day_spread": h.config.Roster.MaxCalendarDaySpread,
		},
		"ooi": map[string]any{
			"enabled":                h.config.OOOI.Enabled,
			"takeoff_speed_kts":      h.config.OOOI.TakeoffSpeedKts,
			"landing_speed_kts":      h.config.OOOI.LandingSpeedKts,
			"landing_window_minutes": h.config.OOOI.LandingWindowMinutes,
			"round_to_five_minutes":  h.config.OOOI.RoundToFiveMinutes,
			"use_zulu_time":          h.config.OOOI.UseZuluTime,
		},
	}
	WriteJSON(w, http.StatusOK, publicConfig)
}

// GetAllTrips returns all stored trips
func (h *Handler) GetAllTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := h.tripService.GetAll()
	if err != nil {
		h.logger.Error("Failed to list trips", logger.Error(err))
		http.Error(w, "Failed to list trips", http.StatusInternalServerError)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"trips": trips, "count": len(trips)})
}

// GetCurrentTrip returns the single planning/active trip
func (h *Handler) GetCurrentTrip(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tripService.GetCurrent()
	if !ok {
		http.Error(w, "No current trip", http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

// GetTripByID returns one trip
func (h *Handler) GetTripByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tripID(w, r)
	if !ok {
		return
	}

	t, found := h.tripService.Get(id)
	if !found {
		http.Error(w, "Trip not found", http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

// createTripRequest is the POST /trips body: legs fold into a single logpage
type createTripRequest struct {
	Number   string            `json:"number"`
	Aircraft string            `json:"aircraft"`
	Date     time.Time         `json:"date"`
	Crew     []trip.CrewMember `json:"crew"`
	Legs     []struct {
		FlightNumber string     `json:"flight_number"`
		Departure    string     `json:"departure"`
		Arrival      string     `json:"arrival"`
		ScheduledOut *time.Time `json:"scheduled_out"`
		ScheduledIn  *time.Time `json:"scheduled_in"`
	} `json:"legs"`
}

// CreateTrip stores a new trip in planning status
func (h *Handler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var req createTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.Legs) == 0 {
		http.Error(w, "At least one leg is required", http.StatusBadRequest)
		return
	}

	t := &trip.Trip{
		ID:       uuid.New(),
		Number:   req.Number,
		Aircraft: req.Aircraft,
		Date:     req.Date,
		Crew:     req.Crew,
		Status:   trip.StatusPlanning,
		Logpages: []*trip.Logpage{{ID: uuid.New(), Number: 1}},
	}
	if t.Date.IsZero() {
		t.Date = time.Now().UTC()
	}
	if t.Number == "" {
		t.Number = "TRIP-" + t.Date.Format("20060102-150405")
	}

	for _, l := range req.Legs {
		if l.Departure == "" || l.Arrival == "" {
			http.Error(w, "Leg departure and arrival are required", http.StatusBadRequest)
			return
		}
		t.Logpages[0].Legs = append(t.Logpages[0].Legs, &trip.FlightLeg{
			ID:           uuid.New(),
			FlightNumber: l.FlightNumber,
			Departure:    l.Departure,
			Arrival:      l.Arrival,
			ScheduledOut: l.ScheduledOut,
			ScheduledIn:  l.ScheduledIn,
			Status:       trip.LegStandby,
		})
	}

	if err := h.tripService.Save(t); err != nil {
		h.logger.Error("Failed to save trip", logger.Error(err))
		http.Error(w, "Failed to save trip", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Trip created via API",
		logger.String("trip", t.Number),
		logger.Int("legs", len(t.Legs())))
	WriteJSON(w, http.StatusCreated, t)
}

// ActivateTrip transitions a trip to active
func (h *Handler) ActivateTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tripID(w, r)
	if !ok {
		return
	}

	t, err := h.tripService.Activate(id, time.Now().UTC())
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

// CompleteTrip force-completes a trip
func (h *Handler) CompleteTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tripID(w, r)
	if !ok {
		return
	}

	t, err := h.tripService.CompleteTrip(id, time.Now().UTC())
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

// DeleteTrip removes a trip
func (h *Handler) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tripID(w, r)
	if !ok {
		return
	}

	if err := h.tripService.Delete(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// setLegTimeRequest is the manual OOOI entry body
type setLegTimeRequest struct {
	Field     string    `json:"field"` // "out", "off", "on", "in"
	Time      time.Time `json:"time"`
	Overwrite bool      `json:"overwrite"`
}

// SetLegTime records a manual OOOI time on a leg
func (h *Handler) SetLegTime(w http.ResponseWriter, r *http.Request) {
	tripID, ok := h.tripID(w, r)
	if !ok {
		return
	}
	legID, ok := h.legID(w, r)
	if !ok {
		return
	}

	var req setLegTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	field, err := trip.ParseOOOIField(req.Field)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Time.IsZero() {
		req.Time = time.Now().UTC()
	}

	t, err := h.tripService.SetLegTime(tripID, legID, field, req.Time, req.Overwrite)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

// SkipLeg marks a leg skipped
func (h *Handler) SkipLeg(w http.ResponseWriter, r *http.Request) {
	tripID, ok := h.tripID(w, r)
	if !ok {
		return
	}
	legID, ok := h.legID(w, r)
	if !ok {
		return
	}

	t, err := h.tripService.SkipLeg(tripID, legID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

// tripID extracts and validates the {id} URL parameter
func (h *Handler) tripID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "Invalid trip ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// legID extracts and validates the {legID} URL parameter
func (h *Handler) legID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "legID")
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "Invalid leg ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
