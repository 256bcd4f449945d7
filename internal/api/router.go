package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the HTTP routes
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.GetHealth)
		r.Get("/config", h.GetConfig)

		r.Route("/trips", func(r chi.Router) {
			r.Get("/", h.GetAllTrips)
			r.Post("/", h.CreateTrip)
			r.Get("/current", h.GetCurrentTrip)
			r.Get("/{id}", h.GetTripByID)
			r.Delete("/{id}", h.DeleteTrip)
			r.Post("/{id}/activate", h.ActivateTrip)
			r.Post("/{id}/complete", h.CompleteTrip)
			r.Post("/{id}/legs/{legID}/times", h.SetLegTime)
			r.Post("/{id}/legs/{legID}/skip", h.SkipLeg)
		})

		r.Route("/roster", func(r chi.Router) {
			r.Post("/import", h.ImportRoster)
			r.Get("/pending", h.GetPendingTrips)
			r.Get("/pending/{id}/connections", h.GetPendingConnections)
			r.Post("/pending/{id}/merge", h.MergePendingTrips)
			r.Post("/pending/{id}/confirm", h.ConfirmPendingTrip)
			r.Post("/pending/{id}/discard", h.DiscardPendingTrip)
		})

		r.Route("/positions", func(r chi.Router) {
			r.Post("/", h.IngestPosition)
			r.Get("/status", h.GetMonitorStatus)
			r.Post("/reset", h.ResetMonitor)
		})

		r.Route("/airports", func(r chi.Router) {
			r.Get("/nearest", h.GetNearestAirport)
			r.Get("/unknown-codes", h.GetUnknownCodes)
			r.Get("/mappings", h.GetCodeMappings)
			r.Post("/mappings", h.AddCodeMapping)
			r.Get("/{code}", h.GetAirport)
		})

		r.Route("/wx", func(r chi.Router) {
			r.Post("/refresh", h.RefreshWeather)
			r.Get("/stats", h.GetWeatherStats)
			r.Get("/{code}", h.GetWeather)
		})

		r.Get("/schedules/search", h.SearchSchedules)

		r.Route("/export", func(r chi.Router) {
			r.Get("/track.gpx", h.ExportGPX)
			r.Get("/track.kml", h.ExportKML)
			r.Get("/logbook.csv", h.ExportLogbookCSV)
			r.Get("/backup.json", h.ExportBackup)
		})

		r.Route("/import", func(r chi.Router) {
			r.Post("/logbook", h.ImportLogbookCSV)
			r.Post("/backup", h.RestoreBackup)
		})

		r.Route("/simulation", func(r chi.Router) {
			r.Post("/flight", h.StartSimulatedFlight)
			r.Delete("/flight", h.StopSimulatedFlight)
			r.Get("/flight", h.GetSimulatedFlight)
		})
	})

	r.Get("/ws", h.wsServer.HandleConnection)

	return r
}
