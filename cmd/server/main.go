package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/skyops/propilot/internal/airport"
	"github.com/skyops/propilot/internal/api"
	"github.com/skyops/propilot/internal/config"
	"github.com/skyops/propilot/internal/events"
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

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting ProPilot server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Airport database
	airportDB, err := airport.LoadDatabase(cfg.Airports.DBPath, log)
	if err != nil {
		log.Error("Failed to load airport database", logger.Error(err))
		os.Exit(1)
	}
	mappings := airport.NewCodeMappings(airportDB, log)

	// SQLite storage
	dbDir := filepath.Dir(cfg.Storage.SQLitePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.Error("Failed to create database directory", logger.Error(err), logger.String("path", dbDir))
		os.Exit(1)
	}

	store, err := sqlite.Open(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("Failed to open SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	tripStorage := sqlite.NewTripStorage(store)
	pendingStorage := sqlite.NewPendingStorage(store)
	trackStorage := sqlite.NewTrackStorage(store, cfg.Storage.MaxTrackPoints)

	// Event bus and WebSocket hub
	bus := events.NewBus(log)
	wsServer := websocket.NewServer(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go wsServer.Run(ctx)

	bridge := websocket.NewBridge(wsServer, bus, log)
	go bridge.Run(ctx)

	// Domain services
	tripService := trip.NewService(tripStorage, bus, cfg.OOOI, log)
	if err := tripService.Start(ctx); err != nil {
		log.Error("Failed to start trip service", logger.Error(err))
		os.Exit(1)
	}

	rosterService := roster.NewService(pendingStorage, tripService, mappings, cfg.Roster, log)

	monitor := ooi.NewMonitor(airportDB, bus, cfg.OOOI, cfg.Airports.AirportRangeNM, trackStorage, log)

	weatherService := wx.NewService(cfg.Weather, cfg.Airports.HomeBase, log)
	if err := weatherService.Start(ctx); err != nil {
		log.Error("Failed to start weather service", logger.Error(err))
		os.Exit(1)
	}

	scheduleService := schedules.NewService(cfg.Schedules, log)

	simService := simulation.NewService(airportDB, monitor, log)
	if err := simService.Start(ctx); err != nil {
		log.Error("Failed to start simulation service", logger.Error(err))
		os.Exit(1)
	}

	// HTTP server
	handler := api.NewHandler(
		tripService,
		rosterService,
		monitor,
		weatherService,
		scheduleService,
		simService,
		airportDB,
		mappings,
		trackStorage,
		cfg,
		log,
		wsServer,
	)
	router := api.NewRouter(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.String("addr", addr), logger.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	log.Info("Stopping simulation service...")
	simService.StopFlight()

	log.Info("Stopping weather service...")
	weatherService.Stop()

	log.Info("Stopping trip service...")
	tripService.Stop()

	cancel()

	log.Info("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	if cfg.Storage.BackupOnShutdown && cfg.Storage.BackupDir != "" {
		if err := os.MkdirAll(cfg.Storage.BackupDir, 0755); err != nil {
			log.Error("Failed to create backup directory", logger.Error(err))
		} else if path, err := store.Backup(cfg.Storage.BackupDir); err != nil {
			log.Error("Shutdown backup failed", logger.Error(err))
		} else {
			log.Info("Shutdown backup written", logger.String("path", path))
		}
	}

	log.Info("Server fully stopped")
}
