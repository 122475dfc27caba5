package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"inredd/internal/config"
	"inredd/internal/logger"
	"inredd/internal/repository/sqlite"
	"inredd/internal/routes"
	"inredd/internal/services"
	"inredd/internal/services/imaging"
	"inredd/internal/services/websocket"
)

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	hubService *websocket.HubService
	manager    *services.Manager
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg.LogDirectory)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}

	prober := imaging.NewProber()
	hub := websocket.NewHubService(log)

	mng := services.NewManager(cfg, prober, hub,
		sqlite.NewImageRepository(db), sqlite.NewAnnotationRepository(db), log)

	return &App{
		config:     cfg,
		logger:     log,
		db:         db,
		hubService: hub,
		manager:    mng,
	}, nil
}

func (a *App) Run() error {
	defer a.db.Close()

	// Start background services
	go a.hubService.Run()

	// Load the configured split before serving
	if _, err := a.manager.LoadSplit(context.Background()); err != nil {
		return fmt.Errorf("initial split load: %w", err)
	}

	// Setup routes
	router := routes.SetupRoutes(a.manager, a.config, a.logger)

	fmt.Printf("🦷 InReDD Annotation Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("📁 Dataset: %s (split %q)\n", a.config.DatasetRoot, a.config.Split)
	fmt.Printf("🗂  Index: %s\n", a.config.DBPath)

	return http.ListenAndServe(fmt.Sprintf(":%d", a.config.Port), router)
}
