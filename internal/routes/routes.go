package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"inredd/internal/config"
	"inredd/internal/handlers"
	"inredd/internal/logger"
	"inredd/internal/middleware"
	"inredd/internal/services"
)

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", path+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the authentication middleware.
func SetupRoutes(manager *services.Manager, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// API endpoints
	mux.HandleFunc("/api/records", handlers.DisplayRecordsHandler(manager, logger))
	mux.HandleFunc("/api/records/view", handlers.ViewRecordHandler(manager, logger))
	mux.HandleFunc("/api/conditions", handlers.GetConditionsHandler(manager, logger))
	mux.HandleFunc("/api/stats", handlers.GetStatsHandler(manager, logger))
	mux.HandleFunc("/api/report", handlers.GetReportHandler(manager, logger))
	mux.HandleFunc("/api/reload", handlers.ReloadHandler(manager, logger))
	mux.HandleFunc("/api/index", handlers.IndexSplitHandler(manager, logger))
	mux.HandleFunc("/api/progress", handlers.ProgressWebsocketHandler(manager, logger))

	// Log endpoints
	mux.HandleFunc("/logs/info", handlers.ShowLogsHandler(cfg, "info"))
	mux.HandleFunc("/logs/warning", handlers.ShowLogsHandler(cfg, "warning"))
	mux.HandleFunc("/logs/error", handlers.ShowLogsHandler(cfg, "error"))

	mux.HandleFunc("/logs/info/clear", handlers.ClearLogsHandler(logger, "info"))
	mux.HandleFunc("/logs/warning/clear", handlers.ClearLogsHandler(logger, "warning"))
	mux.HandleFunc("/logs/error/clear", handlers.ClearLogsHandler(logger, "error"))

	// Auth endpoints
	mux.HandleFunc("/auth/login", handlers.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handlers.LogoutHandler)

	// Automatic HTML handler mapping for example: /stats -> /static/stats.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	// Apply middleware
	return middleware.AuthMiddleware(mux)
}
