package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"inredd/internal/dataset"
	"inredd/internal/logger"
	"inredd/internal/services"
)

// GetStatsHandler returns aggregate statistics of the loaded split.
func GetStatsHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := manager.Store()
		if store == nil || !store.Complete() {
			http.Error(w, "Split is not loaded", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(store.Stats()); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// GetReportHandler returns the load report, including the files a lenient
// load skipped and why.
func GetReportHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := manager.Store()
		if store == nil {
			http.Error(w, "Split is not loaded", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(store.Report()); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// ReloadHandler re-loads the configured split from disk. Progress is
// broadcast to /api/progress viewers while the load runs.
func ReloadHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		store, err := manager.LoadSplit(r.Context())
		if err != nil {
			var partial *dataset.PartialLoadError
			if errors.As(err, &partial) {
				http.Error(w, partial.Error(), http.StatusGatewayTimeout)
				return
			}
			logger.Error("Reload failed: %v", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(store.Report()); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// IndexSplitHandler flushes the loaded split into the SQLite index.
func IndexSplitHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		indexed, err := manager.IndexSplit()
		if err != nil {
			logger.Error("Indexing failed: %v", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]int{"indexed": indexed}); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}
