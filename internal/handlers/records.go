package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"inredd/internal/dataset"
	"inredd/internal/logger"
	"inredd/internal/models"
	"inredd/internal/services"
)

// RecordsData is a paginated response payload for the record browser.
type RecordsData struct {
	Records     []*models.ImageRecord `json:"records"`
	Split       string                `json:"split"`
	Length      int                   `json:"length"`
	TotalPages  int                   `json:"totalPages"`
	CurrentPage int                   `json:"currentPage"`
	Limit       int                   `json:"pageSize"`
}

// recordFilters describe user-provided filters to narrow the record list.
type recordFilters struct {
	Status      string
	Condition   string
	ToothID     int
	Radiologist string
}

// DisplayRecordsHandler lists loaded image records, supports filtering and
// pagination. Response is JSON of type RecordsData.
func DisplayRecordsHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := manager.Store()
		if store == nil || !store.Complete() {
			http.Error(w, "Split is not loaded", http.StatusServiceUnavailable)
			return
		}

		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filters := recordFilters{
			Status:      q.Get("status"),
			Condition:   q.Get("condition"),
			ToothID:     atoiDefault(q.Get("tooth"), 0),
			Radiologist: q.Get("radiologist"),
		}

		var filtered []*models.ImageRecord
		for rec := range store.All() {
			if checkMatch(rec, filters) {
				filtered = append(filtered, rec)
			}
		}

		// Pagination
		start := (page - 1) * limit
		if start > len(filtered) {
			start = len(filtered)
		}
		end := start + limit
		if end > len(filtered) {
			end = len(filtered)
		}

		data := RecordsData{
			Records:     filtered[start:end],
			Split:       store.Split(),
			Length:      len(filtered),
			TotalPages:  (len(filtered) + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// ViewRecordHandler serves a single record specified via the "id" query
// parameter. With "image=1" the radiograph file is served instead of the
// record JSON.
func ViewRecordHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := manager.Store()
		if store == nil || !store.Complete() {
			http.Error(w, "Split is not loaded", http.StatusServiceUnavailable)
			return
		}

		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "Id parameter is required", http.StatusBadRequest)
			return
		}

		rec, err := store.Get(id)
		if err != nil {
			var notFound *dataset.NotFoundError
			if errors.As(err, &notFound) {
				http.Error(w, "Record not found", http.StatusNotFound)
				return
			}
			logger.Error("Error looking up record %s: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if r.URL.Query().Get("image") == "1" {
			http.ServeFile(w, r, rec.FilePath)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rec); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// GetConditionsHandler returns the condition vocabulary the loaded split was
// validated against, for filter dropdowns.
func GetConditionsHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := manager.Store()
		if store == nil {
			http.Error(w, "Split is not loaded", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(store.Conditions().Names()); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// helpers
// checkMatch returns true if the record matches the given filters.
func checkMatch(rec *models.ImageRecord, filters recordFilters) bool {
	if filters.Status != "" && !strings.EqualFold(string(rec.Status), filters.Status) {
		return false
	}
	if filters.Condition != "" {
		found := false
		for i := range rec.Teeth {
			if rec.Teeth[i].Conditions[filters.Condition] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filters.ToothID != 0 {
		found := false
		for i := range rec.Teeth {
			if rec.Teeth[i].ToothID == filters.ToothID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filters.Radiologist != "" {
		found := false
		for i := range rec.Teeth {
			if strings.EqualFold(string(rec.Teeth[i].Radiologist), filters.Radiologist) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
