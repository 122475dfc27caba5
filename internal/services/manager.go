package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"inredd/internal/config"
	"inredd/internal/dataset"
	"inredd/internal/logger"
	"inredd/internal/models"
	"inredd/internal/repository"
	"inredd/internal/services/websocket"
)

// Manager owns the loaded annotation store and coordinates reloads,
// progress broadcasting and flushing a split into the SQLite index.
type Manager struct {
	config           *config.Config
	sizer            dataset.ImageSizer
	websocketService *websocket.HubService
	imageRepo        repository.ImageRepository
	annotationRepo   repository.AnnotationRepository
	logger           *logger.Logger

	store   *dataset.Store
	loading bool
	mu      sync.RWMutex
}

// progressEvent is the JSON payload broadcast to progress viewers.
type progressEvent struct {
	Split   string `json:"split"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	ImageID string `json:"image_id"`
}

func NewManager(cfg *config.Config, sizer dataset.ImageSizer, websocketService *websocket.HubService,
	imageRepo repository.ImageRepository, annotationRepo repository.AnnotationRepository, logger *logger.Logger) *Manager {
	return &Manager{
		config:           cfg,
		sizer:            sizer,
		websocketService: websocketService,
		imageRepo:        imageRepo,
		annotationRepo:   annotationRepo,
		logger:           logger,
	}
}

// LoadSplit loads the configured split from disk, replacing the current store
// on success. Only one load runs at a time.
func (m *Manager) LoadSplit(ctx context.Context) (*dataset.Store, error) {
	m.mu.Lock()
	if m.loading {
		m.mu.Unlock()
		return nil, fmt.Errorf("a split load is already running")
	}
	m.loading = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
	}()

	if m.config.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.config.LoadTimeout)*time.Second)
		defer cancel()
	}

	m.logger.Info("📂 Loading split %q from %s (strict=%v, workers=%d)",
		m.config.Split, m.config.DatasetRoot, m.config.Strict, m.config.ParseWorkers)

	store, err := dataset.Load(ctx, dataset.Options{
		Root:       m.config.DatasetRoot,
		Split:      m.config.Split,
		Strict:     m.config.Strict,
		Workers:    m.config.ParseWorkers,
		Sizer:      m.sizer,
		Conditions: models.NewConditionSet(m.config.Conditions),
		OnProgress: m.broadcastProgress,
	})
	if err != nil {
		m.logger.Error("Split load failed: %v", err)
		return nil, err
	}

	report := store.Report()
	if report.Skipped > 0 {
		m.logger.Warning("⚠️  Skipped %d annotation file(s) during lenient load", report.Skipped)
		for _, w := range report.Warnings {
			m.logger.Warning("   %s: %s", w.File, w.Reason)
		}
	}

	m.mu.Lock()
	m.store = store
	m.mu.Unlock()

	stats := store.Stats()
	m.logger.Info("✅ Loaded %d image(s), %d bounding box(es) from split %q",
		stats.TotalImages, stats.TotalBBoxes, m.config.Split)
	return store, nil
}

// broadcastProgress fans one progress event out to connected viewers.
func (m *Manager) broadcastProgress(done, total int, imageID string) {
	if m.websocketService == nil {
		return
	}
	msg, err := json.Marshal(progressEvent{
		Split:   m.config.Split,
		Done:    done,
		Total:   total,
		ImageID: imageID,
	})
	if err != nil {
		return
	}
	m.websocketService.Broadcast(msg)
}

// IndexSplit flushes the current store into the SQLite index, replacing any
// previous rows of the same split.
func (m *Manager) IndexSplit() (int, error) {
	store := m.Store()
	if store == nil {
		return 0, fmt.Errorf("no split is loaded")
	}
	if !store.Complete() {
		return 0, fmt.Errorf("refusing to index an incomplete store")
	}
	if m.imageRepo == nil || m.annotationRepo == nil {
		return 0, fmt.Errorf("index repositories are not configured")
	}

	if err := m.imageRepo.DeleteBySplit(store.Split()); err != nil {
		return 0, fmt.Errorf("clearing previous index: %w", err)
	}

	indexed := 0
	for rec := range store.All() {
		rowID, err := m.imageRepo.Insert(rec, store.Split())
		if err != nil {
			return indexed, fmt.Errorf("indexing %s: %w", rec.ImageID, err)
		}
		if len(rec.Teeth) > 0 {
			if err := m.annotationRepo.InsertBatch(rowID, rec.Teeth); err != nil {
				return indexed, fmt.Errorf("indexing annotations of %s: %w", rec.ImageID, err)
			}
		}
		indexed++
	}

	m.logger.Info("🗂  Indexed %d image record(s) of split %q", indexed, store.Split())
	return indexed, nil
}

// Store returns the currently loaded store, or nil before the first load.
func (m *Manager) Store() *dataset.Store {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

func (m *Manager) GetImageRepository() repository.ImageRepository {
	return m.imageRepo
}

func (m *Manager) GetAnnotationRepository() repository.AnnotationRepository {
	return m.annotationRepo
}
