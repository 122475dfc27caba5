package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"inredd/internal/config"
	"inredd/internal/logger"
	"inredd/internal/repository/sqlite"
	"inredd/internal/services/websocket"
)

type stubSizer struct{}

func (stubSizer) Size(path string) (int, int, error) {
	return 2688, 1400, nil
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	root := t.TempDir()
	annDir := filepath.Join(root, "annotations", "train")
	imgDir := filepath.Join(root, "images", "train")
	require.NoError(t, os.MkdirAll(annDir, 0755))
	require.NoError(t, os.MkdirAll(imgDir, 0755))

	files := map[string]string{
		"000001": `[{"tooth_id":11,"bbox":[10,20,30,40],"conditions":{"caries":true},"radiologist_id":"consensus","image_status":"dentate"}]`,
		"000002": `{"image_status":"edentulous"}`,
	}
	for id, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(annDir, id+".json"), []byte(content), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(imgDir, id+".png"), []byte("png"), 0644))
	}

	cfg := &config.Config{
		DatasetRoot:  root,
		Split:        "train",
		ParseWorkers: 2,
		LogDirectory: t.TempDir(),
	}
	log := logger.NewLogger(cfg.LogDirectory)

	db, err := sqlite.New(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewManager(cfg, stubSizer{}, websocket.NewHubService(log),
		sqlite.NewImageRepository(db), sqlite.NewAnnotationRepository(db), log)
}

func TestManager_LoadSplit(t *testing.T) {
	manager := newTestManager(t)
	require.Nil(t, manager.Store())

	store, err := manager.LoadSplit(context.Background())
	require.NoError(t, err)
	require.Same(t, store, manager.Store())
	require.True(t, store.Complete())
	require.Equal(t, 2, store.Len())
}

func TestManager_IndexSplit(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.IndexSplit()
	require.Error(t, err, "indexing before a load must fail")

	_, err = manager.LoadSplit(context.Background())
	require.NoError(t, err)

	indexed, err := manager.IndexSplit()
	require.NoError(t, err)
	require.Equal(t, 2, indexed)

	stats, err := manager.GetImageRepository().GetStats("train")
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalImages)
	require.Equal(t, 1, stats.TotalBBoxes)
	require.Equal(t, 1, stats.PerCondition["caries"])

	// Re-indexing replaces the previous rows instead of duplicating them.
	indexed, err = manager.IndexSplit()
	require.NoError(t, err)
	require.Equal(t, 2, indexed)

	count, err := manager.GetImageRepository().GetTotalCount("train")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
