package repository

import "inredd/internal/models"

// ImageRepository defines the interface for image record index operations.
type ImageRepository interface {
	// Create operations
	Insert(rec *models.ImageRecord, split string) (int64, error)

	// Read operations
	GetByImageID(imageID string) (*models.ImageRecord, int64, error)
	GetImageIDs(split string, filter *models.RecordFilter) ([]string, error)
	GetTotalCount(split string) (int, error)
	GetStats(split string) (*models.SplitStats, error)

	// Delete operations
	DeleteBySplit(split string) error
}

// AnnotationRepository defines the interface for tooth annotation index operations.
type AnnotationRepository interface {
	// Create operations
	InsertBatch(imageRowID int64, teeth []models.AnnotationRecord) error

	// Read operations
	GetByImageRowID(imageRowID int64) ([]models.AnnotationRecord, error)
	CountByCondition(split string) (map[string]int, error)

	// Delete operations
	DeleteByImageRowID(imageRowID int64) error
}
