package sqlite

import (
	"database/sql"
	"fmt"

	"inredd/internal/models"
)

// ImageRepository implements repository.ImageRepository for SQLite.
type ImageRepository struct {
	db *DB
}

// NewImageRepository creates a new SQLite image repository.
func NewImageRepository(db *DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// Insert adds a new image record to the index and returns its row id.
func (r *ImageRepository) Insert(rec *models.ImageRecord, split string) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO images (image_id, split, status, width, height, filepath)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ImageID, split, string(rec.Status), rec.Width, rec.Height, rec.FilePath)
	if err != nil {
		return 0, fmt.Errorf("failed to insert image: %w", err)
	}

	return result.LastInsertId()
}

// GetByImageID retrieves an indexed record by its image id. The returned
// record carries no metadata (the index does not store metadata.csv rows)
// and no teeth; use AnnotationRepository with the returned row id for those.
func (r *ImageRepository) GetByImageID(imageID string) (*models.ImageRecord, int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var (
		rec    models.ImageRecord
		rowID  int64
		status string
	)
	err := r.db.Conn().QueryRow(`
		SELECT id, image_id, status, width, height, filepath
		FROM images WHERE image_id = ?
	`, imageID).Scan(&rowID, &rec.ImageID, &status, &rec.Width, &rec.Height, &rec.FilePath)

	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get image: %w", err)
	}
	rec.Status = models.ImageStatus(status)
	return &rec, rowID, nil
}

// GetImageIDs retrieves image ids of a split matching the filter, in
// lexicographic order.
func (r *ImageRepository) GetImageIDs(split string, filter *models.RecordFilter) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT DISTINCT i.image_id
		FROM images i
		LEFT JOIN annotations a ON i.id = a.image_row
		LEFT JOIN annotation_conditions c ON a.id = c.annotation_row
		WHERE i.split = ?
	`
	args := []interface{}{split}

	if filter != nil {
		if filter.Status != "" {
			query += " AND i.status = ?"
			args = append(args, filter.Status)
		}
		if filter.Condition != "" {
			query += " AND c.name = ?"
			args = append(args, filter.Condition)
		}
		if filter.ToothID != 0 {
			query += " AND a.tooth_id = ?"
			args = append(args, filter.ToothID)
		}
		if filter.Radiologist != "" {
			query += " AND a.radiologist = ?"
			args = append(args, filter.Radiologist)
		}
	}

	query += " ORDER BY i.image_id"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter != nil && filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query image ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan image id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetTotalCount returns the number of indexed images in a split.
func (r *ImageRepository) GetTotalCount(split string) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM images WHERE split = ?`, split).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return count, nil
}

// GetStats returns aggregate statistics about an indexed split.
func (r *ImageRepository) GetStats(split string) (*models.SplitStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &models.SplitStats{
		PerStatus:    make(map[string]int),
		PerCondition: make(map[string]int),
		PerTooth:     make(map[int]int),
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM images WHERE split = ?`, split).Scan(&stats.TotalImages); err != nil {
		return nil, err
	}

	if err := r.db.Conn().QueryRow(`
		SELECT COUNT(*) FROM annotations a
		JOIN images i ON a.image_row = i.id
		WHERE i.split = ?
	`, split).Scan(&stats.TotalBBoxes); err != nil {
		return nil, err
	}

	rows, err := r.db.Conn().Query(`SELECT status, COUNT(*) FROM images WHERE split = ? GROUP BY status`, split)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.PerStatus[status] = count
	}

	condRows, err := r.db.Conn().Query(`
		SELECT c.name, COUNT(*) FROM annotation_conditions c
		JOIN annotations a ON c.annotation_row = a.id
		JOIN images i ON a.image_row = i.id
		WHERE i.split = ?
		GROUP BY c.name
	`, split)
	if err != nil {
		return nil, err
	}
	defer condRows.Close()
	for condRows.Next() {
		var name string
		var count int
		if err := condRows.Scan(&name, &count); err != nil {
			return nil, err
		}
		stats.PerCondition[name] = count
	}

	toothRows, err := r.db.Conn().Query(`
		SELECT a.tooth_id, COUNT(*) FROM annotations a
		JOIN images i ON a.image_row = i.id
		WHERE i.split = ?
		GROUP BY a.tooth_id
	`, split)
	if err != nil {
		return nil, err
	}
	defer toothRows.Close()
	for toothRows.Next() {
		var tooth, count int
		if err := toothRows.Scan(&tooth, &count); err != nil {
			return nil, err
		}
		stats.PerTooth[tooth] = count
	}

	// Boxes-per-image distribution comes from per-image counts; the median
	// is computed in Go since SQLite has no median aggregate.
	counts, err := r.boxesPerImage(split)
	if err != nil {
		return nil, err
	}
	stats.BoxesPerImage = models.Distribution(counts)

	return stats, nil
}

// boxesPerImage returns the annotation count of every image in a split.
func (r *ImageRepository) boxesPerImage(split string) ([]int, error) {
	rows, err := r.db.Conn().Query(`
		SELECT COUNT(a.id) FROM images i
		LEFT JOIN annotations a ON a.image_row = i.id
		WHERE i.split = ?
		GROUP BY i.id
	`, split)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// DeleteBySplit removes every indexed image of a split with its annotations.
func (r *ImageRepository) DeleteBySplit(split string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`
		DELETE FROM annotation_conditions WHERE annotation_row IN (
			SELECT a.id FROM annotations a
			JOIN images i ON a.image_row = i.id WHERE i.split = ?
		)
	`, split); err != nil {
		return fmt.Errorf("failed to delete conditions: %w", err)
	}

	if _, err := r.db.Conn().Exec(`
		DELETE FROM annotations WHERE image_row IN (SELECT id FROM images WHERE split = ?)
	`, split); err != nil {
		return fmt.Errorf("failed to delete annotations: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM images WHERE split = ?`, split); err != nil {
		return fmt.Errorf("failed to delete images: %w", err)
	}
	return nil
}
