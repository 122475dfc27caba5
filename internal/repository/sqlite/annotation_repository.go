package sqlite

import (
	"fmt"

	"inredd/internal/models"
)

// AnnotationRepository implements repository.AnnotationRepository for SQLite.
type AnnotationRepository struct {
	db *DB
}

// NewAnnotationRepository creates a new SQLite annotation repository.
func NewAnnotationRepository(db *DB) *AnnotationRepository {
	return &AnnotationRepository{db: db}
}

// InsertBatch adds every tooth annotation of one image in a single
// transaction, together with its positive condition flags.
func (r *AnnotationRepository) InsertBatch(imageRowID int64, teeth []models.AnnotationRecord) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	annStmt, err := tx.Prepare(`
		INSERT INTO annotations (image_row, tooth_id, radiologist, x, y, w, h)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare annotation statement: %w", err)
	}
	defer annStmt.Close()

	condStmt, err := tx.Prepare(`
		INSERT INTO annotation_conditions (annotation_row, name) VALUES (?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare condition statement: %w", err)
	}
	defer condStmt.Close()

	for i := range teeth {
		ann := &teeth[i]
		result, err := annStmt.Exec(imageRowID, ann.ToothID, string(ann.Radiologist),
			ann.BBox.X, ann.BBox.Y, ann.BBox.W, ann.BBox.H)
		if err != nil {
			return fmt.Errorf("failed to insert annotation: %w", err)
		}
		annRowID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get annotation row id: %w", err)
		}
		for _, name := range ann.PositiveConditions() {
			if _, err := condStmt.Exec(annRowID, name); err != nil {
				return fmt.Errorf("failed to insert condition: %w", err)
			}
		}
	}

	return tx.Commit()
}

// GetByImageRowID retrieves all annotations for an indexed image. The
// condition maps carry only the positive flags stored in the index.
func (r *AnnotationRepository) GetByImageRowID(imageRowID int64) ([]models.AnnotationRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, tooth_id, radiologist, x, y, w, h
		FROM annotations WHERE image_row = ? ORDER BY id
	`, imageRowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotations: %w", err)
	}
	defer rows.Close()

	var (
		teeth  []models.AnnotationRecord
		rowIDs []int64
	)
	for rows.Next() {
		var (
			ann         models.AnnotationRecord
			rowID       int64
			radiologist string
		)
		if err := rows.Scan(&rowID, &ann.ToothID, &radiologist,
			&ann.BBox.X, &ann.BBox.Y, &ann.BBox.W, &ann.BBox.H); err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		ann.Radiologist = models.Radiologist(radiologist)
		ann.Conditions = make(map[string]bool)
		teeth = append(teeth, ann)
		rowIDs = append(rowIDs, rowID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, rowID := range rowIDs {
		names, err := r.conditionNames(rowID)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			teeth[i].Conditions[name] = true
		}
	}

	return teeth, nil
}

// conditionNames returns the positive condition names of one annotation row.
func (r *AnnotationRepository) conditionNames(annotationRowID int64) ([]string, error) {
	rows, err := r.db.Conn().Query(`
		SELECT name FROM annotation_conditions WHERE annotation_row = ? ORDER BY name
	`, annotationRowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conditions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan condition: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// CountByCondition returns positive counts per condition name across a split.
func (r *AnnotationRepository) CountByCondition(split string) (map[string]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT c.name, COUNT(*) FROM annotation_conditions c
		JOIN annotations a ON c.annotation_row = a.id
		JOIN images i ON a.image_row = i.id
		WHERE i.split = ?
		GROUP BY c.name
	`, split)
	if err != nil {
		return nil, fmt.Errorf("failed to count conditions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("failed to scan condition count: %w", err)
		}
		counts[name] = count
	}
	return counts, rows.Err()
}

// DeleteByImageRowID removes all annotations of one indexed image.
func (r *AnnotationRepository) DeleteByImageRowID(imageRowID int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`
		DELETE FROM annotation_conditions WHERE annotation_row IN (
			SELECT id FROM annotations WHERE image_row = ?
		)
	`, imageRowID); err != nil {
		return fmt.Errorf("failed to delete conditions: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM annotations WHERE image_row = ?`, imageRowID); err != nil {
		return fmt.Errorf("failed to delete annotations: %w", err)
	}
	return nil
}
