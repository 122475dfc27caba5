package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New creates and initializes a new SQLite database connection.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		image_id TEXT NOT NULL UNIQUE,
		split TEXT NOT NULL,
		status TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		filepath TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS annotations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		image_row INTEGER NOT NULL,
		tooth_id INTEGER NOT NULL,
		radiologist TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		w REAL NOT NULL,
		h REAL NOT NULL,
		FOREIGN KEY (image_row) REFERENCES images(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS annotation_conditions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		annotation_row INTEGER NOT NULL,
		name TEXT NOT NULL,
		FOREIGN KEY (annotation_row) REFERENCES annotations(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_images_split ON images(split);
	CREATE INDEX IF NOT EXISTS idx_images_status ON images(status);
	CREATE INDEX IF NOT EXISTS idx_annotations_image_row ON annotations(image_row);
	CREATE INDEX IF NOT EXISTS idx_annotations_tooth_id ON annotations(tooth_id);
	CREATE INDEX IF NOT EXISTS idx_conditions_name ON annotation_conditions(name);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
