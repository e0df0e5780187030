package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go-gallery-archiver/internal/models"

	log "github.com/sirupsen/logrus"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a record is not found in the database.
var ErrNotFound = errors.New("record not found")

// DB wraps the SQLite database instance and provides helper methods.
// It is the only owner of DownloadRecord and CategoryMapping durability;
// a store-level failure is fatal to the run because dedup and resume
// correctness cannot be guaranteed without it.
type DB struct {
	db *sql.DB
	sync.RWMutex
	closeOnce sync.Once
	closeErr  error
}

// Open initializes and returns a DB instance.
func Open(path string) (*DB, error) {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database at %s: %w", path, err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database at %s: %w", path, err)
	}

	dbWrapper := &DB{db: db}

	if err := dbWrapper.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	log.Debugf("SQLite database opened at %s", path)
	return dbWrapper, nil
}

// initSchema creates the database schema if it doesn't exist
func (d *DB) initSchema() error {
	schema := `
	-- One row per processing attempt of one item. item_id is deliberately
	-- not unique: re-attempts create new rows, and duplicate accounting
	-- aggregates rows sharing an item_id.
	CREATE TABLE IF NOT EXISTS download_record (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('Pending', 'Success', 'Failure')),
		failure_reason TEXT,
		stored_path TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- One row per confirmed category -> folder decision.
	CREATE TABLE IF NOT EXISTS category_mapping (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category_key TEXT UNIQUE NOT NULL,
		folder_name TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Indexes for performance
	CREATE INDEX IF NOT EXISTS idx_record_item_id ON download_record(item_id);
	CREATE INDEX IF NOT EXISTS idx_record_status ON download_record(status);
	CREATE INDEX IF NOT EXISTS idx_record_created_at ON download_record(created_at);
	CREATE INDEX IF NOT EXISTS idx_mapping_category_key ON category_mapping(category_key);
	`

	_, err := d.db.Exec(schema)
	return err
}

// Close safely closes the database connection.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		d.Lock()
		defer d.Unlock()

		d.closeErr = d.db.Close()
		if d.closeErr != nil {
			log.WithError(d.closeErr).Error("Error during database close operation")
		} else {
			log.Debug("Database closed.")
		}
	})

	return d.closeErr
}

// RecordAttempt inserts a Pending row for the item. It is called the moment
// the crawl loop commits to processing an item, before extraction begins, so
// a mid-crawl crash still leaves a non-Success trace.
func (d *DB) RecordAttempt(itemID string) error {
	d.Lock()
	defer d.Unlock()

	_, err := d.db.Exec(`
		INSERT INTO download_record (item_id, status) VALUES (?, ?)
	`, itemID, models.StatusPending)
	if err != nil {
		return fmt.Errorf("error recording attempt for item %s: %w", itemID, err)
	}
	return nil
}

// MarkSuccess flips the most recent attempt row for the item to Success and
// stores the path relative to the download root.
func (d *DB) MarkSuccess(itemID, storedPath string) error {
	return d.updateLatest(itemID, models.StatusSuccess, "", storedPath)
}

// MarkFailure flips the most recent attempt row for the item to Failure with
// the given reason.
func (d *DB) MarkFailure(itemID, reason string) error {
	return d.updateLatest(itemID, models.StatusFailure, reason, "")
}

func (d *DB) updateLatest(itemID, status, reason, storedPath string) error {
	d.Lock()
	defer d.Unlock()

	result, err := d.db.Exec(`
		UPDATE download_record
		SET status = ?, failure_reason = ?, stored_path = ?
		WHERE id = (SELECT id FROM download_record WHERE item_id = ? ORDER BY id DESC LIMIT 1)
	`, status, nullable(reason), nullable(storedPath), itemID)
	if err != nil {
		return fmt.Errorf("error updating record for item %s: %w", itemID, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("no attempt row to update for item %s: %w", itemID, ErrNotFound)
	}
	return nil
}

// HasSuccess reports whether any prior attempt for the item succeeded.
// This is the crawl loop's skip check; it runs before any DOM interaction.
func (d *DB) HasSuccess(itemID string) (bool, error) {
	d.RLock()
	defer d.RUnlock()

	var exists bool
	err := d.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM download_record WHERE item_id = ? AND status = ?)
	`, itemID, models.StatusSuccess).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking success for item %s: %w", itemID, err)
	}
	return exists, nil
}

// Lookup returns the most recent attempt row for the item, or ErrNotFound.
func (d *DB) Lookup(itemID string) (*models.DownloadRecord, error) {
	d.RLock()
	defer d.RUnlock()

	row := d.db.QueryRow(`
		SELECT id, item_id, status, failure_reason, stored_path, created_at
		FROM download_record WHERE item_id = ? ORDER BY id DESC LIMIT 1
	`, itemID)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("error looking up item %s: %w", itemID, err)
	}
	return record, nil
}

// GetFolderForCategory returns the operator-confirmed folder name for a
// category key, or ErrNotFound when no mapping exists.
func (d *DB) GetFolderForCategory(key string) (string, error) {
	d.RLock()
	defer d.RUnlock()

	var folder string
	err := d.db.QueryRow(`
		SELECT folder_name FROM category_mapping WHERE category_key = ?
	`, key).Scan(&folder)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	} else if err != nil {
		return "", fmt.Errorf("error reading category mapping for %s: %w", key, err)
	}
	return folder, nil
}

// SetFolderForCategory creates or overwrites the mapping for a category key.
// Only operator confirmation paths call this.
func (d *DB) SetFolderForCategory(key, folderName string) error {
	d.Lock()
	defer d.Unlock()

	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO category_mapping (category_key, folder_name) VALUES (?, ?)
	`, key, folderName)
	if err != nil {
		return fmt.Errorf("error storing category mapping %s -> %s: %w", key, folderName, err)
	}
	return nil
}

// RenameFolder rewrites every mapping that points at oldName to point at
// newName and returns the number of rows changed.
func (d *DB) RenameFolder(oldName, newName string) (int64, error) {
	d.Lock()
	defer d.Unlock()

	result, err := d.db.Exec(`
		UPDATE category_mapping SET folder_name = ? WHERE folder_name = ?
	`, newName, oldName)
	if err != nil {
		return 0, fmt.Errorf("error renaming folder %s -> %s: %w", oldName, newName, err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// ListFailures returns all failed attempts, newest first.
func (d *DB) ListFailures() ([]models.DownloadRecord, error) {
	return d.listByStatus(models.StatusFailure)
}

// ListAll returns every attempt row, newest first.
func (d *DB) ListAll() ([]models.DownloadRecord, error) {
	return d.listByStatus("")
}

func (d *DB) listByStatus(status string) ([]models.DownloadRecord, error) {
	d.RLock()
	defer d.RUnlock()

	query := `
		SELECT id, item_id, status, failure_reason, stored_path, created_at
		FROM download_record ORDER BY created_at DESC, id DESC
	`
	args := []interface{}{}
	if status != "" {
		query = `
			SELECT id, item_id, status, failure_reason, stored_path, created_at
			FROM download_record WHERE status = ? ORDER BY created_at DESC, id DESC
		`
		args = append(args, status)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing records: %w", err)
	}
	defer rows.Close()

	var records []models.DownloadRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning record row: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// ListDuplicateGroups returns every item with more than one attempt row,
// most-repeated first, each with its attempt timestamps newest-first.
func (d *DB) ListDuplicateGroups() ([]models.DuplicateGroup, error) {
	d.RLock()
	defer d.RUnlock()

	rows, err := d.db.Query(`
		SELECT item_id, COUNT(*) as count
		FROM download_record
		GROUP BY item_id
		HAVING COUNT(*) > 1
		ORDER BY count DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("error listing duplicate groups: %w", err)
	}
	defer rows.Close()

	var groups []models.DuplicateGroup
	for rows.Next() {
		var group models.DuplicateGroup
		if err := rows.Scan(&group.ItemID, &group.Count); err != nil {
			return nil, fmt.Errorf("error scanning duplicate group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range groups {
		tsRows, err := d.db.Query(`
			SELECT created_at FROM download_record WHERE item_id = ? ORDER BY created_at DESC, id DESC
		`, groups[i].ItemID)
		if err != nil {
			return nil, fmt.Errorf("error reading timestamps for item %s: %w", groups[i].ItemID, err)
		}
		for tsRows.Next() {
			var ts time.Time
			if err := tsRows.Scan(&ts); err != nil {
				tsRows.Close()
				return nil, fmt.Errorf("error scanning timestamp for item %s: %w", groups[i].ItemID, err)
			}
			groups[i].CreatedAt = append(groups[i].CreatedAt, ts)
		}
		tsRows.Close()
		if err := tsRows.Err(); err != nil {
			return nil, err
		}
	}

	return groups, nil
}

// ResetAll deletes every attempt row and category mapping. Only the explicit
// operator-confirmed reset command calls this.
func (d *DB) ResetAll() error {
	d.Lock()
	defer d.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting reset transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM download_record`,
		`DELETE FROM category_mapping`,
		`DELETE FROM sqlite_sequence WHERE name IN ('download_record', 'category_mapping')`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("error during reset (%s): %w", stmt, err)
		}
	}

	return tx.Commit()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*models.DownloadRecord, error) {
	var record models.DownloadRecord
	var reason, storedPath sql.NullString
	err := s.Scan(&record.ID, &record.ItemID, &record.Status, &reason, &storedPath, &record.CreatedAt)
	if err != nil {
		return nil, err
	}
	record.FailureReason = reason.String
	record.StoredPath = storedPath.String
	return &record, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
