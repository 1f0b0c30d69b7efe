package db

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Entry summarizes the warm locators stored for one (page, container).
type Entry struct {
	PageURL   string    `json:"page_url" yaml:"page_url"`
	Container string    `json:"container" yaml:"container"`
	Count     int       `json:"count" yaml:"count"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// InsertPage parses and inserts a page URL, returning the page_id.
// If the URL already exists, returns the existing page_id.
func (db *DB) InsertPage(rawURL string) (int64, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("failed to parse URL: %w", err)
	}

	var existingID int64
	err = db.QueryRow("SELECT page_id FROM pages WHERE original_url = ?", rawURL).Scan(&existingID)
	if err == nil {
		return existingID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to check existing page: %w", err)
	}

	// Canonical URL drops query and fragment
	canonicalURL := fmt.Sprintf("%s://%s%s", parsed.Scheme, parsed.Host, parsed.Path)

	result, err := db.Exec(`
		INSERT INTO pages (original_url, canonical_url, domain)
		VALUES (?, ?, ?)
	`, rawURL, canonicalURL, parsed.Host)
	if err != nil {
		return 0, fmt.Errorf("failed to insert page: %w", err)
	}

	pageID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get page ID: %w", err)
	}
	return pageID, nil
}

// SaveFields replaces the warm locators of (pageURL, container). Order is
// preserved.
func (db *DB) SaveFields(pageURL, container string, locators []string) error {
	pageID, err := db.InsertPage(pageURL)
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	if _, err := tx.Exec("DELETE FROM field_locators WHERE page_id = ? AND container = ?", pageID, container); err != nil {
		return fmt.Errorf("failed to clear field locators: %w", err)
	}
	for i, loc := range locators {
		if loc == "" {
			continue
		}
		_, err := tx.Exec(`
			INSERT OR IGNORE INTO field_locators (page_id, container, locator, position)
			VALUES (?, ?, ?, ?)
		`, pageID, container, loc, i)
		if err != nil {
			return fmt.Errorf("failed to insert field locator: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit field locators: %w", err)
	}
	return nil
}

// LoadFields returns the warm locators of (pageURL, container) in saved
// order. An unknown page yields no locators.
func (db *DB) LoadFields(pageURL, container string) ([]string, error) {
	rows, err := db.Query(`
		SELECT f.locator
		FROM field_locators f
		JOIN pages p ON p.page_id = f.page_id
		WHERE p.original_url = ? AND f.container = ?
		ORDER BY f.position
	`, pageURL, container)
	if err != nil {
		return nil, fmt.Errorf("failed to load field locators: %w", err)
	}
	defer rows.Close()

	var locators []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, fmt.Errorf("failed to scan field locator: %w", err)
		}
		locators = append(locators, loc)
	}
	return locators, rows.Err()
}

// ListEntries summarizes every stored (page, container).
func (db *DB) ListEntries() ([]Entry, error) {
	rows, err := db.Query(`
		SELECT p.original_url, f.container, COUNT(*), MAX(f.updated_at)
		FROM field_locators f
		JOIN pages p ON p.page_id = f.page_id
		GROUP BY p.page_id, f.container
		ORDER BY p.original_url, f.container
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var updated string
		if err := rows.Scan(&e.PageURL, &e.Container, &e.Count, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.UpdatedAt = parseTimestamp(updated)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClearPage deletes every warm locator of pageURL and returns how many
// were removed.
func (db *DB) ClearPage(pageURL string) (int64, error) {
	result, err := db.Exec(`
		DELETE FROM field_locators
		WHERE page_id IN (SELECT page_id FROM pages WHERE original_url = ?)
	`, pageURL)
	if err != nil {
		return 0, fmt.Errorf("failed to clear page: %w", err)
	}
	return result.RowsAffected()
}

// ClearAll deletes every page and warm locator.
func (db *DB) ClearAll() error {
	if _, err := db.Exec("DELETE FROM field_locators"); err != nil {
		return fmt.Errorf("failed to clear field locators: %w", err)
	}
	if _, err := db.Exec("DELETE FROM pages"); err != nil {
		return fmt.Errorf("failed to clear pages: %w", err)
	}
	return nil
}

// parseTimestamp reads the formats SQLite uses for CURRENT_TIMESTAMP.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
