package main

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const usageSchema = `
CREATE TABLE IF NOT EXISTS used_prompts (
	room_id TEXT NOT NULL,
	category TEXT NOT NULL,
	prompt_id TEXT NOT NULL,
	PRIMARY KEY (room_id, category, prompt_id)
);

CREATE TABLE IF NOT EXISTS used_images (
	room_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	PRIMARY KEY (room_id, filename)
);
`

// usageStore records which prompts and images each room has already
// been served, so repeat games in the same room see fresh content.
type usageStore struct {
	db *sql.DB
}

func openUsageStore(path string) (*usageStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// modernc.org/sqlite serializes writes itself but a single
	// connection avoids SQLITE_BUSY entirely.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(usageSchema); err != nil {
		db.Close()

		return nil, fmt.Errorf("initializing database %q: %w", path, err)
	}

	return &usageStore{db: db}, nil
}

func (s *usageStore) usedPrompts(roomID, category string) (map[string]bool, error) {
	rows, err := s.db.Query(
		"SELECT prompt_id FROM used_prompts WHERE room_id = ? AND category = ?",
		roomID, category,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	used := make(map[string]bool)

	for rows.Next() {
		var id string

		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		used[id] = true
	}

	return used, rows.Err()
}

func (s *usageStore) markPrompts(roomID, category string, promptIDs []string) error {
	if len(promptIDs) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT OR IGNORE INTO used_prompts (room_id, category, prompt_id) VALUES (?, ?, ?)",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range promptIDs {
		if _, err := stmt.Exec(roomID, category, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *usageStore) resetPrompts(roomID, category string) error {
	_, err := s.db.Exec(
		"DELETE FROM used_prompts WHERE room_id = ? AND category = ?",
		roomID, category,
	)

	return err
}

func (s *usageStore) usedImages(roomID string) (map[string]bool, error) {
	rows, err := s.db.Query(
		"SELECT filename FROM used_images WHERE room_id = ?",
		roomID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	used := make(map[string]bool)

	for rows.Next() {
		var filename string

		if err := rows.Scan(&filename); err != nil {
			return nil, err
		}

		used[filename] = true
	}

	return used, rows.Err()
}

func (s *usageStore) markImages(roomID string, filenames []string) error {
	if len(filenames) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT OR IGNORE INTO used_images (room_id, filename) VALUES (?, ?)",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, filename := range filenames {
		if _, err := stmt.Exec(roomID, filename); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *usageStore) resetImages(roomID string) error {
	_, err := s.db.Exec("DELETE FROM used_images WHERE room_id = ?", roomID)

	return err
}

func (s *usageStore) Close() error {
	return s.db.Close()
}
