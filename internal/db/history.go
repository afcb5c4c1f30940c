package db

import (
	"strings"
	"time"
)

// AddHistory records a submitted task text, moving it to the front if it
// was used before, and trims the table to keep entries.
func (db *DB) AddHistory(text string, keep int) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO history (text, used_at) VALUES (?, ?)
		ON CONFLICT(text) DO UPDATE SET used_at = excluded.used_at
	`, text, time.Now().UnixNano())
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		DELETE FROM history WHERE text NOT IN (
			SELECT text FROM history ORDER BY used_at DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// RecentHistory returns up to limit distinct texts, most recent first
func (db *DB) RecentHistory(limit int) ([]string, error) {
	rows, err := db.Query(`
		SELECT text FROM history ORDER BY used_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, rows.Err()
}

// ClearHistory removes every recorded text
func (db *DB) ClearHistory() error {
	_, err := db.Exec("DELETE FROM history")
	return err
}
