package db

import (
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// Setting keys
const (
	SettingLastAPIURL = "last_api_url"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// New opens (creating if needed) the database at path and initializes the schema
func New(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

// GetSetting retrieves a setting value by key
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSetting sets a setting value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// RememberAPIURL stores url as the last used server. When it differs from
// the stored one, the input history of the previous server is cleared and
// the previous url is returned.
func (db *DB) RememberAPIURL(url string) (previous string, changed bool, err error) {
	previous, err = db.GetSetting(SettingLastAPIURL)
	if err != nil {
		return "", false, err
	}
	if previous == url {
		return previous, false, nil
	}

	if previous != "" {
		if err := db.ClearHistory(); err != nil {
			return previous, false, err
		}
	}
	if err := db.SetSetting(SettingLastAPIURL, url); err != nil {
		return previous, false, err
	}
	return previous, previous != "", nil
}
