package friends

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const createFriendsTable = `
CREATE TABLE IF NOT EXISTS friends (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore keeps friends in an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens dbPath and runs auto-migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open friends db: %w", err)
	}

	if _, err := db.Exec(createFriendsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate friends db: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// List returns usernames in first-insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username FROM friends ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Add appends username unless present.
func (s *SQLiteStore) Add(ctx context.Context, username string) (bool, error) {
	name, err := NormalizeUsername(username)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO friends (username) VALUES (?)`, name)
	if err != nil {
		return false, fmt.Errorf("insert friend: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert friend: %w", err)
	}
	return n == 1, nil
}

// Remove deletes username.
func (s *SQLiteStore) Remove(ctx context.Context, username string) (bool, error) {
	name, err := NormalizeUsername(username)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM friends WHERE username = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete friend: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete friend: %w", err)
	}
	return n == 1, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
