package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jalad-shrimali/cdr-sociometer/profile"
)

const profilesDDL = `
CREATE TABLE IF NOT EXISTS profiles (
    dataset TEXT NOT NULL,
    region  TEXT NOT NULL,
    user_id TEXT NOT NULL,
    vector  TEXT NOT NULL,
    PRIMARY KEY (dataset, region, user_id)
)`

// SQLiteSink stores baskets in the profiles table of one database file,
// vectors encoded as JSON arrays. Writing a dataset replaces its rows.
type SQLiteSink struct {
	db   *sql.DB
	path string
}

func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open profile DB at %s: %w", path, err)
	}
	if _, err := db.Exec(profilesDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create profiles table: %w", err)
	}
	return &SQLiteSink{db: db, path: path}, nil
}

func (s *SQLiteSink) Write(ctx context.Context, name string, baskets []profile.Basket) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE dataset = ?`, name); err != nil {
		return nil, fmt.Errorf("clear dataset %s: %w", name, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO profiles (dataset, region, user_id, vector) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for _, b := range baskets {
		vec, err := json.Marshal(b.Vector)
		if err != nil {
			return nil, err
		}
		if _, err := stmt.ExecContext(ctx, name, b.Region, b.UserID, string(vec)); err != nil {
			return nil, fmt.Errorf("insert basket %s/%s: %w", b.UserID, b.Region, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return []string{s.path}, nil
}

// Load returns the baskets stored under dataset name.
func (s *SQLiteSink) Load(ctx context.Context, name string) ([]profile.Basket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT region, user_id, vector FROM profiles WHERE dataset = ? ORDER BY user_id, region`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []profile.Basket
	for rows.Next() {
		var b profile.Basket
		var vec string
		if err := rows.Scan(&b.Region, &b.UserID, &vec); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(vec), &b.Vector); err != nil {
			return nil, fmt.Errorf("decode vector of %s/%s: %w", b.UserID, b.Region, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteSink) Close() error { return s.db.Close() }
