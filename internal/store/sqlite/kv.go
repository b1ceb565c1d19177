package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// KV is a string key/value table sharing the repository's database. The
// session cache persists through it when the sqlite backend is active.
type KV struct {
	db *sql.DB
}

func (r *SQLiteRepository) KV() *KV {
	return &KV{db: r.db}
}

func (k *KV) Get(key string) (string, bool, error) {
	var value string
	err := k.db.QueryRowContext(context.Background(), `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return value, true, nil
}

func (k *KV) Set(key, value string) error {
	_, err := k.db.ExecContext(context.Background(),
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

func (k *KV) Remove(key string) error {
	if _, err := k.db.ExecContext(context.Background(), `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kv remove %s: %w", key, err)
	}
	return nil
}
