package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"agrogestion/internal/core"
	"agrogestion/internal/store"
)

type SQLiteRepository struct {
	db *sql.DB
}

// Ensure interface conformance
var (
	_ store.ExpenseStore  = (*SQLiteRepository)(nil)
	_ store.UserDirectory = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids "database is locked" between pooled connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]core.Expense, error) {
	query := `SELECT ` + strings.Join(store.Columns, ", ") + `
		FROM expenses
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", store.Classify(err))
	}
	defer rows.Close()

	result := make([]core.Expense, 0)
	for rows.Next() {
		var row store.Row
		if err := rows.Scan(&row.ID, &row.UserID, &row.Description, &row.InvoiceNumber, &row.Amount,
			&row.Category, &row.Date, &row.Month, &row.Year); err != nil {
			return nil, fmt.Errorf("scan expense: %w", store.Classify(err))
		}
		result = append(result, store.FromRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", store.Classify(err))
	}
	return result, nil
}

// Upsert replaces the record in place. A row owned by someone else is left
// untouched and reported as rejected.
func (r *SQLiteRepository) Upsert(ctx context.Context, e core.Expense) error {
	row := store.ToRow(e)
	query := `
		INSERT INTO expenses (id, user_id, description, invoice_number, amount, category, date, month, year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			description = excluded.description,
			invoice_number = excluded.invoice_number,
			amount = excluded.amount,
			category = excluded.category,
			date = excluded.date,
			month = excluded.month,
			year = excluded.year,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE expenses.user_id = excluded.user_id`
	res, err := r.db.ExecContext(ctx, query,
		row.ID, row.UserID, row.Description, row.InvoiceNumber, row.Amount.StringFixed(2),
		row.Category, row.Date, row.Month, row.Year)
	if err != nil {
		return fmt.Errorf("upsert expense: %w", store.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", store.Classify(err))
	}
	if n == 0 {
		return fmt.Errorf("%w: expense %s belongs to another owner", store.ErrRejected, e.ID)
	}

	slog.DebugContext(ctx, "Expense upserted in SQLite",
		"id", row.ID,
		"user_id", row.UserID,
		"amount", row.Amount.String())
	return nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete expense: %w", store.Classify(err))
	}
	return nil
}

func (r *SQLiteRepository) FindByEmail(ctx context.Context, email string) (store.Account, error) {
	return r.findAccount(ctx, `email = ?`, strings.TrimSpace(email))
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (store.Account, error) {
	return r.findAccount(ctx, `id = ?`, id)
}

func (r *SQLiteRepository) findAccount(ctx context.Context, where string, arg string) (store.Account, error) {
	query := `SELECT id, email, name, farm_name, lat, lng, password_hash FROM users WHERE ` + where
	var (
		a        store.Account
		lat, lng sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.User.ID, &a.User.Email, &a.User.Name, &a.User.FarmName, &lat, &lng, &a.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Account{}, store.ErrNotFound
	}
	if err != nil {
		return store.Account{}, fmt.Errorf("find user: %w", store.Classify(err))
	}
	if lat.Valid && lng.Valid {
		a.User.Location = &core.GeoPoint{Lat: lat.Float64, Lng: lng.Float64}
	}
	return a, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, a store.Account) error {
	lat, lng := location(a.User)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, farm_name, lat, lng, password_hash) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.User.ID, strings.TrimSpace(a.User.Email), a.User.Name, a.User.FarmName, lat, lng, a.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("create user: %w", store.Classify(err))
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, a store.Account) error {
	lat, lng := location(a.User)
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, name = ?, farm_name = ?, lat = ?, lng = ?, password_hash = ? WHERE id = ?`,
		strings.TrimSpace(a.User.Email), a.User.Name, a.User.FarmName, lat, lng, a.PasswordHash, a.User.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("update user: %w", store.Classify(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func location(u core.User) (sql.NullFloat64, sql.NullFloat64) {
	if u.Location == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: u.Location.Lat, Valid: true}, sql.NullFloat64{Float64: u.Location.Lng, Valid: true}
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
