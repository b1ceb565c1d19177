// Package postgres provides the PostgreSQL-backed remote store for expenses
// and accounts.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"agrogestion/internal/core"
	"agrogestion/internal/store"
	"agrogestion/internal/store/postgres/migrations"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository implements store.ExpenseStore and store.UserDirectory over a DBTX.
type Repository struct {
	db DBTX
}

var (
	_ store.ExpenseStore  = (*Repository)(nil)
	_ store.UserDirectory = (*Repository)(nil)
)

func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// Open connects with the pgx driver and applies pending migrations.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", store.Classify(err))
	}
	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return db, nil
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

const selectExpenses = `SELECT id, user_id, description, invoice_number, amount, category,
		to_char(date, 'YYYY-MM-DD'), month, year
	FROM expenses
	WHERE user_id = $1
	ORDER BY created_at DESC, id`

func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, selectExpenses, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select expenses: %w", store.Classify(err))
	}
	defer rows.Close()

	result := make([]core.Expense, 0)
	for rows.Next() {
		var row store.Row
		if err := rows.Scan(&row.ID, &row.UserID, &row.Description, &row.InvoiceNumber, &row.Amount,
			&row.Category, &row.Date, &row.Month, &row.Year); err != nil {
			return nil, fmt.Errorf("scan error: %w", store.Classify(err))
		}
		result = append(result, store.FromRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", store.Classify(err))
	}
	return result, nil
}

// Upsert inserts or replaces an expense by id. If the id belongs to another
// owner no row is updated and store.ErrRejected is returned.
func (r *Repository) Upsert(ctx context.Context, e core.Expense) error {
	row := store.ToRow(e)
	query := `
		INSERT INTO expenses (id, user_id, description, invoice_number, amount, category, date, month, year)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id)
		DO UPDATE SET
			description = EXCLUDED.description,
			invoice_number = EXCLUDED.invoice_number,
			amount = EXCLUDED.amount,
			category = EXCLUDED.category,
			date = EXCLUDED.date,
			month = EXCLUDED.month,
			year = EXCLUDED.year,
			updated_at = now()
			WHERE expenses.user_id = EXCLUDED.user_id;
	`
	res, err := r.db.ExecContext(ctx, query,
		row.ID, row.UserID, row.Description, row.InvoiceNumber, row.Amount.StringFixed(2),
		row.Category, row.Date, row.Month, row.Year)
	if err != nil {
		return fmt.Errorf("db error: %w", store.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", store.Classify(err))
	}
	switch n {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("%w: expense %s belongs to another owner", store.ErrRejected, e.ID)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", store.Classify(err))
	}
	return nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (store.Account, error) {
	return r.findAccount(ctx, `lower(email) = lower($1)`, strings.TrimSpace(email))
}

func (r *Repository) FindByID(ctx context.Context, id string) (store.Account, error) {
	return r.findAccount(ctx, `id = $1`, id)
}

func (r *Repository) findAccount(ctx context.Context, where, arg string) (store.Account, error) {
	query := `SELECT id, email, name, farm_name, lat, lng, password_hash FROM users WHERE ` + where
	var (
		a        store.Account
		lat, lng sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.User.ID, &a.User.Email, &a.User.Name, &a.User.FarmName, &lat, &lng, &a.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Account{}, store.ErrNotFound
		}
		return store.Account{}, fmt.Errorf("db error: %w", store.Classify(err))
	}
	if lat.Valid && lng.Valid {
		a.User.Location = &core.GeoPoint{Lat: lat.Float64, Lng: lng.Float64}
	}
	return a, nil
}

func (r *Repository) Create(ctx context.Context, a store.Account) error {
	lat, lng := location(a.User)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, farm_name, lat, lng, password_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.User.ID, strings.TrimSpace(a.User.Email), a.User.Name, a.User.FarmName, lat, lng, a.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("db error: %w", store.Classify(err))
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, a store.Account) error {
	lat, lng := location(a.User)
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = $1, name = $2, farm_name = $3, lat = $4, lng = $5, password_hash = $6
		 WHERE id = $7`,
		strings.TrimSpace(a.User.Email), a.User.Name, a.User.FarmName, lat, lng, a.PasswordHash, a.User.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("db error: %w", store.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", store.Classify(err))
	}
	if n == 0 {
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
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
