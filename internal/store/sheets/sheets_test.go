package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"google.golang.org/api/googleapi"

	"agrogestion/internal/core"
	"agrogestion/internal/store"
)

// fakeGrid keeps the tab in memory. Ranges are "<tab>!A<n>:I<n>" for writes.
type fakeGrid struct {
	rows    [][]any
	readErr error
	deletes int
}

func (g *fakeGrid) Read(_ context.Context, _ string) ([][]any, error) {
	if g.readErr != nil {
		return nil, g.readErr
	}
	out := make([][]any, len(g.rows))
	copy(out, g.rows)
	return out, nil
}

func (g *fakeGrid) Write(_ context.Context, rng string, values [][]any) error {
	var n int
	cells := rng[strings.Index(rng, "!")+1:]
	if _, err := fmt.Sscanf(strings.SplitN(cells, ":", 2)[0], "A%d", &n); err != nil {
		return err
	}
	for len(g.rows) < n {
		g.rows = append(g.rows, nil)
	}
	g.rows[n-1] = values[0]
	return nil
}

func (g *fakeGrid) Append(_ context.Context, _ string, values [][]any) error {
	g.rows = append(g.rows, values...)
	return nil
}

func (g *fakeGrid) DeleteRow(_ context.Context, _ string, row int) error {
	g.deletes++
	g.rows = append(g.rows[:row], g.rows[row+1:]...)
	return nil
}

func sample(id, owner string, cents int64) core.Expense {
	return core.Expense{
		ID:          id,
		UserID:      owner,
		Description: "Gasoil",
		Amount:      core.Money{Cents: cents},
		Category:    core.CategoryCombustible,
		Date:        "2024-03-15",
		Month:       3,
		Year:        2024,
	}
}

func TestClient_UpsertAppendsAndWritesHeader(t *testing.T) {
	g := &fakeGrid{}
	c := newClient(g, "")
	ctx := context.Background()

	if err := c.Upsert(ctx, sample("e1", "u1", 1000)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := c.Upsert(ctx, sample("e2", "u1", 2000)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(g.rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(g.rows))
	}
	if cell(g.rows[0], 0) != "ID" {
		t.Fatalf("expected header row, got %v", g.rows[0])
	}

	got, err := c.ListByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(got) != 2 || got[0].ID != "e2" || got[1].ID != "e1" {
		t.Fatalf("expected newest first [e2 e1], got %+v", got)
	}
	if !got[1].Equal(sample("e1", "u1", 1000)) {
		t.Fatalf("round trip mismatch: %+v", got[1])
	}
}

func TestClient_UpsertReplacesInPlace(t *testing.T) {
	g := &fakeGrid{}
	c := newClient(g, "Gastos")
	ctx := context.Background()

	_ = c.Upsert(ctx, sample("e1", "u1", 1000))
	_ = c.Upsert(ctx, sample("e2", "u1", 2000))
	if err := c.Upsert(ctx, sample("e1", "u1", 1500)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(g.rows) != 3 {
		t.Fatalf("replace must not append, rows=%d", len(g.rows))
	}
	if cell(g.rows[1], 5) != "15.00" {
		t.Fatalf("expected amount 15.00 in row 2, got %q", cell(g.rows[1], 5))
	}
}

func TestClient_UpsertForeignOwnerRejected(t *testing.T) {
	c := newClient(&fakeGrid{}, "Gastos")
	ctx := context.Background()
	_ = c.Upsert(ctx, sample("e1", "u1", 1000))

	err := c.Upsert(ctx, sample("e1", "u2", 1000))
	if !errors.Is(err, store.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestClient_UpsertInvalidRejected(t *testing.T) {
	c := newClient(&fakeGrid{}, "Gastos")
	bad := sample("e1", "u1", 1000)
	bad.Category = "Impuestos"
	if err := c.Upsert(context.Background(), bad); !errors.Is(err, store.ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestClient_DeleteByID(t *testing.T) {
	g := &fakeGrid{}
	c := newClient(g, "Gastos")
	ctx := context.Background()
	_ = c.Upsert(ctx, sample("e1", "u1", 1000))

	if err := c.DeleteByID(ctx, "e1"); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	if err := c.DeleteByID(ctx, "e1"); err != nil {
		t.Fatalf("second DeleteByID should be a no-op, got %v", err)
	}
	if g.deletes != 1 {
		t.Fatalf("expected one row deletion, got %d", g.deletes)
	}
	got, _ := c.ListByOwner(ctx, "u1")
	if len(got) != 0 {
		t.Fatalf("expected no expenses, got %d", len(got))
	}
}

func TestClient_ListSkipsForeignAndMalformedRows(t *testing.T) {
	g := &fakeGrid{rows: [][]any{
		toAny(Header),
		{"e1", "u1", "2024-03-15", "Gasoil", "", float64(12.5), "Combustible", float64(3), float64(2024)},
		{"e2", "u2", "2024-03-15", "Seguro", "", "10,00", "Seguros", "3", "2024"},
		{"e3", "u1", "2024-03-15", "Roto", "", "abc", "Otros", "3", "2024"},
		{},
		{"e4", "u1", "2024-04-01", "Semilla", "S-1", "1234,5", "Semillas", "4", "2024"},
	}}
	c := newClient(g, "Gastos")

	got, err := c.ListByOwner(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows for u1, got %+v", got)
	}
	if got[0].ID != "e4" || got[0].Amount.Cents != 123450 {
		t.Fatalf("unexpected first row: %+v", got[0])
	}
	if got[1].Amount.Cents != 1250 {
		t.Fatalf("expected 1250 cents from unformatted number, got %d", got[1].Amount.Cents)
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"rate limited", &googleapi.Error{Code: http.StatusTooManyRequests}, store.ErrUnavailable},
		{"server error", &googleapi.Error{Code: http.StatusBadGateway}, store.ErrUnavailable},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, store.ErrRejected},
		{"timeout", context.DeadlineExceeded, store.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(&fakeGrid{readErr: tt.err}, "Gastos")
			_, err := c.ListByOwner(context.Background(), "u1")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}
