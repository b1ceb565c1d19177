package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"agrogestion/internal/core"
)

type listOnly struct {
	items []core.Expense
	err   error
}

func (l listOnly) ListByOwner(_ context.Context, _ string) ([]core.Expense, error) {
	return l.items, l.err
}
func (listOnly) Upsert(context.Context, core.Expense) error { return nil }
func (listOnly) DeleteByID(context.Context, string) error   { return nil }

func TestRowMappingIsLossless(t *testing.T) {
	e := core.Expense{
		ID:            "9b1d",
		UserID:        "u-7",
		Description:   "Vacuna lengua azul",
		InvoiceNumber: "F-2025/118",
		Amount:        core.Money{Cents: 123456},
		Category:      core.CategorySanidadAnimal,
		Date:          "2025-06-30",
		Month:         6,
		Year:          2025,
	}
	r := ToRow(e)
	if r.UserID != "u-7" || r.InvoiceNumber != "F-2025/118" || r.Amount.String() != "1234.56" {
		t.Fatalf("unexpected column values: %+v", r)
	}
	if back := FromRow(r); !back.Equal(e) {
		t.Fatalf("round trip changed record:\n got %+v\nwant %+v", back, e)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"deadline", context.DeadlineExceeded, ErrUnavailable},
		{"refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), ErrUnavailable},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("boom")}, ErrUnavailable},
		{"constraint", errors.New("CHECK constraint failed: amount >= 0"), ErrRejected},
		{"already unavailable", fmt.Errorf("wrapped: %w", ErrUnavailable), ErrUnavailable},
		{"already rejected", fmt.Errorf("wrapped: %w", ErrRejected), ErrRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			if !errors.Is(got, tc.want) {
				t.Fatalf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
			}
			if !errors.Is(got, tc.err) {
				t.Fatalf("original error lost: %v", got)
			}
		})
	}
	if Classify(nil) != nil {
		t.Fatalf("expected nil for nil")
	}
}

func TestGetByID(t *testing.T) {
	s := listOnly{items: []core.Expense{{ID: "a"}, {ID: "b", Description: "found"}}}
	e, ok, err := GetByID(context.Background(), s, "u1", "b")
	if err != nil || !ok || e.Description != "found" {
		t.Fatalf("unexpected result %+v %v %v", e, ok, err)
	}
	if _, ok, _ := GetByID(context.Background(), s, "u1", "zzz"); ok {
		t.Fatalf("expected not found")
	}
	if _, _, err := GetByID(context.Background(), listOnly{err: ErrUnavailable}, "u1", "a"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected error to surface, got %v", err)
	}
}
