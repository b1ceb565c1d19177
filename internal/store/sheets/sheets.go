// Package sheets stores expenses in a Google Sheets tab, one row per record
// with the id in column A.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"agrogestion/internal/core"
	"agrogestion/internal/store"
)

// Header is written to row 1 of an empty tab. Column order is fixed.
var Header = []string{"ID", "Usuario", "Fecha", "Descripción", "Factura", "Importe", "Categoría", "Mes", "Año"}

// grid is the subset of the Sheets API the store needs.
type grid interface {
	Read(ctx context.Context, rng string) ([][]any, error)
	Write(ctx context.Context, rng string, values [][]any) error
	Append(ctx context.Context, rng string, values [][]any) error
	// DeleteRow removes a 0-based row index from the tab.
	DeleteRow(ctx context.Context, tab string, row int) error
}

type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountFile string
	ServiceAccountJSON string
}

type Client struct {
	grid  grid
	sheet string
	// Sheets has no row locking; serialize this process's read-modify-write.
	mu sync.Mutex
}

var _ store.ExpenseStore = (*Client)(nil)

// New creates a Sheets client using service account credentials from cfg.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&apiGrid{svc: svc, spreadsheetID: cfg.SpreadsheetID}, cfg.SheetName), nil
}

func newClient(g grid, sheet string) *Client {
	if strings.TrimSpace(sheet) == "" {
		sheet = "Gastos"
	}
	return &Client{grid: g, sheet: sheet}
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(cfg.ServiceAccountJSON)
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", cfg.ServiceAccountFile)
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	return gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

func (c *Client) dataRange() string {
	return fmt.Sprintf("%s!A:I", c.sheet)
}

func (c *Client) ListByOwner(ctx context.Context, ownerID string) ([]core.Expense, error) {
	values, err := c.grid.Read(ctx, c.dataRange())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.dataRange(), classify(err))
	}
	out := make([]core.Expense, 0)
	// Rows are appended, so iterate backwards for newest first.
	for i := len(values) - 1; i >= 0; i-- {
		e, ok := parseRow(values[i])
		if !ok || e.UserID != ownerID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *Client) Upsert(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrRejected, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.grid.Read(ctx, c.dataRange())
	if err != nil {
		return fmt.Errorf("read %s: %w", c.dataRange(), classify(err))
	}
	if len(values) == 0 {
		if err := c.grid.Write(ctx, fmt.Sprintf("%s!A1:I1", c.sheet), [][]any{toAny(Header)}); err != nil {
			return fmt.Errorf("write header: %w", classify(err))
		}
	}

	row := formatRow(e)
	if idx := findRow(values, e.ID); idx >= 0 {
		if owner := cell(values[idx], 1); owner != e.UserID {
			return fmt.Errorf("%w: expense %s belongs to another owner", store.ErrRejected, e.ID)
		}
		rng := fmt.Sprintf("%s!A%d:I%d", c.sheet, idx+1, idx+1)
		if err := c.grid.Write(ctx, rng, [][]any{row}); err != nil {
			return fmt.Errorf("update %s: %w", rng, classify(err))
		}
		return nil
	}
	if err := c.grid.Append(ctx, c.dataRange(), [][]any{row}); err != nil {
		return fmt.Errorf("append to %s: %w", c.sheet, classify(err))
	}
	return nil
}

func (c *Client) DeleteByID(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.grid.Read(ctx, c.dataRange())
	if err != nil {
		return fmt.Errorf("read %s: %w", c.dataRange(), classify(err))
	}
	idx := findRow(values, id)
	if idx < 0 {
		return nil
	}
	if err := c.grid.DeleteRow(ctx, c.sheet, idx); err != nil {
		return fmt.Errorf("delete row %d: %w", idx+1, classify(err))
	}
	return nil
}

func findRow(values [][]any, id string) int {
	for i, row := range values {
		if cell(row, 0) == id {
			return i
		}
	}
	return -1
}

// classify maps Google API status codes onto the store error kinds.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
		default:
			return fmt.Errorf("%w: %w", store.ErrRejected, err)
		}
	}
	return store.Classify(err)
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// apiGrid talks to the real Sheets API.
type apiGrid struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

func (g *apiGrid) Read(ctx context.Context, rng string) ([][]any, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (g *apiGrid) Write(ctx context.Context, rng string, values [][]any) error {
	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (g *apiGrid) Append(ctx context.Context, rng string, values [][]any) error {
	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func (g *apiGrid) DeleteRow(ctx context.Context, tab string, row int) error {
	sheetID, err := g.sheetID(ctx, tab)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row),
					EndIndex:   int64(row + 1),
					// Zero is a valid sheet id and row index.
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	_, err = g.svc.Spreadsheets.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do()
	return err
}

func (g *apiGrid) sheetID(ctx context.Context, tab string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.sheetIDs[tab]; ok {
		return id, nil
	}
	ss, err := g.svc.Spreadsheets.Get(g.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	if g.sheetIDs == nil {
		g.sheetIDs = make(map[string]int64)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			g.sheetIDs[s.Properties.Title] = s.Properties.SheetId
		}
	}
	id, ok := g.sheetIDs[tab]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found", tab)
	}
	return id, nil
}
