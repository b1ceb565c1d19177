package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"agrogestion/internal/core"
)

const maxBodyBytes = 64 << 10

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters, using now
// as the default. Out-of-range months fall back to now's month.
func ParseMonthParams(query url.Values, now time.Time) MonthParams {
	params := MonthParams{
		Year:  now.Year(),
		Month: int(now.Month()),
	}
	if y, ok := queryInt(query, "year"); ok {
		params.Year = y
	}
	if m, ok := queryInt(query, "month"); ok && m >= 1 && m <= 12 {
		params.Month = m
	}
	return params
}

// ParseExpenseQuery reads the list filters. Unlike ParseMonthParams absent
// values stay zero, meaning "any".
func ParseExpenseQuery(query url.Values) (core.Query, error) {
	var q core.Query
	if y, ok := queryInt(query, "year"); ok {
		q.Year = y
	}
	if m, ok := queryInt(query, "month"); ok {
		if m < 1 || m > 12 {
			return core.Query{}, fmt.Errorf("month must be between 1 and 12")
		}
		q.Month = m
	}
	if c := sanitizeInput(query.Get("category")); c != "" {
		cat, err := core.ParseCategory(c)
		if err != nil {
			return core.Query{}, err
		}
		q.Category = cat
	}
	q.Search = sanitizeInput(query.Get("q"))
	return q, nil
}

func queryInt(query url.Values, key string) (int, bool) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// decodeJSON reads one JSON object from the body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// bearerToken returns the token from the Authorization header, or from the
// token query parameter for websocket clients that cannot set headers.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
