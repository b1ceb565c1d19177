package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DateLayout is the ISO calendar date used for Expense.Date.
const DateLayout = "2006-01-02"

const maxDescription = 200

type (
	GeoPoint struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}

	// User is the session record. Email is the lookup key.
	User struct {
		ID       string    `json:"id"`
		Name     string    `json:"name"`
		Email    string    `json:"email"`
		FarmName string    `json:"farmName"`
		Location *GeoPoint `json:"location,omitempty"`
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID            string
		UserID        string // immutable after creation
		Description   string
		InvoiceNumber string // empty when absent
		Amount        Money
		Category      Category
		Date          string // YYYY-MM-DD
		Month         int    // 1-12
		Year          int
	}
)

// DefaultFarmLocation is assigned to new users that register without a location.
var DefaultFarmLocation = GeoPoint{Lat: 40.4168, Lng: -3.7038}

var (
	ErrEmptyID          = errors.New("empty id")
	ErrEmptyOwner       = errors.New("empty owner id")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidYear      = errors.New("invalid year")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrDateMismatch     = errors.New("month/year do not match date")
	ErrEmptyEmail       = errors.New("empty email")
)

// NewExpense builds an expense with a client-generated id. Date, Month and Year
// all come from at, so they are always consistent.
func NewExpense(userID, description, invoice string, amount Money, category Category, at time.Time) Expense {
	return Expense{
		ID:            uuid.NewString(),
		UserID:        userID,
		Description:   strings.TrimSpace(description),
		InvoiceNumber: strings.TrimSpace(invoice),
		Amount:        amount,
		Category:      category,
		Date:          at.Format(DateLayout),
		Month:         int(at.Month()),
		Year:          at.Year(),
	}
}

// Time parses Date. The zero time is returned for unparseable dates.
func (e Expense) Time() time.Time {
	t, err := time.Parse(DateLayout, e.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(e.UserID) == "" {
		return ErrEmptyOwner
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(e.Description) > maxDescription {
		return fmt.Errorf("description too long (max %d characters)", maxDescription)
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, e.Category)
	}
	if e.Month < 1 || e.Month > 12 {
		return ErrInvalidMonth
	}
	if e.Year < 1000 || e.Year > 9999 {
		return ErrInvalidYear
	}
	t, err := time.Parse(DateLayout, e.Date)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, e.Date)
	}
	if int(t.Month()) != e.Month || t.Year() != e.Year {
		return ErrDateMismatch
	}
	return nil
}

// Equal reports whether every field matches.
func (e Expense) Equal(o Expense) bool {
	return e == o
}

func (u User) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(u.Email) == "" {
		return ErrEmptyEmail
	}
	return nil
}

// SameEmail compares emails ignoring case and surrounding spaces.
func SameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
