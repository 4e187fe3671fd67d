package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormDateTimeLayout is the minute-resolution layout used by datetime-local inputs.
const FormDateTimeLayout = "2006-01-02T15:04"

type (
	// DateTime is an expense timestamp. On the wire it is an ISO-8601 string;
	// values without a zone are read in local time.
	DateTime struct {
		time.Time
	}

	Category struct {
		ID     string `json:"id"`
		Nombre string `json:"nombre"`
		// ExpenseCount is only populated when the list was requested with counts.
		ExpenseCount *int     `json:"-"`
		CreatedAt    DateTime `json:"createdAt"`
		UpdatedAt    DateTime `json:"updatedAt"`
	}

	Expense struct {
		ID          string          `json:"id"`
		Descripcion string          `json:"descripcion"`
		Monto       decimal.Decimal `json:"monto"`
		FechaHora   DateTime        `json:"fechaHora"`
		CategoriaID string          `json:"categoriaId"`
		Categoria   *Category       `json:"categoria,omitempty"` // snapshot, may be stale
		CreatedAt   DateTime        `json:"createdAt"`
		UpdatedAt   DateTime        `json:"updatedAt"`
	}

	// ExpenseData is a validated expense payload ready for transmission.
	ExpenseData struct {
		Descripcion string          `json:"descripcion" validate:"required,min=3,max=100"`
		Monto       decimal.Decimal `json:"monto" validate:"gt=0"`
		FechaHora   DateTime        `json:"fechaHora"`
		CategoriaID string          `json:"categoriaId" validate:"required"`
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrDescriptionTooShort = errors.New("description must be at least 3 characters")
	ErrDescriptionTooLong  = errors.New("description must be at most 100 characters")
	ErrMissingCategory     = errors.New("category is required")
	ErrNameTooShort        = errors.New("name must be at least 2 characters")
	ErrNameTooLong         = errors.New("name must be at most 30 characters")
	ErrInvalidDate         = errors.New("invalid date")
)

var dateTimeLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	FormDateTimeLayout,
	"2006-01-02",
}

// ParseDateTime accepts RFC 3339 timestamps and the zone-less forms produced by
// HTML datetime inputs. Zone-less input is interpreted in time.Local.
func ParseDateTime(s string) (DateTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DateTime{}, ErrInvalidDate
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DateTime{Time: t}, nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return DateTime{Time: t}, nil
		}
	}
	return DateTime{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// FormValue renders the timestamp for a datetime-local input in local time.
func (d DateTime) FormValue() string {
	if d.IsZero() {
		return ""
	}
	return d.Local().Format(FormDateTimeLayout)
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(time.RFC3339))
}

func (d *DateTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = DateTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("decode date: %w", err)
	}
	parsed, err := ParseDateTime(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type categoryCount struct {
	Gastos int `json:"gastos"`
}

type categoryJSON struct {
	ID           string         `json:"id"`
	Nombre       string         `json:"nombre"`
	Count        *categoryCount `json:"_count,omitempty"`
	ExpenseCount *int           `json:"expenseCount,omitempty"`
	CreatedAt    DateTime       `json:"createdAt"`
	UpdatedAt    DateTime       `json:"updatedAt"`
}

// MarshalJSON writes the expense count the way the backend does, under _count.gastos.
func (c Category) MarshalJSON() ([]byte, error) {
	out := categoryJSON{
		ID:        c.ID,
		Nombre:    c.Nombre,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.ExpenseCount != nil {
		out.Count = &categoryCount{Gastos: *c.ExpenseCount}
	}
	return json.Marshal(out)
}

func (c *Category) UnmarshalJSON(b []byte) error {
	var in categoryJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*c = Category{
		ID:        in.ID,
		Nombre:    in.Nombre,
		CreatedAt: in.CreatedAt,
		UpdatedAt: in.UpdatedAt,
	}
	switch {
	case in.Count != nil:
		n := in.Count.Gastos
		c.ExpenseCount = &n
	case in.ExpenseCount != nil:
		n := *in.ExpenseCount
		c.ExpenseCount = &n
	}
	return nil
}

// MarshalJSON writes monto as a JSON number, the form every API consumer
// expects. Decoding accepts both numbers and strings.
func (e Expense) MarshalJSON() ([]byte, error) {
	type plain Expense
	return json.Marshal(struct {
		plain
		Monto json.Number `json:"monto"`
	}{plain: plain(e), Monto: json.Number(e.Monto.String())})
}

// Validate checks an already-parsed expense payload.
func (e ExpenseData) Validate() error {
	verr := validationErrorFrom(validate.Struct(e), expenseFieldErrors)
	if e.FechaHora.IsZero() {
		verr = verr.add("fechaHora", ErrInvalidDate)
	}
	return verr.orNil()
}
