package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"gastos/internal/core"
)

const maxBodyBytes = 64 << 10

var validate = validator.New(validator.WithRequiredStructEnabled())

// listQuery is the raw query of GET /gastos.
type listQuery struct {
	Page        int    `validate:"min=1"`
	Limit       int    `validate:"min=1,max=100"`
	SortBy      string `validate:"oneof=id descripcion monto fechaHora categoriaId createdAt updatedAt"`
	Order       string `validate:"oneof=asc desc"`
	CategoriaID string
	Search      string `validate:"max=100"`
}

// ParseListQuery reads the expense listing parameters. Missing values take the
// defaults of core.DefaultFilter; present but malformed ones are an error.
func ParseListQuery(query url.Values) (core.Filter, error) {
	def := core.DefaultFilter()
	q := listQuery{
		Page:        def.Page,
		Limit:       def.Limit,
		SortBy:      string(def.SortBy),
		Order:       string(def.SortOrder),
		CategoriaID: sanitizeInput(query.Get("categoriaId")),
		Search:      sanitizeInput(query.Get("search")),
	}

	if err := readInts(query, map[string]*int{"page": &q.Page, "limit": &q.Limit}); err != nil {
		return core.Filter{}, err
	}
	if v := strings.TrimSpace(query.Get("sortBy")); v != "" {
		q.SortBy = v
	}
	if v := strings.TrimSpace(query.Get("order")); v != "" {
		q.Order = strings.ToLower(v)
	}

	if err := validateQuery(q); err != nil {
		return core.Filter{}, err
	}

	return core.Filter{
		Page:        q.Page,
		Limit:       q.Limit,
		SortBy:      core.SortField(q.SortBy),
		SortOrder:   core.SortOrder(q.Order),
		CategoriaID: q.CategoriaID,
		Search:      q.Search,
	}, nil
}

// pageQuery is the raw query of GET /categorias/paginated.
type pageQuery struct {
	Page  int `validate:"min=1"`
	Limit int `validate:"min=1,max=100"`
}

// ParsePageQuery reads page and limit with the same defaults and bounds as
// the expense listing.
func ParsePageQuery(query url.Values) (page, limit int, err error) {
	q := pageQuery{Page: core.DefaultPage, Limit: core.DefaultLimit}
	if err := readInts(query, map[string]*int{"page": &q.Page, "limit": &q.Limit}); err != nil {
		return 0, 0, err
	}
	if err := validateQuery(q); err != nil {
		return 0, 0, err
	}
	return q.Page, q.Limit, nil
}

func readInts(query url.Values, dst map[string]*int) error {
	for key, p := range dst {
		if v := strings.TrimSpace(query.Get(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("parámetro %s inválido: %q", key, v)
			}
			*p = n
		}
	}
	return nil
}

// validateQuery names the first offending parameter.
func validateQuery(q any) error {
	if err := validate.Struct(q); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) && len(ves) > 0 {
			return fmt.Errorf("parámetro %s inválido", strings.ToLower(ves[0].Field()))
		}
		return err
	}
	return nil
}

// flexString accepts a JSON string or number and keeps its text. Amounts
// arrive as numbers from the dashboard but as strings from some clients.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected a number or string, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

type categoryRequest struct {
	Nombre string `json:"nombre"`
}

type expenseRequest struct {
	Descripcion string     `json:"descripcion"`
	Monto       flexString `json:"monto"`
	FechaHora   string     `json:"fechaHora"`
	CategoriaID string     `json:"categoriaId"`
}

func (r expenseRequest) input() core.ExpenseInput {
	return core.ExpenseInput{
		Descripcion: sanitizeInput(r.Descripcion),
		Monto:       strings.TrimSpace(string(r.Monto)),
		FechaHora:   strings.TrimSpace(r.FechaHora),
		CategoriaID: strings.TrimSpace(r.CategoriaID),
	}
}

// decodeBody reads at most maxBodyBytes of JSON into v.
func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return errors.New("body too large")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(body, v)
}
