package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gastos/internal/core"
)

// ExpenseList is one page of expenses plus the size of the whole filtered set.
type ExpenseList struct {
	Items      []core.Expense
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// pageBody is the paginated listing envelope shared by /gastos and
// /categorias/paginated.
type pageBody[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// ExpenseClient covers /gastos.
type ExpenseClient struct {
	c *Client
}

// expenseQuery includes only the filter fields that are set. The sort
// direction travels as "order".
func expenseQuery(f core.Filter) url.Values {
	q := url.Values{}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.SortBy != "" {
		q.Set("sortBy", string(f.SortBy))
	}
	if f.SortOrder != "" {
		q.Set("order", string(f.SortOrder))
	}
	if f.CategoriaID != "" {
		q.Set("categoriaId", f.CategoriaID)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	return q
}

func (ec *ExpenseClient) List(ctx context.Context, f core.Filter) (ExpenseList, error) {
	var resp pageBody[core.Expense]
	if err := ec.c.do(ctx, http.MethodGet, "/gastos", expenseQuery(f), nil, &resp); err != nil {
		return ExpenseList{}, err
	}
	items := resp.Data
	if items == nil {
		items = []core.Expense{}
	}
	return ExpenseList{
		Items:      items,
		Total:      resp.Total,
		Page:       resp.Page,
		Limit:      resp.Limit,
		TotalPages: resp.TotalPages,
	}, nil
}

// expenseBody is the mutation payload; monto goes out as a JSON number.
type expenseBody struct {
	Descripcion string      `json:"descripcion"`
	Monto       json.Number `json:"monto"`
	FechaHora   string      `json:"fechaHora"`
	CategoriaID string      `json:"categoriaId"`
}

func newExpenseBody(d core.ExpenseData) expenseBody {
	return expenseBody{
		Descripcion: d.Descripcion,
		Monto:       json.Number(d.Monto.String()),
		FechaHora:   d.FechaHora.Format(time.RFC3339),
		CategoriaID: d.CategoriaID,
	}
}

func (ec *ExpenseClient) Create(ctx context.Context, d core.ExpenseData) (core.Expense, error) {
	var raw json.RawMessage
	if err := ec.c.do(ctx, http.MethodPost, "/gastos", nil, newExpenseBody(d), &raw); err != nil {
		return core.Expense{}, err
	}
	return unwrapEntity[core.Expense](raw)
}

func (ec *ExpenseClient) Update(ctx context.Context, id string, d core.ExpenseData) (core.Expense, error) {
	var raw json.RawMessage
	if err := ec.c.do(ctx, http.MethodPut, "/gastos/"+url.PathEscape(id), nil, newExpenseBody(d), &raw); err != nil {
		return core.Expense{}, err
	}
	return unwrapEntity[core.Expense](raw)
}

func (ec *ExpenseClient) Delete(ctx context.Context, id string) error {
	return ec.c.do(ctx, http.MethodDelete, "/gastos/"+url.PathEscape(id), nil, nil, nil)
}
