package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gastos/internal/core"
)

// CategoryList is one listing of categories. List returns them all, so Total
// is the number of items returned.
type CategoryList struct {
	Items []core.Category
	Total int
}

// CategoryPage is one page of categories, each with its expense count.
type CategoryPage struct {
	Items      []core.Category
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// CategoryClient covers /categorias.
type CategoryClient struct {
	c *Client
}

// List fetches every category. With includeCount each carries its expense count.
func (cc *CategoryClient) List(ctx context.Context, includeCount bool) (CategoryList, error) {
	var query url.Values
	if includeCount {
		query = url.Values{"includeCount": {"true"}}
	}
	var resp envelope[[]core.Category]
	if err := cc.c.do(ctx, http.MethodGet, "/categorias", query, nil, &resp); err != nil {
		return CategoryList{}, err
	}
	items := resp.Data
	if items == nil {
		items = []core.Category{}
	}
	return CategoryList{Items: items, Total: len(items)}, nil
}

// ListPage fetches one page of categories ordered by name.
func (cc *CategoryClient) ListPage(ctx context.Context, page, limit int) (CategoryPage, error) {
	query := url.Values{
		"page":         {strconv.Itoa(page)},
		"limit":        {strconv.Itoa(limit)},
		"includeCount": {"true"},
	}
	var resp pageBody[core.Category]
	if err := cc.c.do(ctx, http.MethodGet, "/categorias/paginated", query, nil, &resp); err != nil {
		return CategoryPage{}, err
	}
	items := resp.Data
	if items == nil {
		items = []core.Category{}
	}
	return CategoryPage{
		Items:      items,
		Total:      resp.Total,
		Page:       resp.Page,
		Limit:      resp.Limit,
		TotalPages: resp.TotalPages,
	}, nil
}

func (cc *CategoryClient) Get(ctx context.Context, id string) (core.Category, error) {
	var raw json.RawMessage
	if err := cc.c.do(ctx, http.MethodGet, "/categorias/"+url.PathEscape(id), nil, nil, &raw); err != nil {
		return core.Category{}, err
	}
	return unwrapEntity[core.Category](raw)
}

// Search returns categories whose name matches q.
func (cc *CategoryClient) Search(ctx context.Context, q string) ([]core.Category, error) {
	var resp envelope[[]core.Category]
	query := url.Values{"q": {strings.TrimSpace(q)}}
	if err := cc.c.do(ctx, http.MethodGet, "/categorias/search", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

type categoryBody struct {
	Nombre string `json:"nombre"`
}

func (cc *CategoryClient) Create(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	var raw json.RawMessage
	body := categoryBody{Nombre: strings.TrimSpace(in.Nombre)}
	if err := cc.c.do(ctx, http.MethodPost, "/categorias", nil, body, &raw); err != nil {
		return core.Category{}, err
	}
	return unwrapEntity[core.Category](raw)
}

func (cc *CategoryClient) Update(ctx context.Context, id string, in core.CategoryInput) (core.Category, error) {
	var raw json.RawMessage
	body := categoryBody{Nombre: strings.TrimSpace(in.Nombre)}
	if err := cc.c.do(ctx, http.MethodPut, "/categorias/"+url.PathEscape(id), nil, body, &raw); err != nil {
		return core.Category{}, err
	}
	return unwrapEntity[core.Category](raw)
}

func (cc *CategoryClient) Delete(ctx context.Context, id string) error {
	return cc.c.do(ctx, http.MethodDelete, "/categorias/"+url.PathEscape(id), nil, nil, nil)
}
