package core

import "fmt"

const (
	SortByID          SortField = "id"
	SortByDescripcion SortField = "descripcion"
	SortByMonto       SortField = "monto"
	SortByFechaHora   SortField = "fechaHora"
	SortByCategoriaID SortField = "categoriaId"
	SortByCreatedAt   SortField = "createdAt"
	SortByUpdatedAt   SortField = "updatedAt"

	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"

	DefaultPage  = 1
	DefaultLimit = 10
)

type (
	// SortField names the Expense field a listing is ordered by.
	SortField string

	SortOrder string

	// Filter selects which page of expenses is fetched and displayed.
	Filter struct {
		Page        int
		Limit       int
		SortBy      SortField
		SortOrder   SortOrder
		CategoriaID string
		Search      string
	}

	// FilterPatch is a partial Filter. Nil fields are left untouched; a pointer
	// to "" clears CategoriaID or Search.
	FilterPatch struct {
		Page        *int
		Limit       *int
		SortBy      *SortField
		SortOrder   *SortOrder
		CategoriaID *string
		Search      *string
	}
)

// DefaultFilter is the filter a fresh expense listing starts from.
func DefaultFilter() Filter {
	return Filter{
		Page:      DefaultPage,
		Limit:     DefaultLimit,
		SortBy:    SortByFechaHora,
		SortOrder: SortDesc,
	}
}

func (f SortField) Valid() bool {
	switch f {
	case SortByID, SortByDescripcion, SortByMonto, SortByFechaHora,
		SortByCategoriaID, SortByCreatedAt, SortByUpdatedAt:
		return true
	}
	return false
}

func (o SortOrder) Valid() bool {
	return o == SortAsc || o == SortDesc
}

// ParseSortField returns an error for names that are not Expense fields.
func ParseSortField(s string) (SortField, error) {
	f := SortField(s)
	if !f.Valid() {
		return "", fmt.Errorf("invalid sort field %q", s)
	}
	return f, nil
}

func ParseSortOrder(s string) (SortOrder, error) {
	o := SortOrder(s)
	if !o.Valid() {
		return "", fmt.Errorf("invalid sort order %q", s)
	}
	return o, nil
}

// resetsPage reports whether the patch changes which rows match or their order.
func (p FilterPatch) resetsPage() bool {
	return p.SortBy != nil || p.SortOrder != nil || p.CategoriaID != nil || p.Search != nil
}

// Apply merges the patch into f. Touching the sort, the category or the search
// sends the listing back to page 1 unless the same patch names a page.
func (f Filter) Apply(p FilterPatch) Filter {
	if p.Limit != nil && *p.Limit > 0 {
		f.Limit = *p.Limit
	}
	if p.SortBy != nil {
		f.SortBy = *p.SortBy
	}
	if p.SortOrder != nil {
		f.SortOrder = *p.SortOrder
	}
	if p.CategoriaID != nil {
		f.CategoriaID = *p.CategoriaID
	}
	if p.Search != nil {
		f.Search = *p.Search
	}

	switch {
	case p.Page != nil:
		f.Page = *p.Page
	case p.resetsPage():
		f.Page = DefaultPage
	}
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	return f
}

// Ptr is a small helper for building patches inline.
func Ptr[T any](v T) *T {
	return &v
}
