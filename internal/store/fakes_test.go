package store

import (
	"context"
	"fmt"
	"sync"

	"gastos/internal/core"
	"gastos/internal/remote"
)

// ── In-memory remotes ────────────────────────────────────────────────────────

type fakeCategoryRemote struct {
	mu         sync.Mutex
	categories []core.Category
	counts     map[string]int
	listCalls  int
	createCall int
	listErr    error
	createErr  error
	nextID     int
	listHook   func(ctx context.Context) (remote.CategoryList, error)
}

func newFakeCategoryRemote(names ...string) *fakeCategoryRemote {
	f := &fakeCategoryRemote{counts: make(map[string]int)}
	for _, n := range names {
		f.nextID++
		f.categories = append(f.categories, core.Category{ID: fmt.Sprintf("c%d", f.nextID), Nombre: n})
	}
	return f
}

func (f *fakeCategoryRemote) List(ctx context.Context, includeCount bool) (remote.CategoryList, error) {
	f.mu.Lock()
	f.listCalls++
	hook := f.listHook
	err := f.listErr
	items := make([]core.Category, 0, len(f.categories))
	for _, c := range f.categories {
		if includeCount {
			n := f.counts[c.ID]
			c.ExpenseCount = &n
		}
		items = append(items, c)
	}
	f.mu.Unlock()

	if hook != nil {
		return hook(ctx)
	}
	if err != nil {
		return remote.CategoryList{}, err
	}
	return remote.CategoryList{Items: items, Total: len(items)}, nil
}

func (f *fakeCategoryRemote) Create(_ context.Context, in core.CategoryInput) (core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCall++
	if f.createErr != nil {
		return core.Category{}, f.createErr
	}
	f.nextID++
	c := core.Category{ID: fmt.Sprintf("c%d", f.nextID), Nombre: in.Nombre}
	f.categories = append(f.categories, c)
	return c, nil
}

func (f *fakeCategoryRemote) Update(_ context.Context, id string, in core.CategoryInput) (core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.categories {
		if c.ID == id {
			f.categories[i].Nombre = in.Nombre
			return f.categories[i], nil
		}
	}
	return core.Category{}, &remote.RemoteError{StatusCode: 404, Message: "Categoría no encontrada"}
}

func (f *fakeCategoryRemote) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.categories {
		if c.ID == id {
			f.categories = append(f.categories[:i], f.categories[i+1:]...)
			return nil
		}
	}
	return &remote.RemoteError{StatusCode: 404, Message: "Categoría no encontrada"}
}

func (f *fakeCategoryRemote) calls() (list, create int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.createCall
}

type fakeExpenseRemote struct {
	mu          sync.Mutex
	expenses    []core.Expense
	listCalls   int
	mutations   int
	lastFilter  core.Filter
	listErr     error
	mutationErr error
	nextID      int
	listHook    func(ctx context.Context, f core.Filter) (remote.ExpenseList, error)
}

func (f *fakeExpenseRemote) List(ctx context.Context, filter core.Filter) (remote.ExpenseList, error) {
	f.mu.Lock()
	f.listCalls++
	f.lastFilter = filter
	hook := f.listHook
	err := f.listErr
	var matched []core.Expense
	for _, e := range f.expenses {
		if filter.CategoriaID == "" || e.CategoriaID == filter.CategoriaID {
			matched = append(matched, e)
		}
	}
	f.mu.Unlock()

	if hook != nil {
		return hook(ctx, filter)
	}
	if err != nil {
		return remote.ExpenseList{}, err
	}

	start := (filter.Page - 1) * filter.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := min(start+filter.Limit, len(matched))
	return remote.ExpenseList{
		Items: matched[start:end],
		Total: len(matched),
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

func (f *fakeExpenseRemote) Create(_ context.Context, d core.ExpenseData) (core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations++
	if f.mutationErr != nil {
		return core.Expense{}, f.mutationErr
	}
	f.nextID++
	e := core.Expense{
		ID:          fmt.Sprintf("g%d", f.nextID),
		Descripcion: d.Descripcion,
		Monto:       d.Monto,
		FechaHora:   d.FechaHora,
		CategoriaID: d.CategoriaID,
	}
	f.expenses = append([]core.Expense{e}, f.expenses...)
	return e, nil
}

func (f *fakeExpenseRemote) Update(_ context.Context, id string, d core.ExpenseData) (core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations++
	if f.mutationErr != nil {
		return core.Expense{}, f.mutationErr
	}
	for i, e := range f.expenses {
		if e.ID == id {
			f.expenses[i].Descripcion = d.Descripcion
			f.expenses[i].Monto = d.Monto
			f.expenses[i].FechaHora = d.FechaHora
			f.expenses[i].CategoriaID = d.CategoriaID
			return f.expenses[i], nil
		}
	}
	return core.Expense{}, &remote.RemoteError{StatusCode: 404, Message: "Gasto no encontrado"}
}

func (f *fakeExpenseRemote) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations++
	if f.mutationErr != nil {
		return f.mutationErr
	}
	for i, e := range f.expenses {
		if e.ID == id {
			f.expenses = append(f.expenses[:i], f.expenses[i+1:]...)
			return nil
		}
	}
	return &remote.RemoteError{StatusCode: 404, Message: "Gasto no encontrado"}
}

func (f *fakeExpenseRemote) counts() (list, mutations int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.mutations
}
