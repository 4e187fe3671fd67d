package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/remote"
)

// ExpenseState is a read-only copy of the expense store. Expenses is the
// current page only; Total counts every expense matching Filter.
type ExpenseState struct {
	Expenses   []core.Expense
	Total      int
	TotalPages int
	Filter     core.Filter
	IsLoading  bool
	Error      string
}

// ExpenseStore owns the current expense page and the filter that selects it.
// Every filter change and every successful mutation refetches the page.
type ExpenseStore struct {
	remote ExpenseRemote

	mu         sync.Mutex
	expenses   []core.Expense
	total      int
	totalPages int
	filter     core.Filter
	inflight   int
	errMsg     string
	guard      fetchGuard

	listeners listeners[ExpenseState]
}

func NewExpenseStore(r ExpenseRemote, initial core.Filter) *ExpenseStore {
	if initial.Page < 1 {
		initial.Page = core.DefaultPage
	}
	if initial.Limit < 1 {
		initial.Limit = core.DefaultLimit
	}
	return &ExpenseStore{
		remote:   r,
		expenses: []core.Expense{},
		filter:   initial,
	}
}

func (s *ExpenseStore) Snapshot() ExpenseState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ExpenseState{
		Expenses:   slices.Clone(s.expenses),
		Total:      s.total,
		TotalPages: s.totalPages,
		Filter:     s.filter,
		IsLoading:  s.inflight > 0,
		Error:      s.errMsg,
	}
}

// Filter returns the filter the next fetch will use.
func (s *ExpenseStore) Filter() core.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Subscribe registers fn to receive every state change. The returned func unsubscribes.
func (s *ExpenseStore) Subscribe(fn func(ExpenseState)) func() {
	return s.listeners.add(fn)
}

func (s *ExpenseStore) publish() {
	s.listeners.notify(s.Snapshot())
}

func (s *ExpenseStore) end() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
	s.publish()
}

// SetFilter merges patch into the filter and fetches the matching page. See
// core.Filter.Apply for when the page goes back to 1.
func (s *ExpenseStore) SetFilter(ctx context.Context, patch core.FilterPatch) error {
	s.mu.Lock()
	s.filter = s.filter.Apply(patch)
	s.mu.Unlock()
	return s.fetch(ctx)
}

// Refresh refetches the current page, bypassing any cached response.
func (s *ExpenseStore) Refresh(ctx context.Context) error {
	return s.fetch(remote.Fresh(ctx))
}

func (s *ExpenseStore) fetch(ctx context.Context) error {
	s.mu.Lock()
	s.inflight++
	s.errMsg = ""
	seq := s.guard.next()
	filter := s.filter
	s.mu.Unlock()
	s.publish()
	defer s.end()

	list, err := s.remote.List(ctx, filter)

	s.mu.Lock()
	current := s.guard.current(seq)
	if current {
		if err != nil {
			s.errMsg = errorMessage(err)
		} else {
			s.expenses = list.Items
			s.total = list.Total
			s.totalPages = list.TotalPages
			if s.totalPages == 0 && filter.Limit > 0 {
				s.totalPages = (list.Total + filter.Limit - 1) / filter.Limit
			}
		}
	}
	s.mu.Unlock()

	if !current {
		logStale(ctx, applog.EntityExpense, seq)
	}
	if err != nil {
		logFailure(ctx, "Expense refresh failed", applog.EntityExpense, applog.OpList, err)
		return fmt.Errorf("list expenses: %w", err)
	}
	slog.DebugContext(ctx, "Expense page loaded", applog.NewFields().
		WithComponent(applog.ComponentStore).
		WithListing(filter.Page, filter.Limit, string(filter.SortBy), string(filter.SortOrder)).
		WithFilter(filter.CategoriaID, filter.Search, list.Total).
		ToSlice()...)
	return nil
}

// mutate runs call with the store marked loading. On success the page is
// refetched before loading clears; a failed refetch is only recorded in
// Error. On failure Error is set and the wrapped error returned.
func (s *ExpenseStore) mutate(ctx context.Context, op string, call func(context.Context) error) error {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
	s.publish()
	defer s.end()

	if err := call(ctx); err != nil {
		s.mu.Lock()
		s.errMsg = errorMessage(err)
		s.mu.Unlock()
		logFailure(ctx, "Expense "+op+" failed", applog.EntityExpense, op, err)
		return fmt.Errorf("%s expense: %w", op, err)
	}

	_ = s.Refresh(ctx)
	return nil
}

// Create parses the form values and creates the expense. A non-numeric or
// non-positive monto fails with *core.ValidationError before any remote call.
func (s *ExpenseStore) Create(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	data, err := in.Parse()
	if err != nil {
		return core.Expense{}, err
	}

	var created core.Expense
	err = s.mutate(ctx, applog.OpCreate, func(ctx context.Context) error {
		var err error
		created, err = s.remote.Create(ctx, data)
		return err
	})
	return created, err
}

func (s *ExpenseStore) Update(ctx context.Context, id string, in core.ExpenseInput) (core.Expense, error) {
	data, err := in.Parse()
	if err != nil {
		return core.Expense{}, err
	}

	var updated core.Expense
	err = s.mutate(ctx, applog.OpUpdate, func(ctx context.Context) error {
		var err error
		updated, err = s.remote.Update(ctx, id, data)
		return err
	})
	return updated, err
}

func (s *ExpenseStore) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, applog.OpDelete, func(ctx context.Context) error {
		return s.remote.Delete(ctx, id)
	})
}
