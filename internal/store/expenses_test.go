package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gastos/internal/core"
	"gastos/internal/remote"
)

func seedExpenses(n int, cat string) []core.Expense {
	out := make([]core.Expense, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, core.Expense{
			ID:          fmt.Sprintf("seed%d", i),
			Descripcion: fmt.Sprintf("Gasto %d", i),
			Monto:       decimal.NewFromInt(int64(i + 1)),
			FechaHora:   core.DateTime{Time: time.Date(2024, 1, 1+i%28, 12, 0, 0, 0, time.Local)},
			CategoriaID: cat,
		})
	}
	return out
}

func validInput() core.ExpenseInput {
	return core.ExpenseInput{
		Descripcion: "Almuerzo",
		Monto:       "12.50",
		FechaHora:   "2024-01-15T13:00",
		CategoriaID: "c1",
	}
}

func TestExpenseStore_DefaultsAndRefresh(t *testing.T) {
	fake := &fakeExpenseRemote{expenses: seedExpenses(23, "c1")}
	s := NewExpenseStore(fake, core.DefaultFilter())

	require.NoError(t, s.Refresh(context.Background()))

	st := s.Snapshot()
	assert.Len(t, st.Expenses, 10)
	assert.Equal(t, 23, st.Total)
	assert.Equal(t, 3, st.TotalPages)
	assert.Equal(t, core.DefaultFilter(), st.Filter)
	assert.Equal(t, core.SortByFechaHora, fake.lastFilter.SortBy)
	assert.Equal(t, core.SortDesc, fake.lastFilter.SortOrder)
}

func TestExpenseStore_SetFilterResetsPage(t *testing.T) {
	fake := &fakeExpenseRemote{expenses: seedExpenses(40, "c1")}
	s := NewExpenseStore(fake, core.DefaultFilter())

	require.NoError(t, s.SetFilter(context.Background(), core.FilterPatch{Page: core.Ptr(3)}))
	assert.Equal(t, 3, s.Filter().Page)
	assert.Equal(t, core.SortByFechaHora, s.Filter().SortBy, "page change leaves sort alone")

	require.NoError(t, s.SetFilter(context.Background(), core.FilterPatch{SortBy: core.Ptr(core.SortByMonto)}))
	assert.Equal(t, 1, s.Filter().Page)
	assert.Equal(t, core.SortByMonto, fake.lastFilter.SortBy)
	assert.Equal(t, 1, fake.lastFilter.Page, "the fetch uses the reset page")

	lists, _ := fake.counts()
	assert.Equal(t, 2, lists, "every filter change refetches")
}

func TestExpenseStore_RefreshFailureKeepsPage(t *testing.T) {
	fake := &fakeExpenseRemote{expenses: seedExpenses(3, "c1")}
	s := NewExpenseStore(fake, core.DefaultFilter())
	require.NoError(t, s.Refresh(context.Background()))

	fake.listErr = &remote.RemoteError{StatusCode: 503, Message: "Servicio no disponible"}
	require.Error(t, s.Refresh(context.Background()))

	st := s.Snapshot()
	assert.Len(t, st.Expenses, 3)
	assert.Equal(t, "Servicio no disponible", st.Error)
	assert.False(t, st.IsLoading)
}

func TestExpenseStore_CreateRejectsNonNumericMontoLocally(t *testing.T) {
	fake := &fakeExpenseRemote{}
	s := NewExpenseStore(fake, core.DefaultFilter())

	in := validInput()
	in.Monto = "abc"
	_, err := s.Create(context.Background(), in)

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidAmount))
	lists, mutations := fake.counts()
	assert.Zero(t, lists)
	assert.Zero(t, mutations, "no network call for invalid input")
	assert.Empty(t, s.Snapshot().Error)
}

func TestExpenseStore_CreateRefetches(t *testing.T) {
	fake := &fakeExpenseRemote{}
	s := NewExpenseStore(fake, core.DefaultFilter())

	created, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.True(t, created.Monto.Equal(decimal.RequireFromString("12.5")))

	lists, mutations := fake.counts()
	assert.Equal(t, 1, mutations)
	assert.Equal(t, 1, lists)

	st := s.Snapshot()
	require.Len(t, st.Expenses, 1)
	assert.Equal(t, created.ID, st.Expenses[0].ID)
	assert.Equal(t, 1, st.Total)
	assert.False(t, st.IsLoading)
}

func TestExpenseStore_MutationFailureRecordsAndRethrows(t *testing.T) {
	fake := &fakeExpenseRemote{expenses: seedExpenses(2, "c1")}
	s := NewExpenseStore(fake, core.DefaultFilter())
	require.NoError(t, s.Refresh(context.Background()))

	fake.mutationErr = &remote.RemoteError{StatusCode: 400, Message: "Categoría inválida"}

	_, err := s.Update(context.Background(), "seed0", validInput())
	require.Error(t, err)
	rerr, ok := remote.AsRemoteError(err)
	require.True(t, ok)
	assert.Equal(t, 400, rerr.StatusCode)

	st := s.Snapshot()
	assert.Equal(t, "Categoría inválida", st.Error)
	assert.Len(t, st.Expenses, 2)
	assert.False(t, st.IsLoading)

	lists, _ := fake.counts()
	assert.Equal(t, 1, lists, "failed mutation does not refetch")
}

func TestExpenseStore_DeleteRefetches(t *testing.T) {
	fake := &fakeExpenseRemote{expenses: seedExpenses(2, "c1")}
	s := NewExpenseStore(fake, core.DefaultFilter())
	require.NoError(t, s.Refresh(context.Background()))

	require.NoError(t, s.Delete(context.Background(), "seed0"))

	st := s.Snapshot()
	assert.Len(t, st.Expenses, 1)
	assert.Equal(t, 1, st.Total)
}

func TestExpenseStore_MutationSucceedsEvenIfRefetchFails(t *testing.T) {
	fake := &fakeExpenseRemote{}
	s := NewExpenseStore(fake, core.DefaultFilter())
	fake.listErr = &remote.RemoteError{StatusCode: 500, Message: "Error al cargar los gastos"}

	_, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "Error al cargar los gastos", s.Snapshot().Error)
}

func TestExpenseStore_DiscardsSupersededFetch(t *testing.T) {
	fake := &fakeExpenseRemote{}
	s := NewExpenseStore(fake, core.DefaultFilter())

	release := make(chan struct{})
	started := make(chan struct{})
	fake.listHook = func(ctx context.Context, f core.Filter) (remote.ExpenseList, error) {
		if f.CategoriaID == "slow" {
			close(started)
			<-release
			return remote.ExpenseList{Items: seedExpenses(5, "slow"), Total: 5}, nil
		}
		return remote.ExpenseList{Items: seedExpenses(2, f.CategoriaID), Total: 2}, nil
	}

	done := make(chan error)
	go func() { done <- s.SetFilter(context.Background(), core.FilterPatch{CategoriaID: core.Ptr("slow")}) }()
	<-started

	require.NoError(t, s.SetFilter(context.Background(), core.FilterPatch{CategoriaID: core.Ptr("fast")}))
	close(release)
	require.NoError(t, <-done)

	st := s.Snapshot()
	assert.Equal(t, "fast", st.Filter.CategoriaID)
	assert.Equal(t, 2, st.Total, "late response for the old filter is ignored")
	require.Len(t, st.Expenses, 2)
	assert.Equal(t, "fast", st.Expenses[0].CategoriaID)
	assert.False(t, st.IsLoading)
}

func TestExpenseStore_SnapshotIsACopy(t *testing.T) {
	fake := &fakeExpenseRemote{expenses: seedExpenses(2, "c1")}
	s := NewExpenseStore(fake, core.DefaultFilter())
	require.NoError(t, s.Refresh(context.Background()))

	st := s.Snapshot()
	st.Expenses[0].Descripcion = "changed"
	assert.NotEqual(t, "changed", s.Snapshot().Expenses[0].Descripcion)
}
