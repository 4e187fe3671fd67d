package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gastos/internal/core"
	"gastos/internal/remote"
)

func TestCategoryStore_RefreshLoadsWithCounts(t *testing.T) {
	fake := newFakeCategoryRemote("Comida", "Transporte")
	fake.counts["c1"] = 4
	s := NewCategoryStore(fake)

	require.NoError(t, s.Refresh(context.Background()))

	st := s.Snapshot()
	assert.Len(t, st.Categories, 2)
	assert.Equal(t, 2, st.TotalCount)
	assert.False(t, st.IsLoading)
	assert.Empty(t, st.Error)
	require.NotNil(t, st.Categories[0].ExpenseCount)
	assert.Equal(t, 4, *st.Categories[0].ExpenseCount)
}

func TestCategoryStore_RefreshFailureKeepsPreviousData(t *testing.T) {
	fake := newFakeCategoryRemote("Comida")
	s := NewCategoryStore(fake)
	require.NoError(t, s.Refresh(context.Background()))

	fake.listErr = &remote.RemoteError{StatusCode: 500, Message: "Error al cargar categorías"}
	err := s.Refresh(context.Background())
	require.Error(t, err)

	st := s.Snapshot()
	assert.Equal(t, "Error al cargar categorías", st.Error)
	assert.Len(t, st.Categories, 1, "stale data stays visible")
	assert.False(t, st.IsLoading)

	fake.listErr = nil
	require.NoError(t, s.Refresh(context.Background()))
	assert.Empty(t, s.Snapshot().Error, "a successful refresh clears the error")
}

func TestCategoryStore_CreateValidatesBeforeNetwork(t *testing.T) {
	fake := newFakeCategoryRemote()
	s := NewCategoryStore(fake)

	for _, name := range []string{"", "  ", " x "} {
		_, err := s.Create(context.Background(), core.CategoryInput{Nombre: name})
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrNameTooShort), "name %q", name)
	}

	_, creates := fake.calls()
	assert.Zero(t, creates)
	assert.Empty(t, s.Snapshot().Error, "validation errors never reach the store")
}

func TestCategoryStore_CreateRemoteFailureRecordsAndRethrows(t *testing.T) {
	fake := newFakeCategoryRemote()
	fake.createErr = &remote.RemoteError{StatusCode: 409, Message: "La categoría ya existe"}
	s := NewCategoryStore(fake)

	_, err := s.Create(context.Background(), core.CategoryInput{Nombre: "Comida"})
	require.Error(t, err)

	rerr, ok := remote.AsRemoteError(err)
	require.True(t, ok)
	assert.Equal(t, 409, rerr.StatusCode)
	assert.Equal(t, "La categoría ya existe", s.Snapshot().Error)
	assert.False(t, s.Snapshot().IsLoading)
}

func TestCategoryStore_CreateDoesNotPatchList(t *testing.T) {
	fake := newFakeCategoryRemote("Comida")
	s := NewCategoryStore(fake)
	require.NoError(t, s.Refresh(context.Background()))

	created, err := s.Create(context.Background(), core.CategoryInput{Nombre: "  Ocio "})
	require.NoError(t, err)
	assert.Equal(t, "Ocio", created.Nombre)
	assert.Len(t, s.Snapshot().Categories, 1, "list only changes on refresh")

	require.NoError(t, s.Refresh(context.Background()))
	assert.Len(t, s.Snapshot().Categories, 2)
}

func TestCategoryStore_DiscardsSupersededRefresh(t *testing.T) {
	fake := newFakeCategoryRemote()
	s := NewCategoryStore(fake)

	release := make(chan struct{})
	started := make(chan struct{})
	fake.listHook = func(ctx context.Context) (remote.CategoryList, error) {
		close(started)
		<-release
		return remote.CategoryList{Items: []core.Category{{ID: "old", Nombre: "Vieja"}}, Total: 1}, nil
	}

	done := make(chan error)
	go func() { done <- s.Refresh(context.Background()) }()
	<-started

	fake.mu.Lock()
	fake.listHook = func(ctx context.Context) (remote.CategoryList, error) {
		return remote.CategoryList{Items: []core.Category{{ID: "new", Nombre: "Nueva"}}, Total: 1}, nil
	}
	fake.mu.Unlock()
	require.NoError(t, s.Refresh(context.Background()))
	assert.True(t, s.Snapshot().IsLoading, "first refresh is still in flight")

	close(release)
	require.NoError(t, <-done)

	st := s.Snapshot()
	require.Len(t, st.Categories, 1)
	assert.Equal(t, "new", st.Categories[0].ID)
	assert.False(t, st.IsLoading)
}

func TestCategoryStore_UpdateAndDelete(t *testing.T) {
	fake := newFakeCategoryRemote("Comida")
	s := NewCategoryStore(fake)

	updated, err := s.Update(context.Background(), "c1", core.CategoryInput{Nombre: "Supermercado"})
	require.NoError(t, err)
	assert.Equal(t, "Supermercado", updated.Nombre)

	_, err = s.Update(context.Background(), "c1", core.CategoryInput{Nombre: "S"})
	assert.True(t, core.IsValidationError(err))

	require.NoError(t, s.Delete(context.Background(), "c1"))
	err = s.Delete(context.Background(), "c1")
	require.Error(t, err)
	assert.Equal(t, "Categoría no encontrada", s.Snapshot().Error)
}

func TestCategoryStore_SubscribeSeesLoadingTransitions(t *testing.T) {
	s := NewCategoryStore(newFakeCategoryRemote("Comida"))

	var seen []bool
	unsubscribe := s.Subscribe(func(st CategoryState) { seen = append(seen, st.IsLoading) })
	require.NoError(t, s.Refresh(context.Background()))
	unsubscribe()
	require.NoError(t, s.Refresh(context.Background()))

	assert.Equal(t, []bool{true, false}, seen)
}
