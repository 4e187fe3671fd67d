package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/remote"
)

// CategoryState is a read-only copy of the category store.
type CategoryState struct {
	Categories []core.Category
	TotalCount int
	IsLoading  bool
	Error      string
}

// CategoryStore owns the category list. It never patches the list after a
// mutation; callers refresh it.
type CategoryStore struct {
	remote CategoryRemote

	mu         sync.Mutex
	categories []core.Category
	totalCount int
	inflight   int
	errMsg     string
	guard      fetchGuard

	listeners listeners[CategoryState]
}

func NewCategoryStore(r CategoryRemote) *CategoryStore {
	return &CategoryStore{
		remote:     r,
		categories: []core.Category{},
	}
}

// Snapshot returns a copy of the current state.
func (s *CategoryStore) Snapshot() CategoryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *CategoryStore) snapshotLocked() CategoryState {
	return CategoryState{
		Categories: slices.Clone(s.categories),
		TotalCount: s.totalCount,
		IsLoading:  s.inflight > 0,
		Error:      s.errMsg,
	}
}

// Subscribe registers fn to receive every state change. The returned func unsubscribes.
func (s *CategoryStore) Subscribe(fn func(CategoryState)) func() {
	return s.listeners.add(fn)
}

func (s *CategoryStore) publish() {
	s.listeners.notify(s.Snapshot())
}

// Find returns the loaded category with the given id.
func (s *CategoryStore) Find(id string) (core.Category, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}

// begin marks an operation in flight. Fetches pass fetch=true to clear Error
// and take a sequence number.
func (s *CategoryStore) begin(fetch bool) uint64 {
	s.mu.Lock()
	s.inflight++
	var seq uint64
	if fetch {
		s.errMsg = ""
		seq = s.guard.next()
	}
	s.mu.Unlock()
	s.publish()
	return seq
}

func (s *CategoryStore) end() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
	s.publish()
}

func (s *CategoryStore) recordError(err error) {
	s.mu.Lock()
	s.errMsg = errorMessage(err)
	s.mu.Unlock()
}

// Refresh reloads every category with its expense count. On failure the
// previous list stays and Error is set.
func (s *CategoryStore) Refresh(ctx context.Context) error {
	seq := s.begin(true)
	defer s.end()

	list, err := s.remote.List(remote.Fresh(ctx), true)

	s.mu.Lock()
	current := s.guard.current(seq)
	if current {
		if err != nil {
			s.errMsg = errorMessage(err)
		} else {
			s.categories = list.Items
			s.totalCount = list.Total
		}
	}
	s.mu.Unlock()

	if !current {
		logStale(ctx, applog.EntityCategory, seq)
	}
	if err != nil {
		logFailure(ctx, "Category refresh failed", applog.EntityCategory, applog.OpRefresh, err)
		return fmt.Errorf("refresh categories: %w", err)
	}
	return nil
}

// Create validates the name locally, then creates the category remotely. A
// validation failure never reaches the network nor the Error field.
func (s *CategoryStore) Create(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	in, err := in.Normalize()
	if err != nil {
		return core.Category{}, err
	}

	s.begin(false)
	defer s.end()

	created, err := s.remote.Create(ctx, in)
	if err != nil {
		s.recordError(err)
		logFailure(ctx, "Category create failed", applog.EntityCategory, applog.OpCreate, err)
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}

// Update renames a category.
func (s *CategoryStore) Update(ctx context.Context, id string, in core.CategoryInput) (core.Category, error) {
	in, err := in.Normalize()
	if err != nil {
		return core.Category{}, err
	}

	s.begin(false)
	defer s.end()

	updated, err := s.remote.Update(ctx, id, in)
	if err != nil {
		s.recordError(err)
		logFailure(ctx, "Category update failed", applog.EntityCategory, applog.OpUpdate, err)
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	return updated, nil
}

func (s *CategoryStore) Delete(ctx context.Context, id string) error {
	s.begin(false)
	defer s.end()

	if err := s.remote.Delete(ctx, id); err != nil {
		s.recordError(err)
		logFailure(ctx, "Category delete failed", applog.EntityCategory, applog.OpDelete, err)
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}
