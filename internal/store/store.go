// Package store holds the client-side state of the category list and the
// current expense page.
//
// Each store is the only writer of its state. Readers get copies through
// Snapshot or a Subscribe callback. Fetches are tagged with a per-store
// sequence number and a response is applied only if no newer fetch was issued
// after it. IsLoading stays true while any operation on the store is in flight.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/remote"
)

// CategoryRemote is the subset of the remote client the category store uses.
type CategoryRemote interface {
	List(ctx context.Context, includeCount bool) (remote.CategoryList, error)
	Create(ctx context.Context, in core.CategoryInput) (core.Category, error)
	Update(ctx context.Context, id string, in core.CategoryInput) (core.Category, error)
	Delete(ctx context.Context, id string) error
}

// ExpenseRemote is the subset of the remote client the expense store uses.
type ExpenseRemote interface {
	List(ctx context.Context, f core.Filter) (remote.ExpenseList, error)
	Create(ctx context.Context, d core.ExpenseData) (core.Expense, error)
	Update(ctx context.Context, id string, d core.ExpenseData) (core.Expense, error)
	Delete(ctx context.Context, id string) error
}

// fetchGuard hands out fetch sequence numbers. Callers hold the store mutex.
type fetchGuard struct {
	issued uint64
}

func (g *fetchGuard) next() uint64 {
	g.issued++
	return g.issued
}

func (g *fetchGuard) current(seq uint64) bool {
	return seq == g.issued
}

// listeners fans state snapshots out to subscribers.
type listeners[S any] struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(S)
}

func (l *listeners[S]) add(fn func(S)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(S))
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

func (l *listeners[S]) notify(state S) {
	l.mu.Lock()
	fns := make([]func(S), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// errorMessage is the text recorded in a store's Error field.
func errorMessage(err error) string {
	var rerr *remote.RemoteError
	if errors.As(err, &rerr) {
		return rerr.Message
	}
	return err.Error()
}

func logFailure(ctx context.Context, msg, entity, op string, err error) {
	errorType := applog.ErrorTypeRemote
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		errorType = applog.ErrorTypeNetwork
	}
	fields := applog.NewFields().
		WithComponent(applog.ComponentStore).
		WithEntity(entity, "").
		WithOperation(op).
		WithError(err, errorType)
	slog.WarnContext(ctx, msg, fields.ToSlice()...)
}

func logStale(ctx context.Context, entity string, seq uint64) {
	slog.DebugContext(ctx, "Discarding superseded response",
		applog.FieldComponent, applog.ComponentStore,
		applog.FieldEntity, entity,
		applog.FieldSeq, seq)
}
