// Package dashboard composes the category and expense stores into the state
// the presentation layer renders, and keeps them consistent with each other.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/store"
)

var ErrNoPendingDelete = errors.New("no delete pending confirmation")

const (
	ModeCreate FormMode = "create"
	ModeEdit   FormMode = "edit"
)

type (
	FormMode string

	// ExpenseForm is the state of the expense form. In edit mode EditingID
	// names the expense a submit will update.
	ExpenseForm struct {
		Mode      FormMode
		EditingID string
		Values    core.ExpenseInput
	}

	// CriticalError replaces the whole dashboard until Retry succeeds.
	CriticalError struct {
		Message string
	}

	// View is everything the presentation layer needs for one render.
	View struct {
		Categories        []core.Category
		TotalCategories   int
		CategoriesLoading bool

		Expenses        []core.Expense
		Total           int
		TotalPages      int
		Filter          core.Filter
		ExpensesLoading bool

		SelectedCategory *core.Category
		Stats            core.Statistics
		Budget           *core.BudgetUsage
		Form             ExpenseForm
		PendingDelete    string

		Critical *CriticalError
	}

	Options struct {
		// Clock is read whenever statistics are recomputed. Defaults to time.Now.
		Clock func() time.Time
		// Budget enables the budget gauge when positive.
		Budget decimal.Decimal
	}
)

// Coordinator owns the dashboard-level state: the form and the pending
// delete. Statistics are derived from the loaded expense page on read.
type Coordinator struct {
	categories *store.CategoryStore
	expenses   *store.ExpenseStore
	clock      func() time.Time
	budget     decimal.Decimal
	logger     *applog.Logger

	mu            sync.Mutex
	form          ExpenseForm
	pendingDelete string
}

func New(categories *store.CategoryStore, expenses *store.ExpenseStore, opts Options) *Coordinator {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	c := &Coordinator{
		categories: categories,
		expenses:   expenses,
		clock:      clock,
		budget:     opts.Budget,
		logger:     applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentDashboard}),
		form:       ExpenseForm{Mode: ModeCreate},
	}
	return c
}

// Statistics returns the values derived from the loaded page.
func (c *Coordinator) Statistics() core.Statistics {
	return core.Derive(c.expenses.Snapshot().Expenses, c.clock())
}

// View assembles the current render state from both stores.
func (c *Coordinator) View() View {
	cats := c.categories.Snapshot()
	exps := c.expenses.Snapshot()

	c.mu.Lock()
	v := View{
		Categories:        cats.Categories,
		TotalCategories:   cats.TotalCount,
		CategoriesLoading: cats.IsLoading,
		Expenses:          exps.Expenses,
		Total:             exps.Total,
		TotalPages:        exps.TotalPages,
		Filter:            exps.Filter,
		ExpensesLoading:   exps.IsLoading,
		Stats:             core.Derive(exps.Expenses, c.clock()),
		Form:              c.form,
		PendingDelete:     c.pendingDelete,
	}
	c.mu.Unlock()

	if id := exps.Filter.CategoriaID; id != "" {
		for i := range cats.Categories {
			if cats.Categories[i].ID == id {
				selected := cats.Categories[i]
				v.SelectedCategory = &selected
				break
			}
		}
	}
	if c.budget.IsPositive() {
		usage := core.Budget(v.Stats.TotalLoaded, c.budget)
		v.Budget = &usage
	}
	switch {
	case exps.Error != "":
		v.Critical = &CriticalError{Message: exps.Error}
	case cats.Error != "":
		v.Critical = &CriticalError{Message: cats.Error}
	}
	return v
}

// refreshBoth runs both store refreshes to completion; one failing does not
// cancel the other.
func (c *Coordinator) refreshBoth(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return c.categories.Refresh(ctx) })
	g.Go(func() error { return c.expenses.Refresh(ctx) })
	return g.Wait()
}

// Load performs the initial fetch of both stores.
func (c *Coordinator) Load(ctx context.Context) error {
	return c.refreshBoth(ctx)
}

// LoadWith is Load with patch applied to the expense filter first, so the
// expense page is fetched once.
func (c *Coordinator) LoadWith(ctx context.Context, patch core.FilterPatch) error {
	var g errgroup.Group
	g.Go(func() error { return c.categories.Refresh(ctx) })
	g.Go(func() error { return c.expenses.SetFilter(ctx, patch) })
	return g.Wait()
}

// Retry is the single action offered by the critical-error view.
func (c *Coordinator) Retry(ctx context.Context) error {
	c.logger.InfoContext(ctx, "Retrying after critical error")
	return c.refreshBoth(ctx)
}

// RefreshAll reloads both stores, e.g. after another client changed data.
func (c *Coordinator) RefreshAll(ctx context.Context) error {
	return c.refreshBoth(ctx)
}

// Refresh reloads the current expense page.
func (c *Coordinator) Refresh(ctx context.Context) error {
	return c.expenses.Refresh(ctx)
}

func (c *Coordinator) SetFilter(ctx context.Context, patch core.FilterPatch) error {
	return c.expenses.SetFilter(ctx, patch)
}

func (c *Coordinator) ChangePage(ctx context.Context, page int) error {
	return c.expenses.SetFilter(ctx, core.FilterPatch{Page: &page})
}

func (c *Coordinator) ChangeSort(ctx context.Context, field core.SortField, order core.SortOrder) error {
	return c.expenses.SetFilter(ctx, core.FilterPatch{SortBy: &field, SortOrder: &order})
}

func (c *Coordinator) Search(ctx context.Context, text string) error {
	return c.expenses.SetFilter(ctx, core.FilterPatch{Search: &text})
}

// SelectCategory filters by id, or clears the filter when id is already selected.
func (c *Coordinator) SelectCategory(ctx context.Context, id string) error {
	next := id
	if c.expenses.Filter().CategoriaID == id {
		next = ""
	}
	return c.expenses.SetFilter(ctx, core.FilterPatch{CategoriaID: &next})
}

// CreateCategory creates a category and reloads both stores so the new
// category shows up in the list and in the expense form.
func (c *Coordinator) CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	created, err := c.categories.Create(ctx, in)
	if err != nil {
		return core.Category{}, err
	}
	c.logMutation(ctx, applog.EntityCategory, applog.OpCreate, created.ID)
	_ = c.refreshBoth(ctx)
	return created, nil
}

// RenameCategory updates a category name. Expense rows embed the category,
// so both stores reload.
func (c *Coordinator) RenameCategory(ctx context.Context, id string, in core.CategoryInput) (core.Category, error) {
	updated, err := c.categories.Update(ctx, id, in)
	if err != nil {
		return core.Category{}, err
	}
	c.logMutation(ctx, applog.EntityCategory, applog.OpUpdate, id)
	_ = c.refreshBoth(ctx)
	return updated, nil
}

// DeleteCategory removes a category. If it was the active filter the filter
// is cleared.
func (c *Coordinator) DeleteCategory(ctx context.Context, id string) error {
	if err := c.categories.Delete(ctx, id); err != nil {
		return err
	}
	c.logMutation(ctx, applog.EntityCategory, applog.OpDelete, id)

	var g errgroup.Group
	g.Go(func() error { return c.categories.Refresh(ctx) })
	g.Go(func() error {
		if c.expenses.Filter().CategoriaID == id {
			return c.expenses.SetFilter(ctx, core.FilterPatch{CategoriaID: core.Ptr("")})
		}
		return c.expenses.Refresh(ctx)
	})
	_ = g.Wait()
	return nil
}

// BeginEdit loads expense into the form and switches it to edit mode.
func (c *Coordinator) BeginEdit(e core.Expense) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form = ExpenseForm{
		Mode:      ModeEdit,
		EditingID: e.ID,
		Values: core.ExpenseInput{
			Descripcion: e.Descripcion,
			Monto:       e.Monto.String(),
			FechaHora:   e.FechaHora.FormValue(),
			CategoriaID: e.CategoriaID,
		},
	}
}

// CancelEdit empties the form and returns it to create mode.
func (c *Coordinator) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form = ExpenseForm{Mode: ModeCreate}
}

// Form returns the current form state.
func (c *Coordinator) Form() ExpenseForm {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

// SubmitExpense creates an expense, or updates the one being edited. An
// empty FechaHora means now. On success the form resets and categories
// reload for their counts; on failure the entered values are kept.
func (c *Coordinator) SubmitExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	if in.FechaHora == "" {
		in.FechaHora = c.clock().Format(core.FormDateTimeLayout)
	}

	c.mu.Lock()
	form := c.form
	c.form.Values = in
	c.mu.Unlock()

	var (
		saved core.Expense
		err   error
		op    = applog.OpCreate
	)
	if form.Mode == ModeEdit {
		op = applog.OpUpdate
		saved, err = c.expenses.Update(ctx, form.EditingID, in)
	} else {
		saved, err = c.expenses.Create(ctx, in)
	}
	if err != nil {
		return core.Expense{}, err
	}

	c.mu.Lock()
	c.form = ExpenseForm{Mode: ModeCreate}
	c.mu.Unlock()

	c.logMutation(ctx, applog.EntityExpense, op, saved.ID)
	_ = c.categories.Refresh(ctx)
	return saved, nil
}

// UpdateExpense updates id directly, without going through the form.
func (c *Coordinator) UpdateExpense(ctx context.Context, id string, in core.ExpenseInput) (core.Expense, error) {
	updated, err := c.expenses.Update(ctx, id, in)
	if err != nil {
		return core.Expense{}, err
	}
	c.logMutation(ctx, applog.EntityExpense, applog.OpUpdate, id)
	_ = c.categories.Refresh(ctx)
	return updated, nil
}

// RequestDelete asks for confirmation before deleting id. Nothing is sent yet.
func (c *Coordinator) RequestDelete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingDelete = id
}

func (c *Coordinator) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingDelete = ""
}

// PendingDelete returns the id awaiting confirmation, or "".
func (c *Coordinator) PendingDelete() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingDelete
}

// ConfirmDelete deletes the expense named by the last RequestDelete. The
// request stays pending if the delete fails.
func (c *Coordinator) ConfirmDelete(ctx context.Context) error {
	id := c.PendingDelete()
	if id == "" {
		return ErrNoPendingDelete
	}
	if err := c.expenses.Delete(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	if c.pendingDelete == id {
		c.pendingDelete = ""
	}
	if c.form.Mode == ModeEdit && c.form.EditingID == id {
		c.form = ExpenseForm{Mode: ModeCreate}
	}
	c.mu.Unlock()

	c.logMutation(ctx, applog.EntityExpense, applog.OpDelete, id)
	_ = c.categories.Refresh(ctx)
	return nil
}

// FindExpense looks id up in the loaded page.
func (c *Coordinator) FindExpense(id string) (core.Expense, error) {
	for _, e := range c.expenses.Snapshot().Expenses {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, fmt.Errorf("expense %s is not on the current page", id)
}

func (c *Coordinator) logMutation(ctx context.Context, entity, op, id string) {
	applog.NewStructuredLogger(c.logger).LogMutation(ctx, entity, op, id)
}
