package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "gastos.db"), "")
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func expenseData(desc, monto, cat string, at time.Time) core.ExpenseData {
	return core.ExpenseData{
		Descripcion: desc,
		Monto:       decimal.RequireFromString(monto),
		FechaHora:   core.DateTime{Time: at},
		CategoriaID: cat,
	}
}

func TestSQLiteRepository_CategoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	food, err := repo.CreateCategory(ctx, "Comida")
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	if food.ID == "" || food.CreatedAt.IsZero() {
		t.Errorf("created category missing id or timestamps: %+v", food)
	}
	if food.ExpenseCount == nil || *food.ExpenseCount != 0 {
		t.Errorf("new category count = %v, want 0", food.ExpenseCount)
	}

	if _, err := repo.CreateCategory(ctx, "comida"); !errors.Is(err, ErrCategoryExists) {
		t.Errorf("duplicate name error = %v, want ErrCategoryExists", err)
	}

	renamed, err := repo.UpdateCategory(ctx, food.ID, "Supermercado")
	if err != nil {
		t.Fatalf("UpdateCategory() error = %v", err)
	}
	if renamed.Nombre != "Supermercado" {
		t.Errorf("renamed = %q", renamed.Nombre)
	}
	if _, err := repo.UpdateCategory(ctx, "missing", "Otro"); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing error = %v, want ErrNotFound", err)
	}

	if err := repo.DeleteCategory(ctx, food.ID); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}
	if _, err := repo.GetCategory(ctx, food.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get deleted error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_ListCategoriesCountsAndSearch(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	bus, _ := repo.CreateCategory(ctx, "Transporte")
	food, _ := repo.CreateCategory(ctx, "Comida")
	now := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := repo.CreateExpense(ctx, expenseData(fmt.Sprintf("Menú %d", i), "10", food.ID, now)); err != nil {
			t.Fatalf("CreateExpense() error = %v", err)
		}
	}

	all, err := repo.ListCategories(ctx, "")
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	if len(all) != 2 || all[0].ID != food.ID || all[1].ID != bus.ID {
		t.Fatalf("ListCategories() = %+v, want Comida then Transporte", all)
	}
	if *all[0].ExpenseCount != 3 || *all[1].ExpenseCount != 0 {
		t.Errorf("counts = %d, %d", *all[0].ExpenseCount, *all[1].ExpenseCount)
	}

	found, err := repo.ListCategories(ctx, "trans")
	if err != nil {
		t.Fatalf("ListCategories(search) error = %v", err)
	}
	if len(found) != 1 || found[0].ID != bus.ID {
		t.Errorf("search = %+v", found)
	}

	if err := repo.DeleteCategory(ctx, food.ID); !errors.Is(err, ErrCategoryInUse) {
		t.Errorf("delete in-use error = %v, want ErrCategoryInUse", err)
	}
}

func TestSQLiteRepository_ListCategoriesPage(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	for _, nombre := range []string{"Ocio", "Comida", "Transporte", "Alquiler", "Salud"} {
		if _, err := repo.CreateCategory(ctx, nombre); err != nil {
			t.Fatalf("CreateCategory(%q) error = %v", nombre, err)
		}
	}

	tests := []struct {
		name        string
		page, limit int
		want        []string
	}{
		{"first page", 1, 2, []string{"Alquiler", "Comida"}},
		{"middle page", 2, 2, []string{"Ocio", "Salud"}},
		{"short last page", 3, 2, []string{"Transporte"}},
		{"past the end", 4, 2, nil},
		{"page below one", 0, 2, []string{"Alquiler", "Comida"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := repo.ListCategoriesPage(ctx, tt.page, tt.limit)
			if err != nil {
				t.Fatalf("ListCategoriesPage() error = %v", err)
			}
			if total != 5 {
				t.Errorf("total = %d, want 5", total)
			}
			var names []string
			for _, c := range got {
				names = append(names, c.Nombre)
			}
			if fmt.Sprint(names) != fmt.Sprint(tt.want) {
				t.Errorf("names = %v, want %v", names, tt.want)
			}
		})
	}
}

func TestSQLiteRepository_ExpenseCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	food, _ := repo.CreateCategory(ctx, "Comida")
	bus, _ := repo.CreateCategory(ctx, "Transporte")
	at := time.Date(2024, 3, 10, 13, 30, 0, 0, time.UTC)

	created, err := repo.CreateExpense(ctx, expenseData("Almuerzo", "12.5", food.ID, at))
	if err != nil {
		t.Fatalf("CreateExpense() error = %v", err)
	}
	if !created.Monto.Equal(decimal.RequireFromString("12.50")) {
		t.Errorf("monto = %s", created.Monto)
	}
	if !created.FechaHora.Equal(at) {
		t.Errorf("fechaHora = %v, want %v", created.FechaHora, at)
	}
	if created.Categoria == nil || created.Categoria.Nombre != "Comida" {
		t.Errorf("categoria = %+v", created.Categoria)
	}

	if _, err := repo.CreateExpense(ctx, expenseData("Huérfano", "1", "nope", at)); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("unknown category error = %v", err)
	}

	updated, err := repo.UpdateExpense(ctx, created.ID, expenseData("Autobús", "2", bus.ID, at))
	if err != nil {
		t.Fatalf("UpdateExpense() error = %v", err)
	}
	if updated.CategoriaID != bus.ID || updated.Descripcion != "Autobús" {
		t.Errorf("updated = %+v", updated)
	}
	if updated.UpdatedAt.Before(updated.CreatedAt.Time) {
		t.Errorf("updatedAt before createdAt")
	}

	if err := repo.DeleteExpense(ctx, created.ID); err != nil {
		t.Fatalf("DeleteExpense() error = %v", err)
	}
	if err := repo.DeleteExpense(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
	if _, err := repo.UpdateExpense(ctx, created.ID, expenseData("Autobús", "2", bus.ID, at)); !errors.Is(err, ErrNotFound) {
		t.Errorf("update deleted error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_ListExpenses(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	food, _ := repo.CreateCategory(ctx, "Comida")
	bus, _ := repo.CreateCategory(ctx, "Transporte")
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	amounts := []string{"9", "100", "25.5", "3", "42"}
	for i, m := range amounts {
		cat := food.ID
		if i%2 == 1 {
			cat = bus.ID
		}
		if _, err := repo.CreateExpense(ctx, expenseData(fmt.Sprintf("Gasto %d", i), m, cat, base.AddDate(0, 0, i))); err != nil {
			t.Fatalf("CreateExpense() error = %v", err)
		}
	}
	if _, err := repo.CreateExpense(ctx, expenseData("100% café", "1", food.ID, base)); err != nil {
		t.Fatalf("CreateExpense() error = %v", err)
	}

	tests := []struct {
		name      string
		filter    core.Filter
		wantTotal int
		wantFirst string
		wantLen   int
	}{
		{
			name:      "default newest first",
			filter:    core.DefaultFilter(),
			wantTotal: 6, wantLen: 6, wantFirst: "Gasto 4",
		},
		{
			name:      "monto sorts numerically",
			filter:    core.Filter{Page: 1, Limit: 10, SortBy: core.SortByMonto, SortOrder: core.SortDesc},
			wantTotal: 6, wantLen: 6, wantFirst: "Gasto 1",
		},
		{
			name:      "category filter",
			filter:    core.Filter{Page: 1, Limit: 10, SortBy: core.SortByFechaHora, SortOrder: core.SortAsc, CategoriaID: bus.ID},
			wantTotal: 2, wantLen: 2, wantFirst: "Gasto 1",
		},
		{
			name:      "second page",
			filter:    core.Filter{Page: 2, Limit: 4, SortBy: core.SortByFechaHora, SortOrder: core.SortDesc},
			wantTotal: 6, wantLen: 2,
		},
		{
			name:      "search escapes wildcards",
			filter:    core.Filter{Page: 1, Limit: 10, SortBy: core.SortByFechaHora, SortOrder: core.SortDesc, Search: "100%"},
			wantTotal: 1, wantLen: 1, wantFirst: "100% café",
		},
		{
			name:      "search is case-insensitive",
			filter:    core.Filter{Page: 1, Limit: 10, SortBy: core.SortByFechaHora, SortOrder: core.SortDesc, Search: "gasto"},
			wantTotal: 5, wantLen: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := repo.ListExpenses(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListExpenses() error = %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			if len(items) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(items), tt.wantLen)
			}
			if tt.wantFirst != "" && items[0].Descripcion != tt.wantFirst {
				t.Errorf("first = %q, want %q", items[0].Descripcion, tt.wantFirst)
			}
		})
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gastos.db")
	if err := RunMigrations(path, ""); err != nil {
		t.Fatalf("first RunMigrations() error = %v", err)
	}
	if err := RunMigrations(path, ""); err != nil {
		t.Fatalf("second RunMigrations() error = %v", err)
	}
}
