package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gastos/internal/core"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrCategoryExists  = errors.New("category already exists")
	ErrCategoryInUse   = errors.New("category has expenses")
	ErrUnknownCategory = errors.New("unknown category")
)

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const dbTimeLayout = "2006-01-02T15:04:05.000Z"

var sortColumns = map[core.SortField]string{
	core.SortByID:          "g.id",
	core.SortByDescripcion: "g.descripcion COLLATE NOCASE",
	core.SortByMonto:       "CAST(g.monto AS REAL)",
	core.SortByFechaHora:   "g.fecha_hora",
	core.SortByCategoriaID: "g.categoria_id",
	core.SortByCreatedAt:   "g.created_at",
	core.SortByUpdatedAt:   "g.updated_at",
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository opens dbPath, creating its directory if needed, and
// runs migrations from migrationsDir (embedded ones when empty).
func NewSQLiteRepository(dbPath, migrationsDir string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; sqlite would return SQLITE_BUSY otherwise
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath, migrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by the health endpoint.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) timestamp() string {
	return r.now().UTC().Format(dbTimeLayout)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseTime(s string) (core.DateTime, error) {
	t, err := time.Parse(dbTimeLayout, s)
	if err != nil {
		return core.DateTime{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return core.DateTime{Time: t}, nil
}

// ── Categories ───────────────────────────────────────────────────────────────

const categorySelect = `
SELECT c.id, c.nombre, c.created_at, c.updated_at,
       (SELECT COUNT(*) FROM gastos g WHERE g.categoria_id = c.id)
FROM categorias c`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c                core.Category
		created, updated string
		count            int
	)
	if err := row.Scan(&c.ID, &c.Nombre, &created, &updated, &count); err != nil {
		return core.Category{}, err
	}
	var err error
	if c.CreatedAt, err = parseTime(created); err != nil {
		return core.Category{}, err
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Category{}, err
	}
	c.ExpenseCount = &count
	return c, nil
}

// ListCategories returns every category ordered by name, each with its
// expense count. A non-empty query keeps only names containing it.
func (r *SQLiteRepository) ListCategories(ctx context.Context, query string) ([]core.Category, error) {
	q := categorySelect
	var args []any
	if query = strings.TrimSpace(query); query != "" {
		q += ` WHERE c.nombre LIKE ? ESCAPE '\'`
		args = append(args, likePattern(query))
	}
	q += ` ORDER BY c.nombre COLLATE NOCASE`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ListCategoriesPage returns one page of categories ordered by name and the
// total number of categories.
func (r *SQLiteRepository) ListCategoriesPage(ctx context.Context, page, limit int) ([]core.Category, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categorias`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count categories: %w", err)
	}
	if limit < 1 {
		limit = core.DefaultLimit
	}
	page = max(page, 1)

	rows, err := r.db.QueryContext(ctx,
		categorySelect+` ORDER BY c.nombre COLLATE NOCASE, c.id LIMIT ? OFFSET ?`,
		limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, total, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, categorySelect+` WHERE c.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) nameTaken(ctx context.Context, nombre, exceptID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categorias WHERE nombre = ? COLLATE NOCASE AND id <> ?`,
		nombre, exceptID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check category name: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, nombre string) (core.Category, error) {
	taken, err := r.nameTaken(ctx, nombre, "")
	if err != nil {
		return core.Category{}, err
	}
	if taken {
		return core.Category{}, fmt.Errorf("%q: %w", nombre, ErrCategoryExists)
	}

	id, ts := uuid.NewString(), r.timestamp()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO categorias (id, nombre, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, nombre, ts, ts)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	slog.InfoContext(ctx, "Category saved to SQLite", "id", id, "nombre", nombre)
	return r.GetCategory(ctx, id)
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, id, nombre string) (core.Category, error) {
	taken, err := r.nameTaken(ctx, nombre, id)
	if err != nil {
		return core.Category{}, err
	}
	if taken {
		return core.Category{}, fmt.Errorf("%q: %w", nombre, ErrCategoryExists)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE categorias SET nombre = ?, updated_at = ? WHERE id = ?`,
		nombre, r.timestamp(), id)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	if err := expectOneRow(res, "category", id); err != nil {
		return core.Category{}, err
	}
	return r.GetCategory(ctx, id)
}

// DeleteCategory refuses to delete a category that still has expenses.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	c, err := r.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	if c.ExpenseCount != nil && *c.ExpenseCount > 0 {
		return fmt.Errorf("category %s has %d expenses: %w", id, *c.ExpenseCount, ErrCategoryInUse)
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM categorias WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if err := expectOneRow(res, "category", id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Category deleted from SQLite", "id", id)
	return nil
}

// ── Expenses ─────────────────────────────────────────────────────────────────

const expenseSelect = `
SELECT g.id, g.descripcion, g.monto, g.fecha_hora, g.categoria_id, g.created_at, g.updated_at,
       c.nombre, c.created_at, c.updated_at
FROM gastos g
JOIN categorias c ON c.id = g.categoria_id`

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e                                 core.Expense
		monto, fecha, created, updated    string
		catNombre, catCreated, catUpdated string
	)
	err := row.Scan(&e.ID, &e.Descripcion, &monto, &fecha, &e.CategoriaID, &created, &updated,
		&catNombre, &catCreated, &catUpdated)
	if err != nil {
		return core.Expense{}, err
	}
	if e.Monto, err = decimal.NewFromString(monto); err != nil {
		return core.Expense{}, fmt.Errorf("parse stored amount %q: %w", monto, err)
	}
	if e.FechaHora, err = parseTime(fecha); err != nil {
		return core.Expense{}, err
	}
	if e.CreatedAt, err = parseTime(created); err != nil {
		return core.Expense{}, err
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Expense{}, err
	}

	cat := core.Category{ID: e.CategoriaID, Nombre: catNombre}
	if cat.CreatedAt, err = parseTime(catCreated); err != nil {
		return core.Expense{}, err
	}
	if cat.UpdatedAt, err = parseTime(catUpdated); err != nil {
		return core.Expense{}, err
	}
	e.Categoria = &cat
	return e, nil
}

// ListExpenses returns one page of expenses matching f and the total number
// of matches across all pages.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, f core.Filter) ([]core.Expense, int, error) {
	var (
		where []string
		args  []any
	)
	if f.CategoriaID != "" {
		where = append(where, "g.categoria_id = ?")
		args = append(args, f.CategoriaID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, `g.descripcion LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(s))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gastos g`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count expenses: %w", err)
	}

	column, ok := sortColumns[f.SortBy]
	if !ok {
		column = sortColumns[core.SortByFechaHora]
	}
	order := "DESC"
	if f.SortOrder == core.SortAsc {
		order = "ASC"
	}
	limit := f.Limit
	if limit < 1 {
		limit = core.DefaultLimit
	}
	page := max(f.Page, 1)

	q := fmt.Sprintf("%s%s ORDER BY %s %s, g.id %s LIMIT ? OFFSET ?", expenseSelect, clause, column, order, order)
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, total, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx, expenseSelect+` WHERE g.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) categoryExists(ctx context.Context, id string) error {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categorias WHERE id = ?`, id).Scan(&n); err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %s: %w", id, ErrUnknownCategory)
	}
	return nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, d core.ExpenseData) (core.Expense, error) {
	if err := r.categoryExists(ctx, d.CategoriaID); err != nil {
		return core.Expense{}, err
	}

	id, ts := uuid.NewString(), r.timestamp()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO gastos (id, descripcion, monto, fecha_hora, categoria_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, d.Descripcion, d.Monto.StringFixed(2), formatTime(d.FechaHora.Time), d.CategoriaID, ts, ts)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"descripcion", d.Descripcion,
		"monto", d.Monto.StringFixed(2),
		"categoria_id", d.CategoriaID)
	return r.GetExpense(ctx, id)
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id string, d core.ExpenseData) (core.Expense, error) {
	if err := r.categoryExists(ctx, d.CategoriaID); err != nil {
		return core.Expense{}, err
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE gastos SET descripcion = ?, monto = ?, fecha_hora = ?, categoria_id = ?, updated_at = ?
WHERE id = ?`,
		d.Descripcion, d.Monto.StringFixed(2), formatTime(d.FechaHora.Time), d.CategoriaID, r.timestamp(), id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if err := expectOneRow(res, "expense", id); err != nil {
		return core.Expense{}, err
	}
	return r.GetExpense(ctx, id)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM gastos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if err := expectOneRow(res, "expense", id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Expense deleted from SQLite", "id", id)
	return nil
}

func expectOneRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
