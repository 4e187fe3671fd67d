// Command gastos is the terminal dashboard for the gastos API.
//
//	gastos show [-page N] [-limit N] [-sort field] [-order asc|desc] [-category id] [-search text]
//	gastos add -descripcion text -monto n [-fecha 2006-01-02T15:04] -categoria id
//	gastos edit -id ID [-descripcion text] [-monto n] [-fecha ...] [-categoria id]
//	gastos delete -id ID [-yes]
//	gastos categories [-page N] [-limit N]
//	gastos add-category -nombre NAME
//	gastos rename-category -id ID -nombre NAME
//	gastos delete-category -id ID
//	gastos watch [-queue name]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/cache"
	"gastos/internal/cli"
	"gastos/internal/config"
	"gastos/internal/core"
	"gastos/internal/dashboard"
	applog "gastos/internal/log"
	"gastos/internal/remote"
	"gastos/internal/store"
)

type app struct {
	cfg    *config.Config
	logger *applog.Logger
	client *remote.Client
	dash   *dashboard.Coordinator
	caches *cache.Manager
	out    io.Writer
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentCLI)
	cfg := cli.LoadAndValidateConfig(logger)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize dashboard", applog.FieldError, err)
		os.Exit(1)
	}
	defer a.close()

	if err := a.run(context.Background(), os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: gastos <show|add|edit|delete|categories|add-category|rename-category|delete-category|watch> [flags]")
}

func newApp(cfg *config.Config, logger *applog.Logger) (*app, error) {
	client, err := remote.NewClient(remote.Options{
		BaseURL:   cfg.APIURL,
		Timeout:   cfg.HTTPTimeout,
		CacheTTL:  cfg.CacheTTL,
		CacheSize: cfg.CacheSize,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	caches := cache.NewManager()
	if c := client.Cache(); c != nil {
		caches.Register(c)
		caches.StartCleanup(time.Minute)
	}

	categories := store.NewCategoryStore(client.Categories)
	expenses := store.NewExpenseStore(client.Expenses, cfg.DefaultFilter())
	dash := dashboard.New(categories, expenses, dashboard.Options{Budget: cfg.Budget()})

	return &app{cfg: cfg, logger: logger, client: client, dash: dash, caches: caches, out: os.Stdout}, nil
}

func (a *app) close() {
	a.caches.Stop()
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "show":
		return a.show(ctx, args)
	case "add":
		return a.add(ctx, args)
	case "edit":
		return a.edit(ctx, args)
	case "delete":
		return a.deleteExpense(ctx, args)
	case "categories":
		return a.listCategories(ctx, args)
	case "add-category":
		return a.addCategory(ctx, args)
	case "rename-category":
		return a.renameCategory(ctx, args)
	case "delete-category":
		return a.deleteCategory(ctx, args)
	case "watch":
		return a.watch(ctx, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// load fetches both stores and reports the critical error, if any, in the
// same words the dashboard would show.
func (a *app) load(ctx context.Context) error {
	_ = a.dash.Load(ctx)
	if v := a.dash.View(); v.Critical != nil {
		return errors.New(v.Critical.Message)
	}
	return nil
}

func (a *app) show(ctx context.Context, args []string) error {
	def := a.cfg.DefaultFilter()
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	page := fs.Int("page", def.Page, "page number")
	limit := fs.Int("limit", def.Limit, "expenses per page")
	sortBy := fs.String("sort", string(def.SortBy), "sort field")
	order := fs.String("order", string(def.SortOrder), "asc or desc")
	category := fs.String("category", "", "category id to filter by")
	search := fs.String("search", "", "text to search in descriptions")
	if err := fs.Parse(args); err != nil {
		return err
	}

	patch, err := showPatch(*page, *limit, *sortBy, *order, *category, *search)
	if err != nil {
		return err
	}
	_ = a.dash.LoadWith(ctx, patch)
	v := a.dash.View()
	if v.Critical != nil {
		return errors.New(v.Critical.Message)
	}
	render(a.out, v)
	return nil
}

// showPatch turns the show flags into a single filter patch. Page is always
// set so a sort or search flag never sends the listing back to page 1.
func showPatch(page, limit int, sortBy, order, category, search string) (core.FilterPatch, error) {
	field, err := core.ParseSortField(sortBy)
	if err != nil {
		return core.FilterPatch{}, err
	}
	dir, err := core.ParseSortOrder(order)
	if err != nil {
		return core.FilterPatch{}, err
	}
	return core.FilterPatch{
		Page:        &page,
		Limit:       &limit,
		SortBy:      &field,
		SortOrder:   &dir,
		CategoriaID: &category,
		Search:      &search,
	}, nil
}

func expenseFlags(name string) (*flag.FlagSet, *core.ExpenseInput) {
	var in core.ExpenseInput
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&in.Descripcion, "descripcion", "", "description")
	fs.StringVar(&in.Monto, "monto", "", "amount, e.g. 12,50")
	fs.StringVar(&in.FechaHora, "fecha", "", "date and time (2006-01-02T15:04), defaults to now")
	fs.StringVar(&in.CategoriaID, "categoria", "", "category id")
	return fs, &in
}

func (a *app) add(ctx context.Context, args []string) error {
	fs, in := expenseFlags("add")
	if err := fs.Parse(args); err != nil {
		return err
	}
	saved, err := a.dash.SubmitExpense(ctx, *in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Gasto creado: %s (%s)\n", saved.ID, core.FormatAmount(saved.Monto))
	return nil
}

// edit updates an expense. Flags left unset keep the current values when the
// expense is on the first page of the default listing.
func (a *app) edit(ctx context.Context, args []string) error {
	fs, in := expenseFlags("edit")
	id := fs.String("id", "", "expense id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("edit needs -id")
	}

	if err := a.load(ctx); err != nil {
		return err
	}
	current, err := a.dash.FindExpense(*id)
	if err != nil {
		saved, err := a.dash.UpdateExpense(ctx, *id, *in)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Gasto actualizado: %s\n", saved.ID)
		return nil
	}

	a.dash.BeginEdit(current)
	values := a.dash.Form().Values
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "descripcion":
			values.Descripcion = in.Descripcion
		case "monto":
			values.Monto = in.Monto
		case "fecha":
			values.FechaHora = in.FechaHora
		case "categoria":
			values.CategoriaID = in.CategoriaID
		}
	})
	saved, err := a.dash.SubmitExpense(ctx, values)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Gasto actualizado: %s\n", saved.ID)
	return nil
}

// deleteExpense is two-step: without -yes it only reports what would be
// deleted.
func (a *app) deleteExpense(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	id := fs.String("id", "", "expense id")
	yes := fs.Bool("yes", false, "confirm the deletion")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("delete needs -id")
	}

	a.dash.RequestDelete(*id)
	if !*yes {
		fmt.Fprintf(a.out, "Eliminación pendiente de %s. Repite con -yes para confirmar.\n", a.dash.PendingDelete())
		a.dash.CancelDelete()
		return nil
	}
	if err := a.dash.ConfirmDelete(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Gasto eliminado")
	return nil
}

// listCategories prints one page of categories with their expense counts.
func (a *app) listCategories(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("categories", flag.ContinueOnError)
	page := fs.Int("page", core.DefaultPage, "page number")
	limit := fs.Int("limit", core.DefaultLimit, "categories per page")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.client.Categories.ListPage(ctx, *page, *limit)
	if err != nil {
		return err
	}
	renderCategoryPage(a.out, p)
	return nil
}

func (a *app) addCategory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-category", flag.ContinueOnError)
	nombre := fs.String("nombre", "", "category name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	created, err := a.dash.CreateCategory(ctx, core.CategoryInput{Nombre: *nombre})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Categoría creada: %s (%s)\n", created.Nombre, created.ID)
	return nil
}

func (a *app) renameCategory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rename-category", flag.ContinueOnError)
	id := fs.String("id", "", "category id")
	nombre := fs.String("nombre", "", "new name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("rename-category needs -id")
	}
	updated, err := a.dash.RenameCategory(ctx, *id, core.CategoryInput{Nombre: *nombre})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Categoría renombrada: %s\n", updated.Nombre)
	return nil
}

func (a *app) deleteCategory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete-category", flag.ContinueOnError)
	id := fs.String("id", "", "category id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("delete-category needs -id")
	}
	if err := a.dash.DeleteCategory(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Categoría eliminada")
	return nil
}

// watch renders the dashboard and re-renders it after every change event
// until interrupted. An empty queue gives this watcher its own queue.
func (a *app) watch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	queue := fs.String("queue", "", "queue to consume from; empty for a private queue")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.cfg.AMQPURL == "" {
		return errors.New("watch needs AMQP_URL")
	}

	ctx = cli.GracefulShutdown(a.logger, 5*time.Second, nil)
	events, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, *queue)
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer events.Close()

	if err := a.load(ctx); err != nil {
		a.logger.Warn("Initial load failed", applog.FieldError, err)
	}
	render(a.out, a.dash.View())

	err = events.Watch(ctx, func(ev amqp.ChangeEvent) error {
		a.logger.Debug("Change event received", applog.FieldEntity, ev.Entity, "op", ev.Op, "id", ev.ID)
		a.client.InvalidateCache()
		if err := a.dash.RefreshAll(remote.Fresh(ctx)); err != nil {
			a.logger.Warn("Refresh after change event failed", applog.FieldError, err)
		}
		render(a.out, a.dash.View())
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
