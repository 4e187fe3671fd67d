package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/middleware/ratelimit"
	"gastos/internal/middleware/security"
	"gastos/internal/middleware/trace"
)

// Repository is the storage the API serves.
type Repository interface {
	Ping(ctx context.Context) error

	ListCategories(ctx context.Context, query string) ([]core.Category, error)
	ListCategoriesPage(ctx context.Context, page, limit int) ([]core.Category, int, error)
	GetCategory(ctx context.Context, id string) (core.Category, error)
	CreateCategory(ctx context.Context, nombre string) (core.Category, error)
	UpdateCategory(ctx context.Context, id, nombre string) (core.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListExpenses(ctx context.Context, f core.Filter) ([]core.Expense, int, error)
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	CreateExpense(ctx context.Context, d core.ExpenseData) (core.Expense, error)
	UpdateExpense(ctx context.Context, id string, d core.ExpenseData) (core.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
}

// Publisher receives a change event after every successful mutation.
type Publisher interface {
	PublishChange(ctx context.Context, ev amqp.ChangeEvent) error
}

type Options struct {
	Addr           string
	Repository     Repository
	Publisher      Publisher // optional
	Logger         *applog.Logger
	RateLimitRPM   int
	AllowedOrigins []string
}

type Server struct {
	http.Server

	repo      Repository
	publisher Publisher
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	started   time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
// All API routes live under /api.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	ips := security.NewIPResolver()
	s := &Server{
		repo:      opts.Repository,
		publisher: opts.Publisher,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		tracer:    trace.NewMiddleware(logger, ips.ClientIP),
		started:   time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/categorias", s.handleListCategories)
	mux.HandleFunc("GET /api/categorias/search", s.handleSearchCategories)
	mux.HandleFunc("GET /api/categorias/paginated", s.handleListCategoriesPage)
	mux.HandleFunc("GET /api/categorias/{id}", s.handleGetCategory)
	mux.HandleFunc("POST /api/categorias", s.handleCreateCategory)
	mux.HandleFunc("PUT /api/categorias/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categorias/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/gastos", s.handleListExpenses)
	mux.HandleFunc("GET /api/gastos/{id}", s.handleGetExpense)
	mux.HandleFunc("POST /api/gastos", s.handleCreateExpense)
	mux.HandleFunc("PUT /api/gastos/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/gastos/{id}", s.handleDeleteExpense)

	headers := security.DefaultHeadersConfig()
	headers.AllowedOrigins = opts.AllowedOrigins

	var handler http.Handler = mux
	handler = s.limiter.Middleware(ips.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	})(handler)
	handler = security.NewHeadersMiddleware(headers).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops the limiter and drains the HTTP server. Safe to call twice.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
