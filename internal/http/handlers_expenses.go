package http

import (
	"net/http"

	"gastos/internal/core"
	applog "gastos/internal/log"
)

// handleListExpenses answers GET /gastos with one page and its totals.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	f, err := ParseListQuery(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	items, total, err := s.repo.ListExpenses(r.Context(), f)
	if err != nil {
		s.writeError(w, r, applog.EntityExpense, applog.OpList, err)
		return
	}

	applog.FromContext(r.Context()).DebugContext(r.Context(), "Listed expenses",
		applog.NewFields().
			WithListing(f.Page, f.Limit, string(f.SortBy), string(f.SortOrder)).
			ToSlice()...)
	NewJSONResponse().Page(items, total, f.Page, f.Limit).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.repo.GetExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, applog.EntityExpense, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(e).Write(w)
}

func parseExpense(r *http.Request) (core.ExpenseData, error) {
	var req expenseRequest
	if err := decodeBody(r, &req); err != nil {
		return core.ExpenseData{}, err
	}
	return req.input().Parse()
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	data, err := parseExpense(r)
	if err != nil {
		s.writeBodyError(w, r, applog.EntityExpense, applog.OpCreate, err)
		return
	}
	e, err := s.repo.CreateExpense(r.Context(), data)
	if err != nil {
		s.writeError(w, r, applog.EntityExpense, applog.OpCreate, err)
		return
	}
	s.publish(r.Context(), applog.EntityExpense, applog.OpCreate, e.ID)
	NewJSONResponse().Status(http.StatusCreated).Body(e).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	data, err := parseExpense(r)
	if err != nil {
		s.writeBodyError(w, r, applog.EntityExpense, applog.OpUpdate, err)
		return
	}
	e, err := s.repo.UpdateExpense(r.Context(), id, data)
	if err != nil {
		s.writeError(w, r, applog.EntityExpense, applog.OpUpdate, err)
		return
	}
	s.publish(r.Context(), applog.EntityExpense, applog.OpUpdate, id)
	NewJSONResponse().Body(e).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.repo.DeleteExpense(r.Context(), id); err != nil {
		s.writeError(w, r, applog.EntityExpense, applog.OpDelete, err)
		return
	}
	s.publish(r.Context(), applog.EntityExpense, applog.OpDelete, id)
	NoContent().Write(w)
}
