package http

import (
	"net/http"
	"strconv"

	"gastos/internal/core"
	applog "gastos/internal/log"
)

// handleListCategories answers GET /categorias. Counts are only serialized
// when includeCount=true.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.repo.ListCategories(r.Context(), "")
	if err != nil {
		s.writeError(w, r, applog.EntityCategory, applog.OpList, err)
		return
	}
	NewJSONResponse().Data(withCounts(categories, r)).Write(w)
}

// handleListCategoriesPage answers GET /categorias/paginated in the same
// envelope as the expense listing.
func (s *Server) handleListCategoriesPage(w http.ResponseWriter, r *http.Request) {
	page, limit, err := ParsePageQuery(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	categories, total, err := s.repo.ListCategoriesPage(r.Context(), page, limit)
	if err != nil {
		s.writeError(w, r, applog.EntityCategory, applog.OpList, err)
		return
	}
	NewJSONResponse().Page(withCounts(categories, r), total, page, limit).Write(w)
}

func withCounts(categories []core.Category, r *http.Request) []core.Category {
	if ok, _ := strconv.ParseBool(r.URL.Query().Get("includeCount")); !ok {
		for i := range categories {
			categories[i].ExpenseCount = nil
		}
	}
	return categories
}

func (s *Server) handleSearchCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.repo.ListCategories(r.Context(), sanitizeInput(r.URL.Query().Get("q")))
	if err != nil {
		s.writeError(w, r, applog.EntityCategory, applog.OpList, err)
		return
	}
	NewJSONResponse().Data(categories).Write(w)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := s.repo.GetCategory(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, applog.EntityCategory, applog.OpRead, err)
		return
	}
	NewJSONResponse().Data(c).Write(w)
}

func (s *Server) parseCategory(r *http.Request) (core.CategoryInput, error) {
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		return core.CategoryInput{}, err
	}
	return core.CategoryInput{Nombre: sanitizeInput(req.Nombre)}.Normalize()
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	in, err := s.parseCategory(r)
	if err != nil {
		s.writeBodyError(w, r, applog.EntityCategory, applog.OpCreate, err)
		return
	}
	c, err := s.repo.CreateCategory(r.Context(), in.Nombre)
	if err != nil {
		s.writeError(w, r, applog.EntityCategory, applog.OpCreate, err)
		return
	}
	s.publish(r.Context(), applog.EntityCategory, applog.OpCreate, c.ID)
	NewJSONResponse().Status(http.StatusCreated).Data(c).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	in, err := s.parseCategory(r)
	if err != nil {
		s.writeBodyError(w, r, applog.EntityCategory, applog.OpUpdate, err)
		return
	}
	c, err := s.repo.UpdateCategory(r.Context(), id, in.Nombre)
	if err != nil {
		s.writeError(w, r, applog.EntityCategory, applog.OpUpdate, err)
		return
	}
	s.publish(r.Context(), applog.EntityCategory, applog.OpUpdate, id)
	NewJSONResponse().Data(c).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.repo.DeleteCategory(r.Context(), id); err != nil {
		s.writeError(w, r, applog.EntityCategory, applog.OpDelete, err)
		return
	}
	s.publish(r.Context(), applog.EntityCategory, applog.OpDelete, id)
	NoContent().Write(w)
}

// writeBodyError answers 400 for unreadable bodies and defers to writeError
// for validation failures.
func (s *Server) writeBodyError(w http.ResponseWriter, r *http.Request, entity, op string, err error) {
	if core.IsValidationError(err) {
		s.writeError(w, r, entity, op, err)
		return
	}
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Unreadable request body",
		applog.FieldError, err.Error(),
		applog.FieldEntity, entity)
	BadRequestError(msgInvalidBody).Write(w)
}
