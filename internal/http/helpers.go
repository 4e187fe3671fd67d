package http

import (
	"errors"
	"strings"

	"gastos/internal/core"
)

const (
	msgCategoryNotFound = "Categoría no encontrada"
	msgExpenseNotFound  = "Gasto no encontrado"
	msgCategoryExists   = "Ya existe una categoría con ese nombre"
	msgCategoryInUse    = "No se puede eliminar una categoría con gastos asociados"
	msgUnknownCategory  = "La categoría seleccionada no existe"
	msgInvalidBody      = "Cuerpo de la solicitud inválido"
	msgInternal         = "Error interno del servidor"
)

// Field messages shown to users, keyed by the core sentinel.
var validationMessages = map[error]string{
	core.ErrDescriptionTooShort: "La descripción debe tener al menos 3 caracteres",
	core.ErrDescriptionTooLong:  "La descripción no puede superar los 100 caracteres",
	core.ErrInvalidAmount:       "El monto debe ser un número mayor a 0",
	core.ErrMissingCategory:     "Debes seleccionar una categoría",
	core.ErrInvalidDate:         "La fecha no es válida",
	core.ErrNameTooShort:        "El nombre debe tener al menos 2 caracteres",
	core.ErrNameTooLong:         "El nombre no puede superar los 30 caracteres",
}

// validationMessage turns a core validation error into one readable sentence
// per field, in a stable order.
func validationMessage(err error) string {
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		return err.Error()
	}
	var parts []string
	for _, field := range []string{"descripcion", "monto", "fechaHora", "categoriaId", "nombre"} {
		if ferr, ok := verr.Fields[field]; ok {
			if msg, ok := validationMessages[ferr]; ok {
				parts = append(parts, msg)
			} else {
				parts = append(parts, field+": "+ferr.Error())
			}
		}
	}
	if len(parts) == 0 {
		return err.Error()
	}
	return strings.Join(parts, ". ")
}

func totalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
