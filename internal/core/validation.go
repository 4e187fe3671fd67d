package core

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// validator has no notion of decimal.Decimal; expose it as a float for gt/min tags.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidationError reports local input problems found before any network call.
// Fields maps the JSON field name to the sentinel describing the failure.
type ValidationError struct {
	Fields map[string]error
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k].Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the field sentinels so errors.Is(err, ErrInvalidAmount) works.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Fields))
	for _, err := range e.Fields {
		errs = append(errs, err)
	}
	return errs
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

func (e *ValidationError) add(field string, err error) *ValidationError {
	if e == nil {
		e = &ValidationError{Fields: make(map[string]error)}
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = err
	}
	return e
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// fieldErrors maps "field.tag" to the sentinel reported for it.
type fieldErrors map[string]error

var expenseFieldErrors = fieldErrors{
	"descripcion.required": ErrDescriptionTooShort,
	"descripcion.min":      ErrDescriptionTooShort,
	"descripcion.max":      ErrDescriptionTooLong,
	"monto.required":       ErrInvalidAmount,
	"monto.gt":             ErrInvalidAmount,
	"categoriaId.required": ErrMissingCategory,
}

var categoryFieldErrors = fieldErrors{
	"nombre.required": ErrNameTooShort,
	"nombre.min":      ErrNameTooShort,
	"nombre.max":      ErrNameTooLong,
}

func validationErrorFrom(err error, known fieldErrors) *ValidationError {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return verr.add("_", err)
	}
	for _, fe := range ves {
		sentinel, ok := known[fe.Field()+"."+fe.Tag()]
		if !ok {
			sentinel = errors.New(fe.Tag())
		}
		verr = verr.add(fe.Field(), sentinel)
	}
	return verr
}

// ExpenseInput holds the raw values of the expense form.
type ExpenseInput struct {
	Descripcion string `json:"descripcion" validate:"required,min=3,max=100"`
	Monto       string `json:"monto" validate:"required"`
	FechaHora   string `json:"fechaHora"`
	CategoriaID string `json:"categoriaId" validate:"required"`
}

// Parse validates the form values and converts them into a payload. A
// non-numeric or non-positive monto is rejected here, never sent.
func (in ExpenseInput) Parse() (ExpenseData, error) {
	in.Descripcion = strings.TrimSpace(in.Descripcion)
	in.Monto = strings.TrimSpace(in.Monto)
	in.CategoriaID = strings.TrimSpace(in.CategoriaID)

	verr := validationErrorFrom(validate.Struct(in), expenseFieldErrors)

	var data ExpenseData
	if in.Monto != "" {
		amount, err := ParseAmount(in.Monto)
		if err != nil {
			verr = verr.add("monto", ErrInvalidAmount)
		}
		data.Monto = amount
	}
	fecha, err := ParseDateTime(in.FechaHora)
	if err != nil {
		verr = verr.add("fechaHora", ErrInvalidDate)
	}
	if err := verr.orNil(); err != nil {
		return ExpenseData{}, err
	}

	data.Descripcion = in.Descripcion
	data.FechaHora = fecha
	data.CategoriaID = in.CategoriaID
	return data, nil
}

// CategoryInput holds the raw values of the category form.
type CategoryInput struct {
	Nombre string `json:"nombre" validate:"required,min=2,max=30"`
}

// Normalize trims the name and validates it.
func (in CategoryInput) Normalize() (CategoryInput, error) {
	in.Nombre = strings.TrimSpace(in.Nombre)
	if err := validationErrorFrom(validate.Struct(in), categoryFieldErrors).orNil(); err != nil {
		return CategoryInput{}, err
	}
	return in, nil
}

// Validate reports whether the trimmed name is acceptable.
func (in CategoryInput) Validate() error {
	_, err := in.Normalize()
	return err
}
