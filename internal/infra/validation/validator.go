package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"wellness-score/internal/domain"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError описывает одно нарушение правил валидации.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

// Error реализует error.
func (e FieldError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s failed %s=%s", e.Field, e.Tag, e.Param)
	}
	return fmt.Sprintf("%s failed %s", e.Field, e.Tag)
}

// Error объединяет ошибки полей. errors.Is(err, domain.ErrValidation) == true.
type Error struct {
	Fields []FieldError
}

// Error реализует error.
func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return domain.ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Error())
	}
	return domain.ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Unwrap связывает ошибку с доменной ErrValidation.
func (e *Error) Unwrap() error {
	return domain.ErrValidation
}

// Get возвращает общий валидатор.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Struct проверяет структуру по тегам validate.
func Struct(s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &Error{Fields: []FieldError{{Field: "unknown", Tag: err.Error()}}}
	}
	out := &Error{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()})
	}
	return out
}

// UserID проверяет идентификатор пользователя.
func UserID(id string) error {
	if err := Get().Var(id, "required,uuid"); err != nil {
		return fmt.Errorf("%w: %q", domain.ErrInvalidUserID, id)
	}
	return nil
}
