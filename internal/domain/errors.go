package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation оборачивает все ошибки некорректного ввода. Такие ошибки не ретраятся.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidUserID возвращается для некорректного идентификатора пользователя.
	ErrInvalidUserID = fmt.Errorf("%w: invalid user id", ErrValidation)
	// ErrInvalidDate возвращается для некорректной даты.
	ErrInvalidDate = fmt.Errorf("%w: invalid date", ErrValidation)
	// ErrNotFound возвращается, если запись отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition возвращается при попытке сменить терминальный статус.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrRecommendationsDisabled возвращается при записи, если схема рекомендаций не развёрнута.
	ErrRecommendationsDisabled = errors.New("recommendation store is not provisioned")
	// ErrInvalidScore возвращается проверкой собранного скора.
	ErrInvalidScore = errors.New("invalid score")
)

// IsValidation сообщает, относится ли ошибка к ошибкам валидации.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
