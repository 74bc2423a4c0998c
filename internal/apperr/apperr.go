// Package apperr описывает классифицированные ошибки доменного слоя.
// Каждая ошибка несёт Kind, по которому слой представления решает,
// что показать пользователю.
package apperr

import (
	"errors"
	"fmt"
)

// Kind - категория ошибки, по которой выбирается ответ клиенту
type Kind string

const (
	KindValidation      Kind = "VALIDATION"
	KindNotFound        Kind = "NOT_FOUND"
	KindUnavailable     Kind = "UNAVAILABLE"
	KindStorage         Kind = "STORAGE"
	KindForbidden       Kind = "FORBIDDEN"
	KindUnauthenticated Kind = "UNAUTHENTICATED"
)

// Error - ошибка предметной области с категорией и исходной причиной
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is позволяет сравнивать по виду: errors.Is(err, apperr.NotFound(""))
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// New создает ошибку заданной категории
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap оборачивает err, присваивая ему категорию
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) error  { return New(KindValidation, format, args...) }
func NotFound(format string, args ...any) error    { return New(KindNotFound, format, args...) }
func Unavailable(format string, args ...any) error { return New(KindUnavailable, format, args...) }
func Forbidden(format string, args ...any) error   { return New(KindForbidden, format, args...) }
func Unauthenticated(format string, args ...any) error {
	return New(KindUnauthenticated, format, args...)
}

// Storage помечает сбой записи или чтения хранилища; операция считается
// незавершённой.
func Storage(err error, format string, args ...any) error {
	return Wrap(KindStorage, err, format, args...)
}

// KindOf возвращает вид ошибки или пустую строку для неклассифицированных.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind проверяет категорию ошибки по всей цепочке
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
