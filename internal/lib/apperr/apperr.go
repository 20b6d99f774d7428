// Package apperr описывает ошибки бизнес-логики с машиночитаемым кодом.
// Формат ответа: {"error": {"code": "...", "message": "...", "details": {...}}}
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind класс ошибки, определяет HTTP-статус
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindAuth
	KindForbidden
	KindEmptyCart
	KindInsufficientStock
	KindIllegalTransition
)

// Error ошибка бизнес-логики
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Status HTTP-статус для ошибки
func (e *Error) Status() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindEmptyCart:
		return http.StatusBadRequest
	case KindInsufficientStock, KindIllegalTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// FieldError ошибка одного поля запроса
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Internal ошибка без подробностей для клиента
func Internal() *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: "internal server error"}
}

func NotFound(resource string, id any) *Error {
	e := &Error{
		Kind:    KindNotFound,
		Code:    strings.ToUpper(resource) + "_NOT_FOUND",
		Message: resource + " not found",
	}
	if id != nil {
		e.Details = map[string]any{"id": id}
	}
	return e
}

func Validation(message string, details map[string]any) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: message, Details: details}
}

// Fields ошибка валидации со списком всех невалидных полей
func Fields(errs []FieldError) *Error {
	return Validation("validation failed", map[string]any{"errors": errs})
}

func Auth(message string) *Error {
	if message == "" {
		message = "authentication failed"
	}
	return &Error{Kind: KindAuth, Code: "AUTH_ERROR", Message: message}
}

func Forbidden(message string) *Error {
	if message == "" {
		message = "access denied"
	}
	return &Error{Kind: KindForbidden, Code: "FORBIDDEN", Message: message}
}

// ItemUnavailable товар в корзине снят с продажи
func ItemUnavailable(itemID int64, name string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    "ITEM_UNAVAILABLE",
		Message: fmt.Sprintf("item %q is no longer available", name),
		Details: map[string]any{"item_id": itemID, "item_name": name},
	}
}

func EmptyCart() *Error {
	return &Error{Kind: KindEmptyCart, Code: "EMPTY_CART", Message: "cart is empty"}
}

func InsufficientStock(itemID int64, name string, requested, available int) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Code:    "INSUFFICIENT_STOCK",
		Message: fmt.Sprintf("insufficient stock for item %q", name),
		Details: map[string]any{
			"item_id":   itemID,
			"item_name": name,
			"requested": requested,
			"available": available,
		},
	}
}

func IllegalTransition(from, to string) *Error {
	return &Error{
		Kind:    KindIllegalTransition,
		Code:    "ILLEGAL_TRANSITION",
		Message: fmt.Sprintf("cannot change status from %s to %s", from, to),
		Details: map[string]any{"from": from, "to": to},
	}
}

// As достаёт *Error из цепочки ошибок
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is проверяет класс ошибки в цепочке
func Is(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
