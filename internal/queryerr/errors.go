// Package queryerr defines the user-facing error taxonomy shared by the
// filter parser, the query object validator, the group-by planner and the
// paginator. Messages are part of the public contract and are rendered
// verbatim in the error envelope.
package queryerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Category identifies the class of a query compilation error.
type Category string

const (
	CategoryFieldResolution Category = "FieldResolutionError"
	CategoryTypeCoercion    Category = "TypeCoercionError"
	CategoryGrammar         Category = "GrammarError"
	CategoryDomainValue     Category = "DomainValueError"
	CategoryPagination      Category = "PaginationError"
	CategoryGroupBySize     Category = "GroupBySizeError"
	CategoryNotFound        Category = "NotFoundError"
	CategoryBackend         Category = "BackendError"
)

// Error is a query error with a fixed-wording message.
type Error struct {
	Category Category
	Message  string
	// Err is the underlying cause for backend errors; it is never shown to users.
	Err error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code used when rendering the error.
func (e *Error) Status() int {
	switch e.Category {
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryBackend:
		return http.StatusServiceUnavailable
	default:
		return http.StatusForbidden
	}
}

// Retryable reports whether the caller may retry the same request.
func (e *Error) Retryable() bool {
	return e.Category == CategoryBackend
}

func newError(c Category, format string, args ...any) *Error {
	if len(args) == 0 {
		return &Error{Category: c, Message: format}
	}
	return &Error{Category: c, Message: fmt.Sprintf(format, args...)}
}

// FieldResolution reports an unknown field or column.
func FieldResolution(format string, args ...any) *Error {
	return newError(CategoryFieldResolution, format, args...)
}

// TypeCoercion reports a value that does not match its field type.
func TypeCoercion(format string, args ...any) *Error {
	return newError(CategoryTypeCoercion, format, args...)
}

// Grammar reports malformed filter syntax or request shape.
func Grammar(format string, args ...any) *Error {
	return newError(CategoryGrammar, format, args...)
}

// DomainValue reports a value outside a column's value domain.
func DomainValue(format string, args ...any) *Error {
	return newError(CategoryDomainValue, format, args...)
}

// Pagination reports page/cursor bound violations.
func Pagination(format string, args ...any) *Error {
	return newError(CategoryPagination, format, args...)
}

// GroupBySize reports an out of range bucket count.
func GroupBySize(format string, args ...any) *Error {
	return newError(CategoryGroupBySize, format, args...)
}

// NotFound reports an unresolved single entity lookup.
func NotFound(format string, args ...any) *Error {
	return newError(CategoryNotFound, format, args...)
}

// Backend wraps a transport failure or timeout talking to the search index.
func Backend(err error) *Error {
	return &Error{
		Category: CategoryBackend,
		Message:  "The search backend is temporarily unavailable. Please retry the request.",
		Err:      err,
	}
}

// As extracts a *Error from err.
func As(err error) (*Error, bool) {
	var qe *Error
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// Is reports whether err is a query error of the given category.
func Is(err error, c Category) bool {
	qe, ok := As(err)
	return ok && qe.Category == c
}
