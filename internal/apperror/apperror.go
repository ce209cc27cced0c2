package apperror

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies an error so controllers can translate it to an HTTP status
// without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindBadRequest
	KindNotFound
	KindConflict
	KindForbidden
	KindVersionConflict
	KindExternalStore
)

// Error is the single error type used across services. VersionConflict errors
// additionally carry the server's current copy of the contested document.
type Error struct {
	Kind       Kind
	Message    string
	ServerCopy map[string]any
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// VersionConflict reports an optimistic-lock failure. serverCopy is the
// document as the external store currently holds it.
func VersionConflict(serverCopy map[string]any) *Error {
	return &Error{
		Kind:       KindVersionConflict,
		Message:    "document changed since it was last read",
		ServerCopy: serverCopy,
	}
}

// ExternalStore wraps a transport or 5xx failure from the annotation store.
func ExternalStore(err error, format string, args ...any) *Error {
	return &Error{Kind: KindExternalStore, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ServerCopyOf extracts the server copy from a VersionConflict error, nil
// otherwise.
func ServerCopyOf(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindVersionConflict {
		return e.ServerCopy
	}
	return nil
}

// HTTPStatus maps an error to the status the route layer should answer with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindBadRequest:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict, KindVersionConflict:
		return fiber.StatusConflict
	case KindForbidden:
		return fiber.StatusForbidden
	case KindExternalStore:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
