package apperr

import (
	"context"
	"errors"
	"strings"
)

// Kind clasifica un error de negocio con un identificador estable
// que viaja tal cual en las respuestas de la API.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindAuthorization    Kind = "authorization"
	KindConflict         Kind = "conflict"
	KindInvalidState     Kind = "invalid_state"
	KindInvalidOperation Kind = "invalid_operation"
	KindTimeout          Kind = "timeout"
	KindInternal         Kind = "internal"
)

// Error es el error tipado que devuelven los servicios.
type Error struct {
	Kind    Kind
	Message string

	// Details lleva información extra para el cliente (p.ej. eventos en conflicto).
	Details []string

	Err error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return strings.ReplaceAll(string(e.Kind), "_", " ")
}

func (e *Error) Unwrap() error { return e.Err }

// Is permite comparar contra los sentinels por Kind:
// errors.Is(err, apperr.ErrNotFound) es true para cualquier not_found.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrAuthorization    = &Error{Kind: KindAuthorization}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrInvalidState     = &Error{Kind: KindInvalidState}
	ErrInvalidOperation = &Error{Kind: KindInvalidOperation}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrInternal         = &Error{Kind: KindInternal}
)

func New(kind Kind, msg string, details ...string) *Error {
	return &Error{Kind: kind, Message: msg, Details: details}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string) *Error { return New(KindValidation, msg) }

func NotFound(msg string) *Error { return New(KindNotFound, msg) }

func Authorization(msg string) *Error { return New(KindAuthorization, msg) }

func Conflict(msg string, details ...string) *Error { return New(KindConflict, msg, details...) }

func InvalidState(msg string) *Error { return New(KindInvalidState, msg) }

func InvalidOperation(msg string) *Error { return New(KindInvalidOperation, msg) }

// KindOf devuelve el Kind de err; errores no tipados son internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindInternal
}

// Normalize deja pasar errores tipados y convierte el resto:
// deadline/cancel del contexto => timeout, cualquier otro => internal.
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Wrap(KindTimeout, "operation timed out", err)
	}
	return Wrap(KindInternal, "internal error", err)
}
