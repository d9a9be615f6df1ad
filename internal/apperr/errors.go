// Package apperr defines the error kinds shared by the scheduling core.
//
// Every error returned across a package boundary carries a Kind so callers can
// branch with errors.Is(err, apperr.ErrSlotUnavailable) without parsing text,
// plus enough structured detail (entity, id, state, operation, field) for the
// presentation layer to render a specific message.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindValidation            Kind = "validation_error"
	KindInvalidTransition     Kind = "invalid_transition"
	KindSlotUnavailable       Kind = "slot_unavailable"
	KindDuplicateEntry        Kind = "duplicate_entry"
	KindNotFound              Kind = "not_found"
	KindDependencyUnavailable Kind = "dependency_unavailable"
	KindConflict              Kind = "conflict"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrValidation            = &Error{Kind: KindValidation}
	ErrInvalidTransition     = &Error{Kind: KindInvalidTransition}
	ErrSlotUnavailable       = &Error{Kind: KindSlotUnavailable}
	ErrDuplicateEntry        = &Error{Kind: KindDuplicateEntry}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrDependencyUnavailable = &Error{Kind: KindDependencyUnavailable}
	ErrConflict              = &Error{Kind: KindConflict}
)

type Error struct {
	Kind      Kind
	Entity    string
	ID        string
	State     string
	Operation string
	Field     string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Entity != "" {
		b.WriteString(" ")
		b.WriteString(e.Entity)
		if e.ID != "" {
			b.WriteString("(" + e.ID + ")")
		}
	}
	if e.Operation != "" {
		fmt.Fprintf(&b, " op=%s", e.Operation)
	}
	if e.State != "" {
		fmt.Fprintf(&b, " state=%s", e.State)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field=%s", e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so the package sentinels match detailed errors.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Entity == "" && t.ID == "" && t.Message == ""
}

// KindOf returns the kind of the first *Error in err's chain, or "" when none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransition(entity, id, state, op string) *Error {
	return &Error{
		Kind:      KindInvalidTransition,
		Entity:    entity,
		ID:        id,
		State:     state,
		Operation: op,
		Message:   fmt.Sprintf("%s is not allowed from %s", op, state),
	}
}

func SlotUnavailable(key, format string, args ...any) *Error {
	return &Error{Kind: KindSlotUnavailable, Entity: "slot", ID: key, Message: fmt.Sprintf(format, args...)}
}

func DuplicateEntry(entity, id, format string, args ...any) *Error {
	return &Error{Kind: KindDuplicateEntry, Entity: entity, ID: id, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id, Message: entity + " not found"}
}

func DependencyUnavailable(dependency string, err error) *Error {
	return &Error{Kind: KindDependencyUnavailable, Entity: dependency, Message: dependency + " unavailable", Err: err}
}

func Conflict(entity, id string) *Error {
	return &Error{Kind: KindConflict, Entity: entity, ID: id, Message: "stale version, retry the operation"}
}
