package document

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// Error taxonomy returned by Repository. Backend-native errors never escape;
// match with errors.Is or the Is* helpers.
var (
	ErrNotFound        = errors.New("document not found")
	ErrAlreadyExists   = errors.New("document already exists")
	ErrVersionConflict = errors.New("document version conflict")
	ErrBackend         = errors.New("document backend error")
)

const (
	CodeNotFound        = "NOT_FOUND"
	CodeAlreadyExists   = "ALREADY_EXISTS"
	CodeVersionConflict = "VERSION_CONFLICT"
	CodeBackend         = "BACKEND_ERROR"

	CodeDurabilityUnconfirmed = "DURABILITY_UNCONFIRMED"
)

// translate maps a backend failure onto the taxonomy. The cause is kept in
// the chain for ErrBackend only.
func translate(op, docType, id string, err error) error {
	builder := oops.
		In("document").
		With("operation", op).
		With("type", docType).
		With("id", id)

	switch {
	case errors.Is(err, ErrKeyNotFound):
		return builder.Code(CodeNotFound).Wrapf(ErrNotFound, "%s %s %q", op, docType, id)
	case errors.Is(err, ErrKeyExists):
		return builder.Code(CodeAlreadyExists).Wrapf(ErrAlreadyExists, "%s %s %q", op, docType, id)
	case errors.Is(err, ErrCASMismatch):
		return builder.Code(CodeVersionConflict).Wrapf(ErrVersionConflict, "%s %s %q", op, docType, id)
	case errors.Is(err, ErrDurabilityUnconfirmed):
		// still a backend error, but the write may have landed
		return builder.Code(CodeDurabilityUnconfirmed).Wrapf(fmt.Errorf("%w: %w", ErrBackend, err), "%s %s %q", op, docType, id)
	default:
		return builder.Code(CodeBackend).Wrapf(fmt.Errorf("%w: %w", ErrBackend, err), "%s %s %q", op, docType, id)
	}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

func IsBackend(err error) bool {
	return errors.Is(err, ErrBackend)
}

// IsDurabilityUnconfirmed reports a backend error after which the write may
// already be visible. Callers re-read before retrying.
func IsDurabilityUnconfirmed(err error) bool {
	return errors.Is(err, ErrDurabilityUnconfirmed)
}
