package document

import (
	"context"
	"errors"
)

// Backend-level failures. Backends return these (possibly wrapped) so the
// repository can translate them; everything else is a backend error.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrKeyExists   = errors.New("key already exists")
	ErrCASMismatch = errors.New("cas mismatch")

	// ErrDurabilityUnconfirmed means the write was applied on the primary but
	// the requested replication or persistence was not acknowledged. The
	// document may be in its new state; re-read before retrying.
	ErrDurabilityUnconfirmed = errors.New("durability not confirmed")
)

// Backend is the storage collaborator of a Repository
type Backend interface {
	// Get returns the record stored under id or ErrKeyNotFound
	Get(ctx context.Context, id string) (Record, error)
	// Query returns every record whose body "type" equals docType
	Query(ctx context.Context, docType string) ([]Record, error)
	// Insert stores a new record and returns its initial version, or ErrKeyExists
	Insert(ctx context.Context, id string, body Fields, d Durability) (Version, error)
	// Replace overwrites the record when its stored version equals expected.
	// Returns ErrKeyNotFound when absent and ErrCASMismatch on a stale version.
	Replace(ctx context.Context, id string, body Fields, expected Version, d Durability) (Version, error)
	// Remove deletes the record unconditionally or returns ErrKeyNotFound
	Remove(ctx context.Context, id string, d Durability) error
	// Ping checks connectivity
	Ping(ctx context.Context) error
}
