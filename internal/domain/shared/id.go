package shared

import (
	"github.com/google/uuid"
)

// ID represents a unique identifier
type ID string

// NewID generates a new time-ordered unique ID (UUIDv7)
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// only fails when the random source is broken
		return ID(uuid.NewString())
	}
	return ID(id.String())
}

// String returns the string representation of ID
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if ID is empty
func (id ID) IsEmpty() bool {
	return string(id) == ""
}
