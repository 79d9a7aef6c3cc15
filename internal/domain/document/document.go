package document

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Fields is the open key/value payload of a document
type Fields map[string]interface{}

// Clone returns a shallow copy of the fields
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Version is the optimistic concurrency token (cas) issued by a backend on
// every successful write. Zero never identifies a stored document.
type Version uint64

func (v Version) String() string {
	return strconv.FormatUint(uint64(v), 10)
}

// IsZero reports whether v is the unset version
func (v Version) IsZero() bool {
	return v == 0
}

// MarshalJSON encodes the version as a decimal string; wall-clock based
// versions exceed the integer range JSON clients can represent exactly
func (v Version) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(v.String())), nil
}

// UnmarshalJSON accepts the string form and plain JSON numbers
func (v *Version) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = 0
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("invalid version %s: %w", s, err)
		}
		s = unq
	}
	parsed, err := ParseVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseVersion parses the decimal form produced by Version.String
func ParseVersion(s string) (Version, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return Version(n), nil
}

// Document is the domain view of a stored record: identity, discriminator,
// current version and the field payload. Fields never contain id, cas or type.
type Document struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	Version Version `json:"version"`
	Fields  Fields  `json:"fields"`
}

// Record is the storage representation exchanged with a Backend. Body holds
// the fields plus the "type" discriminator and nothing else.
type Record struct {
	ID      string
	Version Version
	Body    Fields
}

// DurabilityLevel is the acknowledgement level a write must reach
type DurabilityLevel string

const (
	DurabilityNone              DurabilityLevel = "none"
	DurabilityMajority          DurabilityLevel = "majority"
	DurabilityPersistToMajority DurabilityLevel = "persist_to_majority"
)

// Durability controls how many replica and persistence acknowledgements a
// write needs before the backend reports success
type Durability struct {
	Level       DurabilityLevel
	ReplicateTo int
	PersistTo   int
	Timeout     time.Duration
}

// Validate checks the durability settings
func (d Durability) Validate() error {
	switch d.Level {
	case "", DurabilityNone, DurabilityMajority, DurabilityPersistToMajority:
	default:
		return fmt.Errorf("unknown durability level %q", d.Level)
	}
	if d.ReplicateTo < 0 || d.PersistTo < 0 {
		return fmt.Errorf("durability replica counts cannot be negative")
	}
	if d.Timeout < 0 {
		return fmt.Errorf("durability timeout cannot be negative")
	}
	return nil
}

// RequiresAck reports whether the write must wait for anything beyond the primary
func (d Durability) RequiresAck() bool {
	return (d.Level != "" && d.Level != DurabilityNone) || d.ReplicateTo > 0 || d.PersistTo > 0
}
