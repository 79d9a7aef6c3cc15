package auth

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"

	"github.com/IcodeNet/employee-scheduling-api/internal/domain/document"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/shared"
)

// DocumentType is the discriminator user documents are stored under
const DocumentType = "user"

const (
	minUsernameLength = 3
	maxUsernameLength = 20
	minPasswordLength = 6
)

// User is a local account. PasswordHash is never serialized to clients.
type User struct {
	ID           string           `json:"id" mapstructure:"-"`
	Version      document.Version `json:"version" mapstructure:"-"`
	Username     string           `json:"username" mapstructure:"username"`
	PasswordHash string           `json:"-" mapstructure:"passwordHash"`
	CreatedAt    time.Time        `json:"createdAt" mapstructure:"createdAt"`
}

// NormalizeUsername trims and validates a username
func NormalizeUsername(value string) (string, error) {
	value = strings.TrimSpace(value)
	if n := utf8.RuneCountInString(value); n < minUsernameLength || n > maxUsernameLength {
		return "", shared.ErrInvalidInput(fmt.Sprintf("Username must be between %d and %d characters", minUsernameLength, maxUsernameLength))
	}
	return value, nil
}

// ValidatePassword checks the plain-text password rules
func ValidatePassword(plain string) error {
	if len(plain) < minPasswordLength {
		return shared.ErrInvalidInput(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	return nil
}

// Fields returns the storable field set
func (u *User) Fields() document.Fields {
	return document.Fields{
		"username":     u.Username,
		"passwordHash": u.PasswordHash,
		"createdAt":    u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// UserFromDocument decodes a repository document into a User
func UserFromDocument(doc *document.Document) (*User, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}

	u := &User{ID: doc.ID, Version: doc.Version}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     u,
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]interface{}(doc.Fields)); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", doc.ID, err)
	}
	return u, nil
}
