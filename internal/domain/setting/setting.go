package setting

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"

	"github.com/IcodeNet/employee-scheduling-api/internal/domain/document"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/shared"
)

// DocumentType is the discriminator setting documents are stored under
const DocumentType = "setting"

var currencyCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Setting holds per-installation display preferences
type Setting struct {
	ID             string           `json:"id" mapstructure:"-"`
	Version        document.Version `json:"version" mapstructure:"-"`
	Language       string           `json:"language" mapstructure:"language"`
	Avatar         string           `json:"avatar" mapstructure:"avatar"`
	CurrencyCode   string           `json:"currencyCode" mapstructure:"currencyCode"`
	CurrencySymbol string           `json:"currencySymbol" mapstructure:"currencySymbol"`
}

// Validate checks the field rules
func (s *Setting) Validate() error {
	if n := utf8.RuneCountInString(s.Language); n < 2 || n > 35 {
		return shared.ErrInvalidInput("language must be between 2 and 35 characters")
	}
	if !currencyCodePattern.MatchString(s.CurrencyCode) {
		return shared.ErrInvalidInput("currencyCode must be a 3 letter upper-case ISO 4217 code")
	}
	if n := utf8.RuneCountInString(s.CurrencySymbol); n < 1 || n > 8 {
		return shared.ErrInvalidInput("currencySymbol must be between 1 and 8 characters")
	}
	if utf8.RuneCountInString(s.Avatar) > 255 {
		return shared.ErrInvalidInput("avatar must be at most 255 characters")
	}
	return nil
}

// Fields returns the storable field set; id and version are metadata
func (s *Setting) Fields() document.Fields {
	return document.Fields{
		"language":       s.Language,
		"avatar":         s.Avatar,
		"currencyCode":   s.CurrencyCode,
		"currencySymbol": s.CurrencySymbol,
	}
}

// Document returns s as a repository document carrying its version
func (s *Setting) Document() *document.Document {
	return &document.Document{
		ID:      s.ID,
		Type:    DocumentType,
		Version: s.Version,
		Fields:  s.Fields(),
	}
}

// FromDocument decodes a repository document into a Setting. Unknown fields
// are ignored so older documents with extra keys still load.
func FromDocument(doc *document.Document) (*Setting, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}

	s := &Setting{ID: doc.ID, Version: doc.Version}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           s,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]interface{}(doc.Fields)); err != nil {
		return nil, fmt.Errorf("failed to decode setting %s: %w", doc.ID, err)
	}
	return s, nil
}
