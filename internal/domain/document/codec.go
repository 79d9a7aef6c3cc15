package document

// Keys the repository owns. They are metadata and never stored as fields.
const (
	keyID      = "id"
	keyCAS     = "cas"
	keyVersion = "version"
	keyType    = "type"
)

// encodeBody builds the storage body for a write: the caller's fields minus
// metadata keys, with the discriminator set. The input map is not modified.
func encodeBody(docType string, fields Fields) Fields {
	body := make(Fields, len(fields)+1)
	for k, v := range fields {
		switch k {
		case keyID, keyCAS, keyVersion, keyType:
			continue
		}
		body[k] = v
	}
	body[keyType] = docType
	return body
}

// decodeRecord turns a storage record into a Document, attaching id and version
func decodeRecord(rec Record) *Document {
	doc := &Document{
		ID:      rec.ID,
		Version: rec.Version,
		Fields:  make(Fields, len(rec.Body)),
	}
	for k, v := range rec.Body {
		if k == keyType {
			doc.Type, _ = v.(string)
			continue
		}
		doc.Fields[k] = v
	}
	return doc
}

// recordType extracts the discriminator from a storage body
func recordType(body Fields) string {
	t, _ := body[keyType].(string)
	return t
}
