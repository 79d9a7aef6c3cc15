package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/IcodeNet/employee-scheduling-api/internal/domain/shared"
	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
	"github.com/IcodeNet/employee-scheduling-api/pkg/metrics"
)

// Operation names used in logs, metrics and error context
const (
	OpFindByID = "findByID"
	OpFind     = "find"
	OpInsert   = "insert"
	OpUpdate   = "update"
	OpRemove   = "remove"
)

// Repository gives CRUD with optimistic concurrency over documents of one
// fixed type. It holds no per-document state; concurrent writers are
// arbitrated by the backend version check alone.
type Repository struct {
	docType    string
	backend    Backend
	durability Durability
	logger     *logger.Logger
	newID      func() string
}

// Option configures a Repository
type Option func(*Repository)

// WithDurability sets the acknowledgement policy applied to every write
func WithDurability(d Durability) Option {
	return func(r *Repository) {
		r.durability = d
	}
}

// WithLogger sets the logger; failures are logged through it before translation
func WithLogger(l *logger.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

// WithIDGenerator replaces the UUIDv7 generator used when Insert gets no id
func WithIDGenerator(fn func() string) Option {
	return func(r *Repository) {
		r.newID = fn
	}
}

// NewRepository creates a repository for docType on top of backend
func NewRepository(docType string, backend Backend, opts ...Option) (*Repository, error) {
	if docType == "" {
		return nil, fmt.Errorf("document type cannot be empty")
	}
	if backend == nil {
		return nil, fmt.Errorf("document backend cannot be nil")
	}

	r := &Repository{
		docType:    docType,
		backend:    backend,
		durability: Durability{Level: DurabilityNone},
		newID:      func() string { return shared.NewID().String() },
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.durability.Validate(); err != nil {
		return nil, err
	}
	if r.logger == nil {
		r.logger = logger.GetGlobalLogger()
	}
	r.logger = r.logger.WithComponent("document-repository").WithField("type", docType)

	return r, nil
}

// Type returns the discriminator this repository owns
func (r *Repository) Type() string {
	return r.docType
}

// Ping checks the backend
func (r *Repository) Ping(ctx context.Context) error {
	return r.backend.Ping(ctx)
}

// FindByID returns the document stored under id with its current version.
// A document of another type under the same id is reported as not found.
func (r *Repository) FindByID(ctx context.Context, id string) (*Document, error) {
	defer r.observe(OpFindByID, time.Now())

	if id == "" {
		return nil, r.fail(OpFindByID, id, ErrKeyNotFound)
	}

	rec, err := r.backend.Get(ctx, id)
	if err != nil {
		return nil, r.fail(OpFindByID, id, err)
	}
	if recordType(rec.Body) != r.docType {
		return nil, r.fail(OpFindByID, id, ErrKeyNotFound)
	}

	r.succeed(OpFindByID)
	return decodeRecord(rec), nil
}

// Find returns every document of this repository's type. Each call re-queries
// the backend; no order is guaranteed.
func (r *Repository) Find(ctx context.Context) ([]*Document, error) {
	defer r.observe(OpFind, time.Now())

	recs, err := r.backend.Query(ctx, r.docType)
	if err != nil {
		return nil, r.fail(OpFind, "", err)
	}

	docs := lo.FilterMap(recs, func(rec Record, _ int) (*Document, bool) {
		return decodeRecord(rec), recordType(rec.Body) == r.docType
	})

	r.succeed(OpFind)
	return docs, nil
}

// Insert writes fields as a new document under id, generating an id when it
// is empty. It returns after the configured durability is satisfied.
func (r *Repository) Insert(ctx context.Context, fields Fields, id string) (*Document, error) {
	defer r.observe(OpInsert, time.Now())

	if id == "" {
		id = r.newID()
	}

	body := encodeBody(r.docType, fields)
	version, err := r.backend.Insert(ctx, id, body, r.durability)
	if err != nil {
		return nil, r.fail(OpInsert, id, err)
	}

	r.succeed(OpInsert)
	return decodeRecord(Record{ID: id, Version: version, Body: body}), nil
}

// Update replaces the fields of doc.ID when the stored version still equals
// doc.Version, and returns the document with its new version.
func (r *Repository) Update(ctx context.Context, doc *Document) (*Document, error) {
	defer r.observe(OpUpdate, time.Now())

	if doc == nil || doc.ID == "" {
		return nil, r.fail(OpUpdate, "", ErrKeyNotFound)
	}
	if err := r.ensureOwned(ctx, doc.ID); err != nil {
		return nil, r.fail(OpUpdate, doc.ID, err)
	}

	body := encodeBody(r.docType, doc.Fields)
	version, err := r.backend.Replace(ctx, doc.ID, body, doc.Version, r.durability)
	if err != nil {
		return nil, r.fail(OpUpdate, doc.ID, err)
	}

	r.succeed(OpUpdate)
	return decodeRecord(Record{ID: doc.ID, Version: version, Body: body}), nil
}

// Remove deletes the document unconditionally
func (r *Repository) Remove(ctx context.Context, id string) error {
	defer r.observe(OpRemove, time.Now())

	if id == "" {
		return r.fail(OpRemove, id, ErrKeyNotFound)
	}
	if err := r.ensureOwned(ctx, id); err != nil {
		return r.fail(OpRemove, id, err)
	}

	if err := r.backend.Remove(ctx, id, r.durability); err != nil {
		return r.fail(OpRemove, id, err)
	}

	r.succeed(OpRemove)
	return nil
}

// ensureOwned keeps writes inside this repository's type within the shared
// keyspace. The version check on Replace still arbitrates races.
func (r *Repository) ensureOwned(ctx context.Context, id string) error {
	rec, err := r.backend.Get(ctx, id)
	if err != nil {
		return err
	}
	if recordType(rec.Body) != r.docType {
		return ErrKeyNotFound
	}
	return nil
}

// fail logs the backend failure once and returns its translated form
func (r *Repository) fail(op, id string, err error) error {
	translated := translate(op, r.docType, id, err)

	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("id", id),
		zap.Error(err),
	}

	var result string
	switch {
	case errors.Is(translated, ErrNotFound):
		result = "not_found"
		r.logger.Debug("Document not found", fields...)
	case errors.Is(translated, ErrAlreadyExists):
		result = "already_exists"
		r.logger.Warn("Document already exists", fields...)
	case errors.Is(translated, ErrVersionConflict):
		result = "version_conflict"
		r.logger.Warn("Document version conflict", fields...)
	case errors.Is(translated, ErrDurabilityUnconfirmed):
		result = "durability_unconfirmed"
		r.logger.Error("Document written but durability not confirmed", fields...)
	default:
		result = "backend_error"
		r.logger.Error("Document backend failure", fields...)
	}

	metrics.DocumentOps.WithLabelValues(op, r.docType, result).Inc()
	return translated
}

func (r *Repository) succeed(op string) {
	metrics.DocumentOps.WithLabelValues(op, r.docType, "ok").Inc()
}

func (r *Repository) observe(op string, start time.Time) {
	metrics.DocumentOpDuration.WithLabelValues(op, r.docType).Observe(time.Since(start).Seconds())
}
