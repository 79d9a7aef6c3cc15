package setting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"go.uber.org/zap"

	"github.com/IcodeNet/employee-scheduling-api/internal/domain/document"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/shared"
	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
	"github.com/IcodeNet/employee-scheduling-api/pkg/metrics"
)

// EventPublisher publishes domain events; watermill's cqrs.EventBus satisfies it
type EventPublisher interface {
	Publish(ctx context.Context, event interface{}) error
}

// Service exposes setting use cases on top of the document repository
type Service struct {
	repo   *document.Repository
	events EventPublisher
	logger *logger.Logger
	now    func() time.Time
}

// NewService creates a setting service. events may be nil.
func NewService(repo *document.Repository, events EventPublisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Service{
		repo:   repo,
		events: events,
		logger: log.WithComponent("setting-service"),
		now:    time.Now,
	}
}

// Get returns one setting
func (s *Service) Get(ctx context.Context, id string) (*Setting, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc)
}

// List returns every stored setting
func (s *Service) List(ctx context.Context) ([]*Setting, error) {
	docs, err := s.repo.Find(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*Setting, 0, len(docs))
	for _, doc := range docs {
		setting, err := FromDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, setting)
	}
	return out, nil
}

// Create validates and inserts a setting. An empty id is generated.
func (s *Service) Create(ctx context.Context, in *Setting, id string) (*Setting, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	doc, err := s.repo.Insert(ctx, in.Fields(), id)
	if err != nil {
		return nil, err
	}
	created, err := FromDocument(doc)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, &SettingCreatedEvent{
		SettingID: created.ID,
		Version:   created.Version,
		Setting:   created,
		Timestamp: s.now(),
		RequestID: shared.RequestIDFrom(ctx),
	})
	return created, nil
}

// Update replaces all fields of in.ID, guarded by in.Version
func (s *Service) Update(ctx context.Context, in *Setting) (*Setting, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	prev, err := s.repo.FindByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	return s.write(ctx, prev, in.Document())
}

// Patch applies an RFC 7396 JSON merge patch to the stored fields and writes
// the result, guarded by version
func (s *Service) Patch(ctx context.Context, id string, version document.Version, patch []byte) (*Setting, error) {
	prev, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	original, err := json.Marshal(prev.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode setting %s: %w", id, err)
	}
	merged, err := jsonpatch.MergePatch(original, patch)
	if err != nil {
		return nil, shared.ErrInvalidInput(fmt.Sprintf("invalid merge patch: %v", err))
	}

	var fields document.Fields
	if err := json.Unmarshal(merged, &fields); err != nil {
		return nil, shared.ErrInvalidInput(fmt.Sprintf("merge patch must produce an object: %v", err))
	}

	next, err := FromDocument(&document.Document{ID: id, Version: version, Fields: fields})
	if err != nil {
		return nil, shared.ErrInvalidInput(err.Error())
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}

	return s.write(ctx, prev, next.Document())
}

// Remove deletes a setting
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.repo.Remove(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, &SettingRemovedEvent{
		SettingID: id,
		Timestamp: s.now(),
		RequestID: shared.RequestIDFrom(ctx),
	})
	return nil
}

func (s *Service) write(ctx context.Context, prev, next *document.Document) (*Setting, error) {
	doc, err := s.repo.Update(ctx, next)
	if err != nil {
		return nil, err
	}
	updated, err := FromDocument(doc)
	if err != nil {
		return nil, err
	}

	changes, err := changeSet(prev.Fields, doc.Fields)
	if err != nil {
		s.logger.Warn("Failed to compute setting changes", zap.String("id", doc.ID), zap.Error(err))
	}

	s.publish(ctx, &SettingUpdatedEvent{
		SettingID: updated.ID,
		Version:   updated.Version,
		Changes:   changes,
		Timestamp: s.now(),
		RequestID: shared.RequestIDFrom(ctx),
	})
	return updated, nil
}

// publish is best effort; the write has already been acknowledged
func (s *Service) publish(ctx context.Context, event interface{}) {
	if s.events == nil {
		return
	}

	name := fmt.Sprintf("%T", event)
	if err := s.events.Publish(ctx, event); err != nil {
		metrics.EventsPublished.WithLabelValues(name, "error").Inc()
		s.logger.Warn("Failed to publish setting event", zap.String("event", name), zap.Error(err))
		return
	}
	metrics.EventsPublished.WithLabelValues(name, "ok").Inc()
}

// changeSet returns the merge patch that turns prev into next
func changeSet(prev, next document.Fields) (map[string]interface{}, error) {
	a, err := json.Marshal(prev)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(next)
	if err != nil {
		return nil, err
	}

	patch, err := jsonpatch.CreateMergePatch(a, b)
	if err != nil {
		return nil, err
	}

	var changes map[string]interface{}
	if err := json.Unmarshal(patch, &changes); err != nil {
		return nil, err
	}
	return changes, nil
}
