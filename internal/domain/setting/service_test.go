package setting

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IcodeNet/employee-scheduling-api/internal/domain/document"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/shared"
	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []interface{}
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) last() interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

func newTestService(t *testing.T) (*Service, *recordingPublisher) {
	t.Helper()
	repo, err := document.NewRepository(DocumentType, document.NewMemoryBackend(), document.WithLogger(logger.NewNop()))
	require.NoError(t, err)
	pub := &recordingPublisher{}
	return NewService(repo, pub, logger.NewNop()), pub
}

func validSetting() *Setting {
	return &Setting{
		Language:       "en",
		Avatar:         "default.png",
		CurrencyCode:   "USD",
		CurrencySymbol: "$",
	}
}

func TestService_CreateAndGet(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := shared.WithRequestID(context.Background(), "req-1")

	created, err := svc.Create(ctx, validSetting(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.Version.IsZero())

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	event, ok := pub.last().(*SettingCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, created.ID, event.SettingID)
	assert.Equal(t, created.Version, event.Version)
	assert.Equal(t, "req-1", event.RequestID)
}

func TestService_CreateRejectsInvalidInput(t *testing.T) {
	svc, pub := newTestService(t)

	in := validSetting()
	in.CurrencyCode = "usd"
	_, err := svc.Create(context.Background(), in, "")
	require.Error(t, err)
	assert.True(t, shared.IsInvalidInput(err))
	assert.Nil(t, pub.last())
}

func TestService_UpdateRequiresCurrentVersion(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validSetting(), "s1")
	require.NoError(t, err)

	change := *created
	change.CurrencySymbol = "€"
	updated, err := svc.Update(ctx, &change)
	require.NoError(t, err)
	assert.Equal(t, "€", updated.CurrencySymbol)
	assert.NotEqual(t, created.Version, updated.Version)

	event, ok := pub.last().(*SettingUpdatedEvent)
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"currencySymbol": "€"}, event.Changes)

	_, err = svc.Update(ctx, &change)
	require.Error(t, err)
	assert.True(t, document.IsVersionConflict(err), "got %v", err)
}

func TestService_UpdateMissing(t *testing.T) {
	svc, _ := newTestService(t)

	in := validSetting()
	in.ID = "missing"
	in.Version = 1
	_, err := svc.Update(context.Background(), in)
	assert.True(t, document.IsNotFound(err), "got %v", err)
}

func TestService_Patch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validSetting(), "s1")
	require.NoError(t, err)

	patched, err := svc.Patch(ctx, "s1", created.Version, []byte(`{"language":"fr","id":"other"}`))
	require.NoError(t, err)
	assert.Equal(t, "s1", patched.ID)
	assert.Equal(t, "fr", patched.Language)
	assert.Equal(t, "USD", patched.CurrencyCode)

	// patch against the version it was read at
	_, err = svc.Patch(ctx, "s1", created.Version, []byte(`{"language":"de"}`))
	assert.True(t, document.IsVersionConflict(err), "got %v", err)

	_, err = svc.Patch(ctx, "s1", patched.Version, []byte(`{"currencyCode":null}`))
	assert.True(t, shared.IsInvalidInput(err), "got %v", err)

	_, err = svc.Patch(ctx, "s1", patched.Version, []byte(`not json`))
	assert.True(t, shared.IsInvalidInput(err), "got %v", err)
}

func TestService_ListAndRemove(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		_, err := svc.Create(ctx, validSetting(), id)
		require.NoError(t, err)
	}

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, svc.Remove(ctx, "a"))
	event, ok := pub.last().(*SettingRemovedEvent)
	require.True(t, ok)
	assert.Equal(t, "a", event.SettingID)

	err = svc.Remove(ctx, "a")
	assert.True(t, document.IsNotFound(err))

	list, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)
}

func TestService_PublishFailureDoesNotFailWrite(t *testing.T) {
	svc, pub := newTestService(t)
	pub.err = errors.New("broker down")

	created, err := svc.Create(context.Background(), validSetting(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
}

func TestService_NilPublisher(t *testing.T) {
	repo, err := document.NewRepository(DocumentType, document.NewMemoryBackend(), document.WithLogger(logger.NewNop()))
	require.NoError(t, err)
	svc := NewService(repo, nil, logger.NewNop())

	_, err = svc.Create(context.Background(), validSetting(), "")
	assert.NoError(t, err)
}

func TestSetting_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Setting)
		valid  bool
	}{
		{"valid", func(*Setting) {}, true},
		{"short language", func(s *Setting) { s.Language = "e" }, false},
		{"long language", func(s *Setting) { s.Language = string(make([]rune, 36)) }, false},
		{"lower case currency", func(s *Setting) { s.CurrencyCode = "eur" }, false},
		{"empty symbol", func(s *Setting) { s.CurrencySymbol = "" }, false},
		{"multi-byte symbol", func(s *Setting) { s.CurrencySymbol = "€" }, true},
		{"empty avatar", func(s *Setting) { s.Avatar = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSetting()
			tt.mutate(s)
			err := s.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, shared.IsInvalidInput(err), "got %v", err)
			}
		})
	}
}

func TestFromDocument_IgnoresUnknownFields(t *testing.T) {
	s, err := FromDocument(&document.Document{
		ID:      "s1",
		Version: 5,
		Fields: document.Fields{
			"language":       "en",
			"currencyCode":   "USD",
			"currencySymbol": "$",
			"legacy":         true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, document.Version(5), s.Version)
	assert.Equal(t, "en", s.Language)
}
