package document

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
)

// failingBackend returns err from every call
type failingBackend struct {
	err   error
	calls int
}

func (f *failingBackend) Get(context.Context, string) (Record, error) {
	f.calls++
	return Record{}, f.err
}

func (f *failingBackend) Query(context.Context, string) ([]Record, error) {
	f.calls++
	return nil, f.err
}

func (f *failingBackend) Insert(context.Context, string, Fields, Durability) (Version, error) {
	f.calls++
	return 0, f.err
}

func (f *failingBackend) Replace(context.Context, string, Fields, Version, Durability) (Version, error) {
	f.calls++
	return 0, f.err
}

func (f *failingBackend) Remove(context.Context, string, Durability) error {
	f.calls++
	return f.err
}

func (f *failingBackend) Ping(context.Context) error {
	return f.err
}

func TestNewRepository_Validation(t *testing.T) {
	_, err := NewRepository("", NewMemoryBackend())
	assert.Error(t, err)

	_, err = NewRepository("setting", nil)
	assert.Error(t, err)

	_, err = NewRepository("setting", NewMemoryBackend(), WithDurability(Durability{Level: "all"}))
	assert.Error(t, err)

	repo, err := NewRepository("setting", NewMemoryBackend(), WithDurability(Durability{Level: DurabilityMajority, ReplicateTo: 1}))
	require.NoError(t, err)
	assert.Equal(t, "setting", repo.Type())
}

func TestRepository_InsertStripsMetadataAndSetsType(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	repo := newTestRepository(t, "setting", backend)

	input := Fields{
		"id":       "spoofed",
		"cas":      99,
		"version":  7,
		"type":     "user",
		"language": "fr",
	}

	doc, err := repo.Insert(ctx, input, "")
	require.NoError(t, err)
	assert.NotEqual(t, "spoofed", doc.ID)
	assert.Equal(t, "setting", doc.Type)
	assert.Equal(t, Fields{"language": "fr"}, doc.Fields)

	// caller's map is left untouched
	assert.Equal(t, "user", input["type"])
	assert.Len(t, input, 5)

	rec, err := backend.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, Fields{"type": "setting", "language": "fr"}, rec.Body)
}

func TestRepository_UpdateResetsType(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	repo := newTestRepository(t, "setting", backend)

	doc, err := repo.Insert(ctx, settingFields(), "")
	require.NoError(t, err)

	doc.Fields["type"] = "user"
	doc.Fields["cas"] = 1
	updated, err := repo.Update(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, "setting", updated.Type)
	assert.NotContains(t, updated.Fields, "cas")

	rec, err := backend.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "setting", rec.Body["type"])
	assert.NotContains(t, rec.Body, "cas")
}

func TestRepository_OtherTypesAreInvisible(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	settings := newTestRepository(t, "setting", backend)
	users := newTestRepository(t, "user", backend)

	user, err := users.Insert(ctx, Fields{"username": "alice"}, "u1")
	require.NoError(t, err)

	_, err = settings.FindByID(ctx, "u1")
	assert.True(t, IsNotFound(err), "got %v", err)

	_, err = settings.Update(ctx, user)
	assert.True(t, IsNotFound(err), "got %v", err)

	err = settings.Remove(ctx, "u1")
	assert.True(t, IsNotFound(err), "got %v", err)

	// still there for its own repository
	_, err = users.FindByID(ctx, "u1")
	assert.NoError(t, err)

	// an insert under the same id still collides
	_, err = settings.Insert(ctx, settingFields(), "u1")
	assert.True(t, IsAlreadyExists(err), "got %v", err)
}

func TestRepository_EmptyIDs(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{err: errors.New("must not be called")}
	repo := newTestRepository(t, "setting", backend)

	_, err := repo.FindByID(ctx, "")
	assert.True(t, IsNotFound(err))

	_, err = repo.Update(ctx, &Document{})
	assert.True(t, IsNotFound(err))

	_, err = repo.Update(ctx, nil)
	assert.True(t, IsNotFound(err))

	err = repo.Remove(ctx, "")
	assert.True(t, IsNotFound(err))

	assert.Zero(t, backend.calls)
}

func TestRepository_IDGenerator(t *testing.T) {
	repo, err := NewRepository("setting", NewMemoryBackend(),
		WithLogger(logger.NewNop()),
		WithIDGenerator(func() string { return "fixed-id" }),
	)
	require.NoError(t, err)

	doc, err := repo.Insert(context.Background(), settingFields(), "")
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", doc.ID)
}

func TestRepository_TranslatesBackendFailures(t *testing.T) {
	cause := errors.New("connection reset by peer")

	tests := []struct {
		name    string
		backend error
		check   func(error) bool
	}{
		{"key not found", ErrKeyNotFound, IsNotFound},
		{"wrapped key exists", errors.Join(errors.New("E11000"), ErrKeyExists), IsAlreadyExists},
		{"cas mismatch", ErrCASMismatch, IsVersionConflict},
		{"anything else", cause, IsBackend},
		{"deadline", context.DeadlineExceeded, IsBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepository(t, "setting", &failingBackend{err: tt.backend})

			_, err := repo.Insert(context.Background(), settingFields(), "id-1")
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestRepository_BackendErrorKeepsCause(t *testing.T) {
	cause := errors.New("connection reset by peer")
	repo := newTestRepository(t, "setting", &failingBackend{err: cause})

	_, err := repo.Find(context.Background())
	require.Error(t, err)
	assert.True(t, IsBackend(err))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection reset by peer")

	_, err = repo.FindByID(context.Background(), "x")
	assert.True(t, errors.Is(err, cause))
	assert.False(t, IsNotFound(err))
}

func TestRepository_LogsEachFailureOnce(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	repo, err := NewRepository("setting", &failingBackend{err: errors.New("boom")},
		WithLogger(&logger.Logger{Logger: zap.New(core)}))
	require.NoError(t, err)

	_, err = repo.Insert(context.Background(), settingFields(), "id-1")
	require.Error(t, err)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)

	ctxMap := entries[0].ContextMap()
	assert.Equal(t, OpInsert, ctxMap["operation"])
	assert.Equal(t, "setting", ctxMap["type"])
	assert.Equal(t, "id-1", ctxMap["id"])
	assert.Equal(t, "boom", ctxMap["error"])
}

func TestRepository_CancelledContext(t *testing.T) {
	repo := newTestRepository(t, "setting", NewMemoryBackend())
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := repo.Insert(ctx, settingFields(), "")
	require.Error(t, err)
	assert.True(t, IsBackend(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestVersion_ParseRoundTrip(t *testing.T) {
	v, err := ParseVersion(Version(42).String())
	require.NoError(t, err)
	assert.Equal(t, Version(42), v)

	_, err = ParseVersion("-1")
	assert.Error(t, err)
}

func TestDurability(t *testing.T) {
	assert.False(t, Durability{}.RequiresAck())
	assert.False(t, Durability{Level: DurabilityNone}.RequiresAck())
	assert.True(t, Durability{Level: DurabilityMajority}.RequiresAck())
	assert.True(t, Durability{ReplicateTo: 1}.RequiresAck())
	assert.True(t, Durability{PersistTo: 1}.RequiresAck())

	assert.Error(t, Durability{ReplicateTo: -1}.Validate())
	assert.Error(t, Durability{Timeout: -time.Second}.Validate())
	assert.NoError(t, Durability{Level: DurabilityPersistToMajority, Timeout: time.Second}.Validate())
}

func TestWriteConcernFor(t *testing.T) {
	assert.Nil(t, writeConcernFor(Durability{}))

	wc := writeConcernFor(Durability{Level: DurabilityMajority, Timeout: time.Second})
	require.NotNil(t, wc)
	assert.Equal(t, "majority", wc.W)
	assert.Nil(t, wc.Journal)

	wc = writeConcernFor(Durability{Level: DurabilityPersistToMajority})
	require.NotNil(t, wc.Journal)
	assert.True(t, *wc.Journal)

	wc = writeConcernFor(Durability{ReplicateTo: 2})
	assert.Equal(t, 3, wc.W)
}

func TestSynchronousCommitFor(t *testing.T) {
	assert.Equal(t, "", synchronousCommitFor(Durability{}))
	assert.Equal(t, "remote_write", synchronousCommitFor(Durability{Level: DurabilityMajority}))
	assert.Equal(t, "remote_write", synchronousCommitFor(Durability{ReplicateTo: 1}))
	assert.Equal(t, "on", synchronousCommitFor(Durability{Level: DurabilityPersistToMajority}))
	assert.Equal(t, "on", synchronousCommitFor(Durability{PersistTo: 1}))
}
