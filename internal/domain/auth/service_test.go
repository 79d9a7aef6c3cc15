package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/IcodeNet/employee-scheduling-api/internal/domain/document"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/shared"
	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
)

func newTestService(t *testing.T, backend document.Backend) (*Service, *UserStore) {
	t.Helper()
	repo, err := document.NewRepository(DocumentType, backend, document.WithLogger(logger.NewNop()))
	require.NoError(t, err)
	store, err := NewUserStore(repo)
	require.NoError(t, err)

	hasher := NewBcryptVerifier(bcrypt.MinCost)
	strategy := NewLocalStrategy(store, hasher, logger.NewNop())
	tokens := NewJWTService("test-secret", "test-issuer", time.Hour)
	return NewService(store, hasher, strategy, tokens), store
}

func TestNewUserStore_RequiresUserRepository(t *testing.T) {
	repo, err := document.NewRepository("setting", document.NewMemoryBackend())
	require.NoError(t, err)

	_, err = NewUserStore(repo)
	assert.Error(t, err)

	_, err = NewUserStore(nil)
	assert.Error(t, err)
}

func TestService_RegisterAndLogin(t *testing.T) {
	svc, store := newTestService(t, document.NewMemoryBackend())
	ctx := context.Background()

	user, err := svc.Register(ctx, "  alice ", "wonderland")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.Version.IsZero())
	assert.NotEqual(t, "wonderland", user.PasswordHash)
	assert.False(t, user.CreatedAt.IsZero())

	found, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, found.Username)
	assert.True(t, user.CreatedAt.Equal(found.CreatedAt))

	token, loggedIn, err := svc.Login(ctx, "alice", "wonderland")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	_, _, err = svc.Login(ctx, "alice", "looking-glass")
	assert.True(t, IsInvalidCredentials(err))

	_, _, err = svc.Login(ctx, "mad-hatter", "wonderland")
	assert.True(t, IsInvalidCredentials(err))
}

func TestService_RegisterValidation(t *testing.T) {
	svc, _ := newTestService(t, document.NewMemoryBackend())
	ctx := context.Background()

	_, err := svc.Register(ctx, "al", "wonderland")
	assert.True(t, shared.IsInvalidInput(err))

	_, err = svc.Register(ctx, "alice", "short")
	assert.True(t, shared.IsInvalidInput(err))

	_, err = svc.Register(ctx, "alice", "wonderland")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "different")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrKindAlreadyExists)
}

func TestUserStore_IgnoresOtherDocumentTypes(t *testing.T) {
	backend := document.NewMemoryBackend()
	svc, store := newTestService(t, backend)
	ctx := context.Background()

	settings, err := document.NewRepository("setting", backend, document.WithLogger(logger.NewNop()))
	require.NoError(t, err)
	_, err = settings.Insert(ctx, document.Fields{"username": "alice"}, "")
	require.NoError(t, err)

	found, err := store.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, found)

	_, err = svc.Register(ctx, "alice", "wonderland")
	assert.NoError(t, err)
}

func TestJWTService(t *testing.T) {
	tokens := NewJWTService("secret", "issuer", time.Hour)
	user := &User{ID: "u1", Username: "alice"}

	token, err := tokens.GenerateToken(user)
	require.NoError(t, err)

	claims, err := tokens.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "issuer", claims.Issuer)

	refreshed, err := tokens.RefreshToken(token)
	require.NoError(t, err)
	_, err = tokens.ValidateToken(refreshed)
	assert.NoError(t, err)

	_, err = NewJWTService("other-secret", "issuer", time.Hour).ValidateToken(token)
	assert.True(t, shared.IsUnauthorized(err))

	_, err = NewJWTService("secret", "someone-else", time.Hour).ValidateToken(token)
	assert.True(t, shared.IsUnauthorized(err))

	expired, err := NewJWTService("secret", "issuer", -time.Minute).GenerateToken(user)
	require.NoError(t, err)
	_, err = tokens.ValidateToken(expired)
	assert.True(t, shared.IsUnauthorized(err))

	_, err = tokens.ValidateToken("garbage")
	assert.True(t, shared.IsUnauthorized(err))
}
