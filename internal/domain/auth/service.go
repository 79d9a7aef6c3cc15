package auth

import (
	"context"
	"strings"
	"time"
)

// Service registers users and issues tokens for successful local logins
type Service struct {
	store    *UserStore
	hasher   *BcryptVerifier
	strategy *LocalStrategy
	tokens   *JWTService
	now      func() time.Time
}

// NewService wires the store, password hasher, strategy and token issuer
func NewService(store *UserStore, hasher *BcryptVerifier, strategy *LocalStrategy, tokens *JWTService) *Service {
	return &Service{
		store:    store,
		hasher:   hasher,
		strategy: strategy,
		tokens:   tokens,
		now:      time.Now,
	}
}

// Register creates a local user
func (s *Service) Register(ctx context.Context, username, password string) (*User, error) {
	name, err := NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	return s.store.Create(ctx, &User{
		Username:     name,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	})
}

// Login authenticates the credentials and returns a signed token
func (s *Service) Login(ctx context.Context, username, password string) (string, *User, error) {
	user, err := s.strategy.Authenticate(ctx, strings.TrimSpace(username), password)
	if err != nil {
		return "", nil, err
	}

	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// ValidateToken returns the claims of a token issued by Login
func (s *Service) ValidateToken(token string) (*JWTClaims, error) {
	return s.tokens.ValidateToken(token)
}
