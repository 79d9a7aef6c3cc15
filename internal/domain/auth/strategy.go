package auth

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/IcodeNet/employee-scheduling-api/internal/domain/shared"
	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
	"github.com/IcodeNet/employee-scheduling-api/pkg/metrics"
)

// Failure reasons carried by CredentialsError
const (
	ReasonUnknownUser = "unknown_user"
	ReasonBadPassword = "bad_password"
)

// ErrInvalidCredentials is matched by every CredentialsError
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialsError reports a rejected login. The message is the same for
// every reason so clients cannot enumerate usernames.
type CredentialsError struct {
	Reason string
}

func (e *CredentialsError) Error() string {
	return ErrInvalidCredentials.Error()
}

func (e *CredentialsError) Unwrap() []error {
	return []error{ErrInvalidCredentials, shared.ErrKindUnauthorized}
}

// IsInvalidCredentials reports whether err is a rejected login
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// UserLookup finds a user by username. A missing user is (nil, nil); errors
// are reserved for lookup failures.
type UserLookup interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
}

// PasswordVerifier compares a plain-text password against a stored hash
type PasswordVerifier interface {
	Verify(hash, plain string) (bool, error)
}

// BcryptVerifier hashes and verifies passwords with bcrypt
type BcryptVerifier struct {
	cost int
}

// NewBcryptVerifier creates a verifier; cost 0 selects bcrypt.DefaultCost
func NewBcryptVerifier(cost int) *BcryptVerifier {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptVerifier{cost: cost}
}

// Hash returns the bcrypt hash of plain
func (b *BcryptVerifier) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether plain matches hash. A mismatch is not an error.
func (b *BcryptVerifier) Verify(hash, plain string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// passwordHasher is implemented by verifiers that can produce hashes
type passwordHasher interface {
	Hash(plain string) (string, error)
}

// LocalStrategy authenticates a username and password against a UserLookup
type LocalStrategy struct {
	users     UserLookup
	passwords PasswordVerifier
	logger    *logger.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewLocalStrategy creates a local username/password strategy
func NewLocalStrategy(users UserLookup, passwords PasswordVerifier, log *logger.Logger) *LocalStrategy {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &LocalStrategy{
		users:     users,
		passwords: passwords,
		logger:    log.WithComponent("local-strategy"),
	}
}

// Authenticate returns the user on success, a CredentialsError when the
// username or password is wrong, and lookup or verifier failures unchanged
func (s *LocalStrategy) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("error").Inc()
		return nil, err
	}
	if user == nil {
		// spend the same verification time as for a real user
		_, _ = s.passwords.Verify(s.unknownUserHash(), password)
		return nil, s.reject(username, ReasonUnknownUser)
	}

	ok, err := s.passwords.Verify(user.PasswordHash, password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("error").Inc()
		return nil, err
	}
	if !ok {
		return nil, s.reject(username, ReasonBadPassword)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return user, nil
}

// unknownUserHash is a hash at the verifier's own cost that no password matches
func (s *LocalStrategy) unknownUserHash() string {
	s.dummyOnce.Do(func() {
		hasher, ok := s.passwords.(passwordHasher)
		if !ok {
			return
		}
		if hash, err := hasher.Hash(shared.NewID().String()); err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func (s *LocalStrategy) reject(username, reason string) error {
	metrics.AuthAttempts.WithLabelValues(reason).Inc()
	s.logger.Info("Login rejected", zap.String("username", username), zap.String("reason", reason))
	return &CredentialsError{Reason: reason}
}
