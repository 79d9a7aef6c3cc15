package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/IcodeNet/employee-scheduling-api/internal/api/jsonrpcx"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/auth"
	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
)

// UserContextKey is the key for storing user info in request context
type UserContextKey string

const (
	// UserIDContextKey stores the user ID in context
	UserIDContextKey UserContextKey = "user_id"
	// UsernameContextKey stores the username in context
	UsernameContextKey UserContextKey = "username"
)

// TokenValidator validates bearer tokens
type TokenValidator interface {
	ValidateToken(token string) (*auth.JWTClaims, error)
}

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	tokens TokenValidator
	logger *logger.Logger
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(tokens TokenValidator, logger *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		logger: logger.WithComponent("auth-middleware"),
	}
}

// RequireAuth rejects requests without a valid Bearer token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			m.logger.Debug("Missing or malformed Authorization header")
			jsonrpcx.WithError(r, nil, jsonrpcx.Unauthorized, "Missing or invalid Authorization header")
			return
		}

		claims, err := m.tokens.ValidateToken(token)
		if err != nil {
			m.logger.Debug("Invalid JWT token", zap.Error(err))
			jsonrpcx.WithError(r, nil, jsonrpcx.Unauthorized, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.UserID, claims.Username)))
	})
}

// RequireSSEAuth authenticates event streams. Browsers cannot set headers on
// EventSource, so the token may also arrive as the "token" query parameter.
func (m *AuthMiddleware) RequireSSEAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		claims, err := m.tokens.ValidateToken(token)
		if err != nil {
			m.logger.Debug("Invalid SSE token", zap.Error(err))
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.UserID, claims.Username)))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// WithUser stores the authenticated user in ctx
func WithUser(ctx context.Context, userID, username string) context.Context {
	ctx = context.WithValue(ctx, UserIDContextKey, userID)
	return context.WithValue(ctx, UsernameContextKey, username)
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(string)
	return userID, ok && userID != ""
}

// GetUsername extracts the username from request context
func GetUsername(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(UsernameContextKey).(string)
	return name, ok
}
