package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/crewviz/reportd/internal/api/shared"
	"github.com/crewviz/reportd/internal/domain"
)

// Token validation errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// claims is the JWT payload issued by the identity service. The subject
// is the user ID; the optional scope claims restrict which department or
// project the caller may report over.
type claims struct {
	jwt.RegisteredClaims
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	ProjectID    *uuid.UUID `json:"project_id,omitempty"`
}

// AuthMiddleware validates bearer tokens and places the caller's user ID
// and scope in the request context. Tokens are issued elsewhere; this
// application only verifies them.
type AuthMiddleware struct {
	secret []byte
}

// NewAuthMiddleware creates an AuthMiddleware verifying HMAC-signed tokens.
func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(jwtSecret)}
}

// Authenticate validates the Authorization header and adds the user ID
// and scope to the request context for authorized requests.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		userID, scope, err := m.parseToken(parts[1])
		if err != nil {
			switch {
			case errors.Is(err, ErrExpiredToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
			default:
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
			}
			return
		}

		ctx := context.WithValue(r.Context(), shared.UserIDContextKey, userID)
		ctx = context.WithValue(ctx, shared.ScopeContextKey, scope)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// parseToken verifies the token signature and extracts the user ID and scope.
func (m *AuthMiddleware) parseToken(tokenString string) (uuid.UUID, domain.Scope, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, domain.Scope{}, ErrExpiredToken
		}
		return uuid.Nil, domain.Scope{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return uuid.Nil, domain.Scope{}, ErrInvalidToken
	}

	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, domain.Scope{}, fmt.Errorf("%w: malformed subject", ErrInvalidToken)
	}

	return userID, domain.Scope{
		DepartmentID: c.DepartmentID,
		ProjectID:    c.ProjectID,
	}, nil
}

// GetUserID extracts the authenticated user ID from the request context.
func GetUserID(r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	return userID, ok
}

// GetScope extracts the caller's report scope from the request context.
func GetScope(r *http.Request) (domain.Scope, bool) {
	scope, ok := r.Context().Value(shared.ScopeContextKey).(domain.Scope)
	return scope, ok
}
