package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	jwttoken "bidhub/internal/jwt_token"
	id "bidhub/pkg/domain"
	"bidhub/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*jwttoken.Claims, error)
}

// RoleAdmin marks tokens allowed to call moderation endpoints.
const RoleAdmin = "admin"

type contextKeyUserID struct{}
type contextKeyRole struct{}

var (
	ContextKeyUserID = contextKeyUserID{}
	ContextKeyRole   = contextKeyRole{}
)

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(ContextKeyUserID).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetRole retrieves the authenticated role from the context.
func GetRole(ctx context.Context) string {
	role, ok := ctx.Value(ContextKeyRole).(string)
	if !ok {
		return ""
	}
	return role
}

// RequireAuth validates the bearer token and stores the caller's identity in
// the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				writeUnauthorized(w, "missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access, invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, claims.UserID)
			ctx = context.WithValue(ctx, ContextKeyRole, claims.Role)
			if actorID, err := id.ParseUserID(claims.UserID); err == nil {
				ctx = requestcontext.WithActorID(ctx, actorID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects authenticated callers whose token lacks the admin
// role. Must be mounted after RequireAuth.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if GetRole(ctx) != RoleAdmin {
				logger.WarnContext(ctx, "forbidden, admin role required",
					"user_id", GetUserID(ctx),
					"request_id", GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"admin role required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
