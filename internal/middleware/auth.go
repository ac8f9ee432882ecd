package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fitlytics/fitlytics/internal/auth"
	"github.com/fitlytics/fitlytics/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

//go:generate go run go.uber.org/mock/mockgen -source=auth.go -destination=mocks_test.go -package=middleware_test

type loginChecker interface {
	LoggedUserID(ctx context.Context, token string) (int, error)
}

type userIDContextKey struct{}

// ContextWithUserID attaches the authenticated user to the request context.
func ContextWithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext returns the authenticated user set by the auth middleware.
func UserIDFromContext(ctx context.Context) (int, bool) {
	userID, ok := ctx.Value(userIDContextKey{}).(int)
	return userID, ok
}

type AuthMiddlewareHandler struct {
	loginChecker loginChecker
	allowedPaths map[string]bool
}

func NewAuthMiddlewareHandler(loginChecker loginChecker) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		loginChecker: loginChecker,
		allowedPaths: map[string]bool{
			"/":                   true,
			"/api/health":         true,
			"/api/version":        true,
			"/api/users/register": true,
			"/api/users/login":    true,
		},
	}
}

// BearerToken extracts the session token from the Authorization header.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", "GET, POST, PUT, DELETE, OPTIONS")
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			if h.allowedPaths[r.URL.Path] {
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			token := BearerToken(r)
			if token == "" {
				log.Tracef("[missing token] [auth middleware] unauthorized => %s", r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "missing-auth-token")
				return
			}

			userID, err := h.loginChecker.LoggedUserID(ctx, token)
			if err != nil {
				if !errors.Is(err, auth.ErrNotLoggedIn) {
					log.Errorf("[failed login check] => %s: %s", r.URL.Path, err)
				} else {
					log.Tracef("[invalid token] [auth middleware] unauthorized => %s", r.URL.Path)
				}
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "not-logged")
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(ctx, userID)))
		})
	}
}
