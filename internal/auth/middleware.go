package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/examhall/examhall/internal/rbac"
)

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Middleware verifies the bearer token and attaches the caller's identity
// and role to the request context. Every protected route sits behind it.
func Middleware(s *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				writeAuthError(w, "missing bearer token")
				return
			}
			claims, err := s.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				writeAuthError(w, "invalid or expired token")
				return
			}
			ctx := WithIdentity(r.Context(), Identity{
				ID:    claims.UserID,
				Role:  claims.Role,
				Name:  claims.Name,
				Email: claims.Email,
			})
			ctx = rbac.WithRole(ctx, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
