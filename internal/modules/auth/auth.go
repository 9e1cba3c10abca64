package auth

import (
	"context"
	"net/http"
	"strings"
)

// Service defines the interface for API authentication business logic.
type Service interface {
	// IssueToken exchanges API client credentials for a short-lived bearer token.
	IssueToken(ctx context.Context, clientID, clientSecret string) (string, error)
	// Verify parses a bearer token and returns the client it was issued to.
	Verify(tokenString string) (string, error)
}

// Middleware rejects requests that do not carry a valid bearer token.
func Middleware(s Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}
			if _, err := s.Verify(token); err != nil {
				http.Error(w, `{"error":"invalid bearer token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
