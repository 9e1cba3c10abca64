package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewService([]byte("test-signing-key"), map[string]string{"billing-worker": string(hash)})
}

func TestIssueAndVerifyToken(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.IssueToken(context.Background(), "billing-worker", "s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "billing-worker", subject)
}

func TestIssueTokenBadCredentials(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.IssueToken(context.Background(), "billing-worker", "wrong")
	assert.Error(t, err)

	_, err = svc.IssueToken(context.Background(), "unknown-client", "s3cret")
	assert.Error(t, err)
}

func TestVerifyRejectsForeignToken(t *testing.T) {
	svc := newTestService(t)
	other := NewService([]byte("different-key"), nil)

	token, err := svc.IssueToken(context.Background(), "billing-worker", "s3cret")
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	svc := newTestService(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	protected := Middleware(svc)(next)

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := svc.IssueToken(context.Background(), "billing-worker", "s3cret")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
