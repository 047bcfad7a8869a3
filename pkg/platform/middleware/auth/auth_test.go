package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"folio/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (v stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return v.claims, v.err
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	var actor int
	var called bool
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		called = true
		actor, _ = requestcontext.ActorID(r.Context())
	})

	t.Run("missing header", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		RequireAuth(stubValidator{}, logger)(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, called)
	})

	t.Run("invalid token", func(t *testing.T) {
		called = false
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		RequireAuth(stubValidator{err: errors.New("bad")}, logger)(next).ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"unauthorized","error_description":"Invalid or expired token"}`, w.Body.String())
		assert.False(t, called)
	})

	t.Run("valid token stores the actor", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer ok")
		w := httptest.NewRecorder()
		RequireAuth(stubValidator{claims: &JWTClaims{ActorID: 12}}, logger)(next).ServeHTTP(w, r)
		assert.True(t, called)
		assert.Equal(t, 12, actor)
	})
}
