package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func verifyRequest(t *testing.T, m *JwtManager, token string) int {
	handler := m.Verifier()(m.Authenticator()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest("GET", "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	return w.Code
}

func TestJwtRoundTrip(t *testing.T) {
	m := NewJwtManager([]byte("test-secret"), time.Hour)

	token, err := m.CreateUserJwt(uuid.New())
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	assert.Equal(t, http.StatusOK, verifyRequest(t, m, token))
}

func TestExpiredJwtRejected(t *testing.T) {
	m := NewJwtManager([]byte("test-secret"), -time.Minute)

	token, err := m.CreateUserJwt(uuid.New())
	assert.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, verifyRequest(t, m, token))
}

func TestMissingOrForgedJwtRejected(t *testing.T) {
	m := NewJwtManager([]byte("test-secret"), time.Hour)

	assert.Equal(t, http.StatusUnauthorized, verifyRequest(t, m, ""))

	// Token signed with a different secret.
	other := NewJwtManager([]byte("other-secret"), time.Hour)
	token, err := other.CreateUserJwt(uuid.New())
	assert.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, verifyRequest(t, m, token))
}

func TestAuthenticatorErrorIsJson(t *testing.T) {
	m := NewJwtManager([]byte("test-secret"), time.Hour)

	handler := m.Verifier()(m.Authenticator()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"error"`)
}
