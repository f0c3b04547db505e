package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/pkg/requestcontext"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func signToken(t *testing.T, claims jwt.MapClaims, secret []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	v, err := NewHMACValidator(testSecret)
	require.NoError(t, err)

	token := signToken(t, jwt.MapClaims{
		"sub": "alice@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	subject, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", subject)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	v, err := NewHMACValidator(testSecret)
	require.NoError(t, err)

	token := signToken(t, jwt.MapClaims{
		"sub": "alice@example.com",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}, testSecret)

	_, err = v.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	v, err := NewHMACValidator(testSecret)
	require.NoError(t, err)

	token := signToken(t, jwt.MapClaims{
		"sub": "alice@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	}, []byte("another-secret-another-secret-ab"))

	_, err = v.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRequiresSubject(t *testing.T) {
	v, err := NewHMACValidator(testSecret)
	require.NoError(t, err)

	token := signToken(t, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	_, err = v.ValidateToken(token)
	assert.Error(t, err)
}

func TestRequireAuth(t *testing.T) {
	v, err := NewHMACValidator(testSecret)
	require.NoError(t, err)

	var actor string
	handler := RequireAuth(v, slog.New(slog.NewTextHandler(io.Discard, nil)))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor = requestcontext.Actor(r.Context())
		}),
	)

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token.
	token := signToken(t, jwt.MapClaims{
		"sub": "alice@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	}, testSecret)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", actor)
}
