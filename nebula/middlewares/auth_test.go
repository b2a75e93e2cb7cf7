package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nebula/nebula/config"
	"nebula/nebula/sources/psql/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers map[int]*models.User

func (f fakeUsers) GetUserByID(_ context.Context, id int) (*models.User, error) {
	if id == 500 {
		return nil, errors.New("db down")
	}
	return f[id], nil
}

func newAuth() *Authenticator {
	cfg := config.Defaults()
	cfg.JWTSecret = "test-secret"
	return NewAuthenticator(cfg, fakeUsers{7: {ID: 7, Username: "alice"}})
}

func headerWithCookie(token string) http.Header {
	h := http.Header{}
	h.Add("Cookie", (&http.Cookie{Name: "token", Value: token}).String())
	return h
}

func TestAuthenticate_Cookie(t *testing.T) {
	token, err := GenerateToken("test-secret", 7, time.Hour)
	require.NoError(t, err)

	id, err := newAuth().Authenticate(context.Background(), headerWithCookie(token))
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 7, Username: "alice"}, id)
}

func TestAuthenticate_BearerFallback(t *testing.T) {
	token, err := GenerateToken("test-secret", 7, time.Hour)
	require.NoError(t, err)
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)

	id, err := newAuth().Authenticate(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, 7, id.UserID)
}

func TestAuthenticate_Failures(t *testing.T) {
	auth := newAuth()
	ctx := context.Background()

	_, err := auth.Authenticate(ctx, http.Header{})
	assert.ErrorIs(t, err, ErrMissingCredential)

	_, err = auth.Authenticate(ctx, headerWithCookie("not-a-jwt"))
	assert.ErrorIs(t, err, ErrInvalidCredential)

	wrongKey, _ := GenerateToken("other-secret", 7, time.Hour)
	_, err = auth.Authenticate(ctx, headerWithCookie(wrongKey))
	assert.ErrorIs(t, err, ErrInvalidCredential)

	expired, _ := GenerateToken("test-secret", 7, -time.Minute)
	_, err = auth.Authenticate(ctx, headerWithCookie(expired))
	assert.ErrorIs(t, err, ErrInvalidCredential)

	ghost, _ := GenerateToken("test-secret", 8, time.Hour)
	_, err = auth.Authenticate(ctx, headerWithCookie(ghost))
	assert.ErrorIs(t, err, ErrUnknownUser)

	broken, _ := GenerateToken("test-secret", 500, time.Hour)
	_, err = auth.Authenticate(ctx, headerWithCookie(broken))
	assert.ErrorContains(t, err, "db down")
}

func TestAuthMiddleware(t *testing.T) {
	auth := newAuth()
	var seen Identity
	h := AuthMiddleware(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rr.Body.String())

	token, _ := GenerateToken("test-secret", 7, time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "alice", seen.Username)
}
