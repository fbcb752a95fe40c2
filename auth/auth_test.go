package auth

import (
	"context"
	"encoding/json"
	"gorm.io/gorm"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	restful "github.com/emicklei/go-restful/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogdesk/models"
)

const testSecret = "test-secret"

func newTestAuthenticator(t *testing.T, store RevocationStore) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(testSecret, time.Hour, store)
	require.NoError(t, err)
	return a
}

func signed(t *testing.T, secret string, claims *CustomClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestNewAuthenticatorRejectsBadSettings(t *testing.T) {
	_, err := NewAuthenticator("", time.Hour, nil)
	assert.Error(t, err)
	_, err = NewAuthenticator("secret", 0, nil)
	assert.Error(t, err)
}

func TestGenerateAndParseToken(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthenticator(t, nil)

	tokenString, claims, err := a.GenerateToken(&models.User{Model: gorm.Model{ID: 7}, Username: "alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)

	parsed, err := a.ParseAndValidateToken(ctx, tokenString)
	require.NoError(t, err)
	assert.Equal(t, uint(7), parsed.UserID)
	assert.Equal(t, "alice", parsed.Username)
	assert.Equal(t, claims.ID, parsed.ID)

	_, second, err := a.GenerateToken(&models.User{Model: gorm.Model{ID: 7}, Username: "alice"})
	require.NoError(t, err)
	assert.NotEqual(t, claims.ID, second.ID)
}

func TestParseAndValidateTokenErrors(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthenticator(t, nil)
	valid := jwt.RegisteredClaims{ID: "jti-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	_, err := a.ParseAndValidateToken(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrMalformedToken)

	expired := &CustomClaims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}}
	_, err = a.ParseAndValidateToken(ctx, signed(t, testSecret, expired))
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = a.ParseAndValidateToken(ctx, signed(t, "other-secret", &CustomClaims{UserID: 1, RegisteredClaims: valid}))
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = a.ParseAndValidateToken(ctx, signed(t, testSecret, &CustomClaims{RegisteredClaims: valid}))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeWithMemoryStore(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthenticator(t, nil)

	tokenString, claims, err := a.GenerateToken(&models.User{Model: gorm.Model{ID: 1}, Username: "admin"})
	require.NoError(t, err)
	require.NoError(t, a.Revoke(ctx, claims))

	_, err = a.ParseAndValidateToken(ctx, tokenString)
	assert.ErrorIs(t, err, ErrRevokedToken)
	assert.ErrorIs(t, a.Revoke(ctx, &CustomClaims{}), ErrInvalidToken)
}

func TestMemoryRevocationStoreExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryRevocationStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Revoke(ctx, "a", now.Add(time.Minute)))
	require.NoError(t, s.Revoke(ctx, "past", now.Add(-time.Minute)))
	revoked, _ := s.IsRevoked(ctx, "a")
	assert.True(t, revoked)
	revoked, _ = s.IsRevoked(ctx, "past")
	assert.False(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, _ = s.IsRevoked(ctx, "a")
	assert.False(t, revoked)
	require.NoError(t, s.Revoke(ctx, "b", now.Add(time.Minute)))
	assert.Len(t, s.entries, 1, "expired entries are swept on write")
}

func TestRedisRevocationStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := newTestAuthenticator(t, NewRedisRevocationStore(client))
	tokenString, claims, err := a.GenerateToken(&models.User{Model: gorm.Model{ID: 3}, Username: "bob"})
	require.NoError(t, err)
	require.NoError(t, a.Revoke(ctx, claims))

	assert.True(t, mr.Exists(redisKeyPrefix+claims.ID))
	_, err = a.ParseAndValidateToken(ctx, tokenString)
	assert.ErrorIs(t, err, ErrRevokedToken)

	mr.FastForward(2 * time.Hour)
	revoked, err := NewRedisRevocationStore(client).IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)
	tok, err = BearerToken("bearer   xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)
	_, err = BearerToken("Basic abc")
	assert.Error(t, err)
	_, err = BearerToken("Bearer")
	assert.Error(t, err)
}

func filterContainer(a *Authenticator) *restful.Container {
	c := restful.NewContainer()
	ws := new(restful.WebService)
	ws.Produces(restful.MIME_JSON)
	whoami := func(req *restful.Request, resp *restful.Response) {
		id, _ := req.Attribute(AttrUserID).(uint)
		_ = resp.WriteAsJson(map[string]uint{"user_id": id})
	}
	ws.Route(ws.GET("/private").Filter(a.AuthFilter()).To(whoami))
	ws.Route(ws.GET("/public").Filter(a.OptionalAuthFilter()).To(whoami))
	c.Add(ws)
	return c
}

func TestFilters(t *testing.T) {
	a := newTestAuthenticator(t, nil)
	c := filterContainer(a)
	tokenString, _, err := a.GenerateToken(&models.User{Model: gorm.Model{ID: 5}, Username: "carol"})
	require.NoError(t, err)

	do := func(path, header string) (int, map[string]any) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		c.ServeHTTP(w, req)
		var body map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		return w.Code, body
	}

	code, body := do("/private", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Authorization header required", body["message"])

	code, body = do("/private", "Token "+tokenString)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid authorization header format", body["message"])

	code, body = do("/private", "Bearer "+tokenString)
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 5, body["user_id"])

	code, body = do("/public", "")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["user_id"])

	code, body = do("/public", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "malformed token", body["message"])
}
