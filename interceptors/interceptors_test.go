package interceptors

import (
	"context"
	"gorm.io/gorm"
	"testing"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"blogdesk/auth"
	"blogdesk/models"
)

func newAuthenticator(t *testing.T) *auth.Authenticator {
	t.Helper()
	authn, err := auth.NewAuthenticator("interceptor-secret", time.Hour, nil)
	require.NoError(t, err)
	return authn
}

func withToken(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))
}

func TestAuthInterceptor(t *testing.T) {
	authn := newAuthenticator(t)
	intercept := AuthInterceptor(authn)
	protected := &grpc.UnaryServerInfo{FullMethod: "/blogdesk.PostService/List"}

	var gotID uint
	var gotName string
	handler := func(ctx context.Context, req any) (any, error) {
		gotID, _ = GetUserIDFromContext(ctx)
		gotName, _ = GetUsernameFromContext(ctx)
		return "ok", nil
	}

	_, err := intercept(context.Background(), nil, protected, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = intercept(withToken("garbage"), nil, protected, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	token, claims, err := authn.GenerateToken(&models.User{Model: gorm.Model{ID: 7}, Username: "alice"})
	require.NoError(t, err)
	resp, err := intercept(withToken(token), nil, protected, handler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, uint(7), gotID)
	assert.Equal(t, "alice", gotName)

	require.NoError(t, authn.Revoke(context.Background(), claims))
	_, err = intercept(withToken(token), nil, protected, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestAuthInterceptorSkipsPublicServices(t *testing.T) {
	intercept := AuthInterceptor(newAuthenticator(t))
	called := 0
	handler := func(ctx context.Context, req any) (any, error) {
		called++
		_, ok := GetUserIDFromContext(ctx)
		assert.False(t, ok)
		return nil, nil
	}

	for _, method := range []string{
		"/grpc.health.v1.Health/Check",
		"/grpc.reflection.v1.ServerReflection/ServerReflectionInfo",
	} {
		_, err := intercept(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: method}, handler)
		assert.NoError(t, err, method)
	}
	assert.Equal(t, 2, called)
}

func TestInterceptorLoggerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := InterceptorLogger(zap.New(core))
	ctx := context.Background()

	l.Log(ctx, logging.LevelInfo, "finished call", "grpc.code", "OK", "grpc.method", "Check", "dangling")
	l.Log(ctx, logging.LevelError, "failed call", 42, "not-a-key")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, map[string]any{"grpc.code": "OK", "grpc.method": "Check"}, entries[0].ContextMap())
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Empty(t, entries[1].Context)
}
