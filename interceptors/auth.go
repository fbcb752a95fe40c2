package interceptors

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	grpcauth "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"blogdesk/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey is the context key for user ID.
	UserIDKey contextKey = "user_id"
	// UsernameKey is the context key for username.
	UsernameKey contextKey = "username"
)

// publicServices are reachable without a token: load balancers and
// service discovery probe health, and grpcurl needs reflection.
var publicServices = []string{"grpc.health.", "grpc.reflection."}

func requiresAuth(_ context.Context, meta interceptors.CallMeta) bool {
	for _, prefix := range publicServices {
		if strings.HasPrefix(meta.Service, prefix) {
			return false
		}
	}
	return true
}

// AuthFunc validates the bearer token in the "authorization" metadata and
// stores the caller in the context.
func AuthFunc(authn *auth.Authenticator) grpcauth.AuthFunc {
	return func(ctx context.Context) (context.Context, error) {
		token, err := grpcauth.AuthFromMD(ctx, "bearer")
		if err != nil {
			return nil, err
		}
		claims, err := authn.ParseAndValidateToken(ctx, token)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
		}
		ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
		return context.WithValue(ctx, UsernameKey, claims.Username), nil
	}
}

// AuthInterceptor returns a unary server interceptor for JWT authentication.
func AuthInterceptor(authn *auth.Authenticator) grpc.UnaryServerInterceptor {
	return selector.UnaryServerInterceptor(grpcauth.UnaryServerInterceptor(AuthFunc(authn)), selector.MatchFunc(requiresAuth))
}

// AuthStreamInterceptor is AuthInterceptor for streaming calls.
func AuthStreamInterceptor(authn *auth.Authenticator) grpc.StreamServerInterceptor {
	return selector.StreamServerInterceptor(grpcauth.StreamServerInterceptor(AuthFunc(authn)), selector.MatchFunc(requiresAuth))
}

// GetUserIDFromContext extracts the user ID from the context.
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok
}

// GetUsernameFromContext extracts the username from the context.
func GetUsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}
