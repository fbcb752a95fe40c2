// Package auth issues and checks the HS256 JWTs used by the HTTP and gRPC
// servers.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	restful "github.com/emicklei/go-restful/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"blogdesk/models"
)

// Request attributes set by the filters.
const (
	AttrUserID   = "user_id"
	AttrUsername = "username"
	AttrClaims   = "claims"
)

const (
	issuer   = "blogdesk"
	audience = "blogdesk-users"
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrExpiredToken   = errors.New("token is either expired or not active yet")
	ErrBadSignature   = errors.New("invalid token signature")
	ErrRevokedToken   = errors.New("token has been revoked")
	ErrInvalidToken   = errors.New("invalid token")
)

// CustomClaims represents the custom claims included in every token.
type CustomClaims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Authenticator signs tokens with a shared secret and checks them against
// a revocation store.
type Authenticator struct {
	key     []byte
	ttl     time.Duration
	revoked RevocationStore
}

func NewAuthenticator(secret string, ttl time.Duration, revoked RevocationStore) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if revoked == nil {
		revoked = NewMemoryRevocationStore()
	}
	return &Authenticator{key: []byte(secret), ttl: ttl, revoked: revoked}, nil
}

// GenerateToken creates a new JWT for the given user. Each token carries a
// random ID so it can be revoked on its own.
func (a *Authenticator) GenerateToken(user *models.User) (string, *CustomClaims, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
			Audience:  []string{audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(a.key)
	if err != nil {
		return "", nil, errors.Wrap(err, "sign token")
	}
	return tokenString, claims, nil
}

// ParseAndValidateToken : used for gRPC and filters
func (a *Authenticator) ParseAndValidateToken(ctx context.Context, tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.key, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, ErrMalformedToken
			case ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0:
				return nil, ErrExpiredToken
			case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
				return nil, ErrBadSignature
			}
		}
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	if claims.ID != "" {
		revoked, err := a.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, errors.Wrap(err, "check revocation")
		}
		if revoked {
			return nil, ErrRevokedToken
		}
	}
	return claims, nil
}

// Revoke blocks the token until it would have expired anyway.
func (a *Authenticator) Revoke(ctx context.Context, claims *CustomClaims) error {
	if claims == nil || claims.ID == "" {
		return ErrInvalidToken
	}
	until := time.Now().Add(a.ttl)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return a.revoked.Revoke(ctx, claims.ID, until)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}

// AuthFilter creates a go-restful FilterFunction that requires a valid JWT.
func (a *Authenticator) AuthFilter() restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		authHeader := req.HeaderParameter("Authorization")
		if authHeader == "" {
			writeUnauthorized(resp, "Authorization header required")
			return
		}
		if !a.authenticate(req, resp, authHeader) {
			return
		}
		chain.ProcessFilter(req, resp)
	}
}

// OptionalAuthFilter lets guests through but still rejects a bad token.
func (a *Authenticator) OptionalAuthFilter() restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		authHeader := req.HeaderParameter("Authorization")
		if authHeader != "" && !a.authenticate(req, resp, authHeader) {
			return
		}
		chain.ProcessFilter(req, resp)
	}
}

func (a *Authenticator) authenticate(req *restful.Request, resp *restful.Response, header string) bool {
	tokenString, err := BearerToken(header)
	if err != nil {
		writeUnauthorized(resp, "Invalid authorization header format")
		return false
	}
	claims, err := a.ParseAndValidateToken(req.Request.Context(), tokenString)
	if err != nil {
		writeUnauthorized(resp, err.Error())
		return false
	}
	req.SetAttribute(AttrUserID, claims.UserID)
	req.SetAttribute(AttrUsername, claims.Username)
	req.SetAttribute(AttrClaims, claims)
	return true
}

func writeUnauthorized(resp *restful.Response, message string) {
	_ = resp.WriteHeaderAndJson(http.StatusUnauthorized, map[string]string{"message": message}, restful.MIME_JSON)
}

// ClaimsFrom returns the claims stored by the filters, if any.
func ClaimsFrom(req *restful.Request) (*CustomClaims, bool) {
	claims, ok := req.Attribute(AttrClaims).(*CustomClaims)
	return claims, ok
}
