// Package auth verifies bearer tokens and puts the caller's user id in the
// request context. Tokens are issued elsewhere; this package only checks
// them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"moneywise/internal/core"
)

const userIDClaim = "user_id"

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

type contextKey struct{}

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	leeway time.Duration
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), leeway: 30 * time.Second}
}

// ParseTokenFromRequest extracts and validates the bearer token, returning
// the user it identifies.
func (v *Verifier) ParseTokenFromRequest(r *http.Request) (core.UserID, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return 0, ErrMissingToken
	}
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(tokenString) == "" {
		return 0, ErrMissingToken
	}
	return v.Verify(strings.TrimSpace(tokenString))
}

// Verify validates tokenString and returns its user_id claim.
func (v *Verifier) Verify(tokenString string) (core.UserID, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	raw, ok := claims[userIDClaim].(float64)
	if !ok || raw < 1 || raw != math.Trunc(raw) || raw > math.MaxInt64 {
		return 0, fmt.Errorf("%w: missing or malformed %s claim", ErrInvalidToken, userIDClaim)
	}
	return core.UserID(raw), nil
}

// Sign issues a token for user. Used by tests and the admin CLI.
func Sign(secret string, user core.UserID, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIDClaim: int64(user),
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}

// WithUser returns a context carrying user.
func WithUser(ctx context.Context, user core.UserID) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (core.UserID, bool) {
	user, ok := ctx.Value(contextKey{}).(core.UserID)
	return user, ok
}

// Middleware rejects requests without a valid token. unauthorized writes
// the rejection so the caller controls the response body.
func (v *Verifier) Middleware(unauthorized func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := v.ParseTokenFromRequest(r)
			if err != nil {
				unauthorized(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
