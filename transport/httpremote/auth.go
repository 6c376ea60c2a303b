package httpremote

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// sessionClaims is the token payload the reference server accepts. The
// authentication flow itself is external; the server only verifies that a
// session token is present and valid.
type sessionClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

type contextKey string

const userIDKey contextKey = "httpremote.userID"

// NewSessionToken mints an HS256 session token for the given user. Used by
// the CLI and by tests standing up the reference server.
func NewSessionToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	claims := sessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			Issuer:    "fitlocker",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// requireSession rejects requests without a valid bearer token.
func requireSession(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token", "")
				return
			}

			claims := &sessionClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid session token", "")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionUserID returns the user id carried by the validated token.
func sessionUserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
