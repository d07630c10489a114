package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const userKey contextKey = "user"

type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleGuest || r == RoleUser || r == RoleAdmin
}

// User is the authenticated caller. ID scopes guidelines, images and documents.
type User struct {
	ID   string
	Role Role
}

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(token string) (User, bool)
}

// APIKeys authenticates static keys (key -> user).
type APIKeys map[string]User

func (k APIKeys) Authenticate(token string) (User, bool) {
	// constant-time comparison to prevent timing attacks
	var found User
	ok := false
	for key, u := range k {
		if subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1 {
			found, ok = u, true
		}
	}
	return found, ok
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWT validates HS256 tokens carrying sub and role.
type JWT struct {
	Secret []byte
}

func (j JWT) Authenticate(token string) (User, bool) {
	if len(j.Secret) == 0 {
		return User{}, false
	}
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return j.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid || claims.Subject == "" {
		return User{}, false
	}
	role := Role(claims.Role)
	if !role.Valid() {
		role = RoleUser
	}
	return User{ID: claims.Subject, Role: role}, true
}

// Sign issues a token for the user, used by tooling and tests.
func (j JWT) Sign(u User, ttl time.Duration) (string, error) {
	if len(j.Secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := Claims{
		Role: string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.Secret)
}

// Chain tries each authenticator in order.
type Chain []Authenticator

func (c Chain) Authenticate(token string) (User, bool) {
	for _, a := range c {
		if a == nil {
			continue
		}
		if u, ok := a.Authenticate(token); ok {
			return u, true
		}
	}
	return User{}, false
}

// RequireUser validates the Authorization header and stores the user in context
func RequireUser(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeAuthError(w, "missing Authorization header")
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if token == "" {
				writeAuthError(w, "invalid Authorization header format")
				return
			}

			u, ok := auth.Authenticate(token)
			if !ok {
				writeAuthError(w, "invalid credentials")
				return
			}
			if err := ValidateUserID(u.ID); err != nil {
				writeAuthError(w, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

func WithUser(ctx context.Context, u User) context.Context {
	if entry, ok := ctx.Value(logKey).(*requestLog); ok {
		entry.user = u.ID
	}
	return context.WithValue(ctx, userKey, u)
}

// CurrentUser extracts the user from context
func CurrentUser(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":%q}`, msg)
}
