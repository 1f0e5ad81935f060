// Package auth issues and checks the bearer tokens that guard the admin API.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const issuer = "infrastatus"

// ErrInvalidToken covers malformed, expired and wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Auth holds authentication configuration
type Auth struct {
	User     string
	Hash     []byte
	Secret   []byte
	TokenTTL time.Duration
	now      func() time.Time
}

// NewAuth creates a new Auth instance
func NewAuth(user string, hash, secret []byte, ttl time.Duration) *Auth {
	return &Auth{
		User:     user,
		Hash:     hash,
		Secret:   secret,
		TokenTTL: ttl,
		now:      time.Now,
	}
}

// Enabled reports whether credentials are configured.
func (a *Auth) Enabled() bool {
	return a != nil && len(a.Hash) > 0 && len(a.Secret) > 0
}

// CheckCredentials compares the username in constant time and the password
// against the bcrypt hash.
func (a *Auth) CheckCredentials(username, password string) bool {
	if !a.Enabled() {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.User)) == 1
	passOK := bcrypt.CompareHashAndPassword(a.Hash, []byte(password)) == nil
	return userOK && passOK
}

// GenerateToken signs an HS256 token for username.
func (a *Auth) GenerateToken(username string) (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.TokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   username,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// VerifyToken returns the subject of a valid token.
func (a *Auth) VerifyToken(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.Secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(a.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject != a.User {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

type ctxKey struct{}

// UserFromContext returns the authenticated user set by RequireAuth.
func UserFromContext(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(ctxKey{}).(string)
	return u, ok
}

// RequireAuth is middleware that requires "Authorization: Bearer {token}".
func (a *Auth) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			unauthorized(w, "Admin API is disabled")
			return
		}
		header := r.Header.Get("Authorization")
		if header == "" {
			unauthorized(w, "Authorization token is required")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(w, "Authorization header format must be Bearer {token}")
			return
		}
		user, err := a.VerifyToken(parts[1])
		if err != nil {
			unauthorized(w, "Invalid or expired token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="infrastatus"`)
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, "{\"error\":\"unauthorized\",\"message\":%q}\n", msg)
}
