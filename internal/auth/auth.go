// Package auth provides session handling and the login gate for HTTP
// requests. A successful login issues a signed JWT carrying the username,
// stored in a cookie; the gate middleware redirects unauthenticated requests
// to the login page without invoking the wrapped handler.
//
// Passwords are stored as bcrypt digests and compared as digests. The source
// system compared plaintext strings; hashing is a deliberate deviation.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/qrvault/internal/logger"
)

// Auth issues and validates session cookies.
type Auth struct {
	// sessionCookieName is the name of the cookie used to store the JWT.
	sessionCookieName string

	// sessionSigningSecretKey is the key used to sign JWTs.
	sessionSigningSecretKey []byte

	// loginPath is where unauthenticated requests are redirected.
	loginPath string
}

// Claims represents the JWT claims used by the system.
// It embeds standard JWT claims and adds the session identity marker.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// UsernameKey is the context key holding the authenticated username.
const UsernameKey ContextKey = "username"

func New(
	sessionCookieName string,
	sessionSigningSecretKey []byte,
	loginPath string,
) *Auth {
	return &Auth{
		sessionCookieName:       sessionCookieName,
		sessionSigningSecretKey: sessionSigningSecretKey,
		loginPath:               loginPath,
	}
}

// HashPassword returns the bcrypt digest of a plaintext password.
func HashPassword(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("in internal/auth/auth.go/HashPassword(): error while `bcrypt.GenerateFromPassword()` calling: %w", err)
	}

	return string(digest), nil
}

// CheckPassword reports whether password matches the stored bcrypt digest.
func CheckPassword(passwordHash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) == nil
}

// OpenSession issues a signed session cookie for username.
func (a *Auth) OpenSession(response http.ResponseWriter, username string) error {
	JWTString, err := a.buildJWTString(&Claims{Username: username})
	if err != nil {
		return fmt.Errorf("in internal/auth/auth.go/OpenSession(): error while `a.buildJWTString()` calling: %w", err)
	}

	http.SetCookie(
		response,
		&http.Cookie{
			Name:     a.sessionCookieName,
			Value:    JWTString,
			Path:     "/",
			HttpOnly: true,
		},
	)

	return nil
}

// CloseSession expires the session cookie. This is the only way a session
// ends besides the client discarding the cookie.
func (a *Auth) CloseSession(response http.ResponseWriter) {
	http.SetCookie(
		response,
		&http.Cookie{
			Name:     a.sessionCookieName,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
		},
	)
}

// RequireUser is the session gate: it admits requests whose session cookie
// carries a valid identity marker, placing the username into the request
// context, and redirects everything else to the login page.
func (a *Auth) RequireUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		username, ok := a.usernameFromRequest(request)
		if !ok {
			http.Redirect(response, request, a.loginPath, http.StatusFound)
			return
		}

		ctx := context.WithValue(request.Context(), UsernameKey, username)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// UsernameFromContext extracts the authenticated username placed into the
// context by RequireUser.
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)

	return username, ok && username != ""
}

// CurrentUsername reports the session identity without gating: it returns
// the username when the request carries a valid session cookie, for pages
// that render differently for logged-in visitors.
func (a *Auth) CurrentUsername(request *http.Request) (string, bool) {
	return a.usernameFromRequest(request)
}

func (a *Auth) usernameFromRequest(request *http.Request) (string, bool) {
	cookie, err := request.Cookie(a.sessionCookieName)
	if err != nil {
		return "", false
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		cookie.Value,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.sessionSigningSecretKey, nil
		},
	)
	if err != nil || !token.Valid {
		logger.Log.Debugln("invalid session token: ", zap.Error(err))
		return "", false
	}

	return claims.Username, claims.Username != ""
}

func (a *Auth) buildJWTString(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, *claims)

	tokenString, err := token.SignedString(a.sessionSigningSecretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}
