package server

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/eventql/eventql-sub000/internal/config"
)

// ErrAuthFailed is returned for unknown users and wrong passwords.
var ErrAuthFailed = errors.New("authentication failed")

// Authenticator verifies basic auth credentials against bcrypt hashes.
type Authenticator struct {
	users map[string]string
}

// NewAuthenticator creates an authenticator for the configured users.
// It returns nil when no users are configured.
func NewAuthenticator(users []config.UserConfig) *Authenticator {
	if len(users) == 0 {
		return nil
	}
	a := &Authenticator{users: make(map[string]string, len(users))}
	for _, u := range users {
		a.users[strings.ToLower(u.Name)] = u.PasswordHash
	}
	return a
}

// Authenticate checks a username and password.
func (a *Authenticator) Authenticate(username, password string) error {
	hash, ok := a.users[strings.ToLower(username)]
	if !ok {
		return ErrAuthFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrAuthFailed
	}
	return nil
}

// HashPassword creates a bcrypt hash suitable for the users section of the
// configuration file.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

const bcryptCost = 12

// Middleware rejects requests without valid credentials.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || a.Authenticate(user, pass) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="csql"`)
			writeJSONError(w, http.StatusUnauthorized, "Unauthorized", ErrAuthFailed.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
