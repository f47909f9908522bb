// Package auth verifies HTTP Basic credentials against argon2id hashes.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alexedwards/argon2id"

	"github.com/Sentinel-Gate/wiregate/pkg/http1"
)

// ErrUnknownHashType is returned when a stored hash is not argon2id PHC.
var ErrUnknownHashType = errors.New("unknown hash type")

// DefaultRealm is sent in WWW-Authenticate challenges.
const DefaultRealm = "wiregate"

// argon2idParams defines OWASP minimum parameters for Argon2id.
// Memory: 46 MiB, Iterations: 1, Parallelism: 1
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024, // 47 MiB (OWASP minimum: 46 MiB)
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashPassword returns an Argon2id hash of password in PHC format.
// Format: $argon2id$v=19$m=47104,t=1,p=1$<salt>$<hash>
func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, argon2idParams)
}

// VerifyPassword checks password against a stored PHC hash.
func VerifyPassword(password, storedHash string) (bool, error) {
	if !strings.HasPrefix(storedHash, "$argon2id$") {
		return false, ErrUnknownHashType
	}
	return safeArgon2idCompare(password, storedHash)
}

// safeArgon2idCompare wraps argon2id.ComparePasswordAndHash with panic recovery.
// The underlying argon2 library panics on hashes with invalid parameters
// (e.g. t=0 rounds, p=0 parallelism).
func safeArgon2idCompare(password, storedHash string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(password, storedHash)
}

// BasicAuthenticator holds users and their password hashes.
type BasicAuthenticator struct {
	users  map[string]string
	realm  string
	logger *slog.Logger
}

// Option configures a BasicAuthenticator.
type Option func(*BasicAuthenticator)

// WithRealm sets the challenge realm.
func WithRealm(realm string) Option {
	return func(a *BasicAuthenticator) {
		a.realm = realm
	}
}

// WithLogger sets the logger used for verification failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *BasicAuthenticator) {
		a.logger = logger
	}
}

// NewBasicAuthenticator creates an authenticator for users, a map of user
// name to argon2id hash.
func NewBasicAuthenticator(users map[string]string, opts ...Option) *BasicAuthenticator {
	a := &BasicAuthenticator{
		users: make(map[string]string, len(users)),
		realm: DefaultRealm,
	}
	for name, hash := range users {
		a.users[name] = hash
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Verify reports whether password is correct for user.
func (a *BasicAuthenticator) Verify(user, password string) bool {
	hash, ok := a.users[user]
	if !ok {
		return false
	}
	match, err := VerifyPassword(password, hash)
	if err != nil {
		a.logger.Warn("password hash unusable", "user", user, "error", err)
		return false
	}
	return match
}

// Authenticate checks the request's Basic credentials against the allowed
// users. An empty allowed list accepts any known user.
func (a *BasicAuthenticator) Authenticate(r *http1.Request, allowed []string) (string, bool) {
	user, password, ok := r.BasicAuth()
	if !ok {
		return "", false
	}
	if len(allowed) > 0 && !contains(allowed, user) {
		return user, false
	}
	return user, a.Verify(user, password)
}

// Wrap returns a handler that serves h only to authenticated allowed
// users and answers everyone else with 401 and a Basic challenge. The
// connection stays usable after a challenge.
func (a *BasicAuthenticator) Wrap(allowed []string, h http1.Handler) http1.Handler {
	return http1.HandlerFunc(func(r *http1.Request) error {
		user, ok := a.Authenticate(r, allowed)
		if ok {
			return h.Serve(r)
		}
		a.logger.Debug("basic auth rejected", "path", r.Path(), "user", user)
		return a.challenge(r)
	})
}

func (a *BasicAuthenticator) challenge(r *http1.Request) error {
	if err := r.SendInit(401, "Unauthorized", "text/plain"); err != nil {
		return err
	}
	if err := r.SendHead(fmt.Sprintf("WWW-Authenticate: Basic realm=%q", a.realm)); err != nil {
		return err
	}
	if err := r.SendHead("Content-Length: 0"); err != nil {
		return err
	}
	return r.Send(nil)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
