package bearerware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-repository-bun"

	"github.com/taskward/taskward"
)

// ErrMissingOrMalformed signals that no usable bearer token was found in the
// request. It never reaches a client as-is; the middleware collapses it into
// the generic unauthorized response.
var ErrMissingOrMalformed = errors.New("missing or malformed bearer token")

// SessionStore resolves the user that currently owns a session token.
// This mirrors the Users.GetByCurrentToken method from the taskward package.
type SessionStore interface {
	GetByCurrentToken(ctx context.Context, token string) (*taskward.User, error)
}

// TokenValidator verifies token signatures and registered claims.
// This mirrors the TokenService.Validate method from the taskward package.
type TokenValidator interface {
	Validate(tokenString string) (taskward.AuthClaims, error)
}

type Config struct {
	// Filter skips the middleware when it returns true
	Filter func(*fiber.Ctx) bool
	// ErrorHandler renders failures; the default hands the error to the
	// app level error handler
	ErrorHandler fiber.ErrorHandler
	// Store is required; it holds the current session tokens
	Store SessionStore
	// TokenValidator is required for token validation
	TokenValidator TokenValidator
	// ContextKey is the fiber locals key for the resolved user
	ContextKey string
	// AuthScheme expected in the Authorization header
	AuthScheme string

	Logger taskward.Logger
}

// New builds the authorization middleware. The order of checks is fixed:
// extract the bearer token, look it up in the session store, and only then
// verify the signature. Running the lookup first means a revoked token, a
// forged token, and a missing header are indistinguishable from outside;
// every one of them gets the same 401 body.
func New(config ...Config) fiber.Handler {
	cfg := configDefault(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := TokenFromHeader(c, cfg.AuthScheme)
		if err != nil {
			return cfg.ErrorHandler(c, taskward.ErrNotAuthorized)
		}

		user, err := cfg.Store.GetByCurrentToken(c.UserContext(), raw)
		if err != nil && !repository.IsRecordNotFound(err) {
			cfg.Logger.Error("session lookup error: %v", err)
			return cfg.ErrorHandler(c, taskward.ErrServerError)
		}

		// The signature check runs even when the lookup missed, so a
		// revoked token and a forged one cost the same and fail the same.
		if _, verr := cfg.TokenValidator.Validate(raw); verr != nil {
			cfg.Logger.Debug("token validation failed: %v", verr)
			return cfg.ErrorHandler(c, taskward.ErrNotAuthorized)
		}

		if user == nil || err != nil {
			return cfg.ErrorHandler(c, taskward.ErrNotAuthorized)
		}

		c.Locals(cfg.ContextKey, user)
		c.SetUserContext(taskward.WithContext(c.UserContext(), user))

		return c.Next()
	}
}

// TokenFromHeader extracts the raw token from the Authorization header,
// matching the scheme case-insensitively.
func TokenFromHeader(c *fiber.Ctx, authScheme string) (string, error) {
	auth := c.Get(fiber.HeaderAuthorization)
	l := len(authScheme)

	if len(auth) > l+1 && strings.EqualFold(auth[:l], authScheme) {
		token := strings.TrimSpace(auth[l+1:])
		if token != "" {
			return token, nil
		}
	}

	return "", ErrMissingOrMalformed
}

func configDefault(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Store == nil {
		panic("AUTH: bearer middleware configuration: Store is required.")
	}

	if cfg.TokenValidator == nil {
		panic("AUTH: bearer middleware configuration: TokenValidator is required.")
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			return err
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = taskward.ContextKeyUser
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	if cfg.Logger == nil {
		cfg.Logger = defLogger{}
	}

	return cfg
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] BEARER "+format+"\n", args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] BEARER "+format+"\n", args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] BEARER "+format+"\n", args...)
}
