package taskward

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeNotAuthorized      = "NOT_AUTHORIZED"
	textCodeInvalidCredentials = "INVALID_CREDENTIALS"
	textCodeTokenExpired       = "AUTH_TOKEN_EXPIRED"
	textCodeTokenMalformed     = "AUTH_TOKEN_MALFORMED"
	textCodeUsernameTaken      = "USERNAME_TAKEN"
)

// ErrNotAuthorized is the single message every failed authorization check
// collapses into. Callers must not be able to tell a missing header from a
// revoked, tampered, or expired token.
var ErrNotAuthorized = goerrors.New("not authorized, please login or create an account", goerrors.CategoryAuth).
	WithTextCode(textCodeNotAuthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is returned for a wrong password or an unknown
// username; both share one message so login failures do not leak which part
// was wrong.
var ErrMismatchedHashAndPassword = goerrors.New("incorrect username and/or password", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for a correctly signed token past its expiry.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail signature or structural
// checks.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrUsernameTaken maps the users.username unique constraint.
var ErrUsernameTaken = goerrors.New("username already taken", goerrors.CategoryConflict).
	WithTextCode(textCodeUsernameTaken).
	WithCode(goerrors.CodeBadRequest)

// ErrNotFound is the user-safe message for lookups by id that match nothing
// the caller owns.
var ErrNotFound = goerrors.New("not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrServerError replaces every infrastructure fault before it reaches a
// client. The original cause is logged, never serialized.
var ErrServerError = goerrors.New("something went wrong, please try again", goerrors.CategoryInternal).
	WithCode(goerrors.CodeInternal)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("password cannot be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// statusFromCategory maps categories to an HTTP status for errors that never
// had an explicit code set.
func statusFromCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return goerrors.CodeUnauthorized
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return goerrors.CodeBadRequest
	case goerrors.CategoryNotFound:
		return goerrors.CodeNotFound
	case goerrors.CategoryConflict:
		return goerrors.CodeConflict
	default:
		return goerrors.CodeInternal
	}
}
