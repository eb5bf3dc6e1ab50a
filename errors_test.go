package taskward_test

import (
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"

	"github.com/taskward/taskward"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		err     *goerrors.Error
		message string
		code    int
	}{
		{
			name:    "not authorized",
			err:     taskward.ErrNotAuthorized,
			message: "not authorized, please login or create an account",
			code:    goerrors.CodeUnauthorized,
		},
		{
			name:    "bad credentials",
			err:     taskward.ErrMismatchedHashAndPassword,
			message: "incorrect username and/or password",
			code:    goerrors.CodeUnauthorized,
		},
		{
			name:    "username taken",
			err:     taskward.ErrUsernameTaken,
			message: "username already taken",
			code:    goerrors.CodeBadRequest,
		},
		{
			name:    "not found",
			err:     taskward.ErrNotFound,
			message: "not found",
			code:    goerrors.CodeNotFound,
		},
		{
			name:    "server error",
			err:     taskward.ErrServerError,
			message: "something went wrong, please try again",
			code:    goerrors.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Message)
			assert.Equal(t, tt.code, tt.err.Code)
		})
	}
}

func TestIsTokenExpiredError(t *testing.T) {
	assert.False(t, taskward.IsTokenExpiredError(nil))
	assert.True(t, taskward.IsTokenExpiredError(taskward.ErrTokenExpired))
	assert.True(t, taskward.IsTokenExpiredError(fmt.Errorf("upstream: token is expired")))
	assert.False(t, taskward.IsTokenExpiredError(errors.New("token is malformed")))
}

func TestIsMalformedError(t *testing.T) {
	assert.False(t, taskward.IsMalformedError(nil))
	assert.True(t, taskward.IsMalformedError(taskward.ErrTokenMalformed))
	assert.True(t, taskward.IsMalformedError(errors.New("missing or malformed JWT")))
	assert.False(t, taskward.IsMalformedError(errors.New("token is expired")))
}
