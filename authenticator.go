package taskward

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Register(ctx context.Context, username, password string) (*User, string, error)
	Login(ctx context.Context, username, password string) (*User, string, error)
	Logout(ctx context.Context, user *User) error
}

type Auther struct {
	repo   RepositoryManager
	tokens TokenService
	logger Logger
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, tokens TokenService) *Auther {
	return &Auther{
		repo:   repo,
		tokens: tokens,
		logger: defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	return s
}

// Register creates the user and immediately issues a session token, so a new
// account is logged in from its first response.
func (s *Auther) Register(ctx context.Context, username, password string) (*User, string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryValidation {
			return nil, "", err
		}
		s.logger.Error("Register hash password error: %v", err)
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Username:     username,
		PasswordHash: hash,
	}

	var token string
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.repo.Users().RegisterTx(ctx, tx, user)
		if err != nil {
			return err
		}

		token, err = s.tokens.Generate(NewIdentityFromUser(record))
		if err != nil {
			return err
		}

		if user, err = s.repo.Users().ReplaceTokenTx(ctx, tx, record.ID, &token); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, "", ErrUsernameTaken
		}

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, "", richErr
		}

		s.logger.Error("Register transaction error: %v", err)
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "user registration failed")
	}

	return user, token, nil
}

// Login verifies the credentials and rotates the stored session token. The
// previous token stops being honored the moment the new one lands.
func (s *Auther) Login(ctx context.Context, username, password string) (*User, string, error) {
	user, err := s.repo.Users().GetByUsername(ctx, username)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, "", ErrMismatchedHashAndPassword
		}
		s.logger.Error("Login user lookup error: %v", err)
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during verification")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return nil, "", ErrMismatchedHashAndPassword
		}
		s.logger.Error("Login compare hash error: %v", err)
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify password")
	}

	token, err := s.tokens.Generate(NewIdentityFromUser(user))
	if err != nil {
		s.logger.Error("Login token generation error: %v", err)
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue session token")
	}

	if user, err = s.repo.Users().ReplaceToken(ctx, user.ID, &token); err != nil {
		s.logger.Error("Login token persistence error: %v", err)
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session token")
	}

	return user, token, nil
}

// Logout clears the stored token; every token the user ever held is dead
// after this returns.
func (s *Auther) Logout(ctx context.Context, user *User) error {
	if user == nil {
		return ErrNotAuthorized
	}

	if _, err := s.repo.Users().ReplaceToken(ctx, user.ID, nil); err != nil {
		s.logger.Error("Logout token clear error: %v", err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear session token")
	}

	return nil
}
