package taskward

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ReplaceTokenSQL swaps the stored session token in a single statement; this
// is what enforces one live session per user. The row read-back keeps callers
// from having to re-select after rotation.
var ReplaceTokenSQL = `UPDATE "users" AS "usr"
SET
	"token" = ?,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByCurrentToken(ctx context.Context, token string) (*User, error)
	ReplaceToken(ctx context.Context, id uuid.UUID, token *string) (*User, error)
	ReplaceTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token *string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	SaveUser(ctx context.Context, user *User) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)

	record, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	return record, nil
}

func (a *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	record := &User{}

	// bun appends deleted_at IS NULL for soft-delete models on its own.
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.username = ?", strings.TrimSpace(username)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"username": username,
				})
		}
		return nil, err
	}

	return record, nil
}

// GetByCurrentToken resolves the user whose stored session token exactly
// matches token. A miss is a normal unauthenticated outcome and comes back as
// a record-not-found, never as a store fault.
func (a *users) GetByCurrentToken(ctx context.Context, token string) (*User, error) {
	record := &User{}

	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (a *users) ReplaceToken(ctx context.Context, id uuid.UUID, token *string) (*User, error) {
	return a.ReplaceTokenTx(ctx, a.db, id, token)
}

// ReplaceTokenTx overwrites the user's stored token; nil clears it (logout).
// Concurrent logins race on this column and the last writer wins.
func (a *users) ReplaceTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token *string) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, ReplaceTokenSQL, token, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return res[0], nil
}

func (a *users) ListUsers(ctx context.Context) ([]*User, error) {
	var records []*User

	err := a.db.NewSelect().
		Model(&records).
		Order("username ASC").
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []*User{}, nil
		}
		return nil, err
	}

	return records, nil
}

func (a *users) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	record := &User{}

	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id.String()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

// SaveUser writes the account columns a profile update is allowed to touch.
// Writing a deleted_at value through here is how accounts get soft-deleted.
func (a *users) SaveUser(ctx context.Context, user *User) (*User, error) {
	now := time.Now()
	user.UpdatedAt = &now

	res, err := a.db.NewUpdate().
		Model(user).
		Column("username", "password_hash", "deleted_at", "updated_at").
		Where("?TableAlias.id = ?", user.ID.String()).
		Exec(ctx)

	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": user.ID.String(),
			})
	}

	return user, nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		// Deterministic IDs from the unique username; fall back to random
		// when the derivation fails.
		if id, err := hashid.NewUUID(record.Username); err == nil {
			record.ID = id
		} else {
			record.ID = uuid.New()
		}
	}
}

// IsUniqueViolation reports whether err is a unique-constraint failure from
// the underlying driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
