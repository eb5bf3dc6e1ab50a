package taskward

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model. Token holds the single live session token for the
// account; it is nil when the user is logged out.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Token         *string    `bun:"token,nullzero" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// HasToken reports whether the user currently holds a live session token.
func (u *User) HasToken() bool {
	return u != nil && u.Token != nil && *u.Token != ""
}

// Task is the task model. Tasks belong to exactly one user and are
// soft-deleted.
type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:tsk"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"-"`
	Title         string     `bun:"title,notnull" json:"title,omitempty"`
	Priority      *string    `bun:"priority,nullzero" json:"priority,omitempty"`
	Description   *string    `bun:"description,nullzero" json:"description,omitempty"`
	CompletedAt   *time.Time `bun:"completed_at,nullzero" json:"completed_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// MarkCompleted stamps the task as done.
func (t *Task) MarkCompleted() *Task {
	now := time.Now()
	t.CompletedAt = &now
	return t
}
