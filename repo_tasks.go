package taskward

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Tasks interface {
	repository.Repository[*Task]

	CreateTask(ctx context.Context, task *Task) (*Task, error)
	CreateTaskTx(ctx context.Context, tx bun.IDB, task *Task) (*Task, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*Task, error)
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*Task, error)
	SaveForUser(ctx context.Context, task *Task) (*Task, error)
	SoftDeleteForUser(ctx context.Context, id, userID uuid.UUID) error
}

type tasks struct {
	repository.Repository[*Task]
	db *bun.DB
}

var (
	_ Tasks                        = (*tasks)(nil)
	_ repository.Repository[*Task] = (*tasks)(nil)
)

func NewTasksRepository(db *bun.DB) Tasks {
	repo := repository.NewRepository[*Task](db, repository.ModelHandlers[*Task]{
		NewRecord: func() *Task { return &Task{} },
		GetID: func(t *Task) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Task, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
	})

	return &tasks{
		Repository: repo,
		db:         db,
	}
}

func (a *tasks) CreateTask(ctx context.Context, task *Task) (*Task, error) {
	return a.CreateTaskTx(ctx, a.db, task)
}

func (a *tasks) CreateTaskTx(ctx context.Context, tx bun.IDB, task *Task) (*Task, error) {
	if task != nil && task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	return a.Repository.CreateTx(ctx, tx, task)
}

// ListForUser returns the user's live tasks; soft-deleted rows are excluded
// by the model's soft-delete column.
func (a *tasks) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Task, error) {
	var records []*Task

	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID.String()).
		Order("created_at ASC").
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []*Task{}, nil
		}
		return nil, err
	}

	return records, nil
}

// GetForUser scopes the lookup to the owner; a foreign task id behaves
// exactly like a missing one.
func (a *tasks) GetForUser(ctx context.Context, id, userID uuid.UUID) (*Task, error) {
	record := &Task{}

	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id.String()).
		Where("?TableAlias.user_id = ?", userID.String()).
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

// SaveForUser writes every mutable column of the task, so callers that want
// partial updates merge into a fetched row first.
func (a *tasks) SaveForUser(ctx context.Context, task *Task) (*Task, error) {
	now := time.Now()
	task.UpdatedAt = &now

	res, err := a.db.NewUpdate().
		Model(task).
		Column("title", "priority", "description", "completed_at", "updated_at").
		Where("?TableAlias.id = ?", task.ID.String()).
		Where("?TableAlias.user_id = ?", task.UserID.String()).
		Exec(ctx)

	if err != nil {
		return nil, err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": task.ID.String(),
			})
	}

	return task, nil
}

// SoftDeleteForUser stamps deleted_at; the row stays behind for audit and the
// unique/user scoping of live queries hides it.
func (a *tasks) SoftDeleteForUser(ctx context.Context, id, userID uuid.UUID) error {
	res, err := a.db.NewDelete().
		Model((*Task)(nil)).
		Where("?TableAlias.id = ?", id.String()).
		Where("?TableAlias.user_id = ?", userID.String()).
		Exec(ctx)

	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}
