package taskward

import (
	"context"

	"github.com/uptrace/bun"
)

// CreateSchema creates the users and tasks tables if they are missing. It is
// enough for the embedded sqlite deployments this service targets; anything
// bigger should run real migrations instead.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*User)(nil),
		(*Task)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	_, err := db.NewCreateIndex().
		Model((*User)(nil)).
		Index("idx_users_token").
		Column("token").
		IfNotExists().
		Exec(ctx)

	return err
}
