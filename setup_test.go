package taskward_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/taskward/taskward"
	"github.com/taskward/taskward/middleware/bearerware"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	// one connection so every query sees the same in-memory database
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	require.NoError(t, taskward.CreateSchema(context.Background(), db))

	return db
}

func newTestTokenService(expirationHours int) taskward.TokenService {
	return taskward.NewTokenService([]byte("test-signing-key"), expirationHours, "taskward-test", nil)
}

func newTestApp(t *testing.T) (*fiber.App, taskward.RepositoryManager) {
	t.Helper()

	db := newTestDB(t)
	repo := taskward.NewRepositoryManager(db)
	tokens := newTestTokenService(1)
	auther := taskward.NewAuthenticator(repo, tokens)

	protected := bearerware.New(bearerware.Config{
		Store:          repo.Users(),
		TokenValidator: tokens,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: taskward.NewErrorHandler(nil),
	})

	taskward.NewController(auther, repo).RegisterRoutes(app, protected)

	return app, repo
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	res, err := app.Test(req, -1)
	require.NoError(t, err)

	return res
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()

	out := map[string]any{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}
