package taskward_test

import (
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerTestUser(t *testing.T, app *fiber.App, username, password string) (string, string) {
	t.Helper()

	res := doJSON(t, app, fiber.MethodPost, "/users", "", fiber.Map{
		"username": username,
		"password": password,
	})
	require.Equal(t, fiber.StatusCreated, res.StatusCode)

	body := decodeBody(t, res)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "register response should carry a data envelope")

	token, _ := data["token"].(string)
	id, _ := data["id"].(string)
	require.NotEmpty(t, token)
	require.NotEmpty(t, id)

	return id, token
}

func TestCreateUserRoute(t *testing.T) {
	app, _ := newTestApp(t)

	t.Run("register returns a live session", func(t *testing.T) {
		_, token := registerTestUser(t, app, "ada", "secretpw")

		res := doJSON(t, app, fiber.MethodGet, "/tasks", token, nil)
		assert.Equal(t, fiber.StatusOK, res.StatusCode)
	})

	t.Run("duplicate username", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodPost, "/users", "", fiber.Map{
			"username": "ada",
			"password": "otherpw",
		})
		require.Equal(t, fiber.StatusBadRequest, res.StatusCode)
		assert.Equal(t, "username already taken", decodeBody(t, res)["message"])
	})

	t.Run("missing username", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodPost, "/users", "", fiber.Map{
			"password": "secretpw",
		})
		assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
	})

	t.Run("missing password", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodPost, "/users", "", fiber.Map{
			"username": "grace",
		})
		assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
	})
}

func TestLoginRoute(t *testing.T) {
	app, _ := newTestApp(t)
	registerTestUser(t, app, "ada", "secretpw")

	t.Run("valid credentials", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodPost, "/users/login", "", fiber.Map{
			"username": "ada",
			"password": "secretpw",
		})
		require.Equal(t, fiber.StatusOK, res.StatusCode)

		data := decodeBody(t, res)["data"].(map[string]any)
		assert.NotEmpty(t, data["token"])
		assert.Equal(t, "ada", data["username"])
	})

	t.Run("wrong password", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodPost, "/users/login", "", fiber.Map{
			"username": "ada",
			"password": "wrong",
		})
		require.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
		assert.Equal(t, "incorrect username and/or password", decodeBody(t, res)["message"])
	})

	t.Run("unknown user gets the same message", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodPost, "/users/login", "", fiber.Map{
			"username": "nobody",
			"password": "secretpw",
		})
		require.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
		assert.Equal(t, "incorrect username and/or password", decodeBody(t, res)["message"])
	})
}

func TestLoginRotatesToken(t *testing.T) {
	app, _ := newTestApp(t)
	_, oldToken := registerTestUser(t, app, "ada", "secretpw")

	res := doJSON(t, app, fiber.MethodPost, "/users/login", "", fiber.Map{
		"username": "ada",
		"password": "secretpw",
	})
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	newToken := decodeBody(t, res)["data"].(map[string]any)["token"].(string)

	t.Run("stale token is rejected", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodGet, "/tasks", oldToken, nil)
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	})

	t.Run("fresh token works", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodGet, "/tasks", newToken, nil)
		assert.Equal(t, fiber.StatusOK, res.StatusCode)
	})
}

func TestUnauthorizedResponsesAreIdentical(t *testing.T) {
	app, _ := newTestApp(t)
	_, token := registerTestUser(t, app, "ada", "secretpw")

	// log out so the token is revoked but still well formed
	res := doJSON(t, app, fiber.MethodPost, "/users/logout", token, nil)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	readBody := func(res *http.Response) string {
		raw, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		return string(raw)
	}

	noHeader := doJSON(t, app, fiber.MethodGet, "/tasks", "", nil)
	require.Equal(t, fiber.StatusUnauthorized, noHeader.StatusCode)

	revoked := doJSON(t, app, fiber.MethodGet, "/tasks", token, nil)
	require.Equal(t, fiber.StatusUnauthorized, revoked.StatusCode)

	forged := doJSON(t, app, fiber.MethodGet, "/tasks", "not.a.token", nil)
	require.Equal(t, fiber.StatusUnauthorized, forged.StatusCode)

	want := readBody(noHeader)
	assert.JSONEq(t, want, readBody(revoked))
	assert.JSONEq(t, want, readBody(forged))
	assert.Contains(t, want, "not authorized, please login or create an account")
}

func TestLogoutRoute(t *testing.T) {
	app, _ := newTestApp(t)
	_, token := registerTestUser(t, app, "ada", "secretpw")

	res := doJSON(t, app, fiber.MethodPost, "/users/logout", token, nil)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	t.Run("token is dead afterwards", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodPost, "/users/logout", token, nil)
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	})
}

func TestTaskRoutes(t *testing.T) {
	app, _ := newTestApp(t)
	_, token := registerTestUser(t, app, "ada", "secretpw")
	_, otherToken := registerTestUser(t, app, "bob", "secretpw")

	var taskID string

	t.Run("create", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodPost, "/tasks", token, fiber.Map{
			"title":       "write report",
			"priority":    "A",
			"description": "quarterly numbers",
		})
		require.Equal(t, fiber.StatusCreated, res.StatusCode)

		data := decodeBody(t, res)["data"].(map[string]any)
		taskID = data["id"].(string)
		require.NotEmpty(t, taskID)
		assert.Equal(t, "write report", data["title"])
		assert.Equal(t, "A", data["priority"])
	})

	t.Run("create without title", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodPost, "/tasks", token, fiber.Map{
			"description": "no title here",
		})
		assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
	})

	t.Run("create with long priority", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodPost, "/tasks", token, fiber.Map{
			"title":    "prioritized",
			"priority": "AA",
		})
		assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
	})

	t.Run("list", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodGet, "/tasks", token, nil)
		require.Equal(t, fiber.StatusOK, res.StatusCode)

		data := decodeBody(t, res)["data"].([]any)
		assert.Len(t, data, 1)
	})

	t.Run("get", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodGet, "/tasks/"+taskID, token, nil)
		require.Equal(t, fiber.StatusOK, res.StatusCode)

		data := decodeBody(t, res)["data"].(map[string]any)
		assert.Equal(t, "write report", data["title"])
	})

	t.Run("foreign user cannot see it", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodGet, "/tasks/"+taskID, otherToken, nil)
		require.Equal(t, fiber.StatusNotFound, res.StatusCode)
		assert.Equal(t, "not found", decodeBody(t, res)["message"])
	})

	t.Run("patch", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodPatch, "/tasks/"+taskID, token, fiber.Map{
			"priority": "B",
		})
		require.Equal(t, fiber.StatusOK, res.StatusCode)

		data := decodeBody(t, res)["data"].(map[string]any)
		assert.Equal(t, "B", data["priority"])
		assert.Equal(t, "write report", data["title"], "patch leaves other fields alone")
	})

	t.Run("put replaces everything", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodPut, "/tasks/"+taskID, token, fiber.Map{
			"title": "rewrite report",
		})
		require.Equal(t, fiber.StatusOK, res.StatusCode)

		data := decodeBody(t, res)["data"].(map[string]any)
		assert.Equal(t, "rewrite report", data["title"])
		assert.Nil(t, data["priority"], "absent fields are cleared on put")
	})

	t.Run("delete", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodDelete, "/tasks/"+taskID, token, nil)
		require.Equal(t, fiber.StatusOK, res.StatusCode)

		res = doJSON(t, app, fiber.MethodGet, "/tasks/"+taskID, token, nil)
		assert.Equal(t, fiber.StatusNotFound, res.StatusCode)
	})

	t.Run("unknown id", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodGet, "/tasks/11111111-1111-1111-1111-111111111111", token, nil)
		require.Equal(t, fiber.StatusNotFound, res.StatusCode)
		assert.Equal(t, "not found", decodeBody(t, res)["message"])
	})

	t.Run("malformed id", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodGet, "/tasks/not-a-uuid", token, nil)
		assert.Equal(t, fiber.StatusNotFound, res.StatusCode)
	})
}

func TestUserRoutes(t *testing.T) {
	app, _ := newTestApp(t)
	adaID, token := registerTestUser(t, app, "ada", "secretpw")
	registerTestUser(t, app, "bob", "secretpw")

	t.Run("list", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodGet, "/users", token, nil)
		require.Equal(t, fiber.StatusOK, res.StatusCode)

		data := decodeBody(t, res)["data"].([]any)
		assert.Len(t, data, 2)
	})

	t.Run("get", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodGet, "/users/"+adaID, token, nil)
		require.Equal(t, fiber.StatusOK, res.StatusCode)

		data := decodeBody(t, res)["data"].(map[string]any)
		assert.Equal(t, "ada", data["username"])
		assert.Nil(t, data["password_hash"])
		assert.Nil(t, data["token"])
	})

	t.Run("patch username", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodPatch, "/users/"+adaID, token, fiber.Map{
			"username": "ada.l",
		})
		require.Equal(t, fiber.StatusOK, res.StatusCode)

		data := decodeBody(t, res)["data"].(map[string]any)
		assert.Equal(t, "ada.l", data["username"])
	})

	t.Run("patch password rehashes", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodPatch, "/users/"+adaID, token, fiber.Map{
			"password": "newsecret",
		})
		require.Equal(t, fiber.StatusOK, res.StatusCode)

		login := doJSON(t, app, fiber.MethodPost, "/users/login", "", fiber.Map{
			"username": "ada.l",
			"password": "newsecret",
		})
		assert.Equal(t, fiber.StatusOK, login.StatusCode)
	})

	t.Run("requires authentication", func(t *testing.T) {
		res := doJSON(t, app, fiber.MethodGet, "/users", "", nil)
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	})
}
