package taskward

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// ContextKeyUser is the fiber locals key the authorization middleware stores
// the resolved user under.
const ContextKeyUser = "user"

// Controller wires the HTTP surface: credential routes, user management, and
// the task CRUD. Handlers return errors; rendering happens in the app level
// error handler.
type Controller struct {
	auth   Authenticator
	repo   RepositoryManager
	logger Logger
}

func NewController(auth Authenticator, repo RepositoryManager) *Controller {
	return &Controller{
		auth:   auth,
		repo:   repo,
		logger: defLogger{},
	}
}

func (ctrl *Controller) WithLogger(logger Logger) *Controller {
	ctrl.logger = logger
	return ctrl
}

// RegisterRoutes mounts every route. protected is the authorization
// middleware; register and login are the only routes that skip it.
func (ctrl *Controller) RegisterRoutes(app fiber.Router, protected fiber.Handler) {
	users := app.Group("/users")
	users.Post("/", ctrl.CreateUser)
	users.Post("/login", ctrl.Login)
	users.Post("/logout", protected, ctrl.Logout)
	users.Get("/", protected, ctrl.ListUsers)
	users.Get("/:id", protected, ctrl.GetUser)
	users.Patch("/:id", protected, ctrl.UpdateUser)

	tasks := app.Group("/tasks", protected)
	tasks.Post("/", ctrl.CreateTask)
	tasks.Get("/", ctrl.ListTasks)
	tasks.Get("/:id", ctrl.GetTask)
	tasks.Put("/:id", ctrl.ReplaceTask)
	tasks.Patch("/:id", ctrl.UpdateTask)
	tasks.Delete("/:id", ctrl.DeleteTask)
}

type CredentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (p CredentialsPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Username, validation.Required),
		validation.Field(&p.Password, validation.Required),
	)
}

type UpdateUserPayload struct {
	Username  *string    `json:"username"`
	Password  *string    `json:"password"`
	DeletedAt *time.Time `json:"deleted_at"`
}

func (p UpdateUserPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Username, validation.Length(1, 0)),
		validation.Field(&p.Password, validation.Length(1, 0)),
	)
}

type TaskPayload struct {
	Title       string     `json:"title"`
	Priority    *string    `json:"priority"`
	Description *string    `json:"description"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (p TaskPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.Required),
		validation.Field(&p.Priority, validation.Length(1, 1)),
	)
}

type PatchTaskPayload struct {
	Title       *string    `json:"title"`
	Priority    *string    `json:"priority"`
	Description *string    `json:"description"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (p PatchTaskPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.Length(1, 0)),
		validation.Field(&p.Priority, validation.Length(1, 1)),
	)
}

type AuthResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Token    string    `json:"token"`
}

type UserResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

type TaskResponse struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Priority    *string    `json:"priority"`
	Description *string    `json:"description"`
	CompletedAt *time.Time `json:"completed_at"`
}

func newTaskResponse(t *Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Priority:    t.Priority,
		Description: t.Description,
		CompletedAt: t.CompletedAt,
	}
}

// CreateUser registers an account and logs it in, returning the freshly
// minted session token alongside the new user.
func (ctrl *Controller) CreateUser(c *fiber.Ctx) error {
	payload := CredentialsPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return errInvalidBody(err)
	}

	if err := payload.Validate(); err != nil {
		return firstViolation(err)
	}

	user, token, err := ctrl.auth.Register(c.UserContext(), payload.Username, payload.Password)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data": AuthResponse{
			ID:       user.ID,
			Username: user.Username,
			Token:    token,
		},
	})
}

func (ctrl *Controller) Login(c *fiber.Ctx) error {
	payload := CredentialsPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return errInvalidBody(err)
	}

	if err := payload.Validate(); err != nil {
		return firstViolation(err)
	}

	user, token, err := ctrl.auth.Login(c.UserContext(), payload.Username, payload.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": AuthResponse{
			ID:       user.ID,
			Username: user.Username,
			Token:    token,
		},
	})
}

func (ctrl *Controller) Logout(c *fiber.Ctx) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	if err := ctrl.auth.Logout(c.UserContext(), user); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusOK)
}

func (ctrl *Controller) ListUsers(c *fiber.Ctx) error {
	records, err := ctrl.repo.Users().ListUsers(c.UserContext())
	if err != nil {
		return err
	}

	out := make([]UserResponse, 0, len(records))
	for _, u := range records {
		out = append(out, UserResponse{ID: u.ID, Username: u.Username})
	}

	return c.JSON(fiber.Map{"data": out})
}

func (ctrl *Controller) GetUser(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	record, err := ctrl.repo.Users().GetUser(c.UserContext(), id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrNotFound
		}
		return err
	}

	return c.JSON(fiber.Map{
		"data": UserResponse{ID: record.ID, Username: record.Username},
	})
}

// UpdateUser applies a partial account update. A password in the payload is
// re-hashed before it touches the row; a deleted_at value soft-deletes the
// account.
func (ctrl *Controller) UpdateUser(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	payload := UpdateUserPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return errInvalidBody(err)
	}

	if err := payload.Validate(); err != nil {
		return firstViolation(err)
	}

	record, err := ctrl.repo.Users().GetUser(c.UserContext(), id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrNotFound
		}
		return err
	}

	if payload.Username != nil {
		record.Username = *payload.Username
	}

	if payload.Password != nil {
		hash, err := HashPassword(*payload.Password)
		if err != nil {
			return err
		}
		record.PasswordHash = hash
	}

	if payload.DeletedAt != nil {
		record.DeletedAt = payload.DeletedAt
	}

	record, err = ctrl.repo.Users().SaveUser(c.UserContext(), record)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrNotFound
		}
		return err
	}

	return c.JSON(fiber.Map{
		"data": UserResponse{ID: record.ID, Username: record.Username},
	})
}

func (ctrl *Controller) CreateTask(c *fiber.Ctx) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	payload := TaskPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return errInvalidBody(err)
	}

	if err := payload.Validate(); err != nil {
		return firstViolation(err)
	}

	record, err := ctrl.repo.Tasks().CreateTask(c.UserContext(), &Task{
		UserID:      user.ID,
		Title:       payload.Title,
		Priority:    payload.Priority,
		Description: payload.Description,
		CompletedAt: payload.CompletedAt,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data": newTaskResponse(record),
	})
}

func (ctrl *Controller) ListTasks(c *fiber.Ctx) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	records, err := ctrl.repo.Tasks().ListForUser(c.UserContext(), user.ID)
	if err != nil {
		return err
	}

	out := make([]TaskResponse, 0, len(records))
	for _, t := range records {
		out = append(out, newTaskResponse(t))
	}

	return c.JSON(fiber.Map{"data": out})
}

func (ctrl *Controller) GetTask(c *fiber.Ctx) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	id, err := parseID(c)
	if err != nil {
		return err
	}

	record, err := ctrl.repo.Tasks().GetForUser(c.UserContext(), id, user.ID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrNotFound
		}
		return err
	}

	return c.JSON(fiber.Map{"data": newTaskResponse(record)})
}

// ReplaceTask is the atomic update: every mutable field takes the payload
// value, absent optional fields included.
func (ctrl *Controller) ReplaceTask(c *fiber.Ctx) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	id, err := parseID(c)
	if err != nil {
		return err
	}

	payload := TaskPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return errInvalidBody(err)
	}

	if err := payload.Validate(); err != nil {
		return firstViolation(err)
	}

	record, err := ctrl.repo.Tasks().GetForUser(c.UserContext(), id, user.ID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrNotFound
		}
		return err
	}

	record.Title = payload.Title
	record.Priority = payload.Priority
	record.Description = payload.Description
	record.CompletedAt = payload.CompletedAt

	record, err = ctrl.repo.Tasks().SaveForUser(c.UserContext(), record)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrNotFound
		}
		return err
	}

	return c.JSON(fiber.Map{"data": newTaskResponse(record)})
}

// UpdateTask merges the provided fields into the stored task and leaves the
// rest alone.
func (ctrl *Controller) UpdateTask(c *fiber.Ctx) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	id, err := parseID(c)
	if err != nil {
		return err
	}

	payload := PatchTaskPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return errInvalidBody(err)
	}

	if err := payload.Validate(); err != nil {
		return firstViolation(err)
	}

	record, err := ctrl.repo.Tasks().GetForUser(c.UserContext(), id, user.ID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrNotFound
		}
		return err
	}

	if payload.Title != nil {
		record.Title = *payload.Title
	}
	if payload.Priority != nil {
		record.Priority = payload.Priority
	}
	if payload.Description != nil {
		record.Description = payload.Description
	}
	if payload.CompletedAt != nil {
		record.CompletedAt = payload.CompletedAt
	}

	record, err = ctrl.repo.Tasks().SaveForUser(c.UserContext(), record)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrNotFound
		}
		return err
	}

	return c.JSON(fiber.Map{"data": newTaskResponse(record)})
}

func (ctrl *Controller) DeleteTask(c *fiber.Ctx) error {
	user, err := requestUser(c)
	if err != nil {
		return err
	}

	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := ctrl.repo.Tasks().SoftDeleteForUser(c.UserContext(), id, user.ID); err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrNotFound
		}
		return err
	}

	return c.SendStatus(fiber.StatusOK)
}

// NewErrorHandler renders every handler error as a {message} JSON body.
// Internal faults are logged with their metadata and replaced with the
// generic message before anything leaves the process.
func NewErrorHandler(logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(c *fiber.Ctx, err error) error {
		status := goerrors.CodeInternal
		message := ErrServerError.Message

		var richErr *goerrors.Error
		var fiberErr *fiber.Error

		switch {
		case goerrors.As(err, &richErr):
			if richErr.Category == goerrors.CategoryInternal ||
				richErr.Category == goerrors.CategoryOperation {
				logger.Error("request failed: %v %s", richErr, print.MaybePrettyJSON(richErr.Metadata))
				break
			}
			status = richErr.Code
			if status == 0 {
				status = statusFromCategory(richErr.Category)
			}
			message = richErr.Message
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			message = fiberErr.Message
			if status == fiber.StatusNotFound {
				message = ErrNotFound.Message
			}
			if status >= fiber.StatusInternalServerError {
				logger.Error("request failed: %v", fiberErr)
				message = ErrServerError.Message
			}
		default:
			logger.Error("request failed: %v", err)
		}

		return c.Status(status).JSON(fiber.Map{"message": message})
	}
}

// requestUser pulls the user the authorization middleware resolved for this
// request.
func requestUser(c *fiber.Ctx) (*User, error) {
	if user, ok := c.Locals(ContextKeyUser).(*User); ok && user != nil {
		return user, nil
	}

	if user, ok := FromContext(c.UserContext()); ok && user != nil {
		return user, nil
	}

	return nil, ErrNotAuthorized
}

func parseID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, ErrNotFound
	}
	return id, nil
}

func errInvalidBody(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid request body").
		WithCode(goerrors.CodeBadRequest)
}

// firstViolation reduces an ozzo validation result to its first field error,
// in field order, rendered as a 400.
func firstViolation(err error) error {
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fields := make([]string, 0, len(verrs))
		for field := range verrs {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		field := fields[0]
		return goerrors.New(
			fmt.Sprintf("%s: %v", strings.ToLower(field), verrs[field]),
			goerrors.CategoryBadInput,
		).WithCode(goerrors.CodeBadRequest)
	}

	return goerrors.New(err.Error(), goerrors.CategoryBadInput).
		WithCode(goerrors.CodeBadRequest)
}
