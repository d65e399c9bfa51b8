package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-command"
	"github.com/goliatone/go-command/runner"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ErrUserRecordNotFound is returned by admin routes targeting a missing user
var ErrUserRecordNotFound = goerrors.New("User not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidPayload is returned when the request body cannot be decoded
var ErrInvalidPayload = goerrors.New("Invalid request body", goerrors.CategoryBadInput).
	WithTextCode(TextCodeValidation).
	WithCode(goerrors.CodeBadRequest)

// SuccessResponse is the body of every successful request
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// RegisterPayload is the registration request body
type RegisterPayload struct {
	Name       string `json:"name"`
	Pronoun    string `json:"pronoun"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Phone      string `json:"phone"`
	BirthDate  string `json:"birth_date"`
	NationalID string `json:"cpf"`
}

// Validate will validate the payload
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(2, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 72)),
		validation.Field(&r.NationalID, validation.Required, validation.By(ValidateCPF)),
		validation.Field(&r.Phone, validation.By(ValidateMobilePhone)),
		validation.Field(&r.BirthDate, validation.By(ValidateISODate)),
	)
}

// LoginPayload is the login request body
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will validate the payload
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// UpdateProfilePayload only touches the fields that are present
type UpdateProfilePayload struct {
	Name      *string `json:"name"`
	Pronoun   *string `json:"pronoun"`
	Phone     *string `json:"phone"`
	BirthDate *string `json:"birth_date"`
}

// Validate will validate the payload
func (r UpdateProfilePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(2, 200)),
		validation.Field(&r.Pronoun, validation.Length(0, 50)),
		validation.Field(&r.Phone, validation.By(ValidateMobilePhone)),
		validation.Field(&r.BirthDate, validation.By(ValidateISODate)),
	)
}

// ChangePasswordPayload is the change password request body
type ChangePasswordPayload struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Validate will validate the payload
func (r ChangePasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(6, 72)),
	)
}

// UserStatusPayload toggles the active flag of a user
type UserStatusPayload struct {
	Active *bool `json:"active"`
}

// Validate will validate the payload
func (r UserStatusPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Active, validation.NotNil),
	)
}

// UsersControllerRoutes holds the paths relative to the users group
type UsersControllerRoutes struct {
	Register       string
	Login          string
	Profile        string
	ChangePassword string
	AdminUsers     string
}

type UsersController struct {
	Debug      bool
	Logger     Logger
	Repo       RepositoryManager
	Auther     Authenticator
	Tokens     TokenService
	Lifecycle  UserStateMachine
	Routes     *UsersControllerRoutes
	ContextKey string
	Production bool

	ErrorHandler func(c *fiber.Ctx, err error) error

	commands       *runner.Handler
	register       command.Commander[RegisterUserMessage]
	changePassword command.Commander[ChangePasswordMessage]
	activity       ActivitySink
	hasher         PasswordAuthenticator
}

type UsersControllerOption func(*UsersController) *UsersController

// WithControllerLogger sets the controller logger
func WithControllerLogger(logger Logger) UsersControllerOption {
	return func(uc *UsersController) *UsersController {
		uc.Logger = normalizeLogger(logger)
		return uc
	}
}

// WithControllerActivitySink routes controller events to sink
func WithControllerActivitySink(sink ActivitySink) UsersControllerOption {
	return func(uc *UsersController) *UsersController {
		uc.activity = normalizeActivitySink(sink)
		return uc
	}
}

// WithControllerPasswordHasher overrides the hasher used by register and
// change password
func WithControllerPasswordHasher(h PasswordAuthenticator) UsersControllerOption {
	return func(uc *UsersController) *UsersController {
		if h != nil {
			uc.hasher = h
		}
		return uc
	}
}

// WithControllerProduction hides stack traces from error bodies
func WithControllerProduction(production bool) UsersControllerOption {
	return func(uc *UsersController) *UsersController {
		uc.Production = production
		return uc
	}
}

// WithControllerContextKey sets the locals key the principal is read from
func WithControllerContextKey(key string) UsersControllerOption {
	return func(uc *UsersController) *UsersController {
		if key != "" {
			uc.ContextKey = key
		}
		return uc
	}
}

// WithControllerCommandRunner sets the go-command runner register and
// change password are dispatched with
func WithControllerCommandRunner(r *runner.Handler) UsersControllerOption {
	return func(uc *UsersController) *UsersController {
		if r != nil {
			uc.commands = r
		}
		return uc
	}
}

func NewUsersController(repo RepositoryManager, auther Authenticator, tokens TokenService, opts ...UsersControllerOption) *UsersController {
	uc := &UsersController{
		Logger:     defLogger,
		Repo:       repo,
		Auther:     auther,
		Tokens:     tokens,
		ContextKey: DefaultContextKey,
		activity:   noopActivitySink{},
		hasher:     BcryptHasher{},
		Routes: &UsersControllerRoutes{
			Register:       "/register",
			Login:          "/login",
			Profile:        "/profile",
			ChangePassword: "/change-password",
			AdminUsers:     "/admin/users",
		},
	}

	for _, opt := range opts {
		if opt != nil {
			uc = opt(uc)
		}
	}

	if uc.ErrorHandler == nil {
		uc.ErrorHandler = func(c *fiber.Ctx, err error) error {
			return WriteError(c, err, uc.Production, uc.Logger)
		}
	}

	if uc.Lifecycle == nil {
		uc.Lifecycle = NewUserStateMachine(repo.Users(),
			WithStateMachineActivitySink(uc.activity),
			WithStateMachineLogger(uc.Logger),
			WithStateMachineHookErrorHandler(uc.hookError),
		)
	}

	if uc.commands == nil {
		uc.commands = NewCommandRunner(uc.Logger)
	}

	uc.register = NewRegisterUserHandler(repo, tokens).
		WithActivitySink(uc.activity).
		WithLogger(uc.Logger).
		WithPasswordHasher(uc.hasher)

	uc.changePassword = NewChangePasswordHandler(repo).
		WithActivitySink(uc.activity).
		WithLogger(uc.Logger).
		WithPasswordHasher(uc.hasher)

	return uc
}

// RegisterUserRoutes mounts the users API on r. loginGuards run in front of
// the login handler, typically a stricter rate limiter.
func RegisterUserRoutes(r fiber.Router, uc *UsersController, mw *RouteAuthenticator, loginGuards ...fiber.Handler) {
	r.Post(uc.Routes.Register, uc.Register)

	login := append(append([]fiber.Handler{}, loginGuards...), uc.Login)
	r.Post(uc.Routes.Login, login...)

	protected := mw.ProtectedRoute()
	r.Get(uc.Routes.Profile, protected, uc.Profile)
	r.Put(uc.Routes.Profile, protected, uc.UpdateProfile)
	r.Put(uc.Routes.ChangePassword, protected, uc.ChangePassword)

	admin := mw.AdminRoute()
	r.Get(uc.Routes.AdminUsers, protected, admin, uc.ListUsers)
	r.Delete(uc.Routes.AdminUsers+"/:id", protected, admin, uc.DeleteUser)
	r.Patch(uc.Routes.AdminUsers+"/:id/status", protected, admin, uc.SetUserStatus)
}

func (uc *UsersController) Register(c *fiber.Ctx) error {
	payload := new(RegisterPayload)
	if err := uc.bind(c, payload); err != nil {
		return uc.ErrorHandler(c, err)
	}

	msg := RegisterUserMessage{
		Name:       payload.Name,
		Pronoun:    payload.Pronoun,
		Email:      payload.Email,
		Password:   payload.Password,
		Phone:      payload.Phone,
		NationalID: OnlyDigits(payload.NationalID),
	}
	if payload.BirthDate != "" {
		bd, _ := ParseISODate(payload.BirthDate)
		msg.BirthDate = &bd
	}

	var res *RegisterUserResult
	msg.OnResult = func(r *RegisterUserResult) { res = r }

	if err := Dispatch(c.UserContext(), uc.commands, uc.register, msg); err != nil {
		return uc.ErrorHandler(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(SuccessResponse{
		Success: true,
		Message: "User registered successfully",
		Data: fiber.Map{
			"user":      res.User,
			"token":     res.Token.Token,
			"expiresIn": res.Token.ExpiresIn,
		},
	})
}

func (uc *UsersController) Login(c *fiber.Ctx) error {
	payload := new(LoginPayload)
	if err := uc.bind(c, payload); err != nil {
		return uc.ErrorHandler(c, err)
	}

	res, err := uc.Auther.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return uc.ErrorHandler(c, err)
	}

	return c.JSON(SuccessResponse{
		Success: true,
		Message: "Login successful",
		Data: fiber.Map{
			"user":      NewPrincipal(res.User),
			"token":     res.Token.Token,
			"expiresIn": res.Token.ExpiresIn,
		},
	})
}

func (uc *UsersController) Profile(c *fiber.Ctx) error {
	user, err := uc.currentUser(c)
	if err != nil {
		return uc.ErrorHandler(c, err)
	}

	return c.JSON(SuccessResponse{
		Success: true,
		Data:    fiber.Map{"user": user},
	})
}

func (uc *UsersController) UpdateProfile(c *fiber.Ctx) error {
	payload := new(UpdateProfilePayload)
	if err := uc.bind(c, payload); err != nil {
		return uc.ErrorHandler(c, err)
	}

	user, err := uc.currentUser(c)
	if err != nil {
		return uc.ErrorHandler(c, err)
	}

	if payload.Name != nil {
		user.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.Pronoun != nil {
		user.Pronoun = strings.TrimSpace(*payload.Pronoun)
	}
	if payload.Phone != nil {
		user.Phone = strings.TrimSpace(*payload.Phone)
	}
	if payload.BirthDate != nil {
		if strings.TrimSpace(*payload.BirthDate) == "" {
			user.BirthDate = nil
		} else {
			bd, _ := ParseISODate(*payload.BirthDate)
			user.BirthDate = &bd
		}
	}

	updated, err := uc.Repo.Users().UpdateProfile(c.UserContext(), user)
	if err != nil {
		if IsRecordNotFound(err) {
			return uc.ErrorHandler(c, ErrUserRecordNotFound)
		}
		return uc.ErrorHandler(c, err)
	}

	return c.JSON(SuccessResponse{
		Success: true,
		Message: "Profile updated successfully",
		Data:    fiber.Map{"user": updated},
	})
}

func (uc *UsersController) ChangePassword(c *fiber.Ctx) error {
	payload := new(ChangePasswordPayload)
	if err := uc.bind(c, payload); err != nil {
		return uc.ErrorHandler(c, err)
	}

	p, err := uc.principal(c)
	if err != nil {
		return uc.ErrorHandler(c, err)
	}

	id, _ := p.UUID()
	err = Dispatch(c.UserContext(), uc.commands, uc.changePassword, ChangePasswordMessage{
		UserID:          id,
		CurrentPassword: payload.CurrentPassword,
		NewPassword:     payload.NewPassword,
	})
	if err != nil {
		if IsRecordNotFound(err) {
			return uc.ErrorHandler(c, ErrUserRecordNotFound)
		}
		return uc.ErrorHandler(c, err)
	}

	return c.JSON(SuccessResponse{
		Success: true,
		Message: "Password changed successfully",
	})
}

func (uc *UsersController) ListUsers(c *fiber.Ctx) error {
	filter := UserListFilter{
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 10),
		Search: c.Query("search"),
	}.Normalize()

	users, total, err := uc.Repo.Users().List(c.UserContext(), filter)
	if err != nil {
		return uc.ErrorHandler(c, err)
	}

	return c.JSON(SuccessResponse{
		Success: true,
		Data: fiber.Map{
			"users":      users,
			"pagination": NewPagination(filter.Page, filter.Limit, total),
		},
	})
}

func (uc *UsersController) DeleteUser(c *fiber.Ctx) error {
	p, err := uc.principal(c)
	if err != nil {
		return uc.ErrorHandler(c, err)
	}

	target, err := uc.targetUser(c)
	if err != nil {
		return uc.ErrorHandler(c, err)
	}

	if _, err := uc.Lifecycle.Transition(c.UserContext(), actorFromPrincipal(p), target, UserStatusDeleted,
		uc.adminTransition(c, "deleted by administrator")...,
	); err != nil {
		if IsRecordNotFound(err) {
			return uc.ErrorHandler(c, ErrUserRecordNotFound)
		}
		return uc.ErrorHandler(c, err)
	}

	return c.JSON(SuccessResponse{
		Success: true,
		Message: "User deleted successfully",
	})
}

func (uc *UsersController) SetUserStatus(c *fiber.Ctx) error {
	payload := new(UserStatusPayload)
	if err := uc.bind(c, payload); err != nil {
		return uc.ErrorHandler(c, err)
	}

	p, err := uc.principal(c)
	if err != nil {
		return uc.ErrorHandler(c, err)
	}

	target, err := uc.targetUser(c)
	if err != nil {
		return uc.ErrorHandler(c, err)
	}

	status := UserStatusDisabled
	if *payload.Active {
		status = UserStatusActive
	}

	updated, err := uc.Lifecycle.Transition(c.UserContext(), actorFromPrincipal(p), target, status,
		uc.adminTransition(c, "")...,
	)
	if err != nil {
		if IsRecordNotFound(err) {
			return uc.ErrorHandler(c, ErrUserRecordNotFound)
		}
		return uc.ErrorHandler(c, err)
	}

	return c.JSON(SuccessResponse{
		Success: true,
		Message: "User status updated successfully",
		Data:    fiber.Map{"user": updated},
	})
}

// adminTransition tags a transition with the request that triggered it
func (uc *UsersController) adminTransition(c *fiber.Ctx, reason string) []TransitionOption {
	meta := map[string]any{
		"ip":    c.IP(),
		"route": c.Route().Path,
	}
	if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
		meta["request_id"] = rid
	}

	opts := []TransitionOption{
		WithTransitionMetadata(meta),
		WithBeforeTransitionHook(RejectSelfTransition),
	}
	if reason != "" {
		opts = append(opts, WithTransitionReason(reason))
	}
	return opts
}

// hookError keeps typed hook errors and hides anything else behind a 500
func (uc *UsersController) hookError(_ context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error {
	uc.Logger.Warn("user transition hook failed",
		"phase", phase,
		"user_id", tc.User.ID,
		"from", tc.From,
		"to", tc.To,
		"error", err,
	)

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return err
	}
	return DependencyError(err, "user transition hook failed").
		WithMetadata(map[string]any{"phase": phase})
}

type validatable interface {
	Validate() error
}

func (uc *UsersController) bind(c *fiber.Ctx, payload validatable) error {
	if err := c.BodyParser(payload); err != nil {
		uc.Logger.Debug("failed to parse payload", "path", c.Path(), "error", err)
		return ErrInvalidPayload
	}
	if err := payload.Validate(); err != nil {
		return AsValidationError(err)
	}
	return nil
}

func (uc *UsersController) principal(c *fiber.Ctx) (*Principal, error) {
	p, ok := GetPrincipal(c, uc.ContextKey)
	if !ok {
		return nil, ErrTokenMissing
	}
	return p, nil
}

func (uc *UsersController) currentUser(c *fiber.Ctx) (*User, error) {
	p, err := uc.principal(c)
	if err != nil {
		return nil, err
	}

	user, err := uc.Repo.Users().GetByID(c.UserContext(), p.ID)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrUserRecordNotFound
		}
		return nil, err
	}
	return user, nil
}

func (uc *UsersController) targetUser(c *fiber.Ctx) (*User, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, ErrUserRecordNotFound
	}

	user, err := uc.Repo.Users().GetByID(c.UserContext(), id.String())
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrUserRecordNotFound
		}
		return nil, err
	}
	return user, nil
}
