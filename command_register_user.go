package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// ErrEmailTaken is returned when a live user already owns the email
var ErrEmailTaken = goerrors.New("Email already registered", goerrors.CategoryConflict).
	WithTextCode("EMAIL_TAKEN").
	WithCode(goerrors.CodeBadRequest)

// ErrNationalIDTaken is returned when a live user already owns the CPF
var ErrNationalIDTaken = goerrors.New("CPF already registered", goerrors.CategoryConflict).
	WithTextCode("NATIONAL_ID_TAKEN").
	WithCode(goerrors.CodeBadRequest)

type RegisterUserMessage struct {
	Name       string     `json:"name"`
	Pronoun    string     `json:"pronoun"`
	Email      string     `json:"email"`
	Password   string     `json:"password"`
	Phone      string     `json:"phone"`
	BirthDate  *time.Time `json:"birth_date"`
	NationalID string     `json:"national_id"`
	// OnResult receives the created user and its first credential
	OnResult func(*RegisterUserResult) `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate checks the fields the handler cannot work without. Payload
// level rules run before the message is built.
func (e RegisterUserMessage) Validate() error {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.Required),
		validation.Field(&e.Email, validation.Required),
		validation.Field(&e.Password, validation.Required),
		validation.Field(&e.NationalID, validation.Required),
	)
	return AsValidationError(err)
}

// RegisterUserResult carries the created user and its first credential
type RegisterUserResult struct {
	User  *User
	Token IssuedToken
}

type RegisterUserHandler struct {
	repo     RepositoryManager
	tokens   TokenService
	hasher   PasswordAuthenticator
	activity ActivitySink
	logger   Logger
}

// NewRegisterUserHandler creates a handler with sane defaults.
func NewRegisterUserHandler(repo RepositoryManager, tokens TokenService) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:     repo,
		tokens:   tokens,
		hasher:   BcryptHasher{},
		activity: noopActivitySink{},
		logger:   defLogger,
	}
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithPasswordHasher overrides the hasher
func (h *RegisterUserHandler) WithPasswordHasher(hasher PasswordAuthenticator) *RegisterUserHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

var _ command.Commander[RegisterUserMessage] = (*RegisterUserHandler)(nil)

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
	}

	res, err := h.execute(ctx, event)
	if err != nil {
		return err
	}
	if event.OnResult != nil {
		event.OnResult(res)
	}
	return nil
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (*RegisterUserResult, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	users := h.repo.Users()

	taken, err := users.ExistsByEmail(ctx, event.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	taken, err = users.ExistsByNationalID(ctx, event.NationalID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrNationalIDTaken
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		if ClassifyError(err) == KindValidation {
			return nil, err
		}
		return nil, asDependency(err, "failed to hash password")
	}

	user := &User{
		Name:         strings.TrimSpace(event.Name),
		Pronoun:      strings.TrimSpace(event.Pronoun),
		Email:        event.Email,
		PasswordHash: hash,
		Phone:        strings.TrimSpace(event.Phone),
		BirthDate:    event.BirthDate,
		NationalID:   event.NationalID,
		Active:       true,
		Role:         RolePtr(RoleStandard),
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := users.CreateTx(ctx, tx, user)
		return err
	})
	if err != nil {
		if HasTextCode(err, TextCodeDuplicate) {
			return nil, err
		}
		h.logger.Error("user registration failed", "error", err)
		return nil, asDependency(err, "user registration transaction failed")
	}

	token, err := h.tokens.Generate(user.ID.String())
	if err != nil {
		return nil, asDependency(err, "failed to issue token")
	}

	recordActivity(ctx, h.activity, h.logger, time.Now, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Actor:     ActorRef{ID: user.ID.String(), Name: user.Name, Type: "user"},
		UserID:    user.ID.String(),
		ToStatus:  UserStatusActive,
	})

	return &RegisterUserResult{User: user, Token: token}, nil
}
