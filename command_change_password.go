package auth

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ErrCurrentPasswordMismatch is returned when the caller cannot prove the old password
var ErrCurrentPasswordMismatch = goerrors.New("Current password is incorrect", goerrors.CategoryValidation).
	WithTextCode("CURRENT_PASSWORD_MISMATCH").
	WithCode(goerrors.CodeBadRequest)

type ChangePasswordMessage struct {
	UserID          uuid.UUID `json:"-"`
	CurrentPassword string    `json:"current_password"`
	NewPassword     string    `json:"new_password"`
}

func (e ChangePasswordMessage) Type() string { return "user.password.change" }

func (e ChangePasswordMessage) Validate() error {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.UserID, validation.By(func(value any) error {
			if id, _ := value.(uuid.UUID); id == uuid.Nil {
				return errors.New("is required")
			}
			return nil
		})),
		validation.Field(&e.CurrentPassword, validation.Required),
		validation.Field(&e.NewPassword, validation.Required),
	)
	return AsValidationError(err)
}

type ChangePasswordHandler struct {
	repo     RepositoryManager
	hasher   PasswordAuthenticator
	activity ActivitySink
	logger   Logger
}

// NewChangePasswordHandler creates a handler with sane defaults.
func NewChangePasswordHandler(repo RepositoryManager) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		repo:     repo,
		hasher:   BcryptHasher{},
		activity: noopActivitySink{},
		logger:   defLogger,
	}
}

// WithActivitySink sets the sink used to emit password change events.
func (h *ChangePasswordHandler) WithActivitySink(sink ActivitySink) *ChangePasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ChangePasswordHandler) WithLogger(logger Logger) *ChangePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithPasswordHasher overrides the hasher
func (h *ChangePasswordHandler) WithPasswordHasher(hasher PasswordAuthenticator) *ChangePasswordHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

var _ command.Commander[ChangePasswordMessage] = (*ChangePasswordHandler)(nil)

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByID(ctx, event.UserID.String())
	if err != nil {
		if IsRecordNotFound(err) {
			return ErrUserNotFound
		}
		return asDependency(err, "could not retrieve user")
	}

	if err := h.hasher.ComparePasswordAndHash(event.CurrentPassword, user.PasswordHash); err != nil {
		if HasTextCode(err, TextCodeHashMismatch) {
			return ErrCurrentPasswordMismatch
		}
		return asDependency(err, "failed to verify current password")
	}

	hash, err := h.hasher.HashPassword(event.NewPassword)
	if err != nil {
		if ClassifyError(err) == KindValidation {
			return err
		}
		return asDependency(err, "failed to hash password")
	}

	if err := h.repo.Users().UpdatePassword(ctx, user.ID, hash); err != nil {
		if IsRecordNotFound(err) {
			return ErrUserNotFound
		}
		return err
	}

	recordActivity(ctx, h.activity, h.logger, time.Now, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor:     ActorRef{ID: user.ID.String(), Name: user.Name, Type: "user"},
		UserID:    user.ID.String(),
	})

	return nil
}
