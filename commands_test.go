package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/mavi3006/hotel-auth"
	"github.com/mavi3006/hotel-auth/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoManager(t *testing.T) auth.RepositoryManager {
	t.Helper()
	repo := auth.NewRepositoryManager(testdb.Open(t))
	repo.MustValidate()
	return repo
}

func registerMessage() auth.RegisterUserMessage {
	birth := time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC)
	return auth.RegisterUserMessage{
		Name:       " Ana Souza ",
		Pronoun:    "ela/dela",
		Email:      "Ana@Example.com",
		Password:   "secret1",
		Phone:      "+55 11 98765-4321",
		BirthDate:  &birth,
		NationalID: "52998224725",
	}
}

func TestRegisterUserHandler(t *testing.T) {
	ctx := context.Background()
	repo := newRepoManager(t)
	tokens := newTestTokenService(t)
	sink := &recordingSink{}

	handler := auth.NewRegisterUserHandler(repo, tokens).
		WithLogger(quietLogger{}).
		WithActivitySink(sink)

	var result *auth.RegisterUserResult
	msg := registerMessage()
	msg.OnResult = func(r *auth.RegisterUserResult) { result = r }
	require.NoError(t, handler.Execute(ctx, msg))
	require.NotNil(t, result)

	assert.Equal(t, "Ana Souza", result.User.Name)
	assert.Equal(t, "ana@example.com", result.User.Email)
	assert.True(t, result.User.Active)
	assert.Equal(t, "standard", result.User.RoleName())
	assert.NotEqual(t, "secret1", result.User.PasswordHash)
	assert.Equal(t, "24h", result.Token.ExpiresIn)

	claims, err := tokens.Validate(ctx, result.Token.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID.String(), claims.UserID())

	stored, err := repo.Users().GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.NoError(t, auth.ComparePasswordAndHash("secret1", stored.PasswordHash))
	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventUserRegistered}, sink.types())

	t.Run("duplicate email", func(t *testing.T) {
		msg := registerMessage()
		msg.NationalID = "11144477735"
		err := handler.Execute(ctx, msg)
		require.Error(t, err)
		assert.Equal(t, "Email already registered", auth.ErrorMessage(err))
		assert.Equal(t, 400, auth.StatusCode(err))
	})

	t.Run("duplicate cpf", func(t *testing.T) {
		msg := registerMessage()
		msg.Email = "other@example.com"
		err := handler.Execute(ctx, msg)
		require.Error(t, err)
		assert.Equal(t, "CPF already registered", auth.ErrorMessage(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		called := false
		msg := registerMessage()
		msg.OnResult = func(*auth.RegisterUserResult) { called = true }
		assert.Error(t, handler.Execute(cctx, msg))
		assert.False(t, called)
	})
}

func TestChangePasswordHandler(t *testing.T) {
	ctx := context.Background()
	repo := newRepoManager(t)
	var registered *auth.RegisterUserResult
	msg := registerMessage()
	msg.OnResult = func(r *auth.RegisterUserResult) { registered = r }
	err := auth.NewRegisterUserHandler(repo, newTestTokenService(t)).
		WithLogger(quietLogger{}).
		Execute(ctx, msg)
	require.NoError(t, err)
	require.NotNil(t, registered)

	handler := auth.NewChangePasswordHandler(repo).WithLogger(quietLogger{})

	t.Run("wrong current password", func(t *testing.T) {
		err := handler.Execute(ctx, auth.ChangePasswordMessage{
			UserID:          registered.User.ID,
			CurrentPassword: "nope",
			NewPassword:     "another1",
		})
		require.Error(t, err)
		assert.Equal(t, 400, auth.StatusCode(err))
		assert.Equal(t, "Current password is incorrect", auth.ErrorMessage(err))
	})

	t.Run("success", func(t *testing.T) {
		err := handler.Execute(ctx, auth.ChangePasswordMessage{
			UserID:          registered.User.ID,
			CurrentPassword: "secret1",
			NewPassword:     "another1",
		})
		require.NoError(t, err)

		authenticator := auth.NewAuthenticator(repo.Users(), newTestTokenService(t)).WithLogger(quietLogger{})
		_, err = authenticator.Login(ctx, "ana@example.com", "secret1")
		assert.Equal(t, "Unauthorized: invalid credentials", auth.ErrorMessage(err))
		_, err = authenticator.Login(ctx, "ana@example.com", "another1")
		assert.NoError(t, err)
	})
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	repo := newRepoManager(t)
	commands := auth.NewCommandRunner(quietLogger{})
	handler := auth.NewRegisterUserHandler(repo, newTestTokenService(t)).WithLogger(quietLogger{})

	t.Run("runs the handler and reports the result", func(t *testing.T) {
		var result *auth.RegisterUserResult
		msg := registerMessage()
		msg.OnResult = func(r *auth.RegisterUserResult) { result = r }

		require.NoError(t, auth.Dispatch(ctx, commands, handler, msg))
		require.NotNil(t, result)
		assert.Equal(t, "ana@example.com", result.User.Email)
	})

	t.Run("invalid message never reaches the handler", func(t *testing.T) {
		msg := registerMessage()
		msg.Email = ""
		msg.OnResult = func(*auth.RegisterUserResult) { t.Fatal("handler ran") }

		err := auth.Dispatch(ctx, commands, handler, msg)
		require.Error(t, err)
		assert.Equal(t, 400, auth.StatusCode(err))
		assert.Equal(t, auth.KindValidation, auth.ClassifyError(err))
	})

	t.Run("handler errors keep their status", func(t *testing.T) {
		err := auth.Dispatch(ctx, commands, handler, registerMessage())
		require.Error(t, err)
		assert.Equal(t, "Email already registered", auth.ErrorMessage(err))
	})

	t.Run("change password message needs a user", func(t *testing.T) {
		err := auth.Dispatch(ctx, commands, auth.NewChangePasswordHandler(repo), auth.ChangePasswordMessage{
			CurrentPassword: "secret1",
			NewPassword:     "another1",
		})
		require.Error(t, err)
		assert.Equal(t, 400, auth.StatusCode(err))
	})
}
