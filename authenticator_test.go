package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	auth "github.com/mavi3006/hotel-auth"
	"github.com/mavi3006/hotel-auth/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func activeUser(t *testing.T, password string) *auth.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	return &auth.User{
		ID:           uuid.New(),
		Name:         "Ana",
		Email:        "ana@example.com",
		PasswordHash: hash,
		NationalID:   "52998224725",
		Active:       true,
		Role:         auth.RolePtr(auth.RoleStandard),
	}
}

func newMockedAuthenticator(t *testing.T, store *MockUserStore) (*auth.Auther, *auth.TokenServiceImpl) {
	t.Helper()
	tokens := newTestTokenService(t)
	return auth.NewAuthenticator(store, tokens).WithLogger(quietLogger{}), tokens
}

func bearer(token string) string {
	return "Bearer " + token
}

func TestAuthenticate_AcceptsActiveUser(t *testing.T) {
	ctx := context.Background()
	user := activeUser(t, "secret1")
	store := new(MockUserStore)
	store.On("GetByID", mock.Anything, user.ID.String()).Return(user, nil)

	authenticator, tokens := newMockedAuthenticator(t, store)
	issued, err := tokens.Generate(user.ID.String())
	require.NoError(t, err)

	principal, err := authenticator.Authenticate(ctx, bearer(issued.Token))
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), principal.ID)
	assert.Equal(t, "Ana", principal.Name)
	assert.Equal(t, "ana@example.com", principal.Email)
	assert.Nil(t, principal.Role, "the role is only resolved by the role gate")

	store.AssertNumberOfCalls(t, "GetByID", 1)
}

func TestAuthenticate_MissingToken(t *testing.T) {
	store := new(MockUserStore)
	authenticator, _ := newMockedAuthenticator(t, store)

	for _, header := range []string{
		"",
		"Bearer",
		"Bearer ",
		"Bearer    ",
		"Basic dXNlcjpwYXNz",
		"Token abc",
		"Bearerabc",
	} {
		t.Run(header, func(t *testing.T) {
			_, err := authenticator.Authenticate(context.Background(), header)
			require.Error(t, err)
			assert.Equal(t, "Unauthorized: token missing", auth.ErrorMessage(err))
			assert.Equal(t, 401, auth.StatusCode(err))
		})
	}

	store.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestAuthenticate_ForeignSecretIsInvalid(t *testing.T) {
	store := new(MockUserStore)
	authenticator, _ := newMockedAuthenticator(t, store)

	raw := signRaw(t, []byte("some-other-secret"), jwt.MapClaims{
		"userId": uuid.NewString(),
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	_, err := authenticator.Authenticate(context.Background(), bearer(raw))
	require.Error(t, err)
	assert.Equal(t, "Unauthorized: invalid token", auth.ErrorMessage(err))
	assert.Equal(t, 401, auth.StatusCode(err))
	store.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	store := new(MockUserStore)
	authenticator, _ := newMockedAuthenticator(t, store)

	raw := signRaw(t, testSigningKey, jwt.MapClaims{
		"userId": uuid.NewString(),
		"iat":    time.Now().Add(-48 * time.Hour).Unix(),
		"exp":    time.Now().Add(-24 * time.Hour).Unix(),
	})

	_, err := authenticator.Authenticate(context.Background(), bearer(raw))
	require.Error(t, err)
	assert.Equal(t, "Unauthorized: token expired", auth.ErrorMessage(err))
	assert.Equal(t, 401, auth.StatusCode(err))
}

func TestAuthenticate_UnknownSubject(t *testing.T) {
	store := new(MockUserStore)
	store.On("GetByID", mock.Anything, mock.Anything).Return(nil, auth.ErrRecordNotFound)
	authenticator, tokens := newMockedAuthenticator(t, store)

	issued, err := tokens.Generate(uuid.NewString())
	require.NoError(t, err)

	_, err = authenticator.Authenticate(context.Background(), bearer(issued.Token))
	require.Error(t, err)
	assert.Equal(t, "Unauthorized: user not found", auth.ErrorMessage(err))
	assert.Equal(t, 401, auth.StatusCode(err))
}

func TestAuthenticate_DisabledAccount(t *testing.T) {
	user := activeUser(t, "secret1")
	user.Active = false
	store := new(MockUserStore)
	store.On("GetByID", mock.Anything, user.ID.String()).Return(user, nil)
	authenticator, tokens := newMockedAuthenticator(t, store)

	issued, err := tokens.Generate(user.ID.String())
	require.NoError(t, err)

	_, err = authenticator.Authenticate(context.Background(), bearer(issued.Token))
	require.Error(t, err)
	assert.Equal(t, "Unauthorized: account disabled", auth.ErrorMessage(err))
	assert.Equal(t, 401, auth.StatusCode(err))
}

func TestAuthenticate_StoreFailureFailsClosedAs500(t *testing.T) {
	store := new(MockUserStore)
	store.On("GetByID", mock.Anything, mock.Anything).
		Return(nil, auth.DependencyError(errors.New("connection refused"), "failed to query users"))
	authenticator, tokens := newMockedAuthenticator(t, store)

	issued, err := tokens.Generate(uuid.NewString())
	require.NoError(t, err)

	principal, err := authenticator.Authenticate(context.Background(), bearer(issued.Token))
	assert.Nil(t, principal)
	require.Error(t, err)
	assert.Equal(t, auth.KindDependency, auth.ClassifyError(err))
	assert.Equal(t, 500, auth.StatusCode(err))
}

func TestAuthenticate_UnclassifiedStoreErrorIsDependency(t *testing.T) {
	store := new(MockUserStore)
	store.On("GetByID", mock.Anything, mock.Anything).Return(nil, errors.New("driver: bad connection"))
	authenticator, tokens := newMockedAuthenticator(t, store)

	issued, err := tokens.Generate(uuid.NewString())
	require.NoError(t, err)

	_, err = authenticator.Authenticate(context.Background(), bearer(issued.Token))
	assert.Equal(t, 500, auth.StatusCode(err))
}

func TestAuthenticate_CustomValidatorBackend(t *testing.T) {
	user := activeUser(t, "secret1")
	store := new(MockUserStore)
	store.On("GetByID", mock.Anything, user.ID.String()).Return(user, nil)
	authenticator, _ := newMockedAuthenticator(t, store)

	authenticator.WithTokenValidator(auth.TokenValidatorFunc(func(_ context.Context, raw string) (auth.AuthClaims, error) {
		if raw != "opaque-provider-token" {
			return nil, auth.ErrTokenMalformed
		}
		return &auth.JWTClaims{UID: user.ID.String()}, nil
	}))

	principal, err := authenticator.Authenticate(context.Background(), "Bearer opaque-provider-token")
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), principal.ID)

	_, err = authenticator.Authenticate(context.Background(), "Bearer other")
	assert.Equal(t, "Unauthorized: invalid token", auth.ErrorMessage(err))
}

func TestAuthenticate_DeactivationRevokesIssuedTokens(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewUsersRepository(testdb.Open(t))
	user, err := repo.Create(ctx, activeUser(t, "secret1"))
	require.NoError(t, err)

	authenticator := auth.NewAuthenticator(repo, newTestTokenService(t)).WithLogger(quietLogger{})

	result, err := authenticator.Login(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	principal, err := authenticator.Authenticate(ctx, bearer(result.Token.Token))
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), principal.ID)

	_, err = repo.SetActive(ctx, user.ID, false)
	require.NoError(t, err)

	_, err = authenticator.Authenticate(ctx, bearer(result.Token.Token))
	require.Error(t, err)
	assert.Equal(t, "Unauthorized: account disabled", auth.ErrorMessage(err))
	assert.Equal(t, 401, auth.StatusCode(err))

	_, err = repo.SetActive(ctx, user.ID, true)
	require.NoError(t, err)
	_, err = authenticator.Authenticate(ctx, bearer(result.Token.Token))
	require.NoError(t, err)

	require.NoError(t, repo.SoftDelete(ctx, user.ID, "Admin"))
	_, err = authenticator.Authenticate(ctx, bearer(result.Token.Token))
	assert.Equal(t, "Unauthorized: user not found", auth.ErrorMessage(err))
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success issues a 24h token and tracks the login", func(t *testing.T) {
		user := activeUser(t, "secret1")
		store := new(MockUserStore)
		store.On("GetByEmail", mock.Anything, "ana@example.com").Return(user, nil)
		store.On("TrackSuccessfulLogin", mock.Anything, user).Return(nil)
		sink := &recordingSink{}

		authenticator, tokens := newMockedAuthenticator(t, store)
		authenticator.WithActivitySink(sink)

		result, err := authenticator.Login(ctx, "ana@example.com", "secret1")
		require.NoError(t, err)
		assert.Same(t, user, result.User)
		assert.Equal(t, "24h", result.Token.ExpiresIn)

		claims, err := tokens.Validate(ctx, result.Token.Token)
		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), claims.UserID())

		store.AssertExpectations(t)
		assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventLoginSuccess}, sink.types())
	})

	t.Run("wrong password issues nothing and mutates nothing", func(t *testing.T) {
		user := activeUser(t, "secret1")
		store := new(MockUserStore)
		store.On("GetByEmail", mock.Anything, "ana@example.com").Return(user, nil)
		sink := &recordingSink{}

		authenticator, _ := newMockedAuthenticator(t, store)
		authenticator.WithActivitySink(sink)

		result, err := authenticator.Login(ctx, "ana@example.com", "wrong")
		assert.Nil(t, result)
		require.Error(t, err)
		assert.Equal(t, "Unauthorized: invalid credentials", auth.ErrorMessage(err))
		assert.Equal(t, 401, auth.StatusCode(err))

		store.AssertNotCalled(t, "TrackSuccessfulLogin", mock.Anything, mock.Anything)
		assert.Nil(t, user.LastLoginAt)
		assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventLoginFailure}, sink.types())
	})

	t.Run("unknown email reads the same as a wrong password", func(t *testing.T) {
		store := new(MockUserStore)
		store.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, auth.ErrRecordNotFound)
		authenticator, _ := newMockedAuthenticator(t, store)

		_, err := authenticator.Login(ctx, "ghost@example.com", "whatever")
		assert.Equal(t, "Unauthorized: invalid credentials", auth.ErrorMessage(err))
	})

	t.Run("disabled account is reported after the password matched", func(t *testing.T) {
		user := activeUser(t, "secret1")
		user.Active = false
		store := new(MockUserStore)
		store.On("GetByEmail", mock.Anything, "ana@example.com").Return(user, nil)
		authenticator, _ := newMockedAuthenticator(t, store)

		_, err := authenticator.Login(ctx, "ana@example.com", "secret1")
		assert.Equal(t, "Unauthorized: account disabled", auth.ErrorMessage(err))

		_, err = authenticator.Login(ctx, "ana@example.com", "wrong")
		assert.Equal(t, "Unauthorized: invalid credentials", auth.ErrorMessage(err))
	})

	t.Run("store outage is a 500", func(t *testing.T) {
		store := new(MockUserStore)
		store.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))
		authenticator, _ := newMockedAuthenticator(t, store)

		_, err := authenticator.Login(ctx, "ana@example.com", "secret1")
		assert.Equal(t, 500, auth.StatusCode(err))
	})

	t.Run("failing to track the login does not block it", func(t *testing.T) {
		user := activeUser(t, "secret1")
		store := new(MockUserStore)
		store.On("GetByEmail", mock.Anything, "ana@example.com").Return(user, nil)
		store.On("TrackSuccessfulLogin", mock.Anything, user).Return(errors.New("read only replica"))
		authenticator, _ := newMockedAuthenticator(t, store)

		result, err := authenticator.Login(ctx, "ana@example.com", "secret1")
		require.NoError(t, err)
		assert.NotEmpty(t, result.Token.Token)
	})

	t.Run("hasher failures are dependency errors", func(t *testing.T) {
		user := activeUser(t, "secret1")
		store := new(MockUserStore)
		store.On("GetByEmail", mock.Anything, "ana@example.com").Return(user, nil)
		hasher := new(MockPasswordHasher)
		hasher.On("ComparePasswordAndHash", "secret1", user.PasswordHash).Return(errors.New("bcrypt exploded"))

		authenticator, _ := newMockedAuthenticator(t, store)
		authenticator.WithPasswordHasher(hasher)

		_, err := authenticator.Login(ctx, "ana@example.com", "secret1")
		assert.Equal(t, auth.KindDependency, auth.ClassifyError(err))
		hasher.AssertExpectations(t)
	})
}

func TestLogin_UpdatesLastLoginAt(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewUsersRepository(testdb.Open(t))
	user, err := repo.Create(ctx, activeUser(t, "secret1"))
	require.NoError(t, err)
	require.Nil(t, user.LastLoginAt)

	authenticator := auth.NewAuthenticator(repo, newTestTokenService(t)).WithLogger(quietLogger{})

	_, err = authenticator.Login(ctx, "ana@example.com", "wrong")
	require.Error(t, err)
	reloaded, err := repo.GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Nil(t, reloaded.LastLoginAt)

	_, err = authenticator.Login(ctx, "ANA@example.com", "secret1")
	require.NoError(t, err)
	reloaded, err = repo.GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.NotNil(t, reloaded.LastLoginAt)
}

func TestExtractBearerToken(t *testing.T) {
	token, err := auth.ExtractBearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	token, err = auth.ExtractBearerToken("bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	_, err = auth.ExtractBearerToken("abc.def.ghi")
	assert.ErrorIs(t, err, auth.ErrTokenMissing)
}
