package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	auth "github.com/mavi3006/hotel-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type usersAPI struct {
	app    *fiber.App
	repo   auth.RepositoryManager
	tokens *auth.TokenServiceImpl
	sink   *recordingSink
}

func newUsersAPI(t *testing.T) *usersAPI {
	t.Helper()

	repo := newRepoManager(t)
	tokens := newTestTokenService(t)
	sink := &recordingSink{}

	authenticator := auth.NewAuthenticator(repo.Users(), tokens).
		WithLogger(quietLogger{}).
		WithActivitySink(sink)
	gate := auth.NewRoleGate(repo.Users()).WithLogger(quietLogger{})

	mw, err := auth.NewHTTPAuthenticator(authenticator, gate, testConfig{})
	require.NoError(t, err)
	mw.WithLogger(quietLogger{})

	controller := auth.NewUsersController(repo, authenticator, tokens,
		auth.WithControllerLogger(quietLogger{}),
		auth.WithControllerActivitySink(sink),
	)

	app := fiber.New(fiber.Config{ErrorHandler: auth.FiberErrorHandler(false, quietLogger{})})
	auth.RegisterUserRoutes(app.Group("/api/users"), controller, mw)
	app.Use(auth.NotFoundHandler)

	return &usersAPI{app: app, repo: repo, tokens: tokens, sink: sink}
}

func registerBody() map[string]any {
	return map[string]any{
		"name":       "Ana Souza",
		"pronoun":    "ela/dela",
		"email":      "Ana@Example.com",
		"password":   "secret1",
		"phone":      "+55 11 98765-4321",
		"birth_date": "1990-04-12",
		"cpf":        "529.982.247-25",
	}
}

type tokenData struct {
	User      auth.User `json:"user"`
	Token     string    `json:"token"`
	ExpiresIn string    `json:"expiresIn"`
}

func (api *usersAPI) register(t *testing.T, body map[string]any) tokenData {
	t.Helper()
	status, resp := call(t, api.app, http.MethodPost, "/api/users/register", "", body)
	require.Equal(t, http.StatusCreated, status, resp.Message)

	var data tokenData
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	return data
}

func (api *usersAPI) seedAdmin(t *testing.T) string {
	t.Helper()
	hash, err := auth.HashPassword("admin-pass")
	require.NoError(t, err)

	admin, err := api.repo.Users().Create(context.Background(), &auth.User{
		Name:         "Recepção",
		Email:        "admin@hotel.com",
		PasswordHash: hash,
		NationalID:   "11144477735",
		Active:       true,
		Role:         auth.RolePtr(auth.RoleAdmin),
	})
	require.NoError(t, err)

	issued, err := api.tokens.Generate(admin.ID.String())
	require.NoError(t, err)
	return issued.Token
}

func TestUsersAPI_Register(t *testing.T) {
	api := newUsersAPI(t)

	data := api.register(t, registerBody())
	assert.Equal(t, "ana@example.com", data.User.Email)
	assert.Equal(t, "52998224725", data.User.NationalID)
	assert.Equal(t, "24h", data.ExpiresIn)
	assert.NotEmpty(t, data.Token)
	require.NotNil(t, data.User.BirthDate)
	assert.Equal(t, 1990, data.User.BirthDate.Year())

	t.Run("duplicate email", func(t *testing.T) {
		body := registerBody()
		body["cpf"] = "11144477735"
		status, resp := call(t, api.app, http.MethodPost, "/api/users/register", "", body)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Email already registered", resp.Message)
	})

	t.Run("duplicate cpf", func(t *testing.T) {
		body := registerBody()
		body["email"] = "other@example.com"
		status, resp := call(t, api.app, http.MethodPost, "/api/users/register", "", body)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "CPF already registered", resp.Message)
	})

	t.Run("invalid fields are reported", func(t *testing.T) {
		status, resp := call(t, api.app, http.MethodPost, "/api/users/register", "", map[string]any{
			"name":       "A",
			"email":      "not-an-email",
			"password":   "123",
			"cpf":        "111.111.111-11",
			"phone":      "12",
			"birth_date": "12/04/1990",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid data", resp.Message)
		for _, field := range []string{"name", "email", "password", "cpf", "phone", "birth_date"} {
			assert.Contains(t, resp.Errors, field)
		}
	})
}

func TestUsersAPI_LoginAndProfile(t *testing.T) {
	api := newUsersAPI(t)
	api.register(t, registerBody())

	t.Run("wrong password", func(t *testing.T) {
		status, resp := call(t, api.app, http.MethodPost, "/api/users/login", "", map[string]any{
			"email": "ana@example.com", "password": "wrong-pass",
		})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Unauthorized: invalid credentials", resp.Message)
	})

	t.Run("unknown email", func(t *testing.T) {
		status, resp := call(t, api.app, http.MethodPost, "/api/users/login", "", map[string]any{
			"email": "nobody@example.com", "password": "secret1",
		})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Unauthorized: invalid credentials", resp.Message)
	})

	status, resp := call(t, api.app, http.MethodPost, "/api/users/login", "", map[string]any{
		"email": "ANA@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, status, resp.Message)

	var login struct {
		User      auth.Principal `json:"user"`
		Token     string         `json:"token"`
		ExpiresIn string         `json:"expiresIn"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &login))
	assert.Equal(t, "ana@example.com", login.User.Email)
	assert.Equal(t, "24h", login.ExpiresIn)

	status, resp = call(t, api.app, http.MethodGet, "/api/users/profile", login.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var profile struct {
		User map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &profile))
	assert.Equal(t, "Ana Souza", profile.User["name"])
	assert.NotContains(t, profile.User, "password_hash")
	assert.NotEmpty(t, profile.User["last_login_at"])

	status, resp = call(t, api.app, http.MethodPut, "/api/users/profile", login.Token, map[string]any{
		"name": "Ana S.",
	})
	require.Equal(t, http.StatusOK, status, resp.Message)
	require.NoError(t, json.Unmarshal(resp.Data, &profile))
	assert.Equal(t, "Ana S.", profile.User["name"])
	assert.Equal(t, "ela/dela", profile.User["pronoun"], "absent fields are left untouched")

	status, _ = call(t, api.app, http.MethodGet, "/api/users/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	assert.Contains(t, api.sink.types(), auth.ActivityEventLoginSuccess)
	assert.Contains(t, api.sink.types(), auth.ActivityEventLoginFailure)
}

func TestUsersAPI_ChangePassword(t *testing.T) {
	api := newUsersAPI(t)
	data := api.register(t, registerBody())

	status, resp := call(t, api.app, http.MethodPut, "/api/users/change-password", data.Token, map[string]any{
		"current_password": "nope-nope", "new_password": "secret2",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Current password is incorrect", resp.Message)

	status, resp = call(t, api.app, http.MethodPut, "/api/users/change-password", data.Token, map[string]any{
		"current_password": "secret1", "new_password": "secret2",
	})
	require.Equal(t, http.StatusOK, status, resp.Message)

	status, _ = call(t, api.app, http.MethodPost, "/api/users/login", "", map[string]any{
		"email": "ana@example.com", "password": "secret2",
	})
	assert.Equal(t, http.StatusOK, status)
}

func TestUsersAPI_AdminRoutes(t *testing.T) {
	api := newUsersAPI(t)
	guest := api.register(t, registerBody())
	adminToken := api.seedAdmin(t)

	t.Run("standard users are forbidden", func(t *testing.T) {
		status, resp := call(t, api.app, http.MethodGet, "/api/users/admin/users", guest.Token, nil)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "Forbidden: admin privileges required", resp.Message)
	})

	t.Run("list with search", func(t *testing.T) {
		status, resp := call(t, api.app, http.MethodGet, "/api/users/admin/users?search=souza&limit=5", adminToken, nil)
		require.Equal(t, http.StatusOK, status)

		var list struct {
			Users      []auth.User     `json:"users"`
			Pagination auth.Pagination `json:"pagination"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &list))
		require.Len(t, list.Users, 1)
		assert.Equal(t, guest.User.ID, list.Users[0].ID)
		assert.Equal(t, auth.Pagination{Page: 1, Limit: 5, Total: 1, TotalPages: 1}, list.Pagination)
	})

	t.Run("disable revokes the outstanding token", func(t *testing.T) {
		path := "/api/users/admin/users/" + guest.User.ID.String() + "/status"
		status, resp := call(t, api.app, http.MethodPatch, path, adminToken, map[string]any{"active": false})
		require.Equal(t, http.StatusOK, status, resp.Message)

		status, resp = call(t, api.app, http.MethodGet, "/api/users/profile", guest.Token, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Unauthorized: account disabled", resp.Message)

		status, _ = call(t, api.app, http.MethodPatch, path, adminToken, map[string]any{})
		assert.Equal(t, http.StatusBadRequest, status)

		status, _ = call(t, api.app, http.MethodPatch, path, adminToken, map[string]any{"active": true})
		require.Equal(t, http.StatusOK, status)
	})

	t.Run("soft delete", func(t *testing.T) {
		path := "/api/users/admin/users/" + guest.User.ID.String()
		status, resp := call(t, api.app, http.MethodDelete, path, adminToken, nil)
		require.Equal(t, http.StatusOK, status, resp.Message)

		status, resp = call(t, api.app, http.MethodGet, "/api/users/profile", guest.Token, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Unauthorized: user not found", resp.Message)

		status, resp = call(t, api.app, http.MethodDelete, path, adminToken, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "User not found", resp.Message)

		status, _ = call(t, api.app, http.MethodDelete, "/api/users/admin/users/not-a-uuid", adminToken, nil)
		assert.Equal(t, http.StatusNotFound, status)

		deleted, ok := api.sink.last(auth.ActivityEventUserDeleted)
		require.True(t, ok)
		assert.Equal(t, "deleted by administrator", deleted.Metadata["reason"])
		assert.Equal(t, "/api/users/admin/users/:id", deleted.Metadata["route"])
		assert.NotEmpty(t, deleted.Metadata["ip"])
	})

	t.Run("admins cannot change their own status", func(t *testing.T) {
		status, resp := call(t, api.app, http.MethodGet, "/api/users/profile", adminToken, nil)
		require.Equal(t, http.StatusOK, status)
		var profile struct {
			User auth.User `json:"user"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &profile))

		path := "/api/users/admin/users/" + profile.User.ID.String()
		status, resp = call(t, api.app, http.MethodPatch, path+"/status", adminToken, map[string]any{"active": false})
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "Forbidden: cannot change your own account status", resp.Message)

		status, _ = call(t, api.app, http.MethodDelete, path, adminToken, nil)
		assert.Equal(t, http.StatusForbidden, status)

		status, _ = call(t, api.app, http.MethodGet, "/api/users/profile", adminToken, nil)
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("deleted email can register again", func(t *testing.T) {
		again := api.register(t, registerBody())
		assert.NotEqual(t, guest.User.ID, again.User.ID)
	})
}
