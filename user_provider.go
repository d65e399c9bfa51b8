package auth

import (
	"context"
)

// UserProvider verifies email and password pairs against the credential store
type UserProvider struct {
	store  UserStore
	hasher PasswordAuthenticator
	logger Logger
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserStore) *UserProvider {
	return &UserProvider{
		store:  store,
		hasher: BcryptHasher{},
		logger: defLogger,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = normalizeLogger(l)
	return u
}

// WithHasher overrides the password hasher
func (u *UserProvider) WithHasher(h PasswordAuthenticator) *UserProvider {
	if h != nil {
		u.hasher = h
	}
	return u
}

// VerifyIdentity finds the user by email and checks the password. An unknown
// email and a wrong password produce the same error. The active flag is only
// consulted once the password matched.
func (u *UserProvider) VerifyIdentity(ctx context.Context, email, password string) (*User, error) {
	user, err := u.store.GetByEmail(ctx, email)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		u.logger.Error("user provider lookup failed", "error", err)
		return nil, asDependency(err, "failed to retrieve user during verification")
	}

	if err := u.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if HasTextCode(err, TextCodeHashMismatch) {
			return nil, ErrInvalidCredentials
		}
		u.logger.Error("user provider password comparison failed", "error", err)
		return nil, asDependency(err, "failed to verify password")
	}

	if !user.Active {
		return nil, ErrAccountDisabled
	}

	return user, nil
}

// asDependency keeps an error that is already classified as a dependency
// failure and wraps anything else
func asDependency(err error, message string) error {
	if HasTextCode(err, TextCodeDependency) {
		return err
	}
	return DependencyError(err, message)
}
