package auth

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeTokenMissing       = "TOKEN_MISSING"
	TextCodeTokenInvalid       = "TOKEN_INVALID"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeUserNotFound       = "USER_NOT_FOUND"
	TextCodeAccountDisabled    = "ACCOUNT_DISABLED"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeAdminRequired      = "ADMIN_REQUIRED"
	TextCodePrincipalNotFound  = "PRINCIPAL_NOT_FOUND"
	TextCodeDependency         = "DEPENDENCY_FAILURE"
	TextCodeValidation         = "VALIDATION_FAILED"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeHashMismatch       = "HASH_MISMATCH"
)

// ErrTokenMissing is returned when the request carries no bearer token
var ErrTokenMissing = goerrors.New("Unauthorized: token missing", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMissing).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when signature or payload checks fail
var ErrTokenMalformed = goerrors.New("Unauthorized: invalid token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for well signed tokens past their expiry
var ErrTokenExpired = goerrors.New("Unauthorized: token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrUserNotFound is returned when the token subject has no live record
var ErrUserNotFound = goerrors.New("Unauthorized: user not found", goerrors.CategoryAuth).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountDisabled is returned when the resolved user is not active
var ErrAccountDisabled = goerrors.New("Unauthorized: account disabled", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials is returned by login for unknown email or wrong password
var ErrInvalidCredentials = goerrors.New("Unauthorized: invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrAdminRequired is returned by the role gate
var ErrAdminRequired = goerrors.New("Forbidden: admin privileges required", goerrors.CategoryAuthz).
	WithTextCode(TextCodeAdminRequired).
	WithCode(goerrors.CodeForbidden)

// ErrPrincipalNotFound is returned when the principal vanished between
// authentication and the role check
var ErrPrincipalNotFound = goerrors.New("Not Found: user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodePrincipalNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryBadInput).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned when a password does not match its hash
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodeHashMismatch).
	WithCode(goerrors.CodeUnauthorized)

// ErrorKind is the coarse taxonomy every error in this package falls into
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindAuthentication ErrorKind = "authentication"
	KindAuthorization  ErrorKind = "authorization"
	KindDependency     ErrorKind = "dependency"
)

// DependencyError wraps store, hashing or signing failures. They are always
// surfaced as 500 and never read as "not authenticated".
func DependencyError(err error, message string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithTextCode(TextCodeDependency).
		WithCode(goerrors.CodeInternal).
		WithStackTrace()
}

// ValidationError reports malformed caller input
func ValidationError(message string, fields map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest)
	if len(fields) > 0 {
		err = err.WithMetadata(fields)
	}
	return err
}

// ClassifyError maps any error onto the taxonomy. Unknown errors are
// dependency failures.
func ClassifyError(err error) ErrorKind {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return KindDependency
	}

	switch richErr.Category {
	case goerrors.CategoryAuth:
		return KindAuthentication
	case goerrors.CategoryAuthz, goerrors.CategoryNotFound:
		return KindAuthorization
	case goerrors.CategoryValidation, goerrors.CategoryBadInput, goerrors.CategoryConflict:
		return KindValidation
	default:
		return KindDependency
	}
}

// StatusCode returns the HTTP status for err
func StatusCode(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	if richErr.Code > 0 {
		return richErr.Code
	}

	switch ClassifyError(richErr) {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		if richErr.Category == goerrors.CategoryNotFound {
			return http.StatusNotFound
		}
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorMessage returns the user facing message of err without its cause chain
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}
	return err.Error()
}

// HasTextCode reports whether err, or anything it wraps, carries code
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if HasTextCode(err, TextCodeTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if HasTextCode(err, TextCodeTokenInvalid) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

func withCause(base *goerrors.Error, cause error, metadata map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = cause
	if len(metadata) > 0 {
		return clone.WithMetadata(metadata)
	}
	return clone
}
