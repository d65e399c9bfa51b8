// Package jwks validates third party bearer tokens against a remote JSON Web
// Key Set. It plugs into the auth middleware as an auth.TokenValidator so the
// subject still resolves against the local user records.
package jwks
