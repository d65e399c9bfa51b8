// Package supabase delegates bearer token verification to a hosted identity
// API. The raw token is exchanged for the account id at {url}/auth/v1/user;
// account state is still read from the local store by the auth middleware.
package supabase
