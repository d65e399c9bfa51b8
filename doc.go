// Package auth guards the hotel API. It issues HS256 bearer tokens at login,
// verifies them on every protected request and re-reads the account from the
// credential store so that deactivation and deletion apply immediately.
//
// Request pipeline:
//   - RouteAuthenticator.ProtectedRoute extracts the bearer token, validates it
//     offline through a TokenValidator (local secret, delegated identity API or
//     JWKS) and resolves the subject against the Users repository. The result is
//     a Principal stored in the fiber locals and the request context.
//   - RouteAuthenticator.AdminRoute runs after it and lets only the admin and
//     administrator roles through, reading the role from the store each time.
//
// Failures are go-errors values. ClassifyError maps them onto the validation,
// authentication, authorization and dependency kinds and WriteError renders
// them as {"success": false, "message": ...}.
//
// User lifecycle:
//   - UserStateMachine moves accounts between active and disabled and into the
//     terminal deleted state. Deletion is a soft delete, the row and its id are
//     kept.
//   - ActivitySink receives login, registration, password and lifecycle events.
//     Sinks run best-effort, errors are logged.
package auth
