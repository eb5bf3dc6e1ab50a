// Package taskward implements a small tasks/users REST backend built around
// token-based sessions.
//
// Sessions:
//   - Every user row stores at most one live token. Logging in (or
//     registering) mints a signed JWT and overwrites the stored token, which
//     revokes whatever token the user held before. Logging out clears it.
//   - A request is authorized only when its bearer token both verifies
//     against the signing secret and matches the token currently stored on a
//     live (non soft-deleted) user row.
//
// The HTTP layer never tells callers why an authorization check failed: a
// missing header, an unknown token, a tampered token, and an expired token
// all produce the same 401 body.
package taskward
