// Package auth provides administrator authentication for a single admin
// surface: credential checks, signed session tokens, cookie transport and a
// fiber guard, plus password and email rotation.
//
// Sessions:
//   - Auther checks an email and password against a CredentialStore and
//     issues an HS256 token through TokenService. Unknown emails and wrong
//     passwords fail the same way.
//   - SessionTransport sets the token as an HTTP-only cookie and reads it back
//     from the cookie or the Authorization header, cookie first.
//   - RouteAuthenticator.ProtectedRoute verifies the token and, with
//     StoreBackedSessionCheck, that the stored record still matches it.
//
// Rotation:
//   - CredentialRotation re-checks the current password before changing the
//     password or the email. An email change ends every session issued for the
//     old email.
//
// Activity sinks:
//   - ActivitySink receives login, logout, rotation and guard events. Sinks run
//     best-effort (errors are logged) so audit forwarding never blocks a login.
package auth
