// Package auth issues and verifies the service's own credentials and
// manages their lifecycle.
//
// Tokens:
//   - JwtTokenService signs HS256 access, refresh and register tokens with a
//     single process wide KeyMaterial. Each token carries a typ claim so one
//     kind is never accepted in place of another.
//   - RefreshTokens keeps one refresh token row per user. Reissue rotates it
//     with a compare-and-swap, so a replayed token loses and is rejected.
//
// Accounts:
//   - Auther implements email/password login and signup, nickname and email
//     availability, and join method lookup. Signup checks run in a fixed order
//     and the user, its consents and any caller supplied rows are written in
//     one transaction.
//   - PasswordResets issues single use reset tokens and redeems them.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter. Sinks run best-effort
//     (errors are logged) so you can forward to a database or queue without
//     blocking authentication.
//
// Social login lives in the social package, which builds on the types here.
package auth
