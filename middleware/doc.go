// Package middleware resolves the session of an inbound request from its
// token cookies and publishes the authenticated user on the request context.
//
// # Flow
//
// [Resolve] runs once per request:
//
//   - No cookies: continue anonymously.
//   - Decode the unverified claims to find the candidate email (access token
//     first, refresh token as fallback).
//   - Ask that identity's actor to verify the access token. A valid token
//     publishes the user.
//   - Otherwise ask the actor to refresh. A new access token is written back
//     to the token cookie and the request continues without an identity.
//   - A refused refresh rejects the request with 401 unless the route is
//     public.
//
// # Architecture boundaries
//
// Trust decisions belong to the identity actor. The claims decoded here only
// pick which actor to ask.
//
// # What this package must NOT do
//
//   - Verify signatures or expiry itself.
//   - Turn internal failures into 401s. Decode errors, actor errors and
//     resolver panics are logged and the request continues anonymously.
//   - Touch Redis.
package middleware
