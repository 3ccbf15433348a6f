// Package jwt mints and verifies the access and refresh tokens owned by an
// identity actor.
//
// Both token kinds are signed JWTs carrying the normalized email, a token
// type, and a unique token ID. The type claim keeps a refresh token from
// being accepted where an access token is expected and vice versa.
//
// # Architecture boundaries
//
// Only the identity package holds a [Manager]. The gateway middleware never
// sees key material and never calls Parse; it routes on unverified claims
// and defers every trust decision to the actor.
package jwt
