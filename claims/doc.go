// Package claims decodes the unverified payload segment of JWT-shaped
// session tokens.
//
// # Purpose
//
// The gateway needs a best-effort guess of which identity a token belongs to
// before it can address the identity actor that owns verification. This
// package extracts that guess and nothing more.
//
// # What this package must NOT do
//
//   - Verify signatures, issuers, or expiry.
//   - Be used as the basis of any authorization decision.
//   - Access Redis, the network, or any key material.
package claims
