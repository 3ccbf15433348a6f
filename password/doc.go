// Package password hashes and verifies identity credentials with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.NeedsRehash] reports hashes produced with weaker parameters so the
// identity actor can re-hash after the next successful login.
//
// # What this package must NOT do
//
//   - Enforce password policy beyond rejecting empty or oversized input.
//   - Store or retrieve credentials.
//   - Log plaintext passwords.
package password
