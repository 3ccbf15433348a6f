// Package audit relays session audit events (signup, login, refresh, logout,
// reject) to a sink without blocking request handling.
//
// # Components
//
//   - [Sink]: consumer interface (channel, JSON lines, no-op).
//   - [Dispatcher]: buffered relay with drop-if-full or block-if-full
//     semantics.
//
// # What this package must NOT do
//
//   - Decide which events to emit. The gateway handlers do.
//   - Import the gateway or any sibling package.
package audit
