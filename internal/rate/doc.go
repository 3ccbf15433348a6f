// Package rate implements the Redis-backed fixed-window login throttle used by
// identity actors.
//
// # Window semantics
//
// INCR + EXPIRE on the first failed attempt in a window. Keys live under
// "<prefix>:rl:<email>". A successful login clears the window.
//
// # What this package must NOT do
//
//   - Decide what a failed attempt is (the actor calls Fail).
//   - Be imported outside this module.
package rate
