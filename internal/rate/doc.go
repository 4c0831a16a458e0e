// Package rate provides the Redis-backed login throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - ma:login:<kind>:<lookup>        per account
//   - ma:login-origin:<kind>:<origin> per origin
//
// The throttle is an optional front door. The persisted lockout counter on
// the account record remains the authority for LOCKED transitions.
package rate
