// Package internal holds helpers private to marketauth: random session ids
// and reset-token generation with the digest that is stored in its place.
//
// Subpackages:
//
//   - appconfig: authd service configuration.
//   - dbx: database/sql transaction helper.
//   - lockout: the lockout policy state transitions.
//   - rate: the redis fixed-window login throttle.
//   - sqlstore: the shared SQL store used by the postgres and sqlite adapters.
//   - validation: request validation.
package internal
