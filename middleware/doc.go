// Package middleware exposes HTTP middleware around a marketauth.Engine.
//
// # Middleware
//
//   - [Guard] verifies the bearer session token for one account kind and
//     injects its claims into the request context.
//   - [ClientContext] records the caller's origin address and User-Agent so
//     the Engine can write them to the session ledger.
//   - [Recover] turns a handler panic into a 500 response.
//
// This package translates HTTP semantics into Engine calls. It does not
// parse tokens or make authentication decisions itself.
package middleware
