// Package jwt issues and verifies the signed access tokens returned by a
// successful login. Every token carries the account id and the id of the
// session-ledger row it was issued for.
//
// Ed25519 is the default; the public key can be distributed to services that
// only verify. HS256 is available for single-process deployments.
package jwt
