// Package password implements the credential verifier: one-way hashing and
// constant-time verification of plaintext passwords.
//
// Two algorithms are provided. [Argon2] writes PHC strings and is the default;
// [Bcrypt] covers hashes imported from older systems.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Lockout, reuse checks and
// account state live in the engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other marketauth package.
//   - Log plaintext passwords.
package password
