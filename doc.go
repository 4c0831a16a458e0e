// Package marketauth is the account authentication and session lifecycle
// engine for a marketplace's end users, vendors and administrators.
//
// One [Engine] serves every [account.Kind]; persistence, reset links and
// email templates are selected per kind. The engine covers credential login
// with persisted lockout and timed auto-unlock, a session ledger recording
// every attempt, single-use password reset tokens, and signed session tokens.
//
// # Architecture boundaries
//
// marketauth is the public surface: [Engine], [Builder], [Config] and the
// request/result types. Storage is reached only through the store port
// (adapters in store/memory, store/postgres and store/sqlite); email
// delivery is an enqueue to the notify package; login metadata comes from
// an enrich.Enricher.
//
// # Error model
//
// Every outcome is a returned error. Callers branch with errors.Is on the
// exported sentinels and use errors.As with [*CredentialError],
// [*LockedError] and [*ResetError] for details. Storage failures wrap
// [ErrTransient] and never leave a partial reset behind.
//
// # Concurrency
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build]. Per-account read-modify-write runs inside one store
// transaction with the account row locked.
package marketauth
