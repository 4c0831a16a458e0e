// Package ledger records every login attempt as an append-only session row
// and closes successful sessions on logout.
//
// Failed attempts are written with [Ledger.Open], which never fails the
// caller. Successful logins use [Ledger.OpenSession], which does, so a token
// is never issued for a session that was not recorded.
package ledger
