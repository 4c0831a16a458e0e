// Package store defines the persistence port used by the engine. Adapters
// live in store/memory, store/postgres and store/sqlite.
package store

import (
	"context"
	"errors"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/ledger"
	"github.com/MrEthical07/marketauth/resettoken"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate")
)

// Store is the root persistence handle.
type Store interface {
	// WithTx runs fn in one transaction. Account reads through tx lock the
	// row until fn returns. fn's error rolls the transaction back.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Sessions() ledger.Store
	Close() error
}

// Tx is the set of keyed operations available inside a transaction.
type Tx interface {
	resettoken.Store

	AccountByLookup(ctx context.Context, kind account.Kind, lookup string) (*account.Account, error)
	AccountByID(ctx context.Context, kind account.Kind, id string) (*account.Account, error)
	CreateAccount(ctx context.Context, a *account.Account) error
	UpdateAccount(ctx context.Context, a *account.Account) error
}
