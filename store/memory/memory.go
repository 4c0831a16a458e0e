// Package memory is an in-process store used by tests and single-node
// development. WithTx serializes all transactions behind one mutex, which
// gives the same per-account exclusion as row locks.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/ledger"
	"github.com/MrEthical07/marketauth/resettoken"
	"github.com/MrEthical07/marketauth/store"
)

type key struct {
	kind account.Kind
	id   string
}

type Store struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	accounts map[key]*account.Account
	lookups  map[key]string
	resets   map[key]resettoken.Record
	sessions []ledger.Record

	// FailSessionWrites makes InsertSession fail; used to exercise the
	// best-effort ledger path.
	FailSessionWrites error
}

func New() *Store {
	return &Store{
		accounts: map[key]*account.Account{},
		lookups:  map[key]string{},
		resets:   map[key]resettoken.Record{},
	}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	t := &tx{s: s, accounts: map[key]*account.Account{}, resets: map[key]resettoken.Record{}}
	if err := fn(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

func (s *Store) Sessions() ledger.Store { return (*sessions)(s) }

func (s *Store) Close() error { return nil }

// tx buffers writes so a failing fn leaves the store untouched.
type tx struct {
	s        *Store
	accounts map[key]*account.Account
	created  []key
	resets   map[key]resettoken.Record
}

func (t *tx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for k, a := range t.accounts {
		t.s.accounts[k] = a
	}
	for _, k := range t.created {
		a := t.accounts[k]
		t.s.lookups[key{kind: a.Kind, id: a.LookupHash}] = a.ID
	}
	for k, r := range t.resets {
		t.s.resets[k] = r
	}
}

func (t *tx) get(kind account.Kind, id string) *account.Account {
	k := key{kind: kind, id: id}
	if a, ok := t.accounts[k]; ok {
		return a
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.s.accounts[k]
}

func (t *tx) AccountByLookup(_ context.Context, kind account.Kind, lookup string) (*account.Account, error) {
	for _, k := range t.created {
		if a := t.accounts[k]; a.Kind == kind && a.LookupHash == lookup {
			return a.Clone(), nil
		}
	}
	t.s.mu.RLock()
	id, ok := t.s.lookups[key{kind: kind, id: lookup}]
	t.s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return t.AccountByID(context.Background(), kind, id)
}

func (t *tx) AccountByID(_ context.Context, kind account.Kind, id string) (*account.Account, error) {
	a := t.get(kind, id)
	if a == nil {
		return nil, store.ErrNotFound
	}
	return a.Clone(), nil
}

func (t *tx) CreateAccount(ctx context.Context, a *account.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if _, err := t.AccountByLookup(ctx, a.Kind, a.LookupHash); err == nil {
		return store.ErrDuplicate
	}
	if t.get(a.Kind, a.ID) != nil {
		return store.ErrDuplicate
	}
	k := key{kind: a.Kind, id: a.ID}
	t.accounts[k] = a.Clone()
	t.created = append(t.created, k)
	return nil
}

func (t *tx) UpdateAccount(_ context.Context, a *account.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if t.get(a.Kind, a.ID) == nil {
		return store.ErrNotFound
	}
	t.accounts[key{kind: a.Kind, id: a.ID}] = a.Clone()
	return nil
}

func (t *tx) GetResetToken(_ context.Context, kind account.Kind, accountID string) (*resettoken.Record, error) {
	k := key{kind: kind, id: accountID}
	if r, ok := t.resets[k]; ok {
		return cloneReset(r), nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	r, ok := t.s.resets[k]
	if !ok {
		return nil, resettoken.ErrNoRecord
	}
	return cloneReset(r), nil
}

func (t *tx) SaveResetToken(_ context.Context, rec resettoken.Record) error {
	t.resets[key{kind: rec.Kind, id: rec.AccountID}] = *cloneReset(rec)
	return nil
}

func cloneReset(r resettoken.Record) *resettoken.Record {
	c := r
	if r.TokenHash != nil {
		h := *r.TokenHash
		c.TokenHash = &h
	}
	if r.UsedAt != nil {
		u := *r.UsedAt
		c.UsedAt = &u
	}
	return &c
}

type sessions Store

func (s *sessions) InsertSession(_ context.Context, rec ledger.Record) error {
	if s.FailSessionWrites != nil {
		return s.FailSessionWrites
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, rec)
	return nil
}

func (s *sessions) CloseSession(_ context.Context, kind account.Kind, sessionID, accountID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sessions {
		r := &s.sessions[i]
		if r.Kind == kind && r.SessionID == sessionID && r.AccountID == accountID && r.Open() {
			t := at
			r.LogoutAt = &t
			return true, nil
		}
	}
	return false, nil
}

func (s *sessions) CloseMostRecentOpen(_ context.Context, kind account.Kind, accountID, origin string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i := range s.sessions {
		r := &s.sessions[i]
		if r.Kind != kind || r.AccountID != accountID || r.Metadata.Origin != origin || !r.Open() {
			continue
		}
		if idx < 0 || !r.LoginAt.Before(s.sessions[idx].LoginAt) {
			idx = i
		}
	}
	if idx < 0 {
		return false, nil
	}
	t := at
	s.sessions[idx].LogoutAt = &t
	return true, nil
}

func (s *sessions) GetSession(_ context.Context, kind account.Kind, sessionID string) (*ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.sessions {
		if r.Kind == kind && r.SessionID == sessionID {
			c := r
			return &c, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (s *sessions) ListSessions(_ context.Context, kind account.Kind, accountID string, limit int) ([]ledger.Record, error) {
	s.mu.RLock()
	var out []ledger.Record
	for _, r := range s.sessions {
		if r.Kind == kind && r.AccountID == accountID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].LoginAt.After(out[j].LoginAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
