package marketauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/store"
)

// ConfirmVerification records the external verification event, moving an
// UNVERIFIED account to ACTIVE. Verified accounts are left unchanged.
func (e *Engine) ConfirmVerification(ctx context.Context, kind account.Kind, accountID string) error {
	err := e.updateAccount(ctx, kind, accountID, func(a *account.Account) error {
		return a.MarkVerified()
	})
	if err == nil {
		e.metricInc(MetricAccountVerified)
	}
	e.emitStatusChange(ctx, kind, accountID, "verify", err)
	return err
}

// Deactivate sets the administrative inactive flag. Lock state is kept.
func (e *Engine) Deactivate(ctx context.Context, kind account.Kind, accountID string) error {
	err := e.updateAccount(ctx, kind, accountID, func(a *account.Account) error {
		a.Deactivate()
		return nil
	})
	if err == nil {
		e.metricInc(MetricAccountDeactivated)
	}
	e.emitStatusChange(ctx, kind, accountID, "deactivate", err)
	return err
}

func (e *Engine) Reactivate(ctx context.Context, kind account.Kind, accountID string) error {
	err := e.updateAccount(ctx, kind, accountID, func(a *account.Account) error {
		a.Reactivate()
		return nil
	})
	if err == nil {
		e.metricInc(MetricAccountReactivated)
	}
	e.emitStatusChange(ctx, kind, accountID, "reactivate", err)
	return err
}

// Unlock lifts a lock before its window elapses and clears the counter.
func (e *Engine) Unlock(ctx context.Context, kind account.Kind, accountID string) error {
	err := e.updateAccount(ctx, kind, accountID, func(a *account.Account) error {
		a.Unlock()
		return nil
	})
	if err == nil {
		e.metricInc(MetricAccountUnlocked)
	}
	e.emitStatusChange(ctx, kind, accountID, "unlock", err)
	return err
}

// Account returns the summary of one account.
func (e *Engine) Account(ctx context.Context, kind account.Kind, accountID string) (*account.Summary, error) {
	if _, err := e.kindConfig(kind); err != nil {
		return nil, err
	}
	var s account.Summary
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		a, err := tx.AccountByID(ctx, kind, accountID)
		if err != nil {
			return err
		}
		s = a.Summary()
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, transient("account", err)
	}
	return &s, nil
}

func (e *Engine) updateAccount(ctx context.Context, kind account.Kind, accountID string, mutate func(*account.Account) error) error {
	if _, err := e.kindConfig(kind); err != nil {
		return err
	}
	if accountID == "" {
		return ErrAccountNotFound
	}
	var mutateErr error
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		a, err := tx.AccountByID(ctx, kind, accountID)
		if err != nil {
			return err
		}
		if mutateErr = mutate(a); mutateErr != nil {
			return mutateErr
		}
		a.UpdatedAt = e.now()
		return tx.UpdateAccount(ctx, a)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrAccountNotFound
	case mutateErr != nil:
		return errors.Join(ErrValidation, mutateErr)
	}
	return transient("update account", err)
}

func (e *Engine) emitStatusChange(ctx context.Context, kind account.Kind, accountID, action string, err error) {
	e.emitAudit(ctx, kind, auditEventAccountStatusChange, err == nil, accountID, "", err, func() map[string]string {
		return map[string]string{
			"action": action,
		}
	})
}
