package marketauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/store"
)

// ChangePassword replaces the password of an authenticated account after
// checking the current one. The new password may not equal the current one.
func (e *Engine) ChangePassword(ctx context.Context, kind account.Kind, req ChangePasswordRequest) error {
	if _, err := e.kindConfig(kind); err != nil {
		return err
	}
	if err := e.validateRequest(req); err != nil {
		return err
	}

	var outErr error
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		outErr = nil
		acct, err := tx.AccountByID(ctx, kind, req.AccountID)
		if errors.Is(err, store.ErrNotFound) {
			outErr = ErrAccountNotFound
			return nil
		}
		if err != nil {
			return err
		}
		if acct.Inactive {
			outErr = ErrAccountInactive
			return nil
		}
		if !e.verifyPassword(ctx, req.OldPassword, acct) {
			outErr = &CredentialError{Remaining: -1}
			return nil
		}
		hash, err := e.hashPassword(req.NewPassword)
		if errors.Is(err, ErrPasswordPolicy) {
			outErr = err
			return nil
		}
		if err != nil {
			return err
		}
		if e.verifyPassword(ctx, req.NewPassword, acct) {
			outErr = ErrPasswordReuse
			return nil
		}
		acct.PasswordHash = hash
		acct.UpdatedAt = e.now()
		return tx.UpdateAccount(ctx, acct)
	})
	if err != nil {
		e.log.Error(ctx, "password change failed", "kind", string(kind), "account_id", req.AccountID, "error", err)
		return transient("change password", err)
	}

	switch {
	case outErr == nil:
		e.metricInc(MetricPasswordChangeSuccess)
		e.emitAudit(ctx, kind, auditEventPasswordChangeSuccess, true, req.AccountID, "", nil, nil)
		return nil
	case errors.Is(outErr, ErrInvalidCredentials):
		e.metricInc(MetricPasswordChangeInvalidOld)
	case errors.Is(outErr, ErrPasswordReuse):
		e.metricInc(MetricPasswordChangeReuseRejected)
	}
	e.emitAudit(ctx, kind, auditEventPasswordChangeFailure, false, req.AccountID, "", outErr, nil)
	return outErr
}
