package marketauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/notify"
	"github.com/MrEthical07/marketauth/resettoken"
	"github.com/MrEthical07/marketauth/store"
)

// ForgotPassword issues a reset token and enqueues the reset email when the
// email belongs to an ACTIVE or LOCKED account that is not inactive.
//
// The returned result is the same whether or not a token was issued, and a
// failed enqueue does not change it. Only a malformed email or a storage
// failure produces an error.
func (e *Engine) ForgotPassword(ctx context.Context, kind account.Kind, email string) (*ForgotPasswordResult, error) {
	kc, err := e.kindConfig(kind)
	if err != nil {
		return nil, err
	}
	if err := e.validateRequest(forgotPasswordInput{Email: email}); err != nil {
		return nil, err
	}
	e.metricInc(MetricPasswordResetRequest)

	result := &ForgotPasswordResult{
		Message:       forgotPasswordMessage,
		ExpiryMinutes: int(e.resets.TTL().Minutes()),
	}

	lookup := e.lookup.Hash(email)
	var (
		acct    *account.Account
		token   string
		skipped string
	)
	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		acct, token, skipped = nil, "", ""
		a, err := tx.AccountByLookup(ctx, kind, lookup)
		switch {
		case errors.Is(err, store.ErrNotFound):
			skipped = "not_found"
			return nil
		case err != nil:
			return err
		case a.Inactive:
			skipped = "inactive"
			return nil
		case a.Status == account.StatusUnverified:
			skipped = "unverified"
			return nil
		}
		acct = a
		token, err = e.resets.Issue(ctx, tx, kind, a.ID)
		return err
	})
	if err != nil {
		e.log.Error(ctx, "password reset request failed", "kind", string(kind), "error", err)
		return nil, transient("forgot password", err)
	}

	if acct == nil {
		e.emitAudit(ctx, kind, auditEventPasswordResetRequest, false, "", "", nil, func() map[string]string {
			return map[string]string{"skipped": skipped}
		})
		return result, nil
	}

	e.metricInc(MetricPasswordResetIssued)
	notice := notify.PasswordResetNotice{
		Address:       acct.Email,
		DisplayName:   acct.DisplayName,
		Link:          resetLink(kc.ResetLinkBase, token, acct.Email),
		ExpiryMinutes: result.ExpiryMinutes,
		Origin:        clientIPFromContext(ctx),
		Kind:          kind,
		Template:      kc.EmailTemplate,
	}
	if err := e.notifier.Enqueue(ctx, notice); err != nil {
		e.metricInc(MetricPasswordResetNotifyFailure)
		e.log.Warn(ctx, "reset notice enqueue failed", "kind", string(kind), "account_id", acct.ID, "error", err)
	}
	e.emitAudit(ctx, kind, auditEventPasswordResetRequest, true, acct.ID, "", nil, nil)

	return result, nil
}

// ResetPassword sets a new password using a reset token. The password
// update, unlock and token consumption commit together or not at all.
//
// Failures wrap *ResetError (token problems), ErrPasswordReuse,
// ErrPasswordPolicy, ErrValidation or ErrTransient.
func (e *Engine) ResetPassword(ctx context.Context, kind account.Kind, req ResetPasswordRequest) error {
	if _, err := e.kindConfig(kind); err != nil {
		return err
	}
	if err := e.validateRequest(req); err != nil {
		return err
	}

	lookup := e.lookup.Hash(req.Email)
	var (
		outErr    error
		accountID string
	)
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		outErr, accountID = nil, ""
		acct, err := tx.AccountByLookup(ctx, kind, lookup)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		rec, reason, err := e.resets.Validate(ctx, tx, acct, req.Token)
		if err != nil {
			return err
		}
		if reason != resettoken.ReasonOK {
			outErr = &ResetError{Reason: reason}
			return nil
		}
		accountID = acct.ID

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
		acct.Unlock()
		acct.UpdatedAt = e.now()
		if err := tx.UpdateAccount(ctx, acct); err != nil {
			return err
		}
		return e.resets.Consume(ctx, tx, rec)
	})
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.log.Error(ctx, "password reset failed", "kind", string(kind), "error", err)
		return transient("reset password", err)
	}

	if outErr != nil {
		if errors.Is(outErr, ErrPasswordReuse) {
			e.metricInc(MetricPasswordResetReuseRejected)
		}
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, kind, auditEventPasswordResetConfirm, false, accountID, "", outErr, func() map[string]string {
			var re *ResetError
			if errors.As(outErr, &re) {
				return map[string]string{"reason": re.Reason.String()}
			}
			return nil
		})
		return outErr
	}

	if e.throttle != nil {
		if err := e.throttle.ResetLogin(ctx, string(kind), lookup); err != nil {
			e.log.Warn(ctx, "login throttle reset failed", "kind", string(kind), "error", err)
		}
	}
	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, kind, auditEventPasswordResetConfirm, true, accountID, "", nil, nil)
	return nil
}
