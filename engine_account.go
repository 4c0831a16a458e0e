package marketauth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/store"
)

// Register creates an account of the given kind. Kinds configured with
// RequireVerification start UNVERIFIED and cannot log in until
// ConfirmVerification runs.
func (e *Engine) Register(ctx context.Context, kind account.Kind, req RegisterRequest) (*account.Summary, error) {
	kc, err := e.kindConfig(kind)
	if err != nil {
		return nil, err
	}
	if err := e.validateRequest(req); err != nil {
		return nil, err
	}
	hash, err := e.hashPassword(req.Password)
	if err != nil {
		e.emitAudit(ctx, kind, auditEventAccountCreation, false, "", "", err, nil)
		return nil, err
	}

	now := e.now()
	acct := &account.Account{
		ID:           uuid.NewString(),
		Kind:         kind,
		LookupHash:   e.lookup.Hash(req.Email),
		Email:        account.NormalizeEmail(req.Email),
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		Status:       account.InitialStatus(kc.RequireVerification),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateAccount(ctx, acct)
	})
	if errors.Is(err, store.ErrDuplicate) {
		e.metricInc(MetricAccountCreationDuplicate)
		e.emitAudit(ctx, kind, auditEventAccountCreation, false, "", "", ErrAccountExists, nil)
		return nil, ErrAccountExists
	}
	if err != nil {
		e.log.Error(ctx, "account creation failed", "kind", string(kind), "error", err)
		return nil, transient("register", err)
	}

	e.metricInc(MetricAccountCreationSuccess)
	e.emitAudit(ctx, kind, auditEventAccountCreation, true, acct.ID, "", nil, func() map[string]string {
		return map[string]string{"status": acct.Status.String()}
	})
	s := acct.Summary()
	return &s, nil
}
