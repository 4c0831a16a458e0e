package marketauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/marketauth/account"
	"github.com/MrEthical07/marketauth/jwt"
)

// Logout closes the session bound to token. It reports false when the
// session was already closed or does not belong to the token's account.
//
// An authentic token that has expired cannot name a live session any more,
// so the newest open session of its account from the caller's origin is
// closed instead.
func (e *Engine) Logout(ctx context.Context, kind account.Kind, token string) (bool, error) {
	if _, err := e.kindConfig(kind); err != nil {
		return false, err
	}

	claims, err := e.issuer.Verify(token)
	expired := errors.Is(err, jwt.ErrExpired)
	if err != nil && !expired {
		return false, errors.Join(ErrInvalidSessionToken, err)
	}
	if claims.Kind != "" && claims.Kind != string(kind) {
		return false, ErrInvalidSessionToken
	}

	var closed bool
	sessionID := claims.SessionID
	if expired {
		closed, err = e.ledger.CloseMostRecentOpen(ctx, kind, claims.AccountID, clientIPFromContext(ctx))
		sessionID = ""
		e.metricInc(MetricLogoutFallback)
	} else {
		closed, err = e.ledger.Close(ctx, kind, claims.SessionID, claims.AccountID)
	}
	if err != nil {
		e.log.Error(ctx, "session close failed", "kind", string(kind), "account_id", claims.AccountID, "error", err)
		return false, transient("logout", err)
	}

	if closed {
		e.metricInc(MetricLogout)
	}
	e.emitAudit(ctx, kind, auditEventLogoutSession, closed, claims.AccountID, sessionID, nil, func() map[string]string {
		if expired {
			return map[string]string{"fallback": "expired_token"}
		}
		return nil
	})
	return closed, nil
}

// LogoutByAccount closes the newest open session of accountID from the
// caller's origin (see WithClientIP). It is meant for callers that no
// longer hold a token.
func (e *Engine) LogoutByAccount(ctx context.Context, kind account.Kind, accountID string) (bool, error) {
	if _, err := e.kindConfig(kind); err != nil {
		return false, err
	}
	closed, err := e.ledger.CloseMostRecentOpen(ctx, kind, accountID, clientIPFromContext(ctx))
	if err != nil {
		e.log.Error(ctx, "session close failed", "kind", string(kind), "account_id", accountID, "error", err)
		return false, transient("logout", err)
	}
	if closed {
		e.metricInc(MetricLogoutAll)
	}
	e.emitAudit(ctx, kind, auditEventLogoutAll, closed, accountID, "", nil, nil)
	return closed, nil
}
