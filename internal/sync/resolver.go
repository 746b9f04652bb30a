// Package sync implements the orchestration pipeline that pulls one linked
// account's records from its college portal and persists them.
package sync

import (
	"context"
	"time"

	"github.com/campus-sync/internal/adapter"
	"github.com/campus-sync/internal/logging"
	"github.com/campus-sync/internal/models"
)

// TokenResolver decides whether a cached portal session can be reused or a
// fresh login is required.
type TokenResolver struct{}

// NewTokenResolver creates a new token resolver
func NewTokenResolver() *TokenResolver {
	return &TokenResolver{}
}

// Resolve returns the auth to use for the fetch pass. Policy, in order:
// no cached token means login; an adapter-provided validity check wins over
// the stored expiry; otherwise the stored expiry is compared to now. The
// only side effect is the login network call itself.
func (tr *TokenResolver) Resolve(ctx context.Context, a adapter.CollegeAdapter, account *models.LinkedAccount, creds adapter.Credentials) (*adapter.AuthResult, error) {
	logger := logging.FromContext(ctx).WithField("accountId", account.ID)

	if account.PortalToken == nil || *account.PortalToken == "" {
		logger.Debug("No cached portal token, logging in")
		return a.Login(ctx, creds)
	}

	cached := &adapter.AuthResult{
		Token:     *account.PortalToken,
		ExpiresAt: account.TokenExpiresAt,
		Fresh:     false,
	}
	if account.PortalUserID != nil {
		cached.PortalUserID = *account.PortalUserID
	}

	if a.Capabilities().TokenCheck {
		valid, err := a.IsTokenValid(ctx, cached)
		if err != nil {
			logger.WithError(err).Warn("Token validity check failed, falling back to login")
			return a.Login(ctx, creds)
		}
		if valid {
			logger.Debug("Cached portal token passed validity check, reusing")
			return cached, nil
		}
		logger.Debug("Cached portal token rejected by validity check, logging in")
		return a.Login(ctx, creds)
	}

	if account.TokenExpiresAt != nil && account.TokenExpiresAt.After(time.Now()) {
		logger.Debug("Cached portal token not yet expired, reusing")
		return cached, nil
	}

	logger.Debug("Cached portal token expired or expiry unknown, logging in")
	return a.Login(ctx, creds)
}
