package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-sync/internal/adapter"
	"github.com/campus-sync/internal/models"
)

func TestResolveLogsInWithoutCachedToken(t *testing.T) {
	a := newFakeAdapter()
	account := &models.LinkedAccount{ID: "acc-1"}

	auth, err := NewTokenResolver().Resolve(context.Background(), a, account, adapter.Credentials{})
	require.NoError(t, err)

	assert.True(t, auth.Fresh)
	assert.Equal(t, 1, a.LoginCalls())
}

func TestResolveReusesTokenPassingValidityCheck(t *testing.T) {
	a := newFakeAdapter()
	a.capabilities = adapter.Capabilities{TokenCheck: true}
	a.tokenValidFn = func(auth *adapter.AuthResult) (bool, error) { return true, nil }

	account := &models.LinkedAccount{
		ID:          "acc-1",
		PortalToken: strPtr("cached-token"),
	}

	auth, err := NewTokenResolver().Resolve(context.Background(), a, account, adapter.Credentials{})
	require.NoError(t, err)

	assert.Equal(t, "cached-token", auth.Token)
	assert.False(t, auth.Fresh)
	assert.Equal(t, 0, a.LoginCalls(), "valid cached token must not trigger a login")
}

func TestResolveLogsInWhenValidityCheckRejects(t *testing.T) {
	a := newFakeAdapter()
	a.capabilities = adapter.Capabilities{TokenCheck: true}
	a.tokenValidFn = func(auth *adapter.AuthResult) (bool, error) { return false, nil }

	account := &models.LinkedAccount{
		ID:          "acc-1",
		PortalToken: strPtr("stale-token"),
	}

	auth, err := NewTokenResolver().Resolve(context.Background(), a, account, adapter.Credentials{})
	require.NoError(t, err)

	assert.True(t, auth.Fresh)
	assert.Equal(t, 1, a.LoginCalls())
}

func TestResolveFallsBackToLoginOnValidityCheckError(t *testing.T) {
	a := newFakeAdapter()
	a.capabilities = adapter.Capabilities{TokenCheck: true}
	a.tokenValidFn = func(auth *adapter.AuthResult) (bool, error) {
		return false, errors.New("portal timeout")
	}

	account := &models.LinkedAccount{
		ID:          "acc-1",
		PortalToken: strPtr("cached-token"),
	}

	auth, err := NewTokenResolver().Resolve(context.Background(), a, account, adapter.Credentials{})
	require.NoError(t, err)

	assert.True(t, auth.Fresh)
	assert.Equal(t, 1, a.LoginCalls())
}

func TestResolveUsesStoredExpiryWithoutTokenCheck(t *testing.T) {
	a := newFakeAdapter()

	t.Run("unexpired token is reused", func(t *testing.T) {
		account := &models.LinkedAccount{
			ID:             "acc-1",
			PortalToken:    strPtr("cached-token"),
			TokenExpiresAt: timePtr(time.Now().Add(time.Hour)),
		}

		auth, err := NewTokenResolver().Resolve(context.Background(), a, account, adapter.Credentials{})
		require.NoError(t, err)
		assert.Equal(t, "cached-token", auth.Token)
		assert.False(t, auth.Fresh)
	})

	t.Run("expired token triggers login", func(t *testing.T) {
		account := &models.LinkedAccount{
			ID:             "acc-1",
			PortalToken:    strPtr("cached-token"),
			TokenExpiresAt: timePtr(time.Now().Add(-time.Hour)),
		}

		auth, err := NewTokenResolver().Resolve(context.Background(), a, account, adapter.Credentials{})
		require.NoError(t, err)
		assert.True(t, auth.Fresh)
	})

	t.Run("missing expiry triggers login", func(t *testing.T) {
		account := &models.LinkedAccount{
			ID:          "acc-1",
			PortalToken: strPtr("cached-token"),
		}

		auth, err := NewTokenResolver().Resolve(context.Background(), a, account, adapter.Credentials{})
		require.NoError(t, err)
		assert.True(t, auth.Fresh)
	})
}

func TestResolvePropagatesLoginFailure(t *testing.T) {
	a := newFakeAdapter()
	a.loginFn = func(creds adapter.Credentials) (*adapter.AuthResult, error) {
		return nil, adapter.ErrInvalidCredentials
	}

	account := &models.LinkedAccount{ID: "acc-1"}

	_, err := NewTokenResolver().Resolve(context.Background(), a, account, adapter.Credentials{})
	assert.ErrorIs(t, err, adapter.ErrInvalidCredentials)
}
