package social

import (
	"context"
	"time"

	"log/slog"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

// TokenManager verifies and refreshes account access tokens against the
// platform's token endpoint.
type TokenManager struct {
	client   *TwitterClient
	accounts models.AccountRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewTokenManager creates a token manager backed by the given client and
// account store.
func NewTokenManager(client *TwitterClient, accounts models.AccountRepository, logger *slog.Logger) *TokenManager {
	return &TokenManager{
		client:   client,
		accounts: accounts,
		logger:   logger,
		now:      time.Now,
	}
}

// IsValid reports whether the access token is usable: not past its expiry
// and accepted by the platform's identity endpoint. Any network or HTTP
// failure counts as invalid; validity is never assumed on error.
func (m *TokenManager) IsValid(ctx context.Context, accessToken string, expiresAt time.Time) bool {
	if !m.now().Before(expiresAt) {
		return false
	}

	if _, err := m.client.Me(ctx, accessToken); err != nil {
		m.logger.Debug("token liveness check failed", "error", err)
		return false
	}

	return true
}

// Refresh exchanges the account's refresh token for a new token pair and
// persists it. Returns false on any failure, in which case neither the
// in-memory account nor its persisted row is modified; the caller decides
// how to record the failure.
func (m *TokenManager) Refresh(ctx context.Context, account *models.Account) bool {
	token, err := m.client.RefreshAccessToken(ctx, account.RefreshToken)
	if err != nil {
		m.logger.Warn("token refresh failed",
			"account_id", account.ID,
			"username", account.TwitterUsername,
			"error", err)
		return false
	}

	refreshToken := token.RefreshToken
	if refreshToken == "" {
		// Platform may omit the rotated refresh token; keep the prior one.
		refreshToken = account.RefreshToken
	}

	// Expiry comes from the platform's expires_in, never a local assumption.
	expiresAt := m.now().Add(time.Duration(token.ExpiresIn) * time.Second)

	if err := m.accounts.UpdateTokens(ctx, account.ID, token.AccessToken, refreshToken, expiresAt); err != nil {
		m.logger.Error("failed to persist refreshed tokens",
			"account_id", account.ID,
			"error", err)
		return false
	}

	account.AccessToken = token.AccessToken
	account.RefreshToken = refreshToken
	account.TokenExpiresAt = expiresAt
	account.SyncStatus = models.SyncStatusActive
	account.ErrorMessage = ""

	m.logger.Info("token refreshed",
		"account_id", account.ID,
		"username", account.TwitterUsername,
		"expires_at", expiresAt.Format(time.RFC3339))

	return true
}
