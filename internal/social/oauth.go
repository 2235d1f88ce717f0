package social

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/mentionwatch/mentionwatch/internal/config"
	"github.com/mentionwatch/mentionwatch/internal/models"
)

// authorizeURL is where users are sent to approve the app. Unlike the API
// host it lives on twitter.com, so it is configured separately.
const authorizeURL = "https://twitter.com/i/oauth2/authorize"

// OAuthManager runs the OAuth2/PKCE handshake for tracked accounts.
// Handshake state is persisted per correlation token and is single-use:
// consumed on a successful callback, otherwise left to age out of its
// ten-minute window.
type OAuthManager struct {
	client   *TwitterClient
	accounts models.AccountRepository
	states   models.OAuthStateRepository
	cfg      config.TwitterConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewOAuthManager creates a handshake manager.
func NewOAuthManager(client *TwitterClient, accounts models.AccountRepository, states models.OAuthStateRepository, cfg config.TwitterConfig, logger *slog.Logger) *OAuthManager {
	return &OAuthManager{
		client:   client,
		accounts: accounts,
		states:   states,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Authorize issues a new handshake and returns the authorization URL the
// user should be redirected to.
func (m *OAuthManager) Authorize(ctx context.Context, addedBy string) (string, error) {
	verifier, err := randomToken(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate code verifier: %w", err)
	}

	state, err := randomToken(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	handshake := &models.OAuthState{
		State:        state,
		CodeVerifier: verifier,
		AddedBy:      addedBy,
		CreatedAt:    m.now(),
	}

	if err := m.states.Store(ctx, handshake); err != nil {
		return "", fmt.Errorf("failed to store handshake state: %w", err)
	}

	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {m.cfg.ClientID},
		"redirect_uri":          {m.cfg.CallbackURL},
		"scope":                 {m.cfg.Scopes},
		"state":                 {state},
		"code_challenge":        {codeChallenge(verifier)},
		"code_challenge_method": {"S256"},
	}

	m.logger.Info("issued authorization URL", "state", state)

	return authorizeURL + "?" + params.Encode(), nil
}

// HandleCallback consumes the handshake identified by state, exchanges the
// authorization code, and creates or updates the tracked account matched by
// its Twitter user ID. The handshake record is deleted only after a
// successful exchange; on failure it remains until its window closes.
func (m *OAuthManager) HandleCallback(ctx context.Context, code, state string) (*models.Account, error) {
	handshake, err := m.states.Get(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("failed to look up handshake state: %w", err)
	}
	if handshake == nil || handshake.Expired(m.now()) {
		return nil, ErrHandshakeInvalid
	}

	token, err := m.client.ExchangeAuthorizationCode(ctx, code, handshake.CodeVerifier, m.cfg.CallbackURL)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	// The identity endpoint intermittently answers 429 right after an
	// exchange; retry with backoff before giving up.
	var profile *UserProfile
	err = Retry(ctx, DefaultRetryPolicy(), func() error {
		p, err := m.client.Me(ctx, token.AccessToken)
		if err != nil {
			if IsRateLimited(err) {
				return NewRetryableError(err)
			}
			return err
		}
		profile = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user profile: %w", err)
	}

	now := m.now()

	account := &models.Account{
		ID:              uuid.New().String(),
		TwitterID:       profile.ID,
		TwitterUsername: profile.Username,
		DisplayName:     profile.Name,
		ProfileImageURL: profile.ProfileImageURL,
		AccessToken:     token.AccessToken,
		RefreshToken:    token.RefreshToken,
		TokenExpiresAt:  now.Add(time.Duration(token.ExpiresIn) * time.Second),
		IsActive:        true,
		SyncStatus:      models.SyncStatusActive,
		AddedBy:         handshake.AddedBy,
		AddedAt:         now,
	}

	// Upsert keyed on twitter_id: a re-authorization updates tokens and
	// profile fields and clears error state without touching counters.
	if err := m.accounts.Store(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to store account: %w", err)
	}

	if err := m.states.Delete(ctx, state); err != nil {
		m.logger.Warn("failed to delete consumed handshake state", "state", state, "error", err)
	}

	m.logger.Info("account authorized",
		"account_id", account.ID,
		"twitter_id", account.TwitterID,
		"username", account.TwitterUsername)

	return account, nil
}

// SweepExpired removes handshakes older than their validity window.
func (m *OAuthManager) SweepExpired(ctx context.Context) {
	removed, err := m.states.DeleteExpired(ctx, m.now().Add(-models.OAuthStateTTL))
	if err != nil {
		m.logger.Error("failed to sweep expired handshake states", "error", err)
		return
	}
	if removed > 0 {
		m.logger.Debug("swept expired handshake states", "count", removed)
	}
}

// codeChallenge derives the S256 challenge: SHA-256 of the verifier,
// base64url without padding.
func codeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// randomToken returns n random bytes encoded as unpadded base64url.
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
