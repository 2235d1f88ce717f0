package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/mentionwatch/mentionwatch/internal/auth"
	"github.com/mentionwatch/mentionwatch/internal/models"
	"github.com/mentionwatch/mentionwatch/internal/social"
)

// OAuthHandler drives the account authorization flow: issuing authorization
// URLs, handling the platform callback and manual token refreshes.
type OAuthHandler struct {
	oauth    *social.OAuthManager
	tokens   *social.TokenManager
	accounts models.AccountRepository
	logger   *slog.Logger
}

// NewOAuthHandler creates an OAuth flow handler.
func NewOAuthHandler(oauth *social.OAuthManager, tokens *social.TokenManager, accounts models.AccountRepository, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		oauth:    oauth,
		tokens:   tokens,
		accounts: accounts,
		logger:   logger,
	}
}

// Authorize handles GET /api/auth/twitter/authorize
// Issues a PKCE handshake and redirects the caller to the platform's
// authorization page.
func (h *OAuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	addedBy, _ := auth.GetUserIDFromContext(r.Context())

	authURL, err := h.oauth.Authorize(r.Context(), addedBy)
	if err != nil {
		h.logger.Error("failed to issue authorization URL", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to start authorization")
		return
	}

	// Browser flows follow the redirect; API clients can read the URL.
	if r.URL.Query().Get("redirect") == "false" {
		writeJSON(w, http.StatusOK, map[string]string{"authorization_url": authURL})
		return
	}

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// Callback handles GET /api/auth/twitter/callback?code=...&state=...
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "Missing code or state parameter")
		return
	}

	account, err := h.oauth.HandleCallback(r.Context(), code, state)
	if err != nil {
		if errors.Is(err, social.ErrHandshakeInvalid) {
			writeError(w, http.StatusBadRequest, "Invalid or expired state")
			return
		}
		h.logger.Error("OAuth callback failed", "error", err)
		writeError(w, http.StatusBadRequest, "Failed to authenticate with Twitter")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Successfully authenticated with Twitter",
		"account": map[string]string{
			"id":               account.ID,
			"twitter_id":       account.TwitterID,
			"twitter_username": account.TwitterUsername,
		},
	})
}

// RefreshRequest identifies the account whose token should be refreshed.
type RefreshRequest struct {
	AccountID string `json:"account_id"`
}

// Refresh handles POST /api/auth/twitter/refresh
// Forces a token refresh for one account outside the sweep schedule.
func (h *OAuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	account, err := h.accounts.GetByID(r.Context(), req.AccountID)
	if err != nil {
		h.logger.Error("failed to load account", "account_id", req.AccountID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load account")
		return
	}
	if account == nil || account.RefreshToken == "" {
		writeError(w, http.StatusNotFound, "Account not found or no refresh token available")
		return
	}

	if !h.tokens.Refresh(r.Context(), account) {
		writeError(w, http.StatusBadRequest, "Failed to refresh token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Successfully refreshed token",
		"expires_at": account.TokenExpiresAt,
	})
}
