package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"log/slog"

	"github.com/mentionwatch/mentionwatch/internal/models"
	"github.com/mentionwatch/mentionwatch/internal/polling"
)

type AccountsHandler struct {
	accounts  models.AccountRepository
	mentions  models.MentionRepository
	scheduler *polling.Scheduler
	logger    *slog.Logger
}

func NewAccountsHandler(accounts models.AccountRepository, mentions models.MentionRepository, scheduler *polling.Scheduler, logger *slog.Logger) *AccountsHandler {
	return &AccountsHandler{
		accounts:  accounts,
		mentions:  mentions,
		scheduler: scheduler,
		logger:    logger,
	}
}

// List returns all tracked accounts
// GET /api/accounts?include_inactive=true
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	accounts, err := h.accounts.ListAll(r.Context(), includeInactive)
	if err != nil {
		h.logger.Error("failed to list accounts", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}

	var active, paused int
	for _, a := range accounts {
		if a.IsActive {
			active++
		} else {
			paused++
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accounts":     accounts,
		"count":        len(accounts),
		"active_count": active,
		"paused_count": paused,
	})
}

// Get returns a single account by ID
// GET /api/accounts/:id
func (h *AccountsHandler) Get(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	id := pathSegment(r.URL.Path, "/api/accounts/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Account ID is required")
		return
	}

	account, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load account", "account_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load account")
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "Account not found")
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// UpdateStatusRequest carries the mutable tracking fields. Pointer fields
// distinguish "not provided" from a zero value.
type UpdateStatusRequest struct {
	IsActive   *bool              `json:"is_active,omitempty"`
	SyncStatus *models.SyncStatus `json:"sync_status,omitempty"`
}

// UpdateStatus pauses or resumes tracking for an account
// PATCH /api/accounts/:id
// Body: {"is_active": false} or {"sync_status": "paused"}
func (h *AccountsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	id := pathSegment(r.URL.Path, "/api/accounts/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Account ID is required")
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.IsActive == nil && req.SyncStatus == nil {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	if req.SyncStatus != nil && !models.ValidSyncStatus(*req.SyncStatus) {
		writeError(w, http.StatusBadRequest, "Invalid sync_status")
		return
	}

	account, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load account", "account_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load account")
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "Account not found")
		return
	}

	// Pausing and resuming keep is_active and sync_status coupled: an
	// explicit is_active change drives the status, and an explicit
	// active/paused status change drives the flag.
	isActive := account.IsActive
	syncStatus := account.SyncStatus

	if req.IsActive != nil {
		isActive = *req.IsActive
		if isActive {
			syncStatus = models.SyncStatusActive
		} else {
			syncStatus = models.SyncStatusPaused
		}
	}
	if req.SyncStatus != nil {
		syncStatus = *req.SyncStatus
		switch syncStatus {
		case models.SyncStatusActive:
			isActive = true
		case models.SyncStatusPaused:
			isActive = false
		}
	}

	if isActive != account.IsActive {
		if err := h.accounts.SetActive(r.Context(), id, isActive); err != nil {
			h.logger.Error("failed to update account active flag", "account_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to update account")
			return
		}
	}
	if syncStatus != account.SyncStatus {
		if err := h.accounts.UpdateSyncStatus(r.Context(), id, syncStatus, ""); err != nil {
			h.logger.Error("failed to update account sync status", "account_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to update account")
			return
		}
	}

	account.IsActive = isActive
	account.SyncStatus = syncStatus
	account.ErrorMessage = ""

	h.logger.Info("updated account status",
		"account_id", id,
		"is_active", isActive,
		"sync_status", syncStatus)

	writeJSON(w, http.StatusOK, account)
}

// Delete removes an account
// DELETE /api/accounts/:id?delete_messages=true
func (h *AccountsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	id := pathSegment(r.URL.Path, "/api/accounts/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Account ID is required")
		return
	}

	account, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load account", "account_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load account")
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "Account not found")
		return
	}

	deletedMentions := 0
	if r.URL.Query().Get("delete_messages") == "true" {
		n, err := h.mentions.DeleteByAccount(r.Context(), id)
		if err != nil {
			h.logger.Error("failed to delete account mentions", "account_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to delete account mentions")
			return
		}
		deletedMentions = n
	}

	if err := h.accounts.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete account", "account_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete account")
		return
	}

	h.logger.Info("deleted account",
		"account_id", id,
		"username", account.TwitterUsername,
		"deleted_mentions", deletedMentions)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":          "Account deleted",
		"deleted_mentions": deletedMentions,
	})
}

// Stats returns mention counts for one account
// GET /api/accounts/:id/stats
func (h *AccountsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	id := pathSegment(r.URL.Path, "/api/accounts/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Account ID is required")
		return
	}

	account, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load account", "account_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load account")
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "Account not found")
		return
	}

	byStatus := make(map[string]int)
	total := 0
	for _, status := range []models.MentionStatus{
		models.MentionStatusPending,
		models.MentionStatusProcessing,
		models.MentionStatusReplied,
		models.MentionStatusIgnored,
		models.MentionStatusError,
	} {
		n, err := h.mentions.Count(r.Context(), models.MentionFilter{AccountID: id, Status: status})
		if err != nil {
			h.logger.Error("failed to count mentions", "account_id", id, "status", status, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to compute stats")
			return
		}
		byStatus[string(status)] = n
		total += n
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account_id":             id,
		"twitter_username":       account.TwitterUsername,
		"sync_status":            account.SyncStatus,
		"last_synced_at":         account.LastSyncedAt,
		"total_mentions_tracked": account.TotalMentionsTracked,
		"mentions_stored":        total,
		"mentions_by_status":     byStatus,
	})
}

// Sync triggers an immediate fetch for one account
// POST /api/accounts/:id/sync
func (h *AccountsHandler) Sync(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	id := pathSegment(r.URL.Path, "/api/accounts/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Account ID is required")
		return
	}

	account, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load account", "account_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load account")
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "Account not found")
		return
	}
	if !account.IsActive {
		writeError(w, http.StatusBadRequest, "Account is paused")
		return
	}

	fetched, err := h.scheduler.SyncAccount(r.Context(), account)
	if err != nil {
		if polling.IsBusy(err) {
			writeError(w, http.StatusConflict, "A poll cycle is already in progress")
			return
		}
		h.logger.Error("manual sync failed", "account_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "Failed to fetch mentions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Sync complete",
		"new_mentions": fetched,
	})
}

// pathSegment extracts the first path segment after prefix.
// "/api/accounts/abc/stats" with prefix "/api/accounts/" yields "abc".
func pathSegment(path, prefix string) string {
	rest := strings.TrimPrefix(path, prefix)
	if rest == path {
		return ""
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
