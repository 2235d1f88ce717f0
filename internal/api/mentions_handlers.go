package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/mentionwatch/mentionwatch/internal/ai"
	"github.com/mentionwatch/mentionwatch/internal/models"
	"github.com/mentionwatch/mentionwatch/internal/social"
)

// defaultMentionPageSize bounds unfiltered mention listings.
const defaultMentionPageSize = 50

type MentionsHandler struct {
	mentions  models.MentionRepository
	accounts  models.AccountRepository
	client    *social.TwitterClient
	tokens    *social.TokenManager
	responder *ai.Responder
	logger    *slog.Logger
}

// NewMentionsHandler creates the mentions handler. responder may be nil when
// no AI key is configured; the suggest endpoint then returns 503.
func NewMentionsHandler(mentions models.MentionRepository, accounts models.AccountRepository, client *social.TwitterClient, tokens *social.TokenManager, responder *ai.Responder, logger *slog.Logger) *MentionsHandler {
	return &MentionsHandler{
		mentions:  mentions,
		accounts:  accounts,
		client:    client,
		tokens:    tokens,
		responder: responder,
		logger:    logger,
	}
}

// List returns stored mentions, newest tweet first
// GET /api/mentions?account_id=...&status=pending&limit=50&offset=0
func (h *MentionsHandler) List(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	filter := models.MentionFilter{
		AccountID: r.URL.Query().Get("account_id"),
		Limit:     defaultMentionPageSize,
	}

	if status := r.URL.Query().Get("status"); status != "" {
		ms := models.MentionStatus(status)
		if !models.ValidMentionStatus(ms) {
			writeError(w, http.StatusBadRequest, "Invalid status filter")
			return
		}
		filter.Status = ms
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	mentions, err := h.mentions.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list mentions", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list mentions")
		return
	}

	total, err := h.mentions.Count(r.Context(), models.MentionFilter{
		AccountID: filter.AccountID,
		Status:    filter.Status,
	})
	if err != nil {
		h.logger.Error("failed to count mentions", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list mentions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mentions": mentions,
		"count":    len(mentions),
		"total":    total,
	})
}

// Get returns a single mention by ID
// GET /api/mentions/:id
func (h *MentionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	mention, ok := h.loadMention(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mention)
}

// ReplyRequest carries the response text for a public reply or DM.
type ReplyRequest struct {
	Text string `json:"text"`
}

// Reply posts a public reply tweet to a mention
// POST /api/mentions/:id/reply
// Body: {"text": "..."}
func (h *MentionsHandler) Reply(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	mention, ok := h.loadMention(w, r)
	if !ok {
		return
	}

	var req ReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	account, accessToken, ok := h.readyAccount(w, r, mention.AccountID)
	if !ok {
		return
	}

	replyID, err := h.client.Reply(r.Context(), accessToken, mention.TweetID, req.Text)
	if err != nil {
		h.logger.Error("failed to post reply",
			"mention_id", mention.ID,
			"account_id", account.ID,
			"error", err)
		writeError(w, http.StatusBadGateway, "Failed to post reply")
		return
	}

	if err := h.mentions.RecordPublicReply(r.Context(), mention.ID, req.Text); err != nil {
		h.logger.Error("failed to record reply", "mention_id", mention.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Reply posted but failed to record it")
		return
	}

	h.logger.Info("posted public reply",
		"mention_id", mention.ID,
		"reply_tweet_id", replyID,
		"account_id", account.ID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":        "Reply posted",
		"reply_tweet_id": replyID,
	})
}

// DirectMessage sends a DM to the mention's author
// POST /api/mentions/:id/dm
// Body: {"text": "..."}
func (h *MentionsHandler) DirectMessage(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	mention, ok := h.loadMention(w, r)
	if !ok {
		return
	}

	var req ReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	account, accessToken, ok := h.readyAccount(w, r, mention.AccountID)
	if !ok {
		return
	}

	if err := h.client.SendDirectMessage(r.Context(), accessToken, mention.AuthorID, req.Text); err != nil {
		h.logger.Error("failed to send direct message",
			"mention_id", mention.ID,
			"account_id", account.ID,
			"error", err)
		writeError(w, http.StatusBadGateway, "Failed to send direct message")
		return
	}

	if err := h.mentions.RecordDirectMessage(r.Context(), mention.ID, req.Text); err != nil {
		h.logger.Error("failed to record direct message", "mention_id", mention.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Message sent but failed to record it")
		return
	}

	h.logger.Info("sent direct message",
		"mention_id", mention.ID,
		"recipient_id", mention.AuthorID,
		"account_id", account.ID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Direct message sent"})
}

// SuggestRequest optionally overrides the suggestion prompt.
type SuggestRequest struct {
	Prompt string `json:"prompt,omitempty"`
}

// Suggest drafts a reply for a mention using the AI responder
// POST /api/mentions/:id/suggest
// Body: {"prompt": "optional custom instructions"}
func (h *MentionsHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	if h.responder == nil {
		writeError(w, http.StatusServiceUnavailable, "AI suggestions are not configured")
		return
	}

	mention, ok := h.loadMention(w, r)
	if !ok {
		return
	}

	var req SuggestRequest
	if r.Body != nil {
		// Body is optional; a decode error on an empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	suggestion, err := h.responder.SuggestReply(r.Context(), mention.Text, req.Prompt)
	if err != nil {
		h.logger.Error("failed to generate suggestion", "mention_id", mention.ID, "error", err)
		writeError(w, http.StatusBadGateway, "Failed to generate suggestion")
		return
	}

	if err := h.mentions.AddCreditsUsed(r.Context(), mention.ID, 1); err != nil {
		h.logger.Error("failed to record credit usage", "mention_id", mention.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"suggestion": suggestion})
}

// UpdateStatusRequestMention carries a mention workflow status change.
type UpdateStatusRequestMention struct {
	Status models.MentionStatus `json:"status"`
}

// UpdateStatus sets a mention's workflow status
// PATCH /api/mentions/:id
// Body: {"status": "ignored"}
func (h *MentionsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	mention, ok := h.loadMention(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequestMention
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !models.ValidMentionStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	if err := h.mentions.UpdateStatus(r.Context(), mention.ID, req.Status); err != nil {
		h.logger.Error("failed to update mention status", "mention_id", mention.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update status")
		return
	}

	mention.Status = req.Status
	writeJSON(w, http.StatusOK, mention)
}

// loadMention resolves the mention from the URL path, writing the error
// response itself when the lookup fails.
func (h *MentionsHandler) loadMention(w http.ResponseWriter, r *http.Request) (*models.Mention, bool) {
	id := pathSegment(r.URL.Path, "/api/mentions/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Mention ID is required")
		return nil, false
	}

	mention, err := h.mentions.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load mention", "mention_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load mention")
		return nil, false
	}
	if mention == nil {
		writeError(w, http.StatusNotFound, "Mention not found")
		return nil, false
	}
	return mention, true
}

// readyAccount loads the mention's account and ensures it holds a usable
// access token, refreshing once if the current one is stale.
func (h *MentionsHandler) readyAccount(w http.ResponseWriter, r *http.Request, accountID string) (*models.Account, string, bool) {
	account, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		h.logger.Error("failed to load account", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load account")
		return nil, "", false
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "Account for this mention no longer exists")
		return nil, "", false
	}

	if !h.tokens.IsValid(r.Context(), account.AccessToken, account.TokenExpiresAt) {
		if !h.tokens.Refresh(r.Context(), account) {
			writeError(w, http.StatusUnauthorized, "Account token expired; reauthorization required")
			return nil, "", false
		}
	}

	return account, account.AccessToken, true
}
