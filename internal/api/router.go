package api

import (
	"net/http"
	"strings"

	"log/slog"

	"github.com/mentionwatch/mentionwatch/internal/ai"
	"github.com/mentionwatch/mentionwatch/internal/auth"
	"github.com/mentionwatch/mentionwatch/internal/models"
	"github.com/mentionwatch/mentionwatch/internal/polling"
	"github.com/mentionwatch/mentionwatch/internal/social"
)

// SetupRoutes configures all API routes
func SetupRoutes(mux *http.ServeMux, accounts models.AccountRepository, mentions models.MentionRepository, client *social.TwitterClient, tokens *social.TokenManager, oauthManager *social.OAuthManager, scheduler *polling.Scheduler, responder *ai.Responder, authConfig auth.Config, logger *slog.Logger) {
	authHandler := NewAuthHandler(authConfig, logger)
	oauthHandler := NewOAuthHandler(oauthManager, tokens, accounts, logger)
	accountsHandler := NewAccountsHandler(accounts, mentions, scheduler, logger)
	mentionsHandler := NewMentionsHandler(mentions, accounts, client, tokens, responder, logger)

	authMiddleware := auth.AuthMiddleware(authConfig)

	// Admin authentication routes (public)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		authMiddleware(http.HandlerFunc(authHandler.ValidateToken)).ServeHTTP(w, r)
	})

	// Twitter OAuth flow. The callback has to stay public: Twitter redirects
	// the account owner's browser here without our admin token.
	mux.HandleFunc("/api/auth/twitter/callback", oauthHandler.Callback)
	mux.HandleFunc("/api/auth/twitter/authorize", func(w http.ResponseWriter, r *http.Request) {
		authMiddleware(http.HandlerFunc(oauthHandler.Authorize)).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/auth/twitter/refresh", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			setCORS(w)
			w.WriteHeader(http.StatusOK)
			return
		}
		authMiddleware(http.HandlerFunc(oauthHandler.Refresh)).ServeHTTP(w, r)
	})

	// Account routes (admin only)
	mux.HandleFunc("/api/accounts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			setCORS(w)
			w.WriteHeader(http.StatusOK)
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				accountsHandler.List(w, r)
			} else {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/accounts/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/accounts/" {
			http.NotFound(w, r)
			return
		}

		if r.Method == http.MethodOptions {
			setCORS(w)
			w.WriteHeader(http.StatusOK)
			return
		}

		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Handle /api/accounts/:id/stats
			if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/stats") {
				accountsHandler.Stats(w, r)
				return
			}

			// Handle /api/accounts/:id/sync
			if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/sync") {
				accountsHandler.Sync(w, r)
				return
			}

			// Handle /api/accounts/:id
			switch r.Method {
			case http.MethodGet:
				accountsHandler.Get(w, r)
			case http.MethodPatch:
				accountsHandler.UpdateStatus(w, r)
			case http.MethodDelete:
				accountsHandler.Delete(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	// Mention routes (admin only)
	mux.HandleFunc("/api/mentions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			setCORS(w)
			w.WriteHeader(http.StatusOK)
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				mentionsHandler.List(w, r)
			} else {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/mentions/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/mentions/" {
			http.NotFound(w, r)
			return
		}

		if r.Method == http.MethodOptions {
			setCORS(w)
			w.WriteHeader(http.StatusOK)
			return
		}

		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Handle /api/mentions/:id/reply
			if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/reply") {
				mentionsHandler.Reply(w, r)
				return
			}

			// Handle /api/mentions/:id/dm
			if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/dm") {
				mentionsHandler.DirectMessage(w, r)
				return
			}

			// Handle /api/mentions/:id/suggest
			if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/suggest") {
				mentionsHandler.Suggest(w, r)
				return
			}

			// Handle /api/mentions/:id
			switch r.Method {
			case http.MethodGet:
				mentionsHandler.Get(w, r)
			case http.MethodPatch:
				mentionsHandler.UpdateStatus(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	// CORS preflight fallback
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			setCORS(w)
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	})
}
