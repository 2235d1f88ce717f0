package polling

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"github.com/mentionwatch/mentionwatch/internal/config"
	"github.com/mentionwatch/mentionwatch/internal/metrics"
	"github.com/mentionwatch/mentionwatch/internal/models"
	"github.com/mentionwatch/mentionwatch/internal/social"
)

// maxErrorMessageLen caps the stored error message for a failed cycle.
const maxErrorMessageLen = 500

// handshakeSweeper removes stale OAuth handshake records. Satisfied by
// social.OAuthManager.
type handshakeSweeper interface {
	SweepExpired(ctx context.Context)
}

// Scheduler drives the two interval timers: the mention fetch cycle and the
// lower-frequency token refresh sweep. Accounts within a cycle are processed
// sequentially so the shared app-credential rate budget can be respected via
// the circuit breaker: the first rate-limited account aborts the rest of the
// cycle.
type Scheduler struct {
	fetcher    *Fetcher
	tokens     *social.TokenManager
	accounts   models.AccountRepository
	handshakes handshakeSweeper
	collector  *metrics.Collector
	cfg        config.PollingConfig
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	running  bool
	busy     bool
	stopChan chan struct{}
}

// NewScheduler creates a poll scheduler. collector and handshakes may be nil.
func NewScheduler(fetcher *Fetcher, tokens *social.TokenManager, accounts models.AccountRepository, handshakes handshakeSweeper, collector *metrics.Collector, cfg config.PollingConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		fetcher:    fetcher,
		tokens:     tokens,
		accounts:   accounts,
		handshakes: handshakes,
		collector:  collector,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
}

// Start begins both timer loops and blocks until the context is cancelled
// or Stop is called. The two timers share one goroutine, so a fetch cycle
// and a refresh sweep never run concurrently.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting poll scheduler",
		"fetch_interval", s.cfg.FetchInterval,
		"sweep_interval", s.cfg.SweepInterval)

	fetchTicker := time.NewTicker(s.cfg.FetchInterval)
	defer fetchTicker.Stop()

	sweepTicker := time.NewTicker(s.cfg.SweepInterval)
	defer sweepTicker.Stop()

	// Initial cycle on start
	s.PollOnce(ctx)

	for {
		select {
		case <-fetchTicker.C:
			s.PollOnce(ctx)
		case <-sweepTicker.C:
			s.SweepTokens(ctx)
		case <-s.stopChan:
			s.logger.Info("poll scheduler stopped")
			s.setRunning(false)
			return
		case <-ctx.Done():
			s.logger.Info("poll scheduler stopping due to context cancellation")
			s.setRunning(false)
			return
		}
	}
}

// Stop stops the scheduler loop.
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

// IsRunning reports whether the scheduler loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

// beginCycle claims the busy flag. A tick that fires while a previous cycle
// is still in flight is skipped rather than run concurrently; two writers on
// the same account row would race.
func (s *Scheduler) beginCycle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *Scheduler) endCycle() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// PollOnce runs one fetch cycle over every active account. Also invokable
// directly for manual fetch-now administrative triggers.
func (s *Scheduler) PollOnce(ctx context.Context) {
	if !s.beginCycle() {
		s.logger.Warn("previous cycle still running, skipping this tick")
		if s.collector != nil {
			s.collector.IncCycleSkipped()
		}
		return
	}
	defer s.endCycle()

	start := s.now()

	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to list active accounts", "error", err)
		return
	}

	if len(accounts) == 0 {
		s.logger.Debug("no active accounts to poll")
		return
	}

	var polled, newMentions int

	for _, account := range accounts {
		fetched, err := s.pollAccount(ctx, account)
		polled++
		newMentions += fetched

		if err == nil {
			continue
		}

		if social.IsRateLimited(err) {
			// One account's rate limit signals the shared app budget is
			// exhausted; abort the rest of the cycle.
			s.recordFailure(ctx, account, models.SyncStatusRateLimited, err)
			s.logger.Warn("rate limit reached, stopping polling for this cycle",
				"account_id", account.ID,
				"username", account.TwitterUsername)
			if s.collector != nil {
				s.collector.IncFetchError("rate_limited")
			}
			break
		}

		s.recordFailure(ctx, account, models.SyncStatusError, err)
		s.logger.Error("error polling mentions",
			"account_id", account.ID,
			"username", account.TwitterUsername,
			"error", err)
		if s.collector != nil {
			s.collector.IncFetchError("transient")
		}
	}

	if s.collector != nil {
		s.collector.RecordCycle(s.now().Sub(start), polled, newMentions)
	}

	s.logger.Info("poll cycle complete",
		"accounts", polled,
		"new_mentions", newMentions,
		"duration", s.now().Sub(start))
}

// pollAccount ensures token validity then fetches mentions for one account.
// Returns the number of new mentions stored. A token_expired outcome is
// recorded on the account and reported as a clean skip, not an error.
func (s *Scheduler) pollAccount(ctx context.Context, account *models.Account) (int, error) {
	now := s.now()

	if account.TokenExpiresAt.Sub(now) <= s.cfg.RefreshMargin {
		if !s.tokens.Refresh(ctx, account) {
			if !now.Before(account.TokenExpiresAt) {
				// Unrecoverable without user re-authorization.
				s.recordFailureStatus(ctx, account, models.SyncStatusTokenExpired,
					"access token expired and refresh failed; reauthorization required")
				if s.collector != nil {
					s.collector.IncFetchError("token_expired")
				}
				return 0, nil
			}
			// Refresh failed but the token has time left; try the fetch.
			s.logger.Warn("token refresh failed, attempting fetch with current token",
				"account_id", account.ID,
				"username", account.TwitterUsername)
		}
	}

	mentions, err := s.fetcher.FetchNew(ctx, account)
	if err != nil {
		return 0, err
	}

	if err := s.accounts.MarkSynced(ctx, account.ID, s.now()); err != nil {
		s.logger.Error("failed to record sync success", "account_id", account.ID, "error", err)
	}

	return len(mentions), nil
}

// SyncAccount runs an immediate fetch for a single account, outside the
// normal cycle. Returns the number of new mentions stored.
func (s *Scheduler) SyncAccount(ctx context.Context, account *models.Account) (int, error) {
	if !s.beginCycle() {
		return 0, errSyncBusy
	}
	defer s.endCycle()

	fetched, err := s.pollAccount(ctx, account)
	if err != nil {
		status := models.SyncStatusError
		if social.IsRateLimited(err) {
			status = models.SyncStatusRateLimited
		}
		s.recordFailure(ctx, account, status, err)
		return 0, err
	}
	return fetched, nil
}

// errSyncBusy is returned when a manual sync is requested while a scheduled
// cycle is in flight.
var errSyncBusy = &busyError{}

type busyError struct{}

func (*busyError) Error() string { return "a poll cycle is already in progress" }

// IsBusy reports whether err indicates a manual sync collided with a running
// cycle.
func IsBusy(err error) bool {
	var be *busyError
	return errors.As(err, &be)
}

// SweepTokens proactively refreshes tokens expiring within the sweep margin.
// Runs on its own, lower-frequency timer. Also prunes stale OAuth handshakes.
func (s *Scheduler) SweepTokens(ctx context.Context) {
	if !s.beginCycle() {
		s.logger.Warn("cycle in progress, skipping token sweep")
		return
	}
	defer s.endCycle()

	if s.handshakes != nil {
		s.handshakes.SweepExpired(ctx)
	}

	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to list active accounts for token sweep", "error", err)
		return
	}

	refreshed := 0
	for _, account := range accounts {
		now := s.now()
		if account.TokenExpiresAt.Sub(now) > s.cfg.SweepMargin {
			continue
		}

		if s.tokens.Refresh(ctx, account) {
			refreshed++
			continue
		}

		if !now.Before(account.TokenExpiresAt) {
			s.recordFailureStatus(ctx, account, models.SyncStatusTokenExpired,
				"access token expired and refresh failed; reauthorization required")
		}
	}

	s.logger.Info("token sweep complete", "accounts", len(accounts), "refreshed", refreshed)
}

func (s *Scheduler) recordFailure(ctx context.Context, account *models.Account, status models.SyncStatus, err error) {
	s.recordFailureStatus(ctx, account, status, truncate(err.Error(), maxErrorMessageLen))
}

func (s *Scheduler) recordFailureStatus(ctx context.Context, account *models.Account, status models.SyncStatus, message string) {
	account.SyncStatus = status
	account.ErrorMessage = message

	if err := s.accounts.UpdateSyncStatus(ctx, account.ID, status, message); err != nil {
		s.logger.Error("failed to record sync status",
			"account_id", account.ID,
			"status", status,
			"error", err)
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
