package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"log/slog"

	"github.com/mentionwatch/mentionwatch/internal/config"
	"github.com/mentionwatch/mentionwatch/internal/models"
	"github.com/mentionwatch/mentionwatch/internal/social"
)

func pollingTestConfig() config.PollingConfig {
	return config.PollingConfig{
		FetchInterval: 5 * time.Minute,
		SweepInterval: 2 * time.Hour,
		RefreshMargin: 5 * time.Minute,
		SweepMargin:   time.Hour,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSocialClient(t *testing.T, handler http.HandlerFunc) *social.TwitterClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := social.NewTwitterClient("client-id", "client-secret", testLogger())
	client.BaseURL = srv.URL
	return client
}

type fakeAccountRepo struct {
	accounts []*models.Account
	getErr   error
}

func (r *fakeAccountRepo) add(account *models.Account) {
	r.accounts = append(r.accounts, account)
}

func (r *fakeAccountRepo) byID(id string) *models.Account {
	for _, a := range r.accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (r *fakeAccountRepo) Store(ctx context.Context, account *models.Account) error {
	r.add(account)
	return nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	if a := r.byID(id); a != nil {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeAccountRepo) GetByTwitterID(ctx context.Context, twitterID string) (*models.Account, error) {
	for _, a := range r.accounts {
		if a.TwitterID == twitterID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) ListActive(ctx context.Context) ([]*models.Account, error) {
	var out []*models.Account
	for _, a := range r.accounts {
		if a.IsActive {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) ListAll(ctx context.Context, includeInactive bool) ([]*models.Account, error) {
	var out []*models.Account
	for _, a := range r.accounts {
		if !includeInactive && !a.IsActive {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeAccountRepo) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error {
	if a := r.byID(id); a != nil {
		a.AccessToken = accessToken
		a.RefreshToken = refreshToken
		a.TokenExpiresAt = expiresAt
		a.SyncStatus = models.SyncStatusActive
		a.ErrorMessage = ""
	}
	return nil
}

func (r *fakeAccountRepo) UpdateSyncStatus(ctx context.Context, id string, status models.SyncStatus, errorMessage string) error {
	if a := r.byID(id); a != nil {
		a.SyncStatus = status
		a.ErrorMessage = errorMessage
	}
	return nil
}

func (r *fakeAccountRepo) MarkSynced(ctx context.Context, id string, syncedAt time.Time) error {
	if a := r.byID(id); a != nil {
		a.SyncStatus = models.SyncStatusActive
		a.ErrorMessage = ""
		a.LastSyncedAt = &syncedAt
	}
	return nil
}

func (r *fakeAccountRepo) IncrementMentionsTracked(ctx context.Context, id string, n int) error {
	if a := r.byID(id); a != nil {
		a.TotalMentionsTracked += n
	}
	return nil
}

func (r *fakeAccountRepo) SetActive(ctx context.Context, id string, active bool) error {
	if a := r.byID(id); a != nil {
		a.IsActive = active
	}
	return nil
}

func (r *fakeAccountRepo) Delete(ctx context.Context, id string) error {
	for i, a := range r.accounts {
		if a.ID == id {
			r.accounts = append(r.accounts[:i], r.accounts[i+1:]...)
			return nil
		}
	}
	return nil
}

type fakeMentionRepo struct {
	mentions []*models.Mention
}

func (r *fakeMentionRepo) byID(id string) *models.Mention {
	for _, m := range r.mentions {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (r *fakeMentionRepo) Insert(ctx context.Context, mention *models.Mention) (bool, error) {
	for _, m := range r.mentions {
		if m.TweetID == mention.TweetID {
			return false, nil
		}
	}
	cp := *mention
	r.mentions = append(r.mentions, &cp)
	return true, nil
}

func (r *fakeMentionRepo) GetByID(ctx context.Context, id string) (*models.Mention, error) {
	if m := r.byID(id); m != nil {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeMentionRepo) GetByTweetID(ctx context.Context, tweetID string) (*models.Mention, error) {
	for _, m := range r.mentions {
		if m.TweetID == tweetID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeMentionRepo) List(ctx context.Context, filter models.MentionFilter) ([]*models.Mention, error) {
	var out []*models.Mention
	for _, m := range r.mentions {
		if filter.AccountID != "" && m.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeMentionRepo) Count(ctx context.Context, filter models.MentionFilter) (int, error) {
	out, err := r.List(ctx, filter)
	return len(out), err
}

func (r *fakeMentionRepo) RecordPublicReply(ctx context.Context, id, response string) error {
	if m := r.byID(id); m != nil {
		m.PublicResponse = response
		m.Status = models.MentionStatusReplied
		return nil
	}
	return errors.New("mention not found")
}

func (r *fakeMentionRepo) RecordDirectMessage(ctx context.Context, id, response string) error {
	if m := r.byID(id); m != nil {
		m.DMResponse = response
		m.Status = models.MentionStatusReplied
		m.Redirected = true
		return nil
	}
	return errors.New("mention not found")
}

func (r *fakeMentionRepo) UpdateStatus(ctx context.Context, id string, status models.MentionStatus) error {
	if m := r.byID(id); m != nil {
		m.Status = status
		return nil
	}
	return errors.New("mention not found")
}

func (r *fakeMentionRepo) AddCreditsUsed(ctx context.Context, id string, n int) error {
	if m := r.byID(id); m != nil {
		m.CreditsUsed += n
		return nil
	}
	return errors.New("mention not found")
}

func (r *fakeMentionRepo) DeleteByAccount(ctx context.Context, accountID string) (int, error) {
	var kept []*models.Mention
	removed := 0
	for _, m := range r.mentions {
		if m.AccountID == accountID {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	r.mentions = kept
	return removed, nil
}
