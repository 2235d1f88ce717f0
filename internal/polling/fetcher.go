package polling

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/mentionwatch/mentionwatch/internal/models"
	"github.com/mentionwatch/mentionwatch/internal/social"
)

// Fetcher pulls the most recent page of mentions for an account,
// deduplicates against already-stored tweet IDs and persists new ones.
// The caller is responsible for handing it an account whose token is
// believed valid.
type Fetcher struct {
	client   *social.TwitterClient
	accounts models.AccountRepository
	mentions models.MentionRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewFetcher creates a mention fetcher.
func NewFetcher(client *social.TwitterClient, accounts models.AccountRepository, mentions models.MentionRepository, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client:   client,
		accounts: accounts,
		mentions: mentions,
		logger:   logger,
		now:      time.Now,
	}
}

// FetchNew fetches one page of mentions and returns the ones not seen
// before, in the order the platform returned them. An empty result is a
// valid outcome. On any fetch or storage failure the account's mention
// counter is left untouched; rows inserted before the failure stay, and the
// per-tweet existence check makes the next cycle converge.
func (f *Fetcher) FetchNew(ctx context.Context, account *models.Account) ([]*models.Mention, error) {
	page, err := f.client.Mentions(ctx, account.AccessToken, account.TwitterID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mentions for @%s: %w", account.TwitterUsername, err)
	}

	created := make([]*models.Mention, 0, len(page.Data))

	for _, tweet := range page.Data {
		mention := f.buildMention(account, tweet, page)

		inserted, err := f.mentions.Insert(ctx, mention)
		if err != nil {
			return nil, fmt.Errorf("failed to store mention %s: %w", tweet.ID, err)
		}
		if inserted {
			created = append(created, mention)
		}
	}

	if len(created) > 0 {
		if err := f.accounts.IncrementMentionsTracked(ctx, account.ID, len(created)); err != nil {
			return nil, fmt.Errorf("failed to update mention counter: %w", err)
		}
		account.TotalMentionsTracked += len(created)
	}

	f.logger.Info("fetched mentions",
		"username", account.TwitterUsername,
		"returned", len(page.Data),
		"new", len(created))

	return created, nil
}

// buildMention assembles a Mention with sender and recipient snapshots
// taken at fetch time.
func (f *Fetcher) buildMention(account *models.Account, tweet social.Tweet, page *social.MentionsPage) *models.Mention {
	now := f.now()

	mention := &models.Mention{
		ID:                 uuid.New().String(),
		TweetID:            tweet.ID,
		Text:               tweet.Text,
		TweetCreatedAt:     tweet.CreatedAt,
		AuthorID:           tweet.AuthorID,
		AccountID:          account.ID,
		AccountUsername:    account.TwitterUsername,
		AccountDisplayName: account.DisplayName,
		Status:             models.MentionStatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if author, ok := page.AuthorByID(tweet.AuthorID); ok {
		mention.AuthorUsername = author.Username
		mention.AuthorDisplayName = author.Name
		mention.AuthorProfileImageURL = author.ProfileImageURL
	} else {
		// Author missing from the expansion payload; synthesize a handle so
		// the record is still displayable.
		mention.AuthorUsername = "user_" + tweet.AuthorID
	}

	return mention
}
