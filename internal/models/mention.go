package models

import (
	"context"
	"time"
)

// MentionStatus tracks how far a mention has moved through the reply workflow.
type MentionStatus string

const (
	MentionStatusPending    MentionStatus = "pending"
	MentionStatusProcessing MentionStatus = "processing"
	MentionStatusReplied    MentionStatus = "replied"
	MentionStatusIgnored    MentionStatus = "ignored"
	MentionStatusError      MentionStatus = "error"
)

// ValidMentionStatus reports whether s is one of the known statuses.
func ValidMentionStatus(s MentionStatus) bool {
	switch s {
	case MentionStatusPending, MentionStatusProcessing, MentionStatusReplied,
		MentionStatusIgnored, MentionStatusError:
		return true
	}
	return false
}

// Mention is a tweet addressed to a tracked account. Sender and recipient
// fields are snapshots taken at fetch time, not kept live-synced.
type Mention struct {
	ID             string    `json:"id"`
	TweetID        string    `json:"tweet_id"`
	Text           string    `json:"text"`
	TweetCreatedAt time.Time `json:"tweet_created_at"`

	AuthorID              string `json:"author_id"`
	AuthorUsername        string `json:"author_username"`
	AuthorDisplayName     string `json:"author_display_name,omitempty"`
	AuthorProfileImageURL string `json:"author_profile_image_url,omitempty"`

	AccountID          string `json:"account_id"`
	AccountUsername    string `json:"account_username"`
	AccountDisplayName string `json:"account_display_name,omitempty"`

	Status         MentionStatus `json:"status"`
	PublicResponse string        `json:"public_response,omitempty"`
	DMResponse     string        `json:"dm_response,omitempty"`
	CreditsUsed    int           `json:"credits_used"`
	Redirected     bool          `json:"redirected"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MentionFilter narrows List queries.
type MentionFilter struct {
	AccountID string
	Status    MentionStatus
	Limit     int
	Offset    int
}

// MentionRepository defines persistence operations for mentions.
type MentionRepository interface {
	// Insert stores a mention. The tweet_id carries a uniqueness constraint;
	// an insert that collides with an existing tweet_id is a no-op and
	// returns created=false.
	Insert(ctx context.Context, mention *Mention) (created bool, err error)

	// GetByID retrieves a mention by internal ID. Returns nil when absent.
	GetByID(ctx context.Context, id string) (*Mention, error)

	// GetByTweetID retrieves a mention by its Twitter tweet ID.
	GetByTweetID(ctx context.Context, tweetID string) (*Mention, error)

	// List returns mentions matching the filter, newest tweet first.
	List(ctx context.Context, filter MentionFilter) ([]*Mention, error)

	// Count returns the number of mentions matching the filter.
	Count(ctx context.Context, filter MentionFilter) (int, error)

	// RecordPublicReply stores the public reply text and marks the mention replied.
	RecordPublicReply(ctx context.Context, id, response string) error

	// RecordDirectMessage stores the DM reply text and marks the mention replied.
	RecordDirectMessage(ctx context.Context, id, response string) error

	// UpdateStatus sets the processing status.
	UpdateStatus(ctx context.Context, id string, status MentionStatus) error

	// AddCreditsUsed adds n AI credits to the mention's usage counter.
	AddCreditsUsed(ctx context.Context, id string, n int) error

	// DeleteByAccount removes all mentions addressed to the given account.
	// Returns the number of rows removed.
	DeleteByAccount(ctx context.Context, accountID string) (int, error)
}
