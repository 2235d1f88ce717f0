package models

import (
	"context"
	"time"
)

// SyncStatus classifies the polling health of a tracked account.
type SyncStatus string

const (
	SyncStatusActive       SyncStatus = "active"
	SyncStatusPaused       SyncStatus = "paused"
	SyncStatusError        SyncStatus = "error"
	SyncStatusTokenExpired SyncStatus = "token_expired"
	SyncStatusRateLimited  SyncStatus = "rate_limited"
)

// ValidSyncStatus reports whether s is one of the known statuses.
func ValidSyncStatus(s SyncStatus) bool {
	switch s {
	case SyncStatusActive, SyncStatusPaused, SyncStatusError,
		SyncStatusTokenExpired, SyncStatusRateLimited:
		return true
	}
	return false
}

// Account is a Twitter account being tracked for mentions.
type Account struct {
	ID              string `json:"id"`
	TwitterID       string `json:"twitter_id"`
	TwitterUsername string `json:"twitter_username"`
	DisplayName     string `json:"display_name,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`

	// OAuth2 credentials, rotated by the token manager.
	AccessToken    string    `json:"-"`
	RefreshToken   string    `json:"-"`
	TokenExpiresAt time.Time `json:"token_expires_at"`

	IsActive     bool       `json:"is_active"`
	SyncStatus   SyncStatus `json:"sync_status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	AddedBy      string     `json:"added_by,omitempty"`

	AddedAt              time.Time  `json:"added_at"`
	LastSyncedAt         *time.Time `json:"last_synced_at,omitempty"`
	TotalMentionsTracked int        `json:"total_mentions_tracked"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AccountRepository defines persistence operations for tracked accounts.
type AccountRepository interface {
	// Store inserts a new account or, when the twitter_id already exists,
	// updates its tokens and profile fields and clears any prior error state.
	Store(ctx context.Context, account *Account) error

	// GetByID retrieves an account by internal ID. Returns nil when absent.
	GetByID(ctx context.Context, id string) (*Account, error)

	// GetByTwitterID retrieves an account by its Twitter user ID.
	GetByTwitterID(ctx context.Context, twitterID string) (*Account, error)

	// ListActive returns accounts with is_active=true, oldest first.
	ListActive(ctx context.Context) ([]*Account, error)

	// ListAll returns every account, optionally including inactive ones.
	ListAll(ctx context.Context, includeInactive bool) ([]*Account, error)

	// UpdateTokens overwrites the token triple after a successful refresh,
	// resets sync_status to active and clears error_message.
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error

	// UpdateSyncStatus records a failed cycle outcome for the account.
	UpdateSyncStatus(ctx context.Context, id string, status SyncStatus, errorMessage string) error

	// MarkSynced records a successful fetch cycle: sync_status=active,
	// error_message cleared, last_synced_at set.
	MarkSynced(ctx context.Context, id string, syncedAt time.Time) error

	// IncrementMentionsTracked adds n to the monotonic mention counter.
	IncrementMentionsTracked(ctx context.Context, id string, n int) error

	// SetActive toggles tracking on or off.
	SetActive(ctx context.Context, id string, active bool) error

	// Delete removes the account.
	Delete(ctx context.Context, id string) error
}
