package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

const accountColumns = `
	id, twitter_id, twitter_username, display_name, profile_image_url,
	access_token, refresh_token, token_expires_at,
	is_active, sync_status, error_message, added_by,
	added_at, last_synced_at, total_mentions_tracked,
	created_at, updated_at
`

type PostgresAccountRepository struct {
	db *sql.DB
}

func NewPostgresAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

// Store inserts a new account, or on a twitter_id collision updates tokens
// and profile fields, resets sync_status and clears the error message. The
// account's ID and timestamps are overwritten with the persisted values, so
// a re-authorization hands back the existing row's identity.
func (r *PostgresAccountRepository) Store(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts
		(id, twitter_id, twitter_username, display_name, profile_image_url,
		 access_token, refresh_token, token_expires_at,
		 is_active, sync_status, added_by, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (twitter_id)
		DO UPDATE SET
			twitter_username = EXCLUDED.twitter_username,
			display_name = EXCLUDED.display_name,
			profile_image_url = EXCLUDED.profile_image_url,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			sync_status = 'active',
			error_message = NULL,
			updated_at = NOW()
		RETURNING id, is_active, sync_status, added_at, total_mentions_tracked, created_at, updated_at
	`

	return r.db.QueryRowContext(ctx, query,
		account.ID,
		account.TwitterID,
		account.TwitterUsername,
		nullString(account.DisplayName),
		nullString(account.ProfileImageURL),
		account.AccessToken,
		account.RefreshToken,
		account.TokenExpiresAt,
		account.IsActive,
		string(account.SyncStatus),
		nullString(account.AddedBy),
		account.AddedAt,
	).Scan(
		&account.ID,
		&account.IsActive,
		&account.SyncStatus,
		&account.AddedAt,
		&account.TotalMentionsTracked,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresAccountRepository) GetByTwitterID(ctx context.Context, twitterID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE twitter_id = $1`
	return r.scanAccount(r.db.QueryRowContext(ctx, query, twitterID))
}

func (r *PostgresAccountRepository) ListActive(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE is_active = true ORDER BY added_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanAccounts(rows)
}

func (r *PostgresAccountRepository) ListAll(ctx context.Context, includeInactive bool) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	if !includeInactive {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY added_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanAccounts(rows)
}

func (r *PostgresAccountRepository) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE accounts
		SET access_token = $2,
		    refresh_token = $3,
		    token_expires_at = $4,
		    sync_status = 'active',
		    error_message = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, accessToken, refreshToken, expiresAt)
	return err
}

func (r *PostgresAccountRepository) UpdateSyncStatus(ctx context.Context, id string, status models.SyncStatus, errorMessage string) error {
	query := `
		UPDATE accounts
		SET sync_status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, string(status), nullString(errorMessage))
	return err
}

func (r *PostgresAccountRepository) MarkSynced(ctx context.Context, id string, syncedAt time.Time) error {
	query := `
		UPDATE accounts
		SET sync_status = 'active',
		    error_message = NULL,
		    last_synced_at = $2,
		    updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, syncedAt)
	return err
}

func (r *PostgresAccountRepository) IncrementMentionsTracked(ctx context.Context, id string, n int) error {
	query := `
		UPDATE accounts
		SET total_mentions_tracked = total_mentions_tracked + $2, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, n)
	return err
}

func (r *PostgresAccountRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `
		UPDATE accounts
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, active)
	return err
}

func (r *PostgresAccountRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PostgresAccountRepository) scanAccount(row rowScanner) (*models.Account, error) {
	var account models.Account
	var displayName, profileImageURL, errorMessage, addedBy sql.NullString
	var lastSyncedAt sql.NullTime

	err := row.Scan(
		&account.ID,
		&account.TwitterID,
		&account.TwitterUsername,
		&displayName,
		&profileImageURL,
		&account.AccessToken,
		&account.RefreshToken,
		&account.TokenExpiresAt,
		&account.IsActive,
		&account.SyncStatus,
		&errorMessage,
		&addedBy,
		&account.AddedAt,
		&lastSyncedAt,
		&account.TotalMentionsTracked,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	account.DisplayName = displayName.String
	account.ProfileImageURL = profileImageURL.String
	account.ErrorMessage = errorMessage.String
	account.AddedBy = addedBy.String
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time
		account.LastSyncedAt = &t
	}

	return &account, nil
}

func (r *PostgresAccountRepository) scanAccounts(rows *sql.Rows) ([]*models.Account, error) {
	var accounts []*models.Account

	for rows.Next() {
		account, err := r.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
