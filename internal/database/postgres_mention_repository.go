package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

const mentionColumns = `
	id, tweet_id, text, tweet_created_at,
	author_id, author_username, author_display_name, author_profile_image_url,
	account_id, account_username, account_display_name,
	status, public_response, dm_response, credits_used, redirected,
	created_at, updated_at
`

type PostgresMentionRepository struct {
	db *sql.DB
}

func NewPostgresMentionRepository(db *sql.DB) *PostgresMentionRepository {
	return &PostgresMentionRepository{db: db}
}

// Insert stores a mention. tweet_id carries a unique index; a duplicate
// insert is absorbed by ON CONFLICT DO NOTHING and reported as created=false
// so concurrent fetch cycles stay idempotent at the storage layer.
func (r *PostgresMentionRepository) Insert(ctx context.Context, mention *models.Mention) (bool, error) {
	query := `
		INSERT INTO mentions
		(id, tweet_id, text, tweet_created_at,
		 author_id, author_username, author_display_name, author_profile_image_url,
		 account_id, account_username, account_display_name, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (tweet_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		mention.ID,
		mention.TweetID,
		mention.Text,
		mention.TweetCreatedAt,
		mention.AuthorID,
		mention.AuthorUsername,
		nullString(mention.AuthorDisplayName),
		nullString(mention.AuthorProfileImageURL),
		mention.AccountID,
		mention.AccountUsername,
		nullString(mention.AccountDisplayName),
		string(mention.Status),
	).Scan(&mention.ID, &mention.CreatedAt, &mention.UpdatedAt)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (r *PostgresMentionRepository) GetByID(ctx context.Context, id string) (*models.Mention, error) {
	query := `SELECT ` + mentionColumns + ` FROM mentions WHERE id = $1`
	return r.scanMention(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresMentionRepository) GetByTweetID(ctx context.Context, tweetID string) (*models.Mention, error) {
	query := `SELECT ` + mentionColumns + ` FROM mentions WHERE tweet_id = $1`
	return r.scanMention(r.db.QueryRowContext(ctx, query, tweetID))
}

func (r *PostgresMentionRepository) List(ctx context.Context, filter models.MentionFilter) ([]*models.Mention, error) {
	query := `SELECT ` + mentionColumns + ` FROM mentions`
	where, args := buildMentionFilter(filter)
	query += where
	query += ` ORDER BY tweet_created_at DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mentions []*models.Mention
	for rows.Next() {
		mention, err := r.scanMention(rows)
		if err != nil {
			return nil, err
		}
		mentions = append(mentions, mention)
	}

	return mentions, rows.Err()
}

func (r *PostgresMentionRepository) Count(ctx context.Context, filter models.MentionFilter) (int, error) {
	query := `SELECT COUNT(*) FROM mentions`
	where, args := buildMentionFilter(filter)
	query += where

	var count int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

func (r *PostgresMentionRepository) RecordPublicReply(ctx context.Context, id, response string) error {
	query := `
		UPDATE mentions
		SET status = 'replied', public_response = $2, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, response)
	return err
}

func (r *PostgresMentionRepository) RecordDirectMessage(ctx context.Context, id, response string) error {
	query := `
		UPDATE mentions
		SET status = 'replied', dm_response = $2, redirected = true, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, response)
	return err
}

func (r *PostgresMentionRepository) UpdateStatus(ctx context.Context, id string, status models.MentionStatus) error {
	query := `
		UPDATE mentions
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, string(status))
	return err
}

func (r *PostgresMentionRepository) AddCreditsUsed(ctx context.Context, id string, n int) error {
	query := `
		UPDATE mentions
		SET credits_used = credits_used + $2, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, n)
	return err
}

func (r *PostgresMentionRepository) DeleteByAccount(ctx context.Context, accountID string) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM mentions WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, err
	}

	n, err := result.RowsAffected()
	return int(n), err
}

func buildMentionFilter(filter models.MentionFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if filter.AccountID != "" {
		args = append(args, filter.AccountID)
		clauses = append(clauses, fmt.Sprintf("account_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", args
	}

	where := " WHERE " + clauses[0]
	for _, clause := range clauses[1:] {
		where += " AND " + clause
	}
	return where, args
}

func (r *PostgresMentionRepository) scanMention(row rowScanner) (*models.Mention, error) {
	var mention models.Mention
	var authorDisplayName, authorProfileImageURL, accountDisplayName sql.NullString
	var publicResponse, dmResponse sql.NullString

	err := row.Scan(
		&mention.ID,
		&mention.TweetID,
		&mention.Text,
		&mention.TweetCreatedAt,
		&mention.AuthorID,
		&mention.AuthorUsername,
		&authorDisplayName,
		&authorProfileImageURL,
		&mention.AccountID,
		&mention.AccountUsername,
		&accountDisplayName,
		&mention.Status,
		&publicResponse,
		&dmResponse,
		&mention.CreditsUsed,
		&mention.Redirected,
		&mention.CreatedAt,
		&mention.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	mention.AuthorDisplayName = authorDisplayName.String
	mention.AuthorProfileImageURL = authorProfileImageURL.String
	mention.AccountDisplayName = accountDisplayName.String
	mention.PublicResponse = publicResponse.String
	mention.DMResponse = dmResponse.String

	return &mention, nil
}
