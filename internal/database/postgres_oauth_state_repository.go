package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/mentionwatch/mentionwatch/internal/models"
)

type PostgresOAuthStateRepository struct {
	db *sql.DB
}

func NewPostgresOAuthStateRepository(db *sql.DB) *PostgresOAuthStateRepository {
	return &PostgresOAuthStateRepository{db: db}
}

func (r *PostgresOAuthStateRepository) Store(ctx context.Context, state *models.OAuthState) error {
	query := `
		INSERT INTO oauth_states (state, code_verifier, added_by, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query,
		state.State,
		state.CodeVerifier,
		nullString(state.AddedBy),
		state.CreatedAt,
	)
	return err
}

func (r *PostgresOAuthStateRepository) Get(ctx context.Context, state string) (*models.OAuthState, error) {
	query := `
		SELECT state, code_verifier, added_by, created_at
		FROM oauth_states
		WHERE state = $1
	`

	var record models.OAuthState
	var addedBy sql.NullString

	err := r.db.QueryRowContext(ctx, query, state).Scan(
		&record.State,
		&record.CodeVerifier,
		&addedBy,
		&record.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	record.AddedBy = addedBy.String
	return &record, nil
}

func (r *PostgresOAuthStateRepository) Delete(ctx context.Context, state string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE state = $1`, state)
	return err
}

func (r *PostgresOAuthStateRepository) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE created_at < $1`, before)
	if err != nil {
		return 0, err
	}

	n, err := result.RowsAffected()
	return int(n), err
}
