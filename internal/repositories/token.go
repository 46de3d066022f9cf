package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/chord/internal/shared"
	"golang.org/x/oauth2"
)

// TokenRepository stores provider OAuth tokens per user so syncs can run unattended.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new [TokenRepository] with the given database connection
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Save upserts the user's token. An empty refresh token keeps the stored one, since
// providers do not always rotate it.
func (r *TokenRepository) Save(ctx context.Context, userID string, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", shared.ErrInvalidArgument)
	}

	var expiresAt sql.NullTime
	if !token.Expiry.IsZero() {
		expiresAt = sql.NullTime{Time: token.Expiry.UTC(), Valid: true}
	}

	query := `
		INSERT INTO spotify_tokens (user_id, access_token, refresh_token, token_type, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = COALESCE(NULLIF(excluded.refresh_token, ''), spotify_tokens.refresh_token),
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, userID, token.AccessToken, token.RefreshToken, token.TokenType, expiresAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Get returns the stored token for the user.
func (r *TokenRepository) Get(ctx context.Context, userID string) (*oauth2.Token, error) {
	query := `
		SELECT access_token, refresh_token, token_type, expires_at
		FROM spotify_tokens
		WHERE user_id = ?
	`

	var (
		access    string
		refresh   sql.NullString
		tokenType sql.NullString
		expiresAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, userID).Scan(&access, &refresh, &tokenType, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrTokenNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query token: %w", err)
	}

	token := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh.String,
		TokenType:    tokenType.String,
	}
	if expiresAt.Valid {
		token.Expiry = expiresAt.Time
	}
	return token, nil
}

// Delete removes the user's token.
func (r *TokenRepository) Delete(ctx context.Context, userID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM spotify_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return expectRow(result, shared.ErrTokenNotFound, userID)
}
