package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/chord/internal/repositories"
	"github.com/desertthunder/chord/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthStatus reports whether a user has a stored Spotify token and when it expires.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.String("user")

	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	token, err := repositories.NewTokenRepository(db).Get(ctx, userID)
	if errors.Is(err, shared.ErrTokenNotFound) {
		return r.writePlain("✗ Not linked. Run: chord auth spotify --user %s\n", userID)
	}
	if err != nil {
		return err
	}

	r.writePlain("✓ Spotify linked\n")
	switch {
	case token.Expiry.IsZero():
		r.writePlain("Access token: no expiry\n")
	case token.Expiry.Before(r.now()):
		r.writePlain("Access token: expired %s (refreshes on next sync)\n", token.Expiry.Format("2006-01-02 15:04"))
	default:
		r.writePlain("Access token: valid until %s\n", token.Expiry.Format("2006-01-02 15:04"))
	}
	if token.RefreshToken == "" {
		r.writePlain("Refresh token: none, re-authorize when the access token expires\n")
	}
	return nil
}

// AuthLogout deletes a user's stored token.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.String("user")

	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	if err := repositories.NewTokenRepository(db).Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	return r.writePlain("✓ Spotify unlinked for %s\n", userID)
}
