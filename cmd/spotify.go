package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/chord/internal/repositories"
	"github.com/desertthunder/chord/internal/server"
	"github.com/desertthunder/chord/internal/services"
	"github.com/desertthunder/chord/internal/shared"
	"github.com/desertthunder/chord/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// authTimeout bounds how long the CLI waits for the browser callback.
const authTimeout = 2 * time.Minute

// SpotifyAuth performs the OAuth2 flow for a user and stores the resulting token.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.String("user")

	if r.oauth == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrMissingCredentials)
	}

	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	user, err := repositories.NewUserRepository(db).Get(ctx, userID)
	if err != nil {
		return err
	}

	token, err := r.doOAuth(ctx, r.oauth, "authorization")
	if err != nil {
		return err
	}

	if err := repositories.NewTokenRepository(db).Save(ctx, user.ID(), token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Token stored for %s\n\n", user.DisplayName)
	r.writePlain("You can now use: chord sync %s\n", user.ID())
	return nil
}

// Sync rebuilds a user's taste profile from their Spotify listening history.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.StringArg("user")
	if userID == "" {
		return fmt.Errorf("%w: user ID is required", shared.ErrMissingArgument)
	}

	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	syncer, err := r.syncer(db)
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 8)
	done := make(chan struct{})
	go r.printProgress(progress, done)

	profile, err := syncer.Sync(ctx, userID, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(profile, cmd.Bool("pretty"))
	}

	r.writePlainln("✓ Taste profile updated")
	r.writePlain("  Top artists: %d\n", len(profile.TopArtists))
	r.writePlain("  Top genres:  %d\n", len(profile.TopGenres))
	r.writePlain("  Top tracks:  %d\n", len(profile.TopTracks))
	for i, g := range profile.TopGenres[:min(len(profile.TopGenres), 5)] {
		r.writePlain("  %d. %s (%.0f%%)\n", i+1, g.Name, g.Weight*100)
	}
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, oauthSrv services.OAuthService, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := oauthSrv.AuthURL(state)
	oauthHandler := server.NewOAuthHandler(oauthSrv, state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", prefix, serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify %s...\n", prefix)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		httpServer.Close()
		return nil, ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	return result.Token, nil
}
