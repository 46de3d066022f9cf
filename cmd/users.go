package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/chord/internal/formatter"
	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/repositories"
	"github.com/desertthunder/chord/internal/shared"
	"github.com/urfave/cli/v3"
)

// userSummary is the JSON shape printed by the users commands.
type userSummary struct {
	ID          string               `json:"id"`
	DisplayName string               `json:"display_name"`
	Bio         string               `json:"bio,omitempty"`
	PhotoURL    string               `json:"photo_url,omitempty"`
	Location    *models.Location     `json:"location,omitempty"`
	Active      bool                 `json:"is_active"`
	Eligible    bool                 `json:"eligible"`
	LastSync    *time.Time           `json:"last_sync,omitempty"`
	Profile     *models.TasteProfile `json:"taste_profile,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

func summarize(u *models.User, withProfile bool) userSummary {
	s := userSummary{
		ID:          u.ID(),
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		PhotoURL:    u.PhotoURL,
		Location:    u.Location,
		Active:      u.Active,
		Eligible:    u.Eligible(),
		CreatedAt:   u.CreatedAt(),
	}
	if u.Profile != nil {
		lastSync := u.Profile.LastSync
		s.LastSync = &lastSync
		if withProfile {
			s.Profile = u.Profile
		}
	}
	return s
}

// UsersAdd creates a user, optionally with a location.
func (r *Runner) UsersAdd(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" {
		return fmt.Errorf("%w: display name is required", shared.ErrMissingArgument)
	}

	user := models.NewUser(0, name)
	user.Bio = cmd.String("bio")
	user.PhotoURL = cmd.String("photo")

	if cmd.IsSet("lat") || cmd.IsSet("lng") {
		if !cmd.IsSet("lat") || !cmd.IsSet("lng") {
			return fmt.Errorf("%w: --lat and --lng must be given together", shared.ErrInvalidArgument)
		}
		loc, err := models.NewLocation(cmd.Float("lat"), cmd.Float("lng"))
		if err != nil {
			return err
		}
		user.Location = &loc
	}

	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	if err := repositories.NewUserRepository(db).Create(ctx, user); err != nil {
		return err
	}

	r.logger.Info("user created", "user", user.ID())
	r.writePlain("✓ Created %s\n", user.DisplayName)
	r.writePlain("  ID: %s\n", user.ID())
	if user.Location == nil {
		r.writePlain("  Next: chord users locate %s --lat <lat> --lng <lng>\n", user.ID())
	}
	return nil
}

// UsersLocate stores a rounded location for a user.
func (r *Runner) UsersLocate(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.StringArg("user")
	if userID == "" {
		return fmt.Errorf("%w: user ID is required", shared.ErrMissingArgument)
	}

	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	loc, err := repositories.NewUserRepository(db).UpdateLocation(ctx, userID, cmd.Float("lat"), cmd.Float("lng"))
	if err != nil {
		return err
	}

	return r.writePlain("✓ Location set to %.2f, %.2f\n", loc.Latitude, loc.Longitude)
}

// UsersList prints all users, or only the ones a matching run would consider.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	criteria := map[string]any{}
	if cmd.Bool("eligible") {
		criteria["eligible"] = true
	}

	users, err := repositories.NewUserRepository(db).List(ctx, criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out := make([]userSummary, 0, len(users))
		for _, u := range users {
			out = append(out, summarize(u, false))
		}
		return r.writeJSON(out, cmd.Bool("pretty"))
	}

	if len(users) == 0 {
		return r.writePlain("No users yet.\n")
	}

	r.writePlain("Found %d users:\n\n", len(users))
	for i, u := range users {
		r.writePlain("%d. %s\n", i+1, u.DisplayName)
		r.writePlain("   ID: %s\n", u.ID())
		switch {
		case u.Eligible():
			r.writePlain("   Status: %s\n", r.palette.OK("eligible"))
		case u.Location == nil:
			r.writePlain("   Status: %s\n", r.palette.Warn("no location"))
		case u.Profile == nil:
			r.writePlain("   Status: %s\n", r.palette.Warn("not synced"))
		default:
			r.writePlain("   Status: %s\n", r.palette.Err("inactive"))
		}
	}
	return nil
}

// UsersShow prints one user with their taste summary.
func (r *Runner) UsersShow(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.StringArg("user")
	if userID == "" {
		return fmt.Errorf("%w: user ID is required", shared.ErrMissingArgument)
	}

	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	user, err := repositories.NewUserRepository(db).Get(ctx, userID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(summarize(user, true), cmd.Bool("pretty"))
	}

	r.writePlainHeader(user.DisplayName)
	r.writePlain("ID: %s\n", user.ID())
	if user.Bio != "" {
		r.writePlain("Bio: %s\n", user.Bio)
	}
	if user.Location != nil {
		r.writePlain("Location: %.2f, %.2f\n", user.Location.Latitude, user.Location.Longitude)
	}

	blocks, err := repositories.NewBlockRepository(db).ListByBlocker(ctx, user.ID())
	if err != nil {
		return err
	}
	if len(blocks) > 0 {
		r.writePlain("Blocked users: %d\n", len(blocks))
	}

	if user.Profile == nil {
		return r.writePlainln("No taste profile yet. Run: chord sync %s", user.ID())
	}

	r.writePlain("Last sync: %s\n", user.Profile.LastSync.Format("2006-01-02 15:04"))
	r.writePlainln("%s", r.palette.Title("Top artists"))
	for i, a := range user.Profile.TopArtists[:min(len(user.Profile.TopArtists), 10)] {
		r.writePlain("%2d. %s\n", i+1, a.Name)
	}
	r.writePlainln("%s", r.palette.Title("Top genres"))
	for i, g := range user.Profile.TopGenres[:min(len(user.Profile.TopGenres), 10)] {
		r.writePlain("%2d. %s (%.0f%%)\n", i+1, g.Name, g.Weight*100)
	}
	return nil
}

// UsersExport writes a user's profile as Markdown and JSON into a directory.
func (r *Runner) UsersExport(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.StringArg("user")
	if userID == "" {
		return fmt.Errorf("%w: user ID is required", shared.ErrMissingArgument)
	}

	db, err := r.database(ctx)
	if err != nil {
		return err
	}

	user, err := repositories.NewUserRepository(db).Get(ctx, userID)
	if err != nil {
		return err
	}

	result, err := formatter.WriteProfileExport(user, cmd.String("output"), cmd.Bool("photo"))
	if err != nil {
		return err
	}

	r.logger.Infof("profile exported to %v", result.Directory)
	r.writePlain("✓ Profile exported to %s/\n", result.Directory)
	for _, f := range result.Files {
		r.writePlain("  %s\n", f)
	}
	return nil
}
