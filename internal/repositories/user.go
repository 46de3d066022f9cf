package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/shared"
)

const userColumns = `id, sequence, display_name, photo_url, bio, latitude, longitude, is_active,
	taste_profile, created_at, updated_at, deleted_at`

var _ models.Repository[*models.User] = (*UserRepository)(nil)

// UserRepository implements [models.Repository] for user [models.User] persistence.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database with generated ID and sequence
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequenceContext(ctx, r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	user.SetID(shared.GenerateID())
	user.SetSequence(sequence)

	lat, lng := locationArgs(user.Location)
	var lastSync sql.NullTime
	if user.Profile != nil {
		lastSync = sql.NullTime{Time: user.Profile.LastSync, Valid: true}
	}

	query := `
		INSERT INTO users (id, sequence, display_name, photo_url, bio, latitude, longitude, is_active,
			taste_profile, last_sync, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		user.ID(), sequence, user.DisplayName, user.PhotoURL, user.Bio, lat, lng, boolToInt(user.Active),
		user.Profile, lastSync, user.CreatedAt(), user.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return user, nil
}

// Update modifies the display fields and active flag of an existing user.
// Location and taste profile have dedicated writers.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	user.SetUpdatedAt(now)

	query := `
		UPDATE users
		SET display_name = ?, photo_url = ?, bio = ?, is_active = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, user.DisplayName, user.PhotoURL, user.Bio, boolToInt(user.Active), now, user.ID())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return expectRow(result, shared.ErrUserNotFound, user.ID())
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return expectRow(result, shared.ErrUserNotFound, id)
}

// List retrieves all users matching the given criteria, excluding soft-deleted users.
//
// Supported criteria: "active" (bool) and "eligible" (bool, active with a location and
// a taste profile).
func (r *UserRepository) List(ctx context.Context, criteria map[string]any) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`

	args := []any{}

	if active, ok := criteria["active"].(bool); ok {
		query += " AND is_active = ?"
		args = append(args, boolToInt(active))
	}

	if eligible, ok := criteria["eligible"].(bool); ok && eligible {
		query += " AND is_active = 1 AND latitude IS NOT NULL AND longitude IS NOT NULL AND taste_profile IS NOT NULL"
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// Eligible lists users who can take part in a matching run.
func (r *UserRepository) Eligible(ctx context.Context) ([]*models.User, error) {
	return r.List(ctx, map[string]any{"eligible": true})
}

// UpdateLocation validates and rounds lat/lng to about 1 km before storing them.
func (r *UserRepository) UpdateLocation(ctx context.Context, id string, lat, lng float64) (models.Location, error) {
	loc, err := models.NewLocation(lat, lng)
	if err != nil {
		return models.Location{}, err
	}

	now := time.Now().UTC()
	query := `
		UPDATE users
		SET latitude = ?, longitude = ?, location_updated_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, loc.Latitude, loc.Longitude, now, now, id)
	if err != nil {
		return models.Location{}, fmt.Errorf("failed to update location: %w", err)
	}

	if err := expectRow(result, shared.ErrUserNotFound, id); err != nil {
		return models.Location{}, err
	}
	return loc, nil
}

// SaveProfile replaces the user's taste profile wholesale.
func (r *UserRepository) SaveProfile(ctx context.Context, id string, profile models.TasteProfile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE users
		SET taste_profile = ?, last_sync = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, profile, profile.LastSync, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to save taste profile: %w", err)
	}

	return expectRow(result, shared.ErrUserNotFound, id)
}

func locationArgs(loc *models.Location) (sql.NullFloat64, sql.NullFloat64) {
	if loc == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: loc.Latitude, Valid: true}, sql.NullFloat64{Float64: loc.Longitude, Valid: true}
}

func scanUser(row scanner) (*models.User, error) {
	var (
		userID    string
		sequence  int
		name      string
		photoURL  sql.NullString
		bio       sql.NullString
		lat, lng  sql.NullFloat64
		active    bool
		profile   sql.Null[models.TasteProfile]
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := row.Scan(&userID, &sequence, &name, &photoURL, &bio, &lat, &lng, &active,
		&profile, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	user := models.NewUser(sequence, name)
	user.SetID(userID)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	user.PhotoURL = photoURL.String
	user.Bio = bio.String
	user.Active = active
	if lat.Valid && lng.Valid {
		user.Location = &models.Location{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	if profile.Valid {
		user.Profile = &profile.V
	}
	if deletedAt.Valid {
		user.SetDeletedAt(&deletedAt.Time)
	}

	return user, nil
}

// expectRow turns a zero-row update into notFound.
func expectRow(result sql.Result, notFound error, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}
