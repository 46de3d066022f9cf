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

const matchColumns = `id, user1_id, user2_id, created_date, match_score, music_similarity, distance_km,
	is_active, reveal_requested_by, reveal_requested_at, identities_revealed, version, created_at, updated_at`

// MatchRepository persists [models.Match] rows.
//
// Matches are never hard-deleted. Creation is an insert-if-absent keyed on each
// participant and the day; every later change is a compare-and-set on the version column.
type MatchRepository struct {
	db *sql.DB
}

// NewMatchRepository creates a new [MatchRepository] with the given database connection
func NewMatchRepository(db *sql.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// CreateIfAbsent commits match only if neither participant already has a match on its
// date. It returns [shared.ErrAlreadyMatched] when the commit loses to an existing match.
//
// The match row and one participant row per user are written in a single transaction;
// the participant primary key (user_id, match_date) is the uniqueness guarantee.
func (r *MatchRepository) CreateIfAbsent(ctx context.Context, match *models.Match) error {
	if err := match.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id := shared.GenerateID()

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO matches (id, user1_id, user2_id, pair_key, created_date, match_score, music_similarity,
				distance_km, is_active, identities_revealed, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, 0, 0, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			id, match.User1ID, match.User2ID, match.PairKey(), match.Date, match.Score, match.MusicSimilarity,
			match.DistanceKm, match.CreatedAt(), match.UpdatedAt(),
		)
		if err != nil {
			return err
		}

		for _, userID := range []string{match.User1ID, match.User2ID} {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO match_participants (user_id, match_date, match_id) VALUES (?, ?, ?)`,
				userID, match.Date, id,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s or %s on %s", shared.ErrAlreadyMatched, match.User1ID, match.User2ID, match.Date)
	}
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}

	match.SetID(id)
	match.Active = true
	match.Version = 0
	return nil
}

// Get retrieves a match by ID regardless of its state.
func (r *MatchRepository) Get(ctx context.Context, id string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = ?`

	match, err := scanMatch(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrMatchNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query match: %w", err)
	}
	return match, nil
}

// HasMatchOn reports whether the user took part in any match on date, active or not.
func (r *MatchRepository) HasMatchOn(ctx context.Context, userID, date string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM match_participants WHERE user_id = ? AND match_date = ?)`,
		userID, date,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query participants: %w", err)
	}
	return exists, nil
}

// ActiveForUserOn returns the user's active match dated date.
func (r *MatchRepository) ActiveForUserOn(ctx context.Context, userID, date string) (*models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE (user1_id = ? OR user2_id = ?) AND created_date = ? AND is_active = 1
		ORDER BY created_at DESC
		LIMIT 1
	`

	match, err := scanMatch(r.db.QueryRowContext(ctx, query, userID, userID, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s on %s", shared.ErrNoMatchToday, userID, date)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query match: %w", err)
	}
	return match, nil
}

// History lists the user's active matches, newest first.
func (r *MatchRepository) History(ctx context.Context, userID string, limit int) ([]*models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE (user1_id = ? OR user2_id = ?) AND is_active = 1
		ORDER BY created_date DESC, created_at DESC
		LIMIT ?
	`
	return r.query(ctx, query, userID, userID, limit)
}

// ListByDate lists every match dated date, including inactive ones.
func (r *MatchRepository) ListByDate(ctx context.Context, date string) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE created_date = ? ORDER BY created_at ASC`
	return r.query(ctx, query, date)
}

// CompareAndSwap writes the reveal fields and active flag of match if its stored
// version still equals match.Version. On success match.Version is incremented;
// otherwise [shared.ErrStaleState] is returned and nothing changes.
func (r *MatchRepository) CompareAndSwap(ctx context.Context, match *models.Match) error {
	now := time.Now().UTC()
	result, err := casMatch(ctx, r.db, match, now)
	if err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}
	if err := expectRow(result, shared.ErrStaleState, match.ID()); err != nil {
		return err
	}

	match.Version++
	match.SetUpdatedAt(now)
	return nil
}

// Block deactivates match and records that blockerID blocked the other party.
//
// The block relation, the deactivation and the deactivation of any other active
// match between the same two users are written in one transaction. The match
// deactivation is a compare-and-set on match.Version.
func (r *MatchRepository) Block(ctx context.Context, match *models.Match, blockerID string) error {
	blockedID := match.Other(blockerID)
	if blockedID == "" {
		return shared.ErrNotAParty
	}

	now := time.Now().UTC()
	next := *match
	next.Active = false

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if match.Active {
			result, err := casMatch(ctx, tx, &next, now)
			if err != nil {
				return fmt.Errorf("failed to deactivate match: %w", err)
			}
			if err := expectRow(result, shared.ErrStaleState, match.ID()); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO blocks (blocker_id, blocked_id, match_id, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (blocker_id, blocked_id) DO NOTHING
		`, blockerID, blockedID, match.ID(), now)
		if err != nil {
			return fmt.Errorf("failed to record block: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE matches
			SET is_active = 0, version = version + 1, updated_at = ?
			WHERE pair_key = ? AND is_active = 1 AND id <> ?
		`, now, match.PairKey(), match.ID())
		if err != nil {
			return fmt.Errorf("failed to deactivate pair matches: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if match.Active {
		match.Active = false
		match.Version++
		match.SetUpdatedAt(now)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func casMatch(ctx context.Context, db execer, match *models.Match, now time.Time) (sql.Result, error) {
	var requestedBy sql.NullString
	if match.RevealRequestedBy != "" {
		requestedBy = sql.NullString{String: match.RevealRequestedBy, Valid: true}
	}
	var requestedAt sql.NullTime
	if match.RevealRequestedAt != nil {
		requestedAt = sql.NullTime{Time: match.RevealRequestedAt.UTC(), Valid: true}
	}

	return db.ExecContext(ctx, `
		UPDATE matches
		SET is_active = ?, reveal_requested_by = ?, reveal_requested_at = ?, identities_revealed = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, boolToInt(match.Active), requestedBy, requestedAt, boolToInt(match.Revealed), now, match.ID(), match.Version)
}

func (r *MatchRepository) query(ctx context.Context, query string, args ...any) ([]*models.Match, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return matches, nil
}

func scanMatch(row scanner) (*models.Match, error) {
	var (
		m           models.Match
		id          string
		requestedBy sql.NullString
		requestedAt sql.NullTime
		createdAt   time.Time
		updatedAt   time.Time
	)

	err := row.Scan(&id, &m.User1ID, &m.User2ID, &m.Date, &m.Score, &m.MusicSimilarity, &m.DistanceKm,
		&m.Active, &requestedBy, &requestedAt, &m.Revealed, &m.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	m.SetID(id)
	m.SetCreatedAt(createdAt)
	m.SetUpdatedAt(updatedAt)
	m.RevealRequestedBy = requestedBy.String
	if requestedAt.Valid {
		m.RevealRequestedAt = &requestedAt.Time
	}
	return &m, nil
}
