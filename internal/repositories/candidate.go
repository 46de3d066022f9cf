package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/scoring"
)

// CandidateLimit bounds how many candidates one query returns.
const CandidateLimit = 100

// CandidateRepository is the SQLite candidate source.
//
// It loads active users with a profile and a location, drops the requester, blocked
// pairs in either direction and users already matched on the query date, then computes
// distance, similarity and activity in Go.
type CandidateRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCandidateRepository creates a new [CandidateRepository] with the given database connection
func NewCandidateRepository(db *sql.DB) *CandidateRepository {
	return &CandidateRepository{db: db, now: time.Now}
}

// Candidates returns at most [CandidateLimit] candidates within q.MaxDistanceKm, best
// [scoring.MatchScore] first.
func (r *CandidateRepository) Candidates(ctx context.Context, q models.CandidateQuery) ([]models.Candidate, error) {
	maxKm := q.MaxDistanceKm
	if maxKm <= 0 {
		maxKm = scoring.DefaultMaxDistanceKm
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.latitude, u.longitude, u.taste_profile
		FROM users u
		WHERE u.id <> ?
			AND u.is_active = 1
			AND u.deleted_at IS NULL
			AND u.latitude IS NOT NULL
			AND u.longitude IS NOT NULL
			AND u.taste_profile IS NOT NULL
			AND NOT EXISTS (
				SELECT 1 FROM blocks b
				WHERE (b.blocker_id = ? AND b.blocked_id = u.id)
					OR (b.blocker_id = u.id AND b.blocked_id = ?)
			)
			AND NOT EXISTS (
				SELECT 1 FROM match_participants p
				WHERE p.user_id = u.id AND p.match_date = ?
			)
		ORDER BY u.sequence ASC
	`, q.UserID, q.UserID, q.UserID, q.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	now := r.now()
	var candidates []models.Candidate
	for rows.Next() {
		var (
			id       string
			lat, lng float64
			profile  models.TasteProfile
		)
		if err := rows.Scan(&id, &lat, &lng, &profile); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}

		distance := q.Location.DistanceKm(models.Location{Latitude: lat, Longitude: lng})
		if distance > maxKm {
			continue
		}

		similarity, err := scoring.Similarity(q.Embedding, profile.Embedding)
		if err != nil {
			continue
		}

		c := models.Candidate{
			UserID:          id,
			MusicSimilarity: max(0, min(similarity, 1)),
			DistanceKm:      distance,
			ActivityScore:   scoring.ActivityScore(profile.LastSync, now),
		}
		if c.Validate() != nil {
			continue
		}
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	// truncate after scoring; the scheduler ranks by the same score
	ranked := scoring.Rank(candidates, maxKm)
	out := make([]models.Candidate, 0, min(len(ranked), CandidateLimit))
	for _, c := range ranked[:min(len(ranked), CandidateLimit)] {
		out = append(out, c.Candidate)
	}
	return out, nil
}
