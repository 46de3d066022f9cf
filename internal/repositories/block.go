package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/shared"
)

// BlockRepository reads block relations. Blocks are written by [MatchRepository.Block]
// together with the match deactivation.
type BlockRepository struct {
	db *sql.DB
}

// NewBlockRepository creates a new [BlockRepository] with the given database connection
func NewBlockRepository(db *sql.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

// Blocked reports whether either user has blocked the other.
func (r *BlockRepository) Blocked(ctx context.Context, a, b string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM blocks
			WHERE (blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)
		)
	`, a, b, b, a).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query blocks: %w", err)
	}
	return exists, nil
}

// ListByBlocker lists the blocks a user has made, newest first.
func (r *BlockRepository) ListByBlocker(ctx context.Context, blockerID string) ([]models.Block, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT blocker_id, blocked_id, match_id, created_at
		FROM blocks
		WHERE blocker_id = ?
		ORDER BY created_at DESC
	`, blockerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer rows.Close()

	var blocks []models.Block
	for rows.Next() {
		var (
			b       models.Block
			matchID sql.NullString
		)
		if err := rows.Scan(&b.BlockerID, &b.BlockedID, &matchID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		b.MatchID = matchID.String
		blocks = append(blocks, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return blocks, nil
}

// ReportRepository persists [models.Report] rows.
type ReportRepository struct {
	db *sql.DB
}

// NewReportRepository creates a new [ReportRepository] with the given database connection
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a report, defaulting the reason to [models.DefaultReportReason].
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	if report.ReporterID == "" || report.ReportedID == "" || report.MatchID == "" {
		return fmt.Errorf("%w: report requires reporter, reported user and match", shared.ErrMissingArgument)
	}
	if report.Reason == "" {
		report.Reason = models.DefaultReportReason
	}

	report.ID = shared.GenerateID()
	report.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reports (id, reporter_id, reported_id, match_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, report.ID, report.ReporterID, report.ReportedID, report.MatchID, report.Reason, report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// ListByMatch lists the reports filed against a match, oldest first.
func (r *ReportRepository) ListByMatch(ctx context.Context, matchID string) ([]models.Report, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, reporter_id, reported_id, match_id, reason, created_at
		FROM reports
		WHERE match_id = ?
		ORDER BY created_at ASC
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var rep models.Report
		if err := rows.Scan(&rep.ID, &rep.ReporterID, &rep.ReportedID, &rep.MatchID, &rep.Reason, &rep.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, rep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return reports, nil
}
