// package repositories provides persistence layer implementations for all model types.
//
// Each repository wraps a *sql.DB, handling CRUD operations, soft deletes, and sequence generation.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// NextSequence atomically increments and returns the next sequence number for the given table.
//
// Sequence numbers provide human-readable ordering for entities (e.g., user #42).
// They are NOT exposed in CLI output but used internally for sorting and debugging.
func NextSequence(db *sql.DB, table string) (int, error) {
	return NextSequenceContext(context.Background(), db, table)
}

// NextSequenceContext is [NextSequence] with a caller-supplied context.
func NextSequenceContext(ctx context.Context, db *sql.DB, table string) (int, error) {
	var sequence int
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		sequenceTable := table + "_sequence"

		_, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable))
		if err != nil {
			return fmt.Errorf("failed to increment sequence: %w", err)
		}

		err = tx.QueryRowContext(ctx, fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence)
		if err != nil {
			return fmt.Errorf("failed to get sequence value: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sequence, nil
}

// withTx runs fn inside a transaction, committing on success and rolling back otherwise.
// fn must only use tx: in-memory databases have a single connection.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE or PRIMARY KEY violation.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
