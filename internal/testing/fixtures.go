package testing

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/repositories"
	"github.com/desertthunder/chord/internal/shared"
)

// NewTestDB opens an in-memory SQLite database with migrations applied and closes it
// when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// NewTestLogger returns a debug-level logger writing into the returned buffer.
func NewTestLogger() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := shared.NewLogger(&buf)
	shared.SetLogLevel(logger, log.DebugLevel)
	return logger, &buf
}

// Embedding returns a full-length embedding with every component set to v.
func Embedding(v float64) []float64 {
	e := make([]float64, models.EmbeddingDims)
	for i := range e {
		e[i] = v
	}
	return e
}

// Profile returns a valid taste profile around embedding, synced now.
func Profile(embedding []float64, artists ...models.ArtistSummary) *models.TasteProfile {
	return &models.TasteProfile{
		Embedding:  embedding,
		TopArtists: artists,
		LastSync:   time.Now().UTC(),
	}
}

// SeedUser inserts an active user with a location and the given profile. A nil
// profile leaves the user without one.
func SeedUser(t *testing.T, db *sql.DB, name string, lat, lng float64, profile *models.TasteProfile) *models.User {
	t.Helper()

	user := models.NewUser(0, name)
	loc, err := models.NewLocation(lat, lng)
	if err != nil {
		t.Fatalf("invalid location: %v", err)
	}
	user.Location = &loc
	user.Profile = profile

	if err := repositories.NewUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	return user
}

// SeedMatch commits a match between a and b on date.
func SeedMatch(t *testing.T, db *sql.DB, a, b *models.User, date string) *models.Match {
	t.Helper()

	match := models.NewMatch(a.ID(), b.ID(), date, 0.9, 0.95, 1.5)
	if err := repositories.NewMatchRepository(db).CreateIfAbsent(context.Background(), match); err != nil {
		t.Fatalf("failed to create match: %v", err)
	}
	return match
}
