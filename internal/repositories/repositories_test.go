package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/scoring"
	"github.com/desertthunder/chord/internal/shared"
	"golang.org/x/oauth2"
)

const testDate = "2026-04-01"

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func testProfile(fill float64, lastSync time.Time) *models.TasteProfile {
	embedding := make([]float64, models.EmbeddingDims)
	for i := range embedding {
		embedding[i] = fill
	}
	return &models.TasteProfile{
		Embedding: embedding,
		TopArtists: []models.ArtistSummary{
			{Name: "Band", SpotifyID: "a1", Genres: []string{"indie"}},
		},
		TopGenres: []models.GenreWeight{{Name: "indie", Weight: 1}},
		LastSync:  lastSync,
	}
}

// createEligibleUser inserts an active user with a location and profile.
func createEligibleUser(t *testing.T, repo *UserRepository, name string, lat, lng float64) *models.User {
	t.Helper()

	user := models.NewUser(0, name)
	loc, err := models.NewLocation(lat, lng)
	if err != nil {
		t.Fatalf("invalid location: %v", err)
	}
	user.Location = &loc
	user.Profile = testProfile(0.5, time.Now().UTC())

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func createMatch(t *testing.T, repo *MatchRepository, a, b *models.User, date string) *models.Match {
	t.Helper()

	match := models.NewMatch(a.ID(), b.ID(), date, 0.9, 0.95, 2)
	if err := repo.CreateIfAbsent(context.Background(), match); err != nil {
		t.Fatalf("failed to create match: %v", err)
	}
	return match
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := models.NewUser(0, "Test User")

		err := repo.Create(ctx, user)
		if err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		if user.ID() == "" {
			t.Error("user ID should be set after creation")
		}
		if user.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", user.Sequence())
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := createEligibleUser(t, repo, "Asha", 12.9716, 77.5946)

		retrieved, err := repo.Get(ctx, user.ID())
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}

		if retrieved.ID() != user.ID() {
			t.Errorf("expected ID %s, got %s", user.ID(), retrieved.ID())
		}
		if retrieved.DisplayName != "Asha" {
			t.Errorf("expected name Asha, got %s", retrieved.DisplayName)
		}
		if retrieved.Location == nil || retrieved.Location.Latitude != 12.97 {
			t.Errorf("expected rounded location, got %+v", retrieved.Location)
		}
		if retrieved.Profile == nil || len(retrieved.Profile.Embedding) != models.EmbeddingDims {
			t.Fatalf("expected stored profile, got %+v", retrieved.Profile)
		}
		if retrieved.Profile.TopGenres[0].Name != "indie" {
			t.Errorf("expected genre summary to round-trip, got %+v", retrieved.Profile.TopGenres)
		}
		if !retrieved.Eligible() {
			t.Error("retrieved user should be eligible")
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := models.NewUser(0, "Test User")

		if err := repo.Create(ctx, user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		user.Bio = "vinyl and long walks"
		user.Active = false
		if err := repo.Update(ctx, user); err != nil {
			t.Fatalf("failed to update user: %v", err)
		}

		retrieved, err := repo.Get(ctx, user.ID())
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if retrieved.Bio != "vinyl and long walks" || retrieved.Active {
			t.Errorf("update not persisted: %+v", retrieved)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := models.NewUser(0, "Test User")

		if err := repo.Create(ctx, user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		if err := repo.Delete(ctx, user.ID()); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}

		_, err := repo.Get(ctx, user.ID())
		if err == nil {
			t.Error("expected error when getting deleted user")
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)

		createEligibleUser(t, repo, "User One", 12.97, 77.59)
		createEligibleUser(t, repo, "User Two", 12.98, 77.60)

		bare := models.NewUser(0, "User Three")
		if err := repo.Create(ctx, bare); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		retrieved, err := repo.List(ctx, map[string]any{})
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(retrieved) != 3 {
			t.Errorf("expected 3 users, got %d", len(retrieved))
		}

		eligible, err := repo.Eligible(ctx)
		if err != nil {
			t.Fatalf("failed to list eligible users: %v", err)
		}
		if len(eligible) != 2 {
			t.Errorf("expected 2 eligible users, got %d", len(eligible))
		}
		if len(eligible) > 0 && eligible[0].DisplayName != "User One" {
			t.Errorf("expected sequence order, got %s first", eligible[0].DisplayName)
		}
	})

	t.Run("UpdateLocation", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := models.NewUser(0, "Test User")
		if err := repo.Create(ctx, user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		loc, err := repo.UpdateLocation(ctx, user.ID(), 19.07609, 72.877426)
		if err != nil {
			t.Fatalf("failed to update location: %v", err)
		}
		if loc.Latitude != 19.08 || loc.Longitude != 72.88 {
			t.Errorf("expected rounded location, got %+v", loc)
		}

		retrieved, err := repo.Get(ctx, user.ID())
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if retrieved.Location == nil || *retrieved.Location != loc {
			t.Errorf("expected stored location %+v, got %+v", loc, retrieved.Location)
		}
	})

	t.Run("SaveProfile", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := createEligibleUser(t, repo, "Asha", 12.97, 77.59)

		replacement := testProfile(0.25, time.Now().UTC())
		replacement.TopGenres = nil
		if err := repo.SaveProfile(ctx, user.ID(), *replacement); err != nil {
			t.Fatalf("failed to save profile: %v", err)
		}

		retrieved, err := repo.Get(ctx, user.ID())
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if retrieved.Profile.Embedding[0] != 0.25 {
			t.Errorf("expected replaced embedding, got %v", retrieved.Profile.Embedding[0])
		}
		if len(retrieved.Profile.TopGenres) != 0 {
			t.Errorf("expected profile to be replaced wholesale, got %+v", retrieved.Profile.TopGenres)
		}
	})
}

func TestTokenRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	user := createEligibleUser(t, NewUserRepository(db), "Asha", 12.97, 77.59)
	repo := NewTokenRepository(db)

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	if err := repo.Save(ctx, user.ID(), &oauth2.Token{AccessToken: "a1", RefreshToken: "r1", TokenType: "Bearer", Expiry: expiry}); err != nil {
		t.Fatalf("failed to save token: %v", err)
	}

	t.Run("refresh token survives rotation without one", func(t *testing.T) {
		if err := repo.Save(ctx, user.ID(), &oauth2.Token{AccessToken: "a2", TokenType: "Bearer", Expiry: expiry}); err != nil {
			t.Fatalf("failed to save token: %v", err)
		}

		token, err := repo.Get(ctx, user.ID())
		if err != nil {
			t.Fatalf("failed to get token: %v", err)
		}
		if token.AccessToken != "a2" || token.RefreshToken != "r1" {
			t.Errorf("unexpected token: %+v", token)
		}
		if !token.Expiry.Equal(expiry) {
			t.Errorf("expected expiry %v, got %v", expiry, token.Expiry)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.Delete(ctx, user.ID()); err != nil {
			t.Fatalf("failed to delete token: %v", err)
		}
		if _, err := repo.Get(ctx, user.ID()); err == nil {
			t.Error("expected error after delete")
		}
	})
}

func TestMatchRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateIfAbsent", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		users := NewUserRepository(db)
		repo := NewMatchRepository(db)
		a := createEligibleUser(t, users, "A", 12.97, 77.59)
		b := createEligibleUser(t, users, "B", 12.98, 77.59)

		match := createMatch(t, repo, a, b, testDate)
		if match.ID() == "" {
			t.Fatal("match ID should be set after creation")
		}

		retrieved, err := repo.Get(ctx, match.ID())
		if err != nil {
			t.Fatalf("failed to get match: %v", err)
		}
		if retrieved.State() != models.ActiveHidden {
			t.Errorf("expected ACTIVE_HIDDEN, got %v", retrieved.State())
		}
		if retrieved.Date != testDate || retrieved.User1ID != a.ID() || retrieved.Version != 0 {
			t.Errorf("unexpected match: %+v", retrieved)
		}

		for _, u := range []*models.User{a, b} {
			has, err := repo.HasMatchOn(ctx, u.ID(), testDate)
			if err != nil {
				t.Fatalf("failed to query participants: %v", err)
			}
			if !has {
				t.Errorf("expected %s to have a match", u.DisplayName)
			}
		}
	})

	t.Run("next day is a new slot", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		users := NewUserRepository(db)
		repo := NewMatchRepository(db)
		a := createEligibleUser(t, users, "A", 12.97, 77.59)
		b := createEligibleUser(t, users, "B", 12.98, 77.59)

		createMatch(t, repo, a, b, testDate)
		createMatch(t, repo, b, a, "2026-04-02")
	})

	t.Run("concurrent commits for one candidate", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		users := NewUserRepository(db)
		repo := NewMatchRepository(db)
		popular := createEligibleUser(t, users, "Popular", 12.97, 77.59)

		var actors []*models.User
		for i := range 8 {
			actors = append(actors, createEligibleUser(t, users, fmt.Sprintf("Actor %d", i), 12.98, 77.59))
		}

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
		)
		for _, actor := range actors {
			wg.Add(1)
			go func(actor *models.User) {
				defer wg.Done()
				err := repo.CreateIfAbsent(ctx, models.NewMatch(actor.ID(), popular.ID(), testDate, 0.8, 0.9, 1))
				if err == nil {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}(actor)
		}
		wg.Wait()

		if created != 1 {
			t.Errorf("expected exactly one match, got %d", created)
		}

		matches, err := repo.ListByDate(ctx, testDate)
		if err != nil {
			t.Fatalf("failed to list matches: %v", err)
		}
		if len(matches) != 1 {
			t.Errorf("expected 1 stored match, got %d", len(matches))
		}
	})

	t.Run("CompareAndSwap", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		users := NewUserRepository(db)
		repo := NewMatchRepository(db)
		a := createEligibleUser(t, users, "A", 12.97, 77.59)
		b := createEligibleUser(t, users, "B", 12.98, 77.59)
		match := createMatch(t, repo, a, b, testDate)

		stale := *match

		now := time.Now().UTC()
		match.RevealRequestedBy = a.ID()
		match.RevealRequestedAt = &now
		if err := repo.CompareAndSwap(ctx, match); err != nil {
			t.Fatalf("failed to swap: %v", err)
		}
		if match.Version != 1 {
			t.Errorf("expected version 1, got %d", match.Version)
		}

		retrieved, err := repo.Get(ctx, match.ID())
		if err != nil {
			t.Fatalf("failed to get match: %v", err)
		}
		if retrieved.State() != models.RevealPending || retrieved.RevealRequestedBy != a.ID() {
			t.Errorf("expected pending reveal by A, got %+v", retrieved)
		}
		if retrieved.RevealRequestedAt == nil {
			t.Error("expected request time to be stored")
		}

		stale.Revealed = true
		stale.RevealRequestedBy = b.ID()
		if err := repo.CompareAndSwap(ctx, &stale); err == nil {
			t.Fatal("expected stale write to fail")
		}
	})

	t.Run("ActiveForUserOn and History", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		users := NewUserRepository(db)
		repo := NewMatchRepository(db)
		a := createEligibleUser(t, users, "A", 12.97, 77.59)
		b := createEligibleUser(t, users, "B", 12.98, 77.59)
		c := createEligibleUser(t, users, "C", 12.99, 77.59)

		createMatch(t, repo, a, b, "2026-03-30")
		createMatch(t, repo, c, a, "2026-03-31")
		today := createMatch(t, repo, a, b, testDate)

		got, err := repo.ActiveForUserOn(ctx, b.ID(), testDate)
		if err != nil {
			t.Fatalf("failed to get today's match: %v", err)
		}
		if got.ID() != today.ID() {
			t.Errorf("expected today's match, got %s", got.ID())
		}

		history, err := repo.History(ctx, a.ID(), 30)
		if err != nil {
			t.Fatalf("failed to get history: %v", err)
		}
		if len(history) != 3 {
			t.Fatalf("expected 3 matches, got %d", len(history))
		}
		if history[0].Date != testDate || history[2].Date != "2026-03-30" {
			t.Errorf("expected newest first, got %s..%s", history[0].Date, history[2].Date)
		}

		limited, err := repo.History(ctx, a.ID(), 1)
		if err != nil {
			t.Fatalf("failed to get history: %v", err)
		}
		if len(limited) != 1 {
			t.Errorf("expected limit to apply, got %d", len(limited))
		}
	})

	t.Run("Block", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		users := NewUserRepository(db)
		repo := NewMatchRepository(db)
		blocks := NewBlockRepository(db)
		a := createEligibleUser(t, users, "A", 12.97, 77.59)
		b := createEligibleUser(t, users, "B", 12.98, 77.59)

		earlier := createMatch(t, repo, b, a, "2026-03-31")
		match := createMatch(t, repo, a, b, testDate)

		if err := repo.Block(ctx, match, a.ID()); err != nil {
			t.Fatalf("failed to block: %v", err)
		}
		if match.Active || match.State() != models.Blocked {
			t.Error("match should be blocked in memory")
		}

		for _, id := range []string{match.ID(), earlier.ID()} {
			stored, err := repo.Get(ctx, id)
			if err != nil {
				t.Fatalf("failed to get match: %v", err)
			}
			if stored.Active {
				t.Errorf("match %s should be inactive", id)
			}
		}

		blocked, err := blocks.Blocked(ctx, b.ID(), a.ID())
		if err != nil {
			t.Fatalf("failed to query blocks: %v", err)
		}
		if !blocked {
			t.Error("expected the pair to be blocked in either direction")
		}

		if err := repo.Block(ctx, match, a.ID()); err != nil {
			t.Errorf("blocking twice should be a no-op, got %v", err)
		}

		list, err := blocks.ListByBlocker(ctx, a.ID())
		if err != nil {
			t.Fatalf("failed to list blocks: %v", err)
		}
		if len(list) != 1 || list[0].BlockedID != b.ID() || list[0].MatchID != match.ID() {
			t.Errorf("unexpected blocks: %+v", list)
		}
	})
}

func TestReportRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	users := NewUserRepository(db)
	a := createEligibleUser(t, users, "A", 12.97, 77.59)
	b := createEligibleUser(t, users, "B", 12.98, 77.59)
	match := createMatch(t, NewMatchRepository(db), a, b, testDate)

	repo := NewReportRepository(db)
	report := &models.Report{ReporterID: a.ID(), ReportedID: b.ID(), MatchID: match.ID()}
	if err := repo.Create(ctx, report); err != nil {
		t.Fatalf("failed to create report: %v", err)
	}
	if report.Reason != models.DefaultReportReason {
		t.Errorf("expected default reason, got %q", report.Reason)
	}

	reports, err := repo.ListByMatch(ctx, match.ID())
	if err != nil {
		t.Fatalf("failed to list reports: %v", err)
	}
	if len(reports) != 1 || reports[0].ReportedID != b.ID() {
		t.Errorf("unexpected reports: %+v", reports)
	}
}

func TestMessageRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	users := NewUserRepository(db)
	a := createEligibleUser(t, users, "A", 12.97, 77.59)
	b := createEligibleUser(t, users, "B", 12.98, 77.59)
	match := createMatch(t, NewMatchRepository(db), a, b, testDate)

	repo := NewMessageRepository(db)
	for i, sender := range []*models.User{a, b, a} {
		msg := &models.Message{MatchID: match.ID(), SenderID: sender.ID(), Content: fmt.Sprintf("message %d", i)}
		if err := repo.Append(ctx, msg); err != nil {
			t.Fatalf("failed to append message: %v", err)
		}
	}

	t.Run("List", func(t *testing.T) {
		messages, err := repo.List(ctx, match.ID(), 0)
		if err != nil {
			t.Fatalf("failed to list messages: %v", err)
		}
		if len(messages) != 3 {
			t.Fatalf("expected 3 messages, got %d", len(messages))
		}
		if messages[0].Content != "message 0" || messages[2].Content != "message 2" {
			t.Errorf("expected oldest first, got %q..%q", messages[0].Content, messages[2].Content)
		}

		recent, err := repo.List(ctx, match.ID(), 2)
		if err != nil {
			t.Fatalf("failed to list messages: %v", err)
		}
		if len(recent) != 2 || recent[1].Content != "message 2" {
			t.Errorf("expected the two most recent messages, got %+v", recent)
		}
	})

	t.Run("MarkRead", func(t *testing.T) {
		unread, err := repo.Unread(ctx, match.ID(), b.ID())
		if err != nil {
			t.Fatalf("failed to count unread: %v", err)
		}
		if unread != 2 {
			t.Errorf("expected 2 unread for B, got %d", unread)
		}

		n, err := repo.MarkRead(ctx, match.ID(), b.ID())
		if err != nil {
			t.Fatalf("failed to mark read: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 messages marked, got %d", n)
		}

		unread, err = repo.Unread(ctx, match.ID(), a.ID())
		if err != nil {
			t.Fatalf("failed to count unread: %v", err)
		}
		if unread != 1 {
			t.Errorf("expected A's unread to be untouched, got %d", unread)
		}
	})
}

func TestCandidateRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	users := NewUserRepository(db)
	matches := NewMatchRepository(db)

	me := createEligibleUser(t, users, "Me", 12.97, 77.59)
	near := createEligibleUser(t, users, "Near", 12.98, 77.60)
	createEligibleUser(t, users, "Far", 19.07, 72.87)
	blocker := createEligibleUser(t, users, "Blocker", 12.97, 77.60)
	taken := createEligibleUser(t, users, "Taken", 12.96, 77.58)
	partner := createEligibleUser(t, users, "Partner", 12.95, 77.58)

	inactive := createEligibleUser(t, users, "Inactive", 12.97, 77.59)
	inactive.Active = false
	if err := users.Update(ctx, inactive); err != nil {
		t.Fatalf("failed to deactivate user: %v", err)
	}

	prior := createMatch(t, matches, blocker, me, "2026-03-01")
	if err := matches.Block(ctx, prior, blocker.ID()); err != nil {
		t.Fatalf("failed to block: %v", err)
	}
	createMatch(t, matches, taken, partner, testDate)

	repo := NewCandidateRepository(db)
	candidates, err := repo.Candidates(ctx, models.CandidateQuery{
		UserID:        me.ID(),
		Embedding:     me.Profile.Embedding,
		Location:      *me.Location,
		MaxDistanceKm: 50,
		Date:          testDate,
	})
	if err != nil {
		t.Fatalf("failed to query candidates: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("expected only the nearby candidate, got %+v", candidates)
	}

	c := candidates[0]
	if c.UserID != near.ID() {
		t.Errorf("expected %s, got %s", near.ID(), c.UserID)
	}
	if c.MusicSimilarity < 0.999 {
		t.Errorf("expected identical taste, got %v", c.MusicSimilarity)
	}
	if c.DistanceKm <= 0 || c.DistanceKm > 5 {
		t.Errorf("unexpected distance %v", c.DistanceKm)
	}
	if c.ActivityScore != 1 {
		t.Errorf("expected fresh profile to score 1, got %v", c.ActivityScore)
	}
}

func TestCandidateRepository_LimitKeepsBestScores(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	users := NewUserRepository(db)
	me := createEligibleUser(t, users, "Me", 12.97, 77.59)

	// identical taste but ~40 km away and long unsynced: similarity 1, score ~0.66
	stale := time.Now().UTC().AddDate(0, -2, 0)
	for i := range CandidateLimit {
		u := models.NewUser(0, fmt.Sprintf("Distant %d", i))
		loc, err := models.NewLocation(13.33, 77.59)
		if err != nil {
			t.Fatalf("invalid location: %v", err)
		}
		u.Location = &loc
		u.Profile = testProfile(0.5, stale)
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
	}

	// slightly different taste, next door and freshly synced: similarity ~0.97, score ~0.98
	neighbour := models.NewUser(0, "Neighbour")
	loc, err := models.NewLocation(12.97, 77.59)
	if err != nil {
		t.Fatalf("invalid location: %v", err)
	}
	neighbour.Location = &loc
	neighbour.Profile = testProfile(0.5, time.Now().UTC())
	neighbour.Profile.Embedding[0] = 0
	if err := users.Create(ctx, neighbour); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	candidates, err := NewCandidateRepository(db).Candidates(ctx, models.CandidateQuery{
		UserID:        me.ID(),
		Embedding:     me.Profile.Embedding,
		Location:      *me.Location,
		MaxDistanceKm: 50,
		Date:          testDate,
	})
	if err != nil {
		t.Fatalf("failed to query candidates: %v", err)
	}

	if len(candidates) != CandidateLimit {
		t.Fatalf("expected %d candidates, got %d", CandidateLimit, len(candidates))
	}
	if candidates[0].UserID != neighbour.ID() {
		t.Errorf("expected the neighbour first, got %+v", candidates[0])
	}
	if candidates[0].MusicSimilarity >= 1 {
		t.Errorf("neighbour should rank below the others on taste alone, got %v", candidates[0].MusicSimilarity)
	}

	best, ok := scoring.Best(candidates, 50)
	if !ok || best.UserID != neighbour.ID() {
		t.Errorf("expected the neighbour to win scoring, got %+v", best)
	}
}
