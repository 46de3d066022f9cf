package models

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/chord/internal/shared"
)

func validProfile() *TasteProfile {
	embedding := make([]float64, EmbeddingDims)
	for i := range embedding {
		embedding[i] = 0.5
	}
	return &TasteProfile{Embedding: embedding, LastSync: time.Now()}
}

func TestMatchState(t *testing.T) {
	now := time.Now()
	tc := []struct {
		name  string
		match Match
		want  MatchState
	}{
		{"fresh", Match{Active: true}, ActiveHidden},
		{"requested", Match{Active: true, RevealRequestedBy: "a", RevealRequestedAt: &now}, RevealPending},
		{"revealed", Match{Active: true, RevealRequestedBy: "a", Revealed: true}, Revealed},
		{"blocked after reveal", Match{Active: false, RevealRequestedBy: "a", Revealed: true}, Blocked},
		{"blocked", Match{}, Blocked},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.match.State(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	if RevealPending.String() != "REVEAL_PENDING" {
		t.Errorf("unexpected state name %q", RevealPending.String())
	}
}

func TestMatchParties(t *testing.T) {
	m := NewMatch("a", "b", "2026-01-02", 0.8, 0.9, 10)

	if !m.IsParty("a") || !m.IsParty("b") {
		t.Error("both users should be parties")
	}
	if m.IsParty("c") || m.IsParty("") {
		t.Error("unexpected party")
	}
	if m.Other("a") != "b" || m.Other("b") != "a" || m.Other("c") != "" {
		t.Error("Other returned the wrong counterpart")
	}
	if m.PairKey() != PairKey("b", "a") {
		t.Error("pair key should not depend on order")
	}
}

func TestMatchValidate(t *testing.T) {
	tc := []struct {
		name    string
		match   *Match
		wantErr bool
	}{
		{"valid", NewMatch("a", "b", "2026-01-02", 0.8, 0.9, 10), false},
		{"self match", NewMatch("a", "a", "2026-01-02", 0.8, 0.9, 10), true},
		{"bad date", NewMatch("a", "b", "02/01/2026", 0.8, 0.9, 10), true},
		{"negative distance", NewMatch("a", "b", "2026-01-02", 0.8, 0.9, -1), true},
		{"similarity above one", NewMatch("a", "b", "2026-01-02", 0.8, 1.5, 1), true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.match.Validate()
			if tt.wantErr && !errors.Is(err, shared.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	t.Run("reveal by outsider", func(t *testing.T) {
		m := NewMatch("a", "b", "2026-01-02", 0.8, 0.9, 10)
		m.RevealRequestedBy = "c"
		if err := m.Validate(); err == nil {
			t.Error("expected error for outsider request")
		}
	})
}

func TestUser(t *testing.T) {
	t.Run("Eligible", func(t *testing.T) {
		u := NewUser(1, "Asha")
		if u.Eligible() {
			t.Error("user without location or profile should not be eligible")
		}

		loc, err := NewLocation(12.9716, 77.5946)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		u.Location = &loc
		u.Profile = validProfile()
		if !u.Eligible() {
			t.Error("user should be eligible")
		}

		u.Active = false
		if u.Eligible() {
			t.Error("inactive user should not be eligible")
		}
	})

	t.Run("Validate bio", func(t *testing.T) {
		u := NewUser(1, "Asha")
		u.Bio = strings.Repeat("x", 51)
		if err := u.Validate(); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
		u.Bio = strings.Repeat("é", 50)
		if err := u.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("NewLocation rounds", func(t *testing.T) {
		loc, err := NewLocation(12.9716, 77.5946)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if loc.Latitude != 12.97 || loc.Longitude != 77.59 {
			t.Errorf("expected rounded coordinates, got %+v", loc)
		}
		if _, err := NewLocation(91, 0); !errors.Is(err, shared.ErrInvalidLocation) {
			t.Errorf("expected invalid location, got %v", err)
		}
	})
}

func TestTasteProfile(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		p := validProfile()
		if err := p.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		p.Embedding = p.Embedding[:16]
		if err := p.Validate(); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}

		p = validProfile()
		p.Embedding[3] = 1.2
		if err := p.Validate(); err == nil {
			t.Error("expected error for out-of-range component")
		}
	})

	t.Run("Value and Scan", func(t *testing.T) {
		p := validProfile()
		p.TopGenres = []GenreWeight{{Name: "indie", Weight: 0.5}}

		v, err := p.Value()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got TasteProfile
		if err := got.Scan(v); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.Embedding) != EmbeddingDims || got.TopGenres[0].Name != "indie" {
			t.Errorf("unexpected profile after scan: %+v", got)
		}

		if err := got.Scan(42); err == nil {
			t.Error("expected error scanning an int")
		}
	})
}

func TestCandidateValidate(t *testing.T) {
	if err := (Candidate{UserID: "a", MusicSimilarity: 0.5, DistanceKm: 3, ActivityScore: 1}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (Candidate{MusicSimilarity: 0.5}).Validate(); err == nil {
		t.Error("expected error for missing user id")
	}
	if err := (Candidate{UserID: "a", ActivityScore: 2}).Validate(); err == nil {
		t.Error("expected error for activity above one")
	}
}
