package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/chord/internal/repositories"
	tu "github.com/desertthunder/chord/internal/testing"
	"golang.org/x/oauth2"
)

func TestOAuthHandler(t *testing.T) {
	t.Run("exchanges the code once", func(t *testing.T) {
		provider := &stubProvider{token: &oauth2.Token{AccessToken: "access"}}
		h := NewOAuthHandler(provider, "state-1")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=abc", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		select {
		case result := <-h.Result():
			if result.Error() != nil || result.Token.AccessToken != "access" {
				t.Errorf("unexpected result %+v", result)
			}
		case <-time.After(time.Second):
			t.Fatal("no result")
		}

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=abc", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("replay: expected 400, got %d", rec.Code)
		}
		if len(provider.codes) != 1 || provider.codes[0] != "abc" {
			t.Errorf("unexpected exchanges %v", provider.codes)
		}
	})

	t.Run("provider error", func(t *testing.T) {
		h := NewOAuthHandler(&stubProvider{}, "state-1")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&error=access_denied", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		result := <-h.Result()
		if result.Error() == nil || !strings.Contains(result.Error().Error(), "access_denied") {
			t.Errorf("expected access_denied error, got %v", result.Error())
		}
	})

	t.Run("exchange failure", func(t *testing.T) {
		h := NewOAuthHandler(&stubProvider{err: errors.New("bad code")}, "state-1")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=abc", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if result := <-h.Result(); result.Error() == nil {
			t.Error("expected error result")
		}
	})
}

func TestConnectHandler(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, provider *stubProvider, syncer *stubSyncer) (http.Handler, *repositories.TokenRepository, string) {
		t.Helper()
		db := tu.NewTestDB(t)
		user := tu.SeedUser(t, db, "Alice", 12.97, 77.59, nil)
		tokens := repositories.NewTokenRepository(db)

		router := NewBasicRouter()
		router.Use(Identify)
		var s ProfileSyncer
		if syncer != nil {
			s = syncer
		}
		NewConnectHandler(provider, tokens, s, testLogger()).Register(router)
		return router, tokens, user.ID()
	}

	login := func(t *testing.T, h http.Handler, userID string) string {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/auth/spotify/login", nil)
		req.Header.Set(UserHeader, userID)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusFound {
			t.Fatalf("login: expected 302, got %d", rec.Code)
		}

		loc, err := url.Parse(rec.Header().Get("Location"))
		if err != nil {
			t.Fatalf("invalid redirect: %v", err)
		}
		state := loc.Query().Get("state")
		if state == "" {
			t.Fatal("redirect missing state")
		}
		return state
	}

	t.Run("stores the token for the caller", func(t *testing.T) {
		provider := &stubProvider{token: &oauth2.Token{AccessToken: "access", RefreshToken: "refresh"}}
		syncer := &stubSyncer{}
		h, tokens, userID := setup(t, provider, syncer)

		state := login(t, h, userID)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state="+state+"&code=abc", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("callback: expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		token, err := tokens.Get(ctx, userID)
		if err != nil {
			t.Fatalf("token not saved: %v", err)
		}
		if token.RefreshToken != "refresh" {
			t.Errorf("unexpected token %+v", token)
		}
		if len(syncer.users) != 1 {
			t.Errorf("expected initial sync, got %v", syncer.users)
		}

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state="+state+"&code=abc", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("reused state: expected 400, got %d", rec.Code)
		}
	})

	t.Run("login requires a caller", func(t *testing.T) {
		h, _, _ := setup(t, &stubProvider{}, nil)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/spotify/login", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("unknown state", func(t *testing.T) {
		h, _, _ := setup(t, &stubProvider{}, nil)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=forged&code=abc", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("exchange failure", func(t *testing.T) {
		h, tokens, userID := setup(t, &stubProvider{err: errors.New("bad code")}, nil)
		state := login(t, h, userID)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state="+state+"&code=abc", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if _, err := tokens.Get(ctx, userID); err == nil {
			t.Error("token should not be saved")
		}
	})
}

func TestServerRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := New("127.0.0.1:0", http.NotFoundHandler(), testLogger())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * ShutdownTimeout):
		t.Fatal("server did not stop")
	}
}
