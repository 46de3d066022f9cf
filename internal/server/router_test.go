package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBasicRouter(t *testing.T) {
	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mark("first"), mark("second"))
		r.HandleFunc(http.MethodGet, "/ping", func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		})

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

		if got := strings.Join(order, ","); got != "first,second,handler" {
			t.Errorf("order = %s", got)
		}
	})

	t.Run("method mismatch", func(t *testing.T) {
		r := NewBasicRouter()
		r.HandleFunc(http.MethodPost, "/things", func(w http.ResponseWriter, r *http.Request) {})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("path values", func(t *testing.T) {
		r := NewBasicRouter()
		var got string
		r.HandleFunc(http.MethodGet, "/items/{id}", func(w http.ResponseWriter, r *http.Request) {
			got = r.PathValue("id")
		})

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/abc", nil))
		if got != "abc" {
			t.Errorf("PathValue = %q", got)
		}
	})

	t.Run("custom handler routes", func(t *testing.T) {
		r := NewBasicRouter()
		h := NewOAuthHandler(&stubProvider{}, "state")
		r.Handler(h)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=wrong", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(UserID(r.Context())))
	})

	t.Run("identify and require user", func(t *testing.T) {
		h := Identify(RequireUser(ok))

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(UserHeader, " user-1 ")
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || rec.Body.String() != "user-1" {
			t.Errorf("got %d %q", rec.Code, rec.Body.String())
		}

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("recover", func(t *testing.T) {
		h := Recover(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("logging records status", func(t *testing.T) {
		logger, buf := testLoggerBuf()
		h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tea", nil))
		if !strings.Contains(buf.String(), "418") || !strings.Contains(buf.String(), "/tea") {
			t.Errorf("log missing request details: %s", buf.String())
		}
	})
}
