package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chord/internal/matching"
	"github.com/desertthunder/chord/internal/models"
	"github.com/desertthunder/chord/internal/shared"
	"github.com/desertthunder/chord/internal/tasks"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 16

// Lifecycle is the set of match operations exposed over HTTP.
type Lifecycle interface {
	Today(ctx context.Context, userID string) (*matching.MatchView, error)
	Get(ctx context.Context, matchID, userID string) (*matching.MatchView, error)
	History(ctx context.Context, userID string, limit int) ([]matching.MatchView, error)
	RequestReveal(ctx context.Context, matchID, userID string) (*models.Match, error)
	AcceptReveal(ctx context.Context, matchID, userID string) (*models.Match, error)
	Block(ctx context.Context, matchID, userID string) (*models.Match, error)
	Report(ctx context.Context, matchID, userID, reason string) (*models.Report, error)
	SendMessage(ctx context.Context, matchID, userID, content string) (*models.Message, error)
	Messages(ctx context.Context, matchID, userID string, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, matchID, userID string) (int64, error)
}

// LocationStore updates a user's approximate location.
type LocationStore interface {
	UpdateLocation(ctx context.Context, userID string, lat, lng float64) (models.Location, error)
}

// ProfileSyncer rebuilds a user's taste profile from the provider.
type ProfileSyncer interface {
	Sync(ctx context.Context, userID string, progress chan<- tasks.ProgressUpdate) (*models.TasteProfile, error)
}

// API serves the JSON endpoints for a caller identified by [UserHeader].
type API struct {
	lifecycle Lifecycle
	locations LocationStore
	syncer    ProfileSyncer
	logger    *log.Logger
}

// NewAPI creates an [API]. syncer may be nil when no provider is configured.
func NewAPI(lifecycle Lifecycle, locations LocationStore, syncer ProfileSyncer, logger *log.Logger) *API {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &API{
		lifecycle: lifecycle,
		locations: locations,
		syncer:    syncer,
		logger:    shared.WithLogger(logger, "component", "api"),
	}
}

// Register adds the API routes to r. Every route except /health requires a caller.
func (a *API) Register(r *BasicRouter) {
	r.HandleFunc(http.MethodGet, "/health", a.health)

	authed := func(method, path string, fn http.HandlerFunc) {
		r.Handle(method, path, RequireUser(fn))
	}
	authed(http.MethodGet, "/api/matches/today", a.today)
	authed(http.MethodGet, "/api/matches", a.history)
	authed(http.MethodGet, "/api/matches/{id}", a.get)
	authed(http.MethodPost, "/api/matches/{id}/reveal", a.requestReveal)
	authed(http.MethodPost, "/api/matches/{id}/reveal/accept", a.acceptReveal)
	authed(http.MethodPost, "/api/matches/{id}/block", a.block)
	authed(http.MethodPost, "/api/matches/{id}/report", a.report)
	authed(http.MethodGet, "/api/matches/{id}/messages", a.messages)
	authed(http.MethodPost, "/api/matches/{id}/messages", a.sendMessage)
	authed(http.MethodPost, "/api/matches/{id}/messages/read", a.markRead)
	authed(http.MethodPut, "/api/me/location", a.updateLocation)
	authed(http.MethodPost, "/api/me/sync", a.sync)
}

// MatchStatus is the response to a state-changing match operation.
type MatchStatus struct {
	ID                 string `json:"id"`
	State              string `json:"state"`
	Active             bool   `json:"is_active"`
	IdentitiesRevealed bool   `json:"identities_revealed"`
}

func statusOf(m *models.Match) MatchStatus {
	return MatchStatus{
		ID:                 m.ID(),
		State:              m.State().String(),
		Active:             m.Active,
		IdentitiesRevealed: m.Revealed,
	}
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) today(w http.ResponseWriter, r *http.Request) {
	view, err := a.lifecycle.Today(r.Context(), UserID(r.Context()))
	if errors.Is(err, shared.ErrNoMatchToday) {
		writeJSON(w, http.StatusOK, map[string]any{"match": nil, "message": "No match for today. Check back tomorrow!"})
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"match": view})
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.fail(w, r, err)
		return
	}

	views, err := a.lifecycle.History(r.Context(), UserID(r.Context()), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": views})
}

func (a *API) get(w http.ResponseWriter, r *http.Request) {
	view, err := a.lifecycle.Get(r.Context(), r.PathValue("id"), UserID(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) requestReveal(w http.ResponseWriter, r *http.Request) {
	a.mutate(w, r, a.lifecycle.RequestReveal)
}

func (a *API) acceptReveal(w http.ResponseWriter, r *http.Request) {
	a.mutate(w, r, a.lifecycle.AcceptReveal)
}

func (a *API) block(w http.ResponseWriter, r *http.Request) {
	a.mutate(w, r, a.lifecycle.Block)
}

func (a *API) mutate(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string) (*models.Match, error)) {
	m, err := op(r.Context(), r.PathValue("id"), UserID(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOf(m))
}

type reportRequest struct {
	Reason string `json:"reason"`
}

func (a *API) report(w http.ResponseWriter, r *http.Request) {
	var body reportRequest
	if err := decodeJSON(r, &body, true); err != nil {
		a.fail(w, r, err)
		return
	}

	report, err := a.lifecycle.Report(r.Context(), r.PathValue("id"), UserID(r.Context()), body.Reason)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (a *API) messages(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.fail(w, r, err)
		return
	}

	messages, err := a.lifecycle.Messages(r.Context(), r.PathValue("id"), UserID(r.Context()), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type messageRequest struct {
	Content string `json:"content"`
}

func (a *API) sendMessage(w http.ResponseWriter, r *http.Request) {
	var body messageRequest
	if err := decodeJSON(r, &body, false); err != nil {
		a.fail(w, r, err)
		return
	}

	msg, err := a.lifecycle.SendMessage(r.Context(), r.PathValue("id"), UserID(r.Context()), body.Content)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (a *API) markRead(w http.ResponseWriter, r *http.Request) {
	n, err := a.lifecycle.MarkRead(r.Context(), r.PathValue("id"), UserID(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marked": n})
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (a *API) updateLocation(w http.ResponseWriter, r *http.Request) {
	var body locationRequest
	if err := decodeJSON(r, &body, false); err != nil {
		a.fail(w, r, err)
		return
	}
	if body.Latitude == nil || body.Longitude == nil {
		a.fail(w, r, fmt.Errorf("%w: latitude and longitude are required", shared.ErrMissingArgument))
		return
	}

	loc, err := a.locations.UpdateLocation(r.Context(), UserID(r.Context()), *body.Latitude, *body.Longitude)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (a *API) sync(w http.ResponseWriter, r *http.Request) {
	if a.syncer == nil {
		a.fail(w, r, fmt.Errorf("%w: no listening-history provider configured", shared.ErrServiceUnavailable))
		return
	}

	profile, err := a.syncer.Sync(r.Context(), UserID(r.Context()), nil)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"last_sync":   profile.LastSync,
		"top_artists": profile.TopArtists,
		"top_genres":  profile.TopGenres,
		"top_tracks":  profile.TopTracks,
	})
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, err)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrTokenExpired), errors.Is(err, shared.ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON body into v. An empty body is accepted when optional is set.
func decodeJSON(r *http.Request, v any, optional bool) error {
	if r.Body == nil || r.ContentLength == 0 {
		if optional {
			return nil
		}
		return fmt.Errorf("%w: request body is required", shared.ErrMissingArgument)
	}

	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", shared.ErrInvalidArgument, err)
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", shared.ErrInvalidArgument, key)
	}
	return n, nil
}
