package server

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chord/internal/services"
	"github.com/desertthunder/chord/internal/shared"
	"golang.org/x/oauth2"
)

// CallbackPath is where the provider redirects after authorization.
const CallbackPath = "/callback"

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Authorization Successful</h1>
        <p>%s</p>
    </div>
</body>
</html>
`

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles a single OAuth2 callback for the CLI authorization flow.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	provider    services.OAuthService
	state       string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a new OAuth handler with the given provider and state token.
// The state token should be cryptographically random for CSRF protection.
func NewOAuthHandler(provider services.OAuthService, state string) *OAuthHandler {
	return &OAuthHandler{
		provider:   provider,
		state:      state,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{CallbackPath}
}

// ServeHTTP handles the OAuth callback request.
//
// Validates state parameter, exchanges authorization code for tokens, and sends the result through the result channel.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Only handle callback once
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	if r.URL.Query().Get("state") != h.state {
		h.Send(OAuthResult{err: fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code, err := callbackCode(r)
	if err != nil {
		h.Send(OAuthResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.Send(OAuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.Send(OAuthResult{Token: token})
	writeSuccessPage(w, "You can close this window and return to the terminal.")
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

// TokenSaver persists a user's provider token.
type TokenSaver interface {
	Save(ctx context.Context, userID string, token *oauth2.Token) error
}

// StateTTL is how long a connect flow may take before its state expires.
const StateTTL = 10 * time.Minute

type pendingState struct {
	userID  string
	expires time.Time
}

// ConnectHandler links provider accounts to users for the long-running server.
//
// The login route remembers which caller started the flow under a random state; the
// callback exchanges the code, stores the token and optionally syncs the profile.
type ConnectHandler struct {
	provider services.OAuthService
	tokens   TokenSaver
	syncer   ProfileSyncer
	logger   *log.Logger
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]pendingState
}

// NewConnectHandler creates a [ConnectHandler]. syncer may be nil.
func NewConnectHandler(provider services.OAuthService, tokens TokenSaver, syncer ProfileSyncer, logger *log.Logger) *ConnectHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ConnectHandler{
		provider: provider,
		tokens:   tokens,
		syncer:   syncer,
		logger:   shared.WithLogger(logger, "component", "oauth"),
		now:      time.Now,
		pending:  make(map[string]pendingState),
	}
}

// Register adds the login and callback routes to r.
func (h *ConnectHandler) Register(r *BasicRouter) {
	r.Handle(http.MethodGet, "/auth/spotify/login", RequireUser(http.HandlerFunc(h.login)))
	r.HandleFunc(http.MethodGet, CallbackPath, h.callback)
}

func (h *ConnectHandler) login(w http.ResponseWriter, r *http.Request) {
	state, err := shared.GenerateState()
	if err != nil {
		writeError(w, err)
		return
	}

	h.mu.Lock()
	now := h.now()
	for s, p := range h.pending {
		if now.After(p.expires) {
			delete(h.pending, s)
		}
	}
	h.pending[state] = pendingState{userID: UserID(r.Context()), expires: now.Add(StateTTL)}
	h.mu.Unlock()

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusFound)
}

func (h *ConnectHandler) callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")

	h.mu.Lock()
	pending, ok := h.pending[state]
	delete(h.pending, state)
	h.mu.Unlock()

	if !ok || h.now().After(pending.expires) {
		writeError(w, fmt.Errorf("%w: unknown or expired state", shared.ErrInvalidArgument))
		return
	}

	code, err := callbackCode(r)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("token exchange failed", "user_id", pending.userID, "error", err)
		writeError(w, fmt.Errorf("%w: token exchange failed", shared.ErrAuthFailed))
		return
	}

	if err := h.tokens.Save(r.Context(), pending.userID, token); err != nil {
		h.logger.Error("failed to save token", "user_id", pending.userID, "error", err)
		writeError(w, err)
		return
	}
	h.logger.Info("provider connected", "user_id", pending.userID)

	msg := "Your listening history is connected."
	if h.syncer != nil {
		if _, err := h.syncer.Sync(r.Context(), pending.userID, nil); err != nil {
			h.logger.Warn("initial sync failed", "user_id", pending.userID, "error", err)
			msg = "Your account is connected. Your taste profile will be built on the next sync."
		}
	}
	writeSuccessPage(w, msg)
}

func callbackCode(r *http.Request) (string, error) {
	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		return "", fmt.Errorf("%w: authorization failed: %s - %s", shared.ErrAuthFailed, errParam, errDesc)
	}
	return code, nil
}

func writeSuccessPage(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, successPage, html.EscapeString(msg))
}
