// Package oauth implements the OAuth PKCE Acquirer (spec §4.6): a one-shot
// loopback HTTP server that completes an RFC 7636 authorization-code grant
// against the Remote's auth provider. No token is ever persisted here — the
// token cache (spec §6 "~/.auth/tokens/<principal>.json") is a collaborator
// out of this package's scope.
//
// Grounded on cmd/git-sync/sync.go's atexit.Register-for-cleanup idiom,
// generalized from "clean up a sync cookie on exit" to "force-close a
// one-shot listener after its grace period or on cancellation" (no exit
// hook is registered).
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/msolo/mcp-gas/internal/logging"
	"github.com/msolo/mcp-gas/internal/mcperr"
)

// Phase is the callback state machine (spec §4.6).
type Phase int

const (
	WaitForCallback Phase = iota
	Validating
	Exchanging
	Completed
	Failed
)

func (p Phase) String() string {
	switch p {
	case Validating:
		return "validating"
	case Exchanging:
		return "exchanging"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "wait_for_callback"
	}
}

// Config describes the Remote's OAuth endpoint and the scopes this client
// requests (spec §6 "OAuth wire").
type Config struct {
	ClientID     string
	AuthURL      string
	TokenURL     string
	Scopes       []string
	RedirectPort int // defaults to 3000
}

// DefaultScopes matches spec §6: "projects, processes, deployments,
// scriptapp, userinfo.email, userinfo.profile".
var DefaultScopes = []string{
	"projects", "processes", "deployments", "scriptapp",
	"userinfo.email", "userinfo.profile",
}

const defaultRedirectPort = 3000
const postSuccessGrace = 5 * time.Second
const postFailureGrace = 2 * time.Second
const clockSkewBuffer = 60 * time.Second

// Acquirer starts one-shot authorization flows. It holds no long-lived
// state between flows; each StartAuthFlow call owns its own listener.
type Acquirer struct {
	cfg         Config
	OpenBrowser func(url string) error
}

func New(cfg Config) *Acquirer {
	if cfg.RedirectPort == 0 {
		cfg.RedirectPort = defaultRedirectPort
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	return &Acquirer{cfg: cfg}
}

// Flow is a single in-flight authorization attempt.
type Flow struct {
	AuthURL string

	cfg      *oauth2.Config
	verifier string
	state    string
	resultCh chan Result

	mu                 sync.Mutex
	phase              Phase
	callbackProcessed  bool
	callbackProcessing bool
	cleanupInProgress  bool

	listener net.Listener
	srv      *http.Server
}

// Result is what a Flow delivers once its callback (or deadline) resolves.
type Result struct {
	Token *oauth2.Token
	Err   error
}

// StartAuthFlow begins a new authorization attempt (spec §4.6 steps 1-5):
// generates the PKCE pair and CSRF state, binds the loopback listener, and
// returns the authorization URL the caller should present (and optionally
// open in a browser) regardless of openBrowser.
func (a *Acquirer) StartAuthFlow(ctx context.Context, openBrowser bool) (*Flow, error) {
	verifier, err := generateVerifier()
	if err != nil {
		return nil, mcperr.Auth("failed to start authorization flow", err)
	}
	state, err := generateState()
	if err != nil {
		return nil, mcperr.Auth("failed to start authorization flow", err)
	}

	addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.RedirectPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, mcperr.Auth("loopback OAuth listener port is already in use", err,
			"another authorization flow may already be running")
	}

	redirectURL := fmt.Sprintf("http://127.0.0.1:%d/callback", a.cfg.RedirectPort)
	oc := &oauth2.Config{
		ClientID: a.cfg.ClientID,
		Endpoint: oauth2.Endpoint{AuthURL: a.cfg.AuthURL, TokenURL: a.cfg.TokenURL},
		Scopes:   a.cfg.Scopes,
		RedirectURL: redirectURL,
	}

	f := &Flow{
		cfg:      oc,
		verifier: verifier,
		state:    state,
		resultCh: make(chan Result, 1),
		phase:    WaitForCallback,
		listener: ln,
	}

	challenge := challengeFromVerifier(verifier)
	f.AuthURL = oc.AuthCodeURL(state,
		oauth2.SetAuthURLParam("access_type", "offline"),
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("code_challenge", challenge),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", f.handleCallback)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	f.srv = &http.Server{Handler: mux}

	go func() {
		if err := f.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Warningf("oauth loopback server exited: %s", err)
		}
	}()

	if openBrowser && a.OpenBrowser != nil {
		if err := a.OpenBrowser(f.AuthURL); err != nil {
			logging.Warningf("failed to open browser for authorization URL: %s", err)
		}
	}

	return f, nil
}

// Wait blocks until the callback resolves (success or failure) or ctx is
// done, then tears down the listener.
func (f *Flow) Wait(ctx context.Context) (*oauth2.Token, error) {
	select {
	case res := <-f.resultCh:
		return res.Token, res.Err
	case <-ctx.Done():
		f.shutdown(0)
		return nil, mcperr.Auth("authorization flow cancelled", ctx.Err())
	}
}

// Phase reports the callback's current state-machine position.
func (f *Flow) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

func (f *Flow) handleCallback(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	if f.callbackProcessed || f.callbackProcessing {
		f.mu.Unlock()
		writeAlreadyProcessedPage(w)
		return
	}
	f.callbackProcessing = true
	f.phase = Validating
	f.mu.Unlock()

	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		f.fail(w, mcperr.Auth("provider denied authorization", fmt.Errorf("provider error: %s", providerErr)))
		return
	}

	state := q.Get("state")
	if state == "" || state != f.state {
		f.fail(w, mcperr.Auth("authorization state mismatch (possible CSRF)", nil))
		return
	}

	code := q.Get("code")
	if code == "" {
		f.fail(w, mcperr.Auth("authorization response missing code", nil))
		return
	}

	f.mu.Lock()
	f.phase = Exchanging
	f.mu.Unlock()

	token, err := f.cfg.Exchange(r.Context(), code, oauth2.VerifierOption(f.verifier))
	if err != nil {
		f.fail(w, mcperr.Auth("token exchange failed", err))
		return
	}

	// Clock-skew buffer: report the token as expiring 60s earlier than the
	// provider states, so a caller's own expiry check never races a refresh
	// against the provider's clock (spec §4.6 step 6).
	if !token.Expiry.IsZero() {
		token.Expiry = token.Expiry.Add(-clockSkewBuffer)
	}

	f.succeed(w, token)
}

func (f *Flow) fail(w http.ResponseWriter, err *mcperr.Error) {
	f.mu.Lock()
	f.phase = Failed
	f.callbackProcessed = true
	f.callbackProcessing = false
	f.mu.Unlock()

	writeFailurePage(w, err.Message)
	select {
	case f.resultCh <- Result{Err: err}:
	default:
	}
	go f.shutdown(postFailureGrace)
}

func (f *Flow) succeed(w http.ResponseWriter, token *oauth2.Token) {
	f.mu.Lock()
	f.phase = Completed
	f.callbackProcessed = true
	f.callbackProcessing = false
	f.mu.Unlock()

	writeSuccessPage(w)
	select {
	case f.resultCh <- Result{Token: token}:
	default:
	}
	go f.shutdown(postSuccessGrace)
}

// shutdown force-closes the loopback listener after grace, guarded so only
// one shutdown ever runs per flow (spec §4.6 "cleanupInProgress").
func (f *Flow) shutdown(grace time.Duration) {
	f.mu.Lock()
	if f.cleanupInProgress {
		f.mu.Unlock()
		return
	}
	f.cleanupInProgress = true
	f.mu.Unlock()

	if grace > 0 {
		time.Sleep(grace)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.srv.Shutdown(ctx); err != nil {
		f.srv.Close()
	}
}
