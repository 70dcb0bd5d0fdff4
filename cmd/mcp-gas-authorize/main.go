// Command mcp-gas-authorize drives the OAuth PKCE Acquirer (spec §4.6)
// from a terminal: it prints (and optionally opens) the authorization URL,
// waits for the loopback callback, and writes the resulting token to the
// on-disk cache (spec §6 "~/.auth/tokens/<principal>.json"). The cache
// itself is a named out-of-scope collaborator for internal/oauth, so this
// CLI's persistence step is deliberately minimal - it does not implement
// refresh, multi-principal bookkeeping or a read path.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tebeka/atexit"

	"github.com/msolo/mcp-gas/internal/config"
	"github.com/msolo/mcp-gas/internal/logging"
	"github.com/msolo/mcp-gas/internal/oauth"
)

var (
	openBrowser = flag.Bool("open_browser", true, "open the authorization URL in the default browser")
	principal   = flag.String("principal", "default", "name under which to cache the acquired token")
	timeout     = flag.Duration("timeout", 5*time.Minute, "how long to wait for the user to complete authorization")
)

func exitOnError(err error) {
	if err != nil {
		atexit.Fatal(err)
	}
}

// cachedTokens is the on-disk shape of one ~/.auth/tokens/<principal>.json
// record (spec §6).
type cachedTokens struct {
	SessionID string `json:"sessionId"`
	Tokens    struct {
		AccessToken  string    `json:"access_token"`
		RefreshToken string    `json:"refresh_token,omitempty"`
		ExpiresAt    time.Time `json:"expires_at"`
		Scope        string    `json:"scope"`
		TokenType    string    `json:"token_type"`
	} `json:"tokens"`
	CreatedAt time.Time `json:"createdAt"`
	LastUsed  time.Time `json:"lastUsed"`
}

func newSessionID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		atexit.Fatal(err)
	}
	return hex.EncodeToString(buf)
}

func main() {
	defer atexit.Exit(0)

	logging.Bootstrap("INFO")
	logging.RegisterFlags(flag.CommandLine)
	flag.Parse()

	home, err := os.UserHomeDir()
	exitOnError(err)

	cfg, err := config.Load(config.DefaultPath(home), home)
	exitOnError(err)

	acquirer := oauth.New(oauth.Config{
		ClientID:     cfg.OAuthClientID,
		AuthURL:      cfg.OAuthAuthURL,
		TokenURL:     cfg.OAuthTokenURL,
		Scopes:       cfg.OAuthScopes,
		RedirectPort: cfg.RedirectPort,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	flow, err := acquirer.StartAuthFlow(ctx, *openBrowser)
	exitOnError(err)

	fmt.Fprintf(os.Stdout, "Open the following URL to authorize mcp-gas:\n\n  %s\n\n", flow.AuthURL)
	if *openBrowser {
		fmt.Fprintln(os.Stdout, "(attempting to open it in your browser automatically)")
	}
	fmt.Fprintf(os.Stdout, "Waiting up to %s for authorization...\n", *timeout)

	token, err := flow.Wait(ctx)
	exitOnError(err)

	now := time.Now()
	rec := cachedTokens{SessionID: newSessionID(), CreatedAt: now, LastUsed: now}
	rec.Tokens.AccessToken = token.AccessToken
	rec.Tokens.RefreshToken = token.RefreshToken
	rec.Tokens.ExpiresAt = token.Expiry
	rec.Tokens.TokenType = token.TokenType

	tokenDir := filepath.Join(home, ".auth", "tokens")
	exitOnError(os.MkdirAll(tokenDir, 0700))

	data, err := json.MarshalIndent(rec, "", "  ")
	exitOnError(err)

	tokenPath := filepath.Join(tokenDir, *principal+".json")
	exitOnError(os.WriteFile(tokenPath, data, 0600))

	fmt.Fprintf(os.Stdout, "Authorization complete. Token cached at %s\n", tokenPath)
}
