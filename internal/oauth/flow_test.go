package oauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestGenerateVerifierIs96Bytes(t *testing.T) {
	v, err := generateVerifier()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := decodeVerifier(v)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 96 {
		t.Fatalf("expected 96 decoded bytes, got %d", len(decoded))
	}
}

func TestChallengeIsDeterministicSHA256(t *testing.T) {
	v, _ := generateVerifier()
	c1 := challengeFromVerifier(v)
	c2 := challengeFromVerifier(v)
	if c1 != c2 {
		t.Fatal("challenge must be a pure function of the verifier")
	}
}

func newTestAcquirer(t *testing.T, tokenServer *httptest.Server, port int) *Acquirer {
	t.Helper()
	return New(Config{
		ClientID:     "test-client",
		AuthURL:      "https://auth.example.com/authorize",
		TokenURL:     tokenServer.URL,
		RedirectPort: port,
	})
}

func newStubTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"test-access-token","refresh_token":"test-refresh-token","token_type":"Bearer","expires_in":3600}`)
	}))
}

func callCallback(t *testing.T, authURL string, extraParams map[string]string) *http.Response {
	t.Helper()
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatal(err)
	}
	redirectURI := u.Query().Get("redirect_uri")
	state := u.Query().Get("state")
	cb, err := url.Parse(redirectURI)
	if err != nil {
		t.Fatal(err)
	}
	q := cb.Query()
	q.Set("state", state)
	for k, v := range extraParams {
		q.Set(k, v)
	}
	cb.RawQuery = q.Encode()
	resp, err := http.Get(cb.String())
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestFlowSuccessExchangesTokenAndAppliesClockSkewBuffer(t *testing.T) {
	tokenSrv := newStubTokenServer(t)
	defer tokenSrv.Close()
	a := newTestAcquirer(t, tokenSrv, 38081)

	flow, err := a.StartAuthFlow(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}

	before := time.Now()
	resp := callCallback(t, flow.AuthURL, map[string]string{"code": "test-code"})
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("callback status = %d, body = %s", resp.StatusCode, body)
	}

	token, err := flow.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if token.AccessToken != "test-access-token" {
		t.Fatalf("unexpected access token: %q", token.AccessToken)
	}
	wantExpiryCeiling := before.Add(3600 * time.Second).Add(-clockSkewBuffer)
	if token.Expiry.After(wantExpiryCeiling.Add(2 * time.Second)) {
		t.Fatalf("expiry %v should be buffered ~60s earlier than the raw expires_in", token.Expiry)
	}
	if flow.Phase() != Completed {
		t.Fatalf("expected Completed phase, got %v", flow.Phase())
	}
}

func TestFlowCSRFMismatchFails(t *testing.T) {
	tokenSrv := newStubTokenServer(t)
	defer tokenSrv.Close()
	a := newTestAcquirer(t, tokenSrv, 38082)

	flow, err := a.StartAuthFlow(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(flow.AuthURL)
	cb, _ := url.Parse(u.Query().Get("redirect_uri"))
	q := cb.Query()
	q.Set("state", "wrong-state")
	q.Set("code", "test-code")
	cb.RawQuery = q.Encode()

	resp, err := http.Get(cb.String())
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on CSRF mismatch, got %d", resp.StatusCode)
	}

	_, err = flow.Wait(context.Background())
	if err == nil {
		t.Fatal("expected an error for CSRF mismatch")
	}
	if flow.Phase() != Failed {
		t.Fatalf("expected Failed phase, got %v", flow.Phase())
	}
}

func TestFlowMissingCodeFails(t *testing.T) {
	tokenSrv := newStubTokenServer(t)
	defer tokenSrv.Close()
	a := newTestAcquirer(t, tokenSrv, 38083)

	flow, err := a.StartAuthFlow(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	resp := callCallback(t, flow.AuthURL, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing code, got %d", resp.StatusCode)
	}
	if _, err := flow.Wait(context.Background()); err == nil {
		t.Fatal("expected MissingCode error")
	}
}

func TestFlowDuplicateCallbackIsNoOp(t *testing.T) {
	tokenSrv := newStubTokenServer(t)
	defer tokenSrv.Close()
	a := newTestAcquirer(t, tokenSrv, 38084)

	flow, err := a.StartAuthFlow(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	resp1 := callCallback(t, flow.AuthURL, map[string]string{"code": "test-code"})
	resp1.Body.Close()
	if _, err := flow.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	resp2 := callCallback(t, flow.AuthURL, map[string]string{"code": "test-code"})
	defer resp2.Body.Close()
	body, _ := io.ReadAll(resp2.Body)
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("duplicate callback should still 200 with an already-processed page, got %d: %s", resp2.StatusCode, body)
	}
}

func TestConflictingListenerFailsFast(t *testing.T) {
	tokenSrv := newStubTokenServer(t)
	defer tokenSrv.Close()
	a1 := newTestAcquirer(t, tokenSrv, 38085)
	a2 := newTestAcquirer(t, tokenSrv, 38085)

	flow, err := a1.StartAuthFlow(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer flow.shutdown(0)

	if _, err := a2.StartAuthFlow(context.Background(), false); err == nil {
		t.Fatal("expected the second StartAuthFlow on the same port to fail")
	}
}
