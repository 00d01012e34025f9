package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	config "github.com/storypilot/scheduler/configs"
	"github.com/storypilot/scheduler/internal/models"
	"github.com/storypilot/scheduler/pkg/utils"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

func newTestAccountService(repo *mockAccountRepo, tokenURL, userInfoURL string) *accountService {
	cache, _ := lru.New[int64, cachedCredentials](credentialCacheSize)
	return &accountService{
		cfg: config.Config{
			SecretKey:        testSecretKey,
			SnapClientID:     "client-1",
			SnapClientSecret: "secret-1",
			SnapRedirectURI:  "https://app.example.com/auth/snapchat/callback",
		},
		sa:          repo,
		cache:       cache,
		tokenURL:    tokenURL,
		userInfoURL: userInfoURL,
	}
}

func TestHandleCallback_LinksAccount(t *testing.T) {
	var gotGrant, gotCode, gotRedirect, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/token"):
			r.ParseForm()
			gotGrant = r.FormValue("grant_type")
			gotCode = r.FormValue("code")
			gotRedirect = r.FormValue("redirect_uri")
			w.Write([]byte(`{"access_token":"acc-tok","refresh_token":"ref-tok","token_type":"Bearer","expires_in":3600}`))
		case strings.HasSuffix(r.URL.Path, "/me"):
			gotAuth = r.Header.Get("Authorization")
			w.Write([]byte(`{"data":{"me":{"external_id":"ext-42","display_name":"Creator","username":"creator42"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	repo := newMockAccountRepo()
	s := newTestAccountService(repo, srv.URL+"/token", srv.URL+"/me")

	if err := s.HandleCallback(context.Background(), "auth-code-1", 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotGrant != "authorization_code" || gotCode != "auth-code-1" {
		t.Errorf("expected code exchange form, got grant %q code %q", gotGrant, gotCode)
	}
	if gotRedirect != "https://app.example.com/auth/snapchat/callback" {
		t.Errorf("expected configured redirect uri, got %q", gotRedirect)
	}
	if gotAuth != "Bearer acc-tok" {
		t.Errorf("expected bearer token on user info request, got %q", gotAuth)
	}

	if len(repo.accounts) != 1 {
		t.Fatalf("expected 1 account created, got %d", len(repo.accounts))
	}
	acc := repo.accounts[1]
	if acc.UserID != 7 || acc.ExternalID != "ext-42" || acc.Username != "creator42" {
		t.Errorf("unexpected account: %+v", acc)
	}
	if acc.AccountStatus != models.AccountStatusActive {
		t.Errorf("expected active account, got %q", acc.AccountStatus)
	}
	if !acc.TokenExpiresAt.After(time.Now().Add(55 * time.Minute)) {
		t.Errorf("expected expiry roughly an hour out, got %v", acc.TokenExpiresAt)
	}

	// Tokens land encrypted, not in the clear.
	access, err := utils.Decrypt(acc.AccessToken, []byte(testSecretKey))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	refresh, err := utils.Decrypt(acc.RefreshToken, []byte(testSecretKey))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if access != "acc-tok" || refresh != "ref-tok" {
		t.Errorf("expected stored tokens to round-trip, got %q and %q", access, refresh)
	}
}

func TestHandleCallback_EmptyCode(t *testing.T) {
	repo := newMockAccountRepo()
	s := newTestAccountService(repo, "http://unused.invalid", "http://unused.invalid")

	if err := s.HandleCallback(context.Background(), "", 7); err == nil {
		t.Fatal("expected an error for an empty authorization code")
	}
	if len(repo.accounts) != 0 {
		t.Errorf("expected no account created, got %d", len(repo.accounts))
	}
}

func TestHandleCallback_TokenEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	repo := newMockAccountRepo()
	s := newTestAccountService(repo, srv.URL+"/token", srv.URL+"/me")

	if err := s.HandleCallback(context.Background(), "auth-code-1", 7); err == nil {
		t.Fatal("expected an error when the token endpoint fails")
	}
	if len(repo.accounts) != 0 {
		t.Errorf("expected no account created, got %d", len(repo.accounts))
	}
}

func TestHandleCallback_MissingExternalID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/token"):
			w.Write([]byte(`{"access_token":"acc-tok","refresh_token":"ref-tok"}`))
		default:
			w.Write([]byte(`{"data":{"me":{}}}`))
		}
	}))
	defer srv.Close()

	repo := newMockAccountRepo()
	s := newTestAccountService(repo, srv.URL+"/token", srv.URL+"/me")

	if err := s.HandleCallback(context.Background(), "auth-code-1", 7); err == nil {
		t.Fatal("expected an error for a profile without an external id")
	}
	if len(repo.accounts) != 0 {
		t.Errorf("expected no account created, got %d", len(repo.accounts))
	}
}

func TestAuthURL(t *testing.T) {
	s := newTestAccountService(newMockAccountRepo(), snapTokenURL, snapUserInfoURL)

	authURL := s.AuthURL("signed-state")

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(authURL, snapAuthURL+"?") {
		t.Errorf("expected the Snapchat authorize endpoint, got %q", authURL)
	}
	q := parsed.Query()
	if q.Get("client_id") != "client-1" {
		t.Errorf("expected client id, got %q", q.Get("client_id"))
	}
	if q.Get("state") != "signed-state" {
		t.Errorf("expected state to pass through, got %q", q.Get("state"))
	}
	if q.Get("response_type") != "code" {
		t.Errorf("expected response_type=code, got %q", q.Get("response_type"))
	}
	if q.Get("redirect_uri") != "https://app.example.com/auth/snapchat/callback" {
		t.Errorf("expected configured redirect uri, got %q", q.Get("redirect_uri"))
	}
}
