package cloudbeds_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/roomquest/idverify/internal/cloudbeds"
	"github.com/roomquest/idverify/internal/domain"
	"github.com/roomquest/idverify/pkg/config"
)

// ---------- Mocks ----------

type mockCredRepo struct {
	cred      *domain.Credential
	getErr    error
	updateErr error
	updates   int
	upserts   int
}

func (m *mockCredRepo) Get(_ context.Context) (*domain.Credential, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.cred == nil {
		return nil, nil
	}
	cp := *m.cred
	return &cp, nil
}

func (m *mockCredRepo) Upsert(_ context.Context, c *domain.Credential) error {
	m.upserts++
	cp := *c
	cp.UpdatedAt = time.Now()
	m.cred = &cp
	return nil
}

func (m *mockCredRepo) Update(_ context.Context, c *domain.Credential) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates++
	cp := *c
	cp.UpdatedAt = time.Now()
	m.cred = &cp
	return nil
}

// tokenServer fakes the OAuth token endpoint. Each response body is returned
// in order; the last one repeats.
func tokenServer(t *testing.T, status int, body map[string]interface{}) (*httptest.Server, *int) {
	t.Helper()
	calls := new(int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		if err := r.ParseForm(); err != nil {
			t.Errorf("bad form: %v", err)
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func vaultWith(t *testing.T, repo *mockCredRepo, tokenURL string) *cloudbeds.Vault {
	t.Helper()
	client := cloudbeds.NewClient(config.CloudbedsConfig{
		ClientID:     "cid",
		ClientSecret: "secret",
		TokenURL:     tokenURL,
	})
	return cloudbeds.NewVault(repo, client)
}

func freshCred() *domain.Credential {
	return &domain.Credential{
		AccessToken:  "current-token",
		RefreshToken: "current-refresh",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		Scope:        "reservations.read",
		UpdatedAt:    time.Now(),
	}
}

func staleCred() *domain.Credential {
	c := freshCred()
	c.UpdatedAt = time.Now().Add(-2 * time.Hour)
	return c
}

// ---------- Tests ----------

func TestAccessTokenFreshCredentialSkipsRefresh(t *testing.T) {
	srv, calls := tokenServer(t, http.StatusOK, map[string]interface{}{
		"access_token": "should-not-be-used",
	})
	repo := &mockCredRepo{cred: freshCred()}
	vault := vaultWith(t, repo, srv.URL)

	token, err := vault.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "current-token" {
		t.Errorf("token = %q, want current-token", token)
	}
	if *calls != 0 {
		t.Errorf("token endpoint called %d times, want 0", *calls)
	}
	if repo.updates != 0 {
		t.Errorf("credential updated %d times, want 0", repo.updates)
	}
}

func TestAccessTokenStaleCredentialRefreshes(t *testing.T) {
	srv, calls := tokenServer(t, http.StatusOK, map[string]interface{}{
		"access_token":  "new-token",
		"refresh_token": "new-refresh",
		"expires_in":    3600,
	})
	repo := &mockCredRepo{cred: staleCred()}
	vault := vaultWith(t, repo, srv.URL)

	token, err := vault.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "new-token" {
		t.Errorf("token = %q, want new-token", token)
	}
	if *calls != 1 {
		t.Errorf("token endpoint called %d times, want 1", *calls)
	}
	if repo.cred.RefreshToken != "new-refresh" {
		t.Errorf("stored refresh token = %q, want new-refresh", repo.cred.RefreshToken)
	}
	// Scope missing from the refresh response must survive from the old row.
	if repo.cred.Scope != "reservations.read" {
		t.Errorf("stored scope = %q, want reservations.read", repo.cred.Scope)
	}
}

func TestAccessTokenNoCredential(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusOK, nil)
	vault := vaultWith(t, &mockCredRepo{}, srv.URL)

	_, err := vault.AccessToken(context.Background())
	if !errors.Is(err, domain.ErrNoCredential) {
		t.Errorf("error = %v, want ErrNoCredential", err)
	}
}

func TestRefreshFailureKeepsStoredCredential(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusBadRequest, map[string]interface{}{
		"error": "invalid_grant",
	})
	repo := &mockCredRepo{cred: staleCred()}
	vault := vaultWith(t, repo, srv.URL)

	_, err := vault.AccessToken(context.Background())
	if !errors.Is(err, domain.ErrRefreshFailed) {
		t.Fatalf("error = %v, want ErrRefreshFailed", err)
	}
	if repo.cred.AccessToken != "current-token" {
		t.Error("failed refresh must not modify the stored credential")
	}
	if repo.updates != 0 {
		t.Errorf("credential updated %d times, want 0", repo.updates)
	}
}

func TestForceRefreshIgnoresExpiry(t *testing.T) {
	srv, calls := tokenServer(t, http.StatusOK, map[string]interface{}{
		"access_token":  "forced-token",
		"refresh_token": "forced-refresh",
		"expires_in":    3600,
	})
	repo := &mockCredRepo{cred: freshCred()}
	vault := vaultWith(t, repo, srv.URL)

	token, err := vault.ForceRefresh(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "forced-token" {
		t.Errorf("token = %q, want forced-token", token)
	}
	if *calls != 1 {
		t.Errorf("token endpoint called %d times, want 1", *calls)
	}
}

func TestExchangeStoresCredential(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusOK, map[string]interface{}{
		"access_token":  "initial-token",
		"refresh_token": "initial-refresh",
		"expires_in":    7200,
		"scope":         "reservations.read",
	})
	repo := &mockCredRepo{}
	vault := vaultWith(t, repo, srv.URL)

	if err := vault.Exchange(context.Background(), "auth-code"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.upserts != 1 {
		t.Errorf("upserts = %d, want 1", repo.upserts)
	}
	if repo.cred == nil || repo.cred.AccessToken != "initial-token" {
		t.Error("credential not stored from exchange")
	}
}

func TestCredentialExpiresAt(t *testing.T) {
	now := time.Now()
	c := &domain.Credential{ExpiresIn: 3600, UpdatedAt: now}
	want := now.Add(time.Hour)
	if got := c.ExpiresAt(); !got.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", got, want)
	}
}
