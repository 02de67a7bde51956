package cloudbeds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roomquest/idverify/internal/domain"
	"github.com/roomquest/idverify/internal/repo/postgres"
	"github.com/roomquest/idverify/pkg/logger"
)

// refreshBuffer is how long before actual expiry the vault treats a token as
// stale. Cloudbeds tokens live for hours; refreshing early avoids handing out
// a token that expires mid-request.
const refreshBuffer = 5 * time.Minute

// Vault owns the deployment's single Cloudbeds OAuth credential: it hands
// out a valid access token, refreshing transparently when the stored one is
// near expiry. Refreshes are serialized so two concurrent callers cannot
// race refresh calls and invalidate each other's refresh token.
type Vault struct {
	repo   postgres.CredentialRepo
	client *Client

	mu sync.Mutex
}

func NewVault(repo postgres.CredentialRepo, client *Client) *Vault {
	return &Vault{repo: repo, client: client}
}

// AccessToken returns a usable access token, refreshing first when the
// stored one is within the expiry buffer.
func (v *Vault) AccessToken(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	cred, err := v.repo.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("load cloudbeds credential: %w", err)
	}
	if cred == nil {
		return "", domain.ErrNoCredential
	}

	if time.Now().Before(cred.ExpiresAt().Add(-refreshBuffer)) {
		return cred.AccessToken, nil
	}

	logger.InfoContext(ctx, "Cloudbeds token near expiry, refreshing",
		"expires_at", cred.ExpiresAt(),
	)
	return v.refreshLocked(ctx, cred)
}

// ForceRefresh refreshes unconditionally. Used after a 401 to recover from a
// token the upstream revoked before its recorded expiry.
func (v *Vault) ForceRefresh(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	cred, err := v.repo.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("load cloudbeds credential: %w", err)
	}
	if cred == nil {
		return "", domain.ErrNoCredential
	}
	return v.refreshLocked(ctx, cred)
}

func (v *Vault) refreshLocked(ctx context.Context, cred *domain.Credential) (string, error) {
	fresh, err := v.client.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		// Stored credential stays untouched on any refresh failure.
		return "", fmt.Errorf("%w: %v", domain.ErrRefreshFailed, err)
	}
	if fresh.Scope == "" {
		fresh.Scope = cred.Scope
	}

	if err := v.repo.Update(ctx, fresh); err != nil {
		return "", fmt.Errorf("persist refreshed credential: %w", err)
	}

	logger.InfoContext(ctx, "Cloudbeds token refreshed", "expires_in", fresh.ExpiresIn)
	return fresh.AccessToken, nil
}

// Exchange performs the one-time authorization-code exchange and stores the
// resulting credential, creating the row if this is the first authorization.
func (v *Vault) Exchange(ctx context.Context, code string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	cred, err := v.client.ExchangeCode(ctx, code)
	if err != nil {
		return fmt.Errorf("authorization code exchange: %w", err)
	}
	if err := v.repo.Upsert(ctx, cred); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}

	logger.InfoContext(ctx, "Cloudbeds property connected", "expires_in", cred.ExpiresIn)
	return nil
}

// Status reports the stored credential's expiry for the refresh endpoint
// without ever exposing the token itself.
func (v *Vault) Status(ctx context.Context) (*domain.Credential, error) {
	cred, err := v.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, domain.ErrNoCredential
	}
	return cred, nil
}
