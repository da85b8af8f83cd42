// internal/runtime/auth.go
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
)

var scopes = []string{
	"https://graph.microsoft.com/Mail.ReadWrite",
	"https://graph.microsoft.com/eDiscovery.ReadWrite.All",
}

// TokenSource yields a current access token, refreshing silently when the
// identity library has a cached account and falling back to the device-code
// flow otherwise.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type msalSource struct {
	client  public.Client
	mu      sync.Mutex
	account public.Account
}

// NewTokenSource builds a device-code token source for the configured tenant.
func NewTokenSource(cfg Config) (TokenSource, error) {
	authority := fmt.Sprintf("https://login.microsoftonline.com/%s", cfg.TenantID)
	client, err := public.New(cfg.ClientID, public.WithAuthority(authority))
	if err != nil {
		return nil, fmt.Errorf("create identity client: %w", err)
	}
	return &msalSource{client: client}, nil
}

func (s *msalSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.account.HomeAccountID != "" {
		result, err := s.client.AcquireTokenSilent(ctx, scopes, public.WithSilentAccount(s.account))
		if err == nil {
			return result.AccessToken, nil
		}
	}
	if accounts, err := s.client.Accounts(ctx); err == nil && len(accounts) > 0 {
		result, err := s.client.AcquireTokenSilent(ctx, scopes, public.WithSilentAccount(accounts[0]))
		if err == nil {
			s.account = result.Account
			return result.AccessToken, nil
		}
	}

	code, err := s.client.AcquireTokenByDeviceCode(ctx, scopes)
	if err != nil {
		return "", fmt.Errorf("initiate device code flow: %w", err)
	}
	fmt.Fprintln(os.Stderr, code.Result.Message)
	result, err := code.AuthenticationResult(ctx)
	if err != nil {
		return "", fmt.Errorf("device code authentication: %w", err)
	}
	s.account = result.Account
	return result.AccessToken, nil
}

// DefaultLogger is the process-wide diagnostic logger.
func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
