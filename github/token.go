package github_handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jferrl/go-githubauth"
	"golang.org/x/oauth2"
)

// ErrInvalidPrivateKey indicates the private key is malformed or incorrect.
// Action: Check the GITHUB_APP_PRIVATE_KEY environment variable.
var ErrInvalidPrivateKey = errors.New("invalid GitHub App private key")

// AppToken is a short-lived credential. Clients fetch one per request and
// never keep it.
type AppToken struct {
	Token string
	// ExpiresAt is zero when the source does not report an expiry.
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t *AppToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// TokenProvider returns a currently valid credential for an installation.
// It may perform network calls and caching of its own.
type TokenProvider interface {
	Token(ctx context.Context, identity *InstallationIdentity) (*AppToken, error)
}

// TokenProviderFunc adapts a function to TokenProvider.
type TokenProviderFunc func(ctx context.Context, identity *InstallationIdentity) (*AppToken, error)

// Token implements TokenProvider.
func (f TokenProviderFunc) Token(ctx context.Context, identity *InstallationIdentity) (*AppToken, error) {
	return f(ctx, identity)
}

// TokenSourceProvider serves tokens from an oauth2.TokenSource. The identity
// is not consulted; the source is already scoped.
type TokenSourceProvider struct {
	Source oauth2.TokenSource
}

// Token implements TokenProvider.
func (p *TokenSourceProvider) Token(_ context.Context, _ *InstallationIdentity) (*AppToken, error) {
	tok, err := p.Source.Token()
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}
	return &AppToken{Token: tok.AccessToken, ExpiresAt: tok.Expiry}, nil
}

// NewAppJWTProvider mints JWTs that authenticate as the GitHub App itself.
// privateKey is PEM content or a path to a PEM file.
func NewAppJWTProvider(appID int64, privateKey string) (*TokenSourceProvider, error) {
	key, err := readPrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	src, err := githubauth.NewApplicationTokenSource(appID, key)
	if err != nil {
		return nil, fmt.Errorf("error creating application token source: %w", err)
	}
	return &TokenSourceProvider{Source: src}, nil
}

// InstallationTransportProvider serves installation tokens for a single
// installation, minted and refreshed by ghinstallation.
type InstallationTransportProvider struct {
	installationID int64
	transport      *ghinstallation.Transport
}

// NewInstallationTransportProvider creates a provider for identity. Token
// requests go through base, so they follow the same network path as the
// client that uses them; nil means http.DefaultTransport.
func NewInstallationTransportProvider(
	identity *InstallationIdentity,
	privateKey string,
	base http.RoundTripper,
) (*InstallationTransportProvider, error) {
	key, err := readPrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	if base == nil {
		base = http.DefaultTransport
	}
	tr, err := ghinstallation.New(base, identity.AppID, identity.InstallationID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create installation transport: %w", err)
	}

	cfg, err := identity.GitHubConfig()
	if err != nil {
		return nil, err
	}
	if cfg.IsEnterprise() {
		tr.BaseURL = cfg.APIURL
	}

	return &InstallationTransportProvider{installationID: identity.InstallationID, transport: tr}, nil
}

// Token implements TokenProvider.
func (p *InstallationTransportProvider) Token(ctx context.Context, identity *InstallationIdentity) (*AppToken, error) {
	if identity != nil && identity.InstallationID != p.installationID {
		return nil, fmt.Errorf("provider serves installation %d, not %d", p.installationID, identity.InstallationID)
	}
	tok, err := p.transport.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("error generating installation token: %w", err)
	}
	return &AppToken{Token: tok}, nil
}

// readPrivateKey accepts inline PEM content (starts with "-----BEGIN") or a
// file path, and checks that it holds an RSA key.
func readPrivateKey(privateKey string) ([]byte, error) {
	var key []byte
	if privateKey != "" && privateKey[0] == '-' {
		key = []byte(privateKey)
	} else {
		var err error
		key, err = os.ReadFile(privateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key file: %w", err)
		}
	}

	if _, err := jwt.ParseRSAPrivateKeyFromPEM(key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return key, nil
}
