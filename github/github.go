package github_handler

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// PublicHostname is the hostname of GitHub.com.
	PublicHostname = "github.com"

	publicBaseURL    = "https://github.com"
	publicAPIURL     = "https://api.github.com"
	publicGraphQLURL = "https://api.github.com/graphql"

	// DefaultRequestTimeout bounds a single call when ClientSettings.Timeout is unset.
	DefaultRequestTimeout = 20 * time.Second
)

// GitHubConfig describes where a client sends its REST and GraphQL calls.
// It is built once per client and never mutated afterwards.
type GitHubConfig struct {
	Hostname   string
	BaseURL    string
	APIURL     string
	GraphQLURL string

	// ProxyBaseURL, when set, routes every call through this proxy
	// regardless of the destination host.
	ProxyBaseURL string
}

// NewGitHubConfig derives the API endpoints for a GitHub host.
// An empty baseURL selects GitHub.com; any other host is treated as
// GitHub Enterprise Server.
func NewGitHubConfig(baseURL string) (*GitHubConfig, error) {
	if baseURL == "" {
		baseURL = publicBaseURL
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base URL %q: %v", ErrInvalidConfig, baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q must be absolute", ErrInvalidConfig, baseURL)
	}

	if u.Hostname() == PublicHostname || u.Hostname() == "api."+PublicHostname {
		return &GitHubConfig{
			Hostname:   PublicHostname,
			BaseURL:    publicBaseURL,
			APIURL:     publicAPIURL,
			GraphQLURL: publicGraphQLURL,
		}, nil
	}

	base := u.String()
	return &GitHubConfig{
		Hostname:   u.Hostname(),
		BaseURL:    base,
		APIURL:     base + "/api/v3",
		GraphQLURL: base + "/api/graphql",
	}, nil
}

// WithProxy returns a copy of the config that routes through proxyBaseURL.
func (c GitHubConfig) WithProxy(proxyBaseURL string) *GitHubConfig {
	c.ProxyBaseURL = proxyBaseURL
	return &c
}

// IsEnterprise reports whether the config targets a GitHub Enterprise Server host.
func (c *GitHubConfig) IsEnterprise() bool {
	return c.Hostname != PublicHostname
}

// InstallationIdentity scopes token lookups to one installation of a GitHub App
// and selects the GitHub host it lives on. Clients never mutate it.
type InstallationIdentity struct {
	AppID          int64
	ClientID       string
	InstallationID int64

	// BaseURL is the GitHub web URL; empty means GitHub.com.
	BaseURL string
	// APIURL overrides the API URL derived from BaseURL.
	APIURL string

	// UUID correlates log lines and token lookups for a GitHub server registration.
	UUID string
}

// GitHubConfig derives the endpoint configuration for the identity's host.
func (id *InstallationIdentity) GitHubConfig() (*GitHubConfig, error) {
	cfg, err := NewGitHubConfig(id.BaseURL)
	if err != nil {
		return nil, err
	}
	if id.APIURL != "" {
		cfg.APIURL = strings.TrimSuffix(id.APIURL, "/")
	}
	return cfg, nil
}

// logFields returns the identity fields attached to every client log line.
func (id *InstallationIdentity) logFields() map[string]interface{} {
	return map[string]interface{}{
		"app_id":          id.AppID,
		"installation_id": id.InstallationID,
		"github_uuid":     id.UUID,
	}
}

// AppCredentials holds the GitHub App settings read from the environment.
type AppCredentials struct {
	Pem       string `mapstructure:"pem"`
	AppID     int64  `mapstructure:"app_id"`
	InstallID int64  `mapstructure:"install_id"`
	BaseURL   string `mapstructure:"base_url"`
}

// LoadAppCredentials loads the GitHub App credentials from environment variables.
func LoadAppCredentials() (*AppCredentials, error) {
	if err := viper.BindEnv("pem", "GITHUB_APP_PRIVATE_KEY"); err != nil {
		return nil, fmt.Errorf("error binding env GITHUB_APP_PRIVATE_KEY: %w", err)
	}
	if err := viper.BindEnv("app_id", "GITHUB_APP_ID"); err != nil {
		return nil, fmt.Errorf("error binding env GITHUB_APP_ID: %w", err)
	}
	if err := viper.BindEnv("install_id", "GITHUB_APP_INSTALLATION_ID"); err != nil {
		return nil, fmt.Errorf("error binding env GITHUB_APP_INSTALLATION_ID: %w", err)
	}
	if err := viper.BindEnv("base_url", "GITHUB_BASE_URL"); err != nil {
		return nil, fmt.Errorf("error binding env GITHUB_BASE_URL: %w", err)
	}

	viper.AutomaticEnv()

	var creds AppCredentials
	if err := viper.Unmarshal(&creds); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	if err := validateAppCredentials(&creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

func validateAppCredentials(creds *AppCredentials) error {
	if len(creds.Pem) < 10 {
		return fmt.Errorf("%w: GITHUB_APP_PRIVATE_KEY is required and must be valid", ErrInvalidConfig)
	}
	if creds.AppID <= 0 {
		return fmt.Errorf("%w: GITHUB_APP_ID is required", ErrInvalidConfig)
	}
	return nil
}

// Identity returns the installation identity described by the credentials.
func (c *AppCredentials) Identity() *InstallationIdentity {
	return &InstallationIdentity{
		AppID:          c.AppID,
		InstallationID: c.InstallID,
		BaseURL:        c.BaseURL,
	}
}
