// Package config loads the process-level settings of the GitHub client layer.
// They are read once at startup and passed to every client.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	github_handler "github.com/MyCarrier-DevOps/goLibGitHubClient/github"
	"github.com/MyCarrier-DevOps/goLibGitHubClient/logger"
)

// Settings holds the client layer configuration.
type Settings struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	OutboundProxy  string        `mapstructure:"outbound_proxy"`
	NoProxy        string        `mapstructure:"no_proxy"`
	TrustedDomains []string      `mapstructure:"trusted_domains"`
	UserAgent      string        `mapstructure:"user_agent"`
	LogLevel       string        `mapstructure:"log_level"`
}

// LoadSettings loads the configuration from environment variables using Viper.
func LoadSettings() (*Settings, error) {
	return loadSettings(viper.New())
}

func loadSettings(v *viper.Viper) (*Settings, error) {
	bindings := map[string]string{
		"timeout":         "GITHUB_CLIENT_TIMEOUT",
		"outbound_proxy":  "GITHUB_OUTBOUND_PROXY",
		"no_proxy":        "GITHUB_NO_PROXY",
		"trusted_domains": "GITHUB_TRUSTED_DOMAINS",
		"user_agent":      "GITHUB_USER_AGENT",
		"log_level":       "LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding env %s: %w", env, err)
		}
	}
	v.SetDefault("timeout", github_handler.DefaultRequestTimeout)
	v.SetDefault("log_level", logger.InfoLevel)

	v.AutomaticEnv()

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	if err := validateSettings(&settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// validateSettings checks the loaded settings and normalises list values.
func validateSettings(s *Settings) error {
	if s.Timeout <= 0 {
		return fmt.Errorf("GITHUB_CLIENT_TIMEOUT must be positive, got %s", s.Timeout)
	}

	// A single env var arrives as one comma separated element.
	var domains []string
	for _, entry := range s.TrustedDomains {
		for _, d := range strings.Split(entry, ",") {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" {
				domains = append(domains, d)
			}
		}
	}
	s.TrustedDomains = domains

	switch s.LogLevel {
	case logger.DebugLevel, logger.InfoLevel, logger.WarnLevel, logger.ErrorLevel:
	case "":
		s.LogLevel = logger.InfoLevel
	default:
		return fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", s.LogLevel)
	}
	return nil
}

// ClientSettings converts the settings into the options shared by every client.
func (s *Settings) ClientSettings() github_handler.ClientSettings {
	return github_handler.ClientSettings{
		Timeout:   s.Timeout,
		UserAgent: s.UserAgent,
		Proxy: github_handler.ProxySettings{
			OutboundProxy:  s.OutboundProxy,
			NoProxy:        s.NoProxy,
			TrustedDomains: s.TrustedDomains,
		},
	}
}

// Logger builds the zap-backed logger at the configured level.
func (s *Settings) Logger() *logger.ZapLogger {
	return logger.NewZapLoggerFromLevel(s.LogLevel)
}
