package github_handler

import (
	"github.com/MyCarrier-DevOps/goLibGitHubClient/logger"
)

// ClientOption configures an AppClient or InstallationClient at construction time.
type ClientOption func(*clientOptions)

type clientOptions struct {
	settings      ClientSettings
	log           logger.Logger
	metrics       MetricsRecorder
	config        *GitHubConfig
	installTokens TokenProvider
}

func newClientOptions(opts []ClientOption) *clientOptions {
	o := &clientOptions{
		log:     &logger.NopLogger{},
		metrics: NopMetricsRecorder{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithSettings sets the timeout, proxy and user agent settings.
func WithSettings(settings ClientSettings) ClientOption {
	return func(o *clientOptions) {
		o.settings = settings
	}
}

// WithLogger sets the logger used for failure diagnostics.
func WithLogger(log logger.Logger) ClientOption {
	return func(o *clientOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// WithMetrics sets the recorder that receives one metric per call.
func WithMetrics(metrics MetricsRecorder) ClientOption {
	return func(o *clientOptions) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithGitHubConfig overrides the endpoint configuration derived from the
// installation identity, for example to set an explicit proxy.
func WithGitHubConfig(cfg *GitHubConfig) ClientOption {
	return func(o *clientOptions) {
		o.config = cfg
	}
}

// WithInstallationTokens gives an AppClient the provider used for endpoints
// that need an installation token rather than the app JWT.
func WithInstallationTokens(tokens TokenProvider) ClientOption {
	return func(o *clientOptions) {
		o.installTokens = tokens
	}
}

// resolveConfig returns the overriding config or derives one from identity.
func (o *clientOptions) resolveConfig(identity *InstallationIdentity) (*GitHubConfig, error) {
	if o.config != nil {
		return o.config, nil
	}
	return identity.GitHubConfig()
}
