// Package goLibGitHubClient is the outbound GitHub API client layer used by
// MyCarrier DevOps services.
//
// # Available Packages
//
// This is a meta-package for version tracking. Import individual packages directly:
//
//   - github.com/MyCarrier-DevOps/goLibGitHubClient/github - App and installation clients, REST and GraphQL execution, proxy selection, typed errors
//   - github.com/MyCarrier-DevOps/goLibGitHubClient/github/githubtest - Token provider and metrics test doubles
//   - github.com/MyCarrier-DevOps/goLibGitHubClient/config - Process-level client settings from the environment
//   - github.com/MyCarrier-DevOps/goLibGitHubClient/logger - Structured logging interfaces
//   - github.com/MyCarrier-DevOps/goLibGitHubClient/logger/loggertest - Capturing logger for tests
//
// # Usage
//
//	settings, err := config.LoadSettings()
//	creds, err := github_handler.LoadAppCredentials()
//	appTokens, err := github_handler.NewAppJWTProvider(creds.AppID, creds.Pem)
//	client, err := github_handler.NewAppClient(creds.Identity(), appTokens,
//	    github_handler.WithSettings(settings.ClientSettings()),
//	    github_handler.WithLogger(settings.Logger()))
//	app, _, err := client.GetApp(ctx)
package goLibGitHubClient
