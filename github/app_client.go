package github_handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/go-github/v73/github"
)

// AppPreviewMediaType is the Accept header for GitHub App endpoints.
const AppPreviewMediaType = "application/vnd.github.machine-man-preview+json"

// AppClient calls the endpoints that act as the GitHub App itself.
// It holds only the identity and its token providers; every request fetches
// a fresh token, so rotation needs no coordination with the client.
type AppClient struct {
	identity      *InstallationIdentity
	appTokens     TokenProvider
	installTokens TokenProvider
	rest          *RESTClient
}

// NewAppClient creates an AppClient for identity. appTokens supplies the app
// JWT; WithInstallationTokens adds the provider for installation-mode calls.
func NewAppClient(identity *InstallationIdentity, appTokens TokenProvider, opts ...ClientOption) (*AppClient, error) {
	if identity == nil {
		return nil, fmt.Errorf("%w: installation identity is required", ErrInvalidConfig)
	}
	if appTokens == nil {
		return nil, fmt.Errorf("%w: app token provider is required", ErrInvalidConfig)
	}
	o := newClientOptions(opts)
	cfg, err := o.resolveConfig(identity)
	if err != nil {
		return nil, err
	}

	c := &AppClient{
		identity:      identity,
		appTokens:     appTokens,
		installTokens: o.installTokens,
	}
	c.rest, err = NewRESTClient(cfg, o.settings, c.authHeaders, o.log.WithFields(identity.logFields()), o.metrics)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// REST returns the underlying REST client, authenticated as the app.
func (c *AppClient) REST() *RESTClient {
	return c.rest
}

// authHeaders is the AppClient's HeaderProvider. Installation mode falls back
// to the app JWT when no installation provider was configured.
func (c *AppClient) authHeaders(ctx context.Context, mode AuthMode) (http.Header, error) {
	provider := c.appTokens
	if mode == AuthModeInstallation {
		if c.installTokens != nil {
			provider = c.installTokens
		} else {
			c.rest.pipeline.log.Warn(ctx, "No installation token provider configured, using the app JWT", nil)
		}
	}
	tok, err := provider.Token(ctx, c.identity)
	if err != nil {
		return nil, err
	}
	if tok == nil || tok.Token == "" {
		return nil, errors.New("token provider returned an empty token")
	}

	h := make(http.Header)
	h.Set("Authorization", "Bearer "+tok.Token)
	h.Set("Accept", AppPreviewMediaType)
	return h, nil
}

func (c *AppClient) get(ctx context.Context, path string, opts *RequestOptions, v interface{}) (*github.Response, error) {
	if opts.MetricName == "" {
		opts.MetricName = MetricAppRequest
	}
	return c.rest.Get(ctx, path, opts, v)
}

// GetApp returns the GitHub App the JWT belongs to.
func (c *AppClient) GetApp(ctx context.Context) (*github.App, *github.Response, error) {
	app := new(github.App)
	resp, err := c.get(ctx, "/app", &RequestOptions{AuthMode: AuthModeJWT}, app)
	if err != nil {
		return nil, resp, err
	}
	return app, resp, nil
}

// GetInstallation returns one installation of the app. The endpoint only
// accepts the app JWT, never an installation token.
func (c *AppClient) GetInstallation(ctx context.Context, id int64) (*github.Installation, *github.Response, error) {
	inst := new(github.Installation)
	resp, err := c.get(ctx, "/app/installations/{installation_id}", &RequestOptions{
		Params:   map[string]string{"installation_id": strconv.FormatInt(id, 10)},
		AuthMode: AuthModeJWT,
	}, inst)
	if err != nil {
		return nil, resp, err
	}
	return inst, resp, nil
}

// GetInstallations lists the installations of the app, one page at a time.
func (c *AppClient) GetInstallations(ctx context.Context, opts *github.ListOptions) ([]*github.Installation, *github.Response, error) {
	var installs []*github.Installation
	resp, err := c.get(ctx, "/app/installations", &RequestOptions{
		Query:    listQuery(opts),
		AuthMode: AuthModeJWT,
	}, &installs)
	if err != nil {
		return nil, resp, err
	}
	return installs, resp, nil
}

// GetUserMembershipForOrg returns username's membership in org. GitHub only
// answers this for an installation of the app on org, so the call uses the
// installation credential.
func (c *AppClient) GetUserMembershipForOrg(ctx context.Context, username, org string) (*github.Membership, *github.Response, error) {
	membership := new(github.Membership)
	resp, err := c.get(ctx, "/orgs/{org}/memberships/{username}", &RequestOptions{
		Params:   map[string]string{"org": org, "username": username},
		AuthMode: AuthModeInstallation,
	}, membership)
	if err != nil {
		return nil, resp, err
	}
	return membership, resp, nil
}

// listQuery converts go-github list options into query values.
func listQuery(opts *github.ListOptions) url.Values {
	if opts == nil {
		return nil
	}
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(opts.PerPage))
	}
	return q
}
