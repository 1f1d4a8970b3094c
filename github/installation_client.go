package github_handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v73/github"
)

// InstallationClient calls GitHub on behalf of one installation of the app,
// over REST and GraphQL. Both share a single transport and fetch the
// installation token at call time.
type InstallationClient struct {
	identity *InstallationIdentity
	tokens   TokenProvider
	rest     *RESTClient
	graphql  *GraphQLClient
}

// NewInstallationClient creates an InstallationClient for identity.
func NewInstallationClient(identity *InstallationIdentity, tokens TokenProvider, opts ...ClientOption) (*InstallationClient, error) {
	if identity == nil {
		return nil, fmt.Errorf("%w: installation identity is required", ErrInvalidConfig)
	}
	if tokens == nil {
		return nil, fmt.Errorf("%w: installation token provider is required", ErrInvalidConfig)
	}
	o := newClientOptions(opts)
	cfg, err := o.resolveConfig(identity)
	if err != nil {
		return nil, err
	}

	c := &InstallationClient{identity: identity, tokens: tokens}
	c.rest, err = NewRESTClient(cfg, o.settings, c.authHeaders, o.log.WithFields(identity.logFields()), o.metrics)
	if err != nil {
		return nil, err
	}
	c.graphql = NewGraphQLClient(c.rest)
	return c, nil
}

// REST returns the installation-authenticated REST client.
func (c *InstallationClient) REST() *RESTClient {
	return c.rest
}

// GraphQL returns the installation-authenticated GraphQL client.
func (c *InstallationClient) GraphQL() *GraphQLClient {
	return c.graphql
}

func (c *InstallationClient) authHeaders(ctx context.Context, _ AuthMode) (http.Header, error) {
	tok, err := c.tokens.Token(ctx, c.identity)
	if err != nil {
		return nil, err
	}
	if tok == nil || tok.Token == "" {
		return nil, errors.New("token provider returned an empty token")
	}

	h := make(http.Header)
	h.Set("Authorization", "token "+tok.Token)
	h.Set("Accept", "application/vnd.github.v3+json")
	return h, nil
}

// GetRepository returns owner/repo.
func (c *InstallationClient) GetRepository(ctx context.Context, owner, repo string) (*github.Repository, *github.Response, error) {
	r := new(github.Repository)
	resp, err := c.rest.Get(ctx, "/repos/{owner}/{repo}", &RequestOptions{
		Params: map[string]string{"owner": owner, "repo": repo},
	}, r)
	if err != nil {
		return nil, resp, err
	}
	return r, resp, nil
}

// ListInstallationRepositories lists one page of the repositories the
// installation can access.
func (c *InstallationClient) ListInstallationRepositories(ctx context.Context, opts *github.ListOptions) (*github.ListRepositories, *github.Response, error) {
	repos := new(github.ListRepositories)
	resp, err := c.rest.Get(ctx, "/installation/repositories", &RequestOptions{Query: listQuery(opts)}, repos)
	if err != nil {
		return nil, resp, err
	}
	return repos, resp, nil
}

const countRepositoriesQuery = `query {
  viewer {
    repositories {
      totalCount
    }
  }
}`

type countRepositoriesData struct {
	Viewer struct {
		Repositories struct {
			TotalCount int `json:"totalCount"`
		} `json:"repositories"`
	} `json:"viewer"`
}

// CountInstallationRepositories returns how many repositories the
// installation's viewer can see.
func (c *InstallationClient) CountInstallationRepositories(ctx context.Context) (int, error) {
	out, _, err := Query[countRepositoriesData](ctx, c.graphql, countRepositoriesQuery, nil, nil)
	if err != nil {
		return 0, err
	}
	if out.Data == nil {
		return 0, nil
	}
	return out.Data.Viewer.Repositories.TotalCount, nil
}
