package github_handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v73/github"
)

// Sentinel errors for GitHub API operations.
// Every typed error below matches one of these with errors.Is().
var (
	// ErrRateLimited indicates a primary, secondary or GraphQL rate limit was hit.
	ErrRateLimited = errors.New("GitHub API rate limit exceeded")

	// ErrGraphQLQuery indicates a GraphQL response carried embedded errors.
	ErrGraphQLQuery = errors.New("GitHub GraphQL query failed")

	// ErrAuthenticationFailed indicates no credential could be obtained for the call.
	ErrAuthenticationFailed = errors.New("GitHub authentication failed")

	// ErrTimeout indicates the call did not complete before its deadline.
	ErrTimeout = errors.New("GitHub request timed out")

	// ErrNotFound indicates GitHub answered 404.
	ErrNotFound = errors.New("GitHub resource not found")

	// ErrBlockedIP indicates the organization's IP allow list rejected the call.
	ErrBlockedIP = errors.New("GitHub request blocked by IP allow list")

	// ErrSSOLogin indicates the organization requires SAML SSO authorization.
	ErrSSOLogin = errors.New("GitHub SSO authorization required")

	// ErrInvalidPermissions indicates the installation lacks a permission the endpoint needs.
	ErrInvalidPermissions = errors.New("GitHub App lacks required permissions")

	// ErrMissingURLParam indicates a path template placeholder had no value.
	ErrMissingURLParam = errors.New("missing URL parameter")

	// ErrInvalidConfig indicates a client was constructed with unusable settings.
	ErrInvalidConfig = errors.New("invalid GitHub client configuration")
)

// RateLimitedMarker is the GraphQL error type GitHub reports when the query budget is spent.
const RateLimitedMarker = "RATE_LIMITED"

const (
	headerRateRemaining = "X-RateLimit-Remaining"
	headerRateReset     = "X-RateLimit-Reset"
	headerSSO           = "X-GitHub-SSO"
)

// ClientError is a failed call that does not fit a more specific kind:
// a network failure or a non-2xx status.
type ClientError struct {
	Status   int
	Message  string
	Response *http.Response
	Err      error
}

func (e *ClientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("GitHub request failed with status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("GitHub request failed: %s", e.Message)
}

func (e *ClientError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status GitHub answered with, or 502 when none arrived.
func (e *ClientError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusBadGateway
	}
	return e.Status
}

// TimeoutError is returned when a call exceeds its per-call deadline.
type TimeoutError struct {
	// Timeout is the budget the call had: the configured timeout, or the time
	// left on the caller's deadline when that was shorter.
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("GitHub request timed out after %s", e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *TimeoutError) StatusCode() int { return http.StatusGatewayTimeout }

// RateLimitingError is returned for REST rate limit responses and for GraphQL
// responses whose errors include RateLimitedMarker. Response is kept so callers
// can read the reset headers.
type RateLimitingError struct {
	Response *http.Response
	// ResetAt is zero when GitHub did not say when the budget refills.
	ResetAt time.Time
	// RetryAfter is set for secondary rate limits.
	RetryAfter    *time.Duration
	GraphQLErrors []GraphQLErrorEntry
	Err           error
}

func (e *RateLimitingError) Error() string {
	if !e.ResetAt.IsZero() {
		return fmt.Sprintf("%s, resets at %s", ErrRateLimited, e.ResetAt.UTC().Format(time.RFC3339))
	}
	return ErrRateLimited.Error()
}

func (e *RateLimitingError) Unwrap() error { return e.Err }

func (e *RateLimitingError) Is(target error) bool { return target == ErrRateLimited }

func (e *RateLimitingError) StatusCode() int {
	if e.Response != nil && e.Response.StatusCode >= 400 {
		return e.Response.StatusCode
	}
	return http.StatusTooManyRequests
}

// GraphQLError carries the embedded errors of a GraphQL response that
// otherwise completed at the HTTP level.
type GraphQLError struct {
	Message  string
	Errors   []GraphQLErrorEntry
	Response *http.Response
	Err      error
}

func (e *GraphQLError) Error() string { return e.Message }

func (e *GraphQLError) Unwrap() error { return e.Err }

func (e *GraphQLError) Is(target error) bool { return target == ErrGraphQLQuery }

func (e *GraphQLError) StatusCode() int { return http.StatusBadRequest }

// AuthenticationError wraps a token provider failure.
type AuthenticationError struct {
	Mode AuthMode
	Err  error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s (%s credential): %v", ErrAuthenticationFailed, e.Mode, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthenticationFailed }

func (e *AuthenticationError) StatusCode() int { return http.StatusUnauthorized }

// NotFoundError is a 404 answer.
type NotFoundError struct{ ClientError }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// BlockedIPError is a 403 caused by the organization's IP allow list.
type BlockedIPError struct{ ClientError }

func (e *BlockedIPError) Is(target error) bool { return target == ErrBlockedIP }

// SSOLoginError is a 403 asking for SAML SSO authorization.
type SSOLoginError struct {
	ClientError
	// SSOURL is the authorization URL from the X-GitHub-SSO header, when given.
	SSOURL string
}

func (e *SSOLoginError) Is(target error) bool { return target == ErrSSOLogin }

// InvalidPermissionsError is a 403 for an endpoint the installation was not granted.
type InvalidPermissionsError struct{ ClientError }

func (e *InvalidPermissionsError) Is(target error) bool { return target == ErrInvalidPermissions }

type statusCoder interface {
	StatusCode() int
}

// StatusCode returns the HTTP status a caller should report for err.
// Errors not produced by this package map to 500.
func StatusCode(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// classifyError turns the result of a go-github call into one of the typed
// errors of this package. Errors that are already typed pass through.
func classifyError(resp *github.Response, err error, timeout time.Duration) error {
	var (
		authErr *AuthenticationError
		gqlErr  *GraphQLError
		rlErr   *RateLimitingError
	)
	switch {
	case errors.As(err, &authErr), errors.As(err, &gqlErr), errors.As(err, &rlErr),
		errors.Is(err, ErrMissingURLParam):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return &TimeoutError{Timeout: timeout, Err: err}
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &RateLimitingError{Response: rateErr.Response, ResetAt: rateErr.Rate.Reset.Time, Err: err}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &RateLimitingError{
			Response:   abuseErr.Response,
			ResetAt:    rateLimitResetAt(abuseErr.Response),
			RetryAfter: abuseErr.RetryAfter,
			Err:        err,
		}
	}

	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		base := ClientError{
			Status:   errResp.Response.StatusCode,
			Message:  errResp.Message,
			Response: errResp.Response,
			Err:      err,
		}
		if base.Message == "" {
			base.Message = http.StatusText(base.Status)
		}
		switch base.Status {
		case http.StatusNotFound:
			return &NotFoundError{base}
		case http.StatusForbidden, http.StatusTooManyRequests:
			return classifyForbidden(base)
		}
		return &base
	}

	ce := &ClientError{Message: err.Error(), Err: err}
	if resp != nil && resp.Response != nil {
		ce.Status = resp.StatusCode
		ce.Response = resp.Response
	}
	return ce
}

func classifyForbidden(base ClientError) error {
	header := base.Response.Header
	switch {
	case header.Get(headerRateRemaining) == "0":
		return &RateLimitingError{Response: base.Response, ResetAt: rateLimitResetAt(base.Response), Err: base.Err}
	case header.Get(headerSSO) != "":
		return &SSOLoginError{ClientError: base, SSOURL: ssoURL(header.Get(headerSSO))}
	case strings.Contains(strings.ToLower(base.Message), "ip allow list"):
		return &BlockedIPError{base}
	case strings.Contains(base.Message, "Resource not accessible by integration"):
		return &InvalidPermissionsError{base}
	}
	return &base
}

// rateLimitResetAt reads the epoch seconds in X-RateLimit-Reset.
func rateLimitResetAt(resp *http.Response) time.Time {
	if resp == nil {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(resp.Header.Get(headerRateReset), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}

// ssoURL extracts the url= part of "required; url=https://...".
func ssoURL(header string) string {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "url=") {
			return strings.TrimPrefix(part, "url=")
		}
	}
	return ""
}
