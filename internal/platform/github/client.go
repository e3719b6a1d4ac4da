// Package github implements platform.Platform against the GitHub APIs:
// Projects v2 through GraphQL with githubv4, issue listing, search,
// assignees and rate limits through REST with go-github. Both clients share
// one http.Client whose transport carries the token, the ETag cache and
// request pacing.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v74/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/roach88/boardsync/internal/platform"
)

// DefaultBaseURL is the public GitHub API.
const DefaultBaseURL = "https://api.github.com"

// Config configures a Client.
type Config struct {
	// Token authenticates every request.
	Token string
	// BaseURL defaults to DefaultBaseURL. GraphQL is served at BaseURL/graphql.
	BaseURL string
	// RequestsPerSecond paces outgoing requests; zero disables pacing.
	RequestsPerSecond int
	// Timeout bounds each request; zero means 30s.
	Timeout time.Duration
	// ETags caches conditional reads; nil creates a fresh cache.
	ETags *platform.ETagCache
	// Transport is the innermost round tripper; nil means
	// http.DefaultTransport.
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Client is a GitHub platform client. It is safe for concurrent use.
type Client struct {
	rest   *gh.Client
	gql    *githubv4.Client
	etags  *platform.ETagCache
	logger *slog.Logger

	mu        sync.Mutex
	rateLimit platform.RateLimit
	rateKnown bool
}

var _ platform.Platform = (*Client)(nil)

// New creates a client authenticated with cfg.Token.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	restURL, err := url.Parse(base + "/")
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %q: %w", cfg.BaseURL, err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &Client{etags: cfg.ETags, logger: cfg.Logger}
	if c.etags == nil {
		c.etags = platform.NewETagCache()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	inner := cfg.Transport
	if inner == nil {
		inner = http.DefaultTransport
	}
	if cfg.Token != "" {
		inner = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}),
			Base:   inner,
		}
	}
	tr := &transport{
		base:        inner,
		etags:       c.etags,
		graphqlPath: strings.TrimRight(restURL.Path, "/") + "/graphql",
		onRate:      c.observeRate,
		logger:      c.logger,
	}
	if cfg.RequestsPerSecond > 0 {
		tr.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestsPerSecond)
	}
	httpClient := &http.Client{Transport: tr, Timeout: timeout}

	c.rest = gh.NewClient(httpClient)
	c.rest.BaseURL = restURL
	c.gql = githubv4.NewEnterpriseClient(base+"/graphql", httpClient)
	return c, nil
}

// ETags returns the client's entity-tag cache.
func (c *Client) ETags() *platform.ETagCache {
	return c.etags
}

func (c *Client) observeRate(rl platform.RateLimit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rateLimit, c.rateKnown = rl, true
}

// RateLimitRemaining returns the budget seen on the last reply, asking
// /rate_limit only when no reply has carried the headers yet.
func (c *Client) RateLimitRemaining(ctx context.Context) (platform.RateLimit, error) {
	c.mu.Lock()
	rl, known := c.rateLimit, c.rateKnown
	c.mu.Unlock()
	if known {
		return rl, nil
	}

	limits, _, err := c.rest.RateLimit.Get(ctx)
	if err != nil {
		return platform.RateLimit{}, fmt.Errorf("reading rate limit: %w", restError(err))
	}
	core := limits.GetCore()
	if core == nil {
		return platform.RateLimit{}, &platform.APIError{StatusCode: http.StatusBadGateway, Message: "rate limit reply has no core budget"}
	}
	rl = platform.RateLimit{Remaining: core.Remaining, Reset: core.Reset.Time}
	c.observeRate(rl)
	return rl, nil
}

// restError maps go-github failures onto *platform.APIError. Errors the
// transport already mapped pass through unchanged.
func restError(err error) error {
	var (
		ae     *platform.APIError
		limit  *gh.RateLimitError
		abuse  *gh.AbuseRateLimitError
		status *gh.ErrorResponse
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return err
	case errors.As(err, &limit):
		return &platform.APIError{StatusCode: statusOf(limit.Response, http.StatusForbidden), Code: "RATE_LIMITED", Message: limit.Message, Err: err}
	case errors.As(err, &abuse):
		return &platform.APIError{StatusCode: statusOf(abuse.Response, http.StatusForbidden), Code: "RATE_LIMITED", Message: abuse.Message, Err: err}
	case errors.As(err, &status):
		code := statusOf(status.Response, 0)
		msg := status.Message
		if msg == "" {
			msg = http.StatusText(code)
		}
		return &platform.APIError{StatusCode: code, Message: msg, Err: err}
	default:
		return err
	}
}

func statusOf(resp *http.Response, fallback int) int {
	if resp == nil {
		return fallback
	}
	return resp.StatusCode
}

// splitRepo splits owner/name.
func splitRepo(repo string) (string, string, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repository %q", repo)
	}
	return owner, name, nil
}
