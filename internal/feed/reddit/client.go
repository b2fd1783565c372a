// Package reddit implements bot.Feed against the Reddit OAuth API.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/elsbot/snapshotbot/internal/bot"
	"github.com/elsbot/snapshotbot/internal/policy/ratelimit"
)

// Default endpoints.
const (
	DefaultAPIBase  = "https://oauth.reddit.com"
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"
)

// maxErrorBody bounds how much of an error response is kept for logging.
const maxErrorBody = 512

// Config controls the Reddit client.
type Config struct {
	APIBase           string
	TokenURL          string
	ClientID          string
	ClientSecret      string
	Username          string
	Password          string
	UserAgent         string
	Operator          string
	Timeout           time.Duration
	ListingLimit      int
	RequestsPerMinute float64
}

// Client talks to the Reddit API with a password-grant OAuth token.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

var _ bot.Feed = (*Client)(nil)

// New builds a Client. Tokens are fetched lazily on the first request and
// re-fetched when they expire.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("reddit username and password are required")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ListingLimit <= 0 {
		cfg.ListingLimit = 25
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if logger == nil {
		logger = zap.NewNop()
	}

	base := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &userAgentTransport{agent: UserAgent(cfg.UserAgent, cfg.Operator), next: newHTTPTransport()},
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	src := oauth2.ReuseTokenSource(nil, &passwordSource{
		ctx:      tokenCtx,
		cfg:      oauthCfg,
		username: cfg.Username,
		password: cfg.Password,
	})

	httpClient := oauth2.NewClient(tokenCtx, src)
	httpClient.Timeout = cfg.Timeout

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: ratelimit.New(ratelimit.Config{RequestsPerMinute: cfg.RequestsPerMinute}),
		logger:  logger,
	}, nil
}

// UserAgent builds the identifying agent string Reddit asks clients to send.
func UserAgent(agent, operator string) string {
	if agent == "" {
		agent = "snapshotbot"
	}
	if operator == "" {
		return agent
	}
	return fmt.Sprintf("%s (by /u/%s)", agent, operator)
}

// Username is the account the client posts as.
func (c *Client) Username() string {
	return c.cfg.Username
}

// NewSubmissions returns the newest submissions of subreddit, newest first.
func (c *Client) NewSubmissions(ctx context.Context, subreddit string) ([]bot.Submission, error) {
	q := url.Values{"limit": {strconv.Itoa(c.cfg.ListingLimit)}}
	var l listing
	if err := c.getJSON(ctx, "/r/"+url.PathEscape(subreddit)+"/new", q, &l); err != nil {
		return nil, fmt.Errorf("%w: new submissions of %s: %w", bot.ErrSourceUnavailable, subreddit, err)
	}
	out := make([]bot.Submission, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		if child.Kind != kindLink {
			continue
		}
		var p post
		if err := json.Unmarshal(child.Data, &p); err != nil {
			return nil, fmt.Errorf("%w: decode submission: %w", bot.ErrSourceUnavailable, err)
		}
		out = append(out, p.submission())
	}
	return out, nil
}

// Comments returns every comment of the submission, flattened depth-first.
func (c *Client) Comments(ctx context.Context, submission bot.Submission) ([]bot.Comment, error) {
	q := url.Values{"limit": {"500"}}
	var listings []listing
	if err := c.getJSON(ctx, "/comments/"+url.PathEscape(submission.ID), q, &listings); err != nil {
		return nil, fmt.Errorf("%w: comments of %s: %w", bot.ErrSourceUnavailable, submission.ID, err)
	}
	if len(listings) < 2 {
		return nil, nil
	}
	var out []bot.Comment
	if err := flatten(listings[1], &out); err != nil {
		return nil, fmt.Errorf("%w: decode comments of %s: %w", bot.ErrSourceUnavailable, submission.ID, err)
	}
	return out, nil
}

// PostReply comments text on the submission.
func (c *Client) PostReply(ctx context.Context, submission bot.Submission, text string) error {
	form := url.Values{
		"api_type": {"json"},
		"thing_id": {"t3_" + submission.ID},
		"text":     {text},
	}
	var resp struct {
		JSON struct {
			Errors [][]any `json:"errors"`
		} `json:"json"`
	}
	if err := c.postForm(ctx, "/api/comment", form, &resp); err != nil {
		return fmt.Errorf("%w: reply to %s: %w", bot.ErrPostFailed, submission.ID, err)
	}
	if len(resp.JSON.Errors) > 0 {
		return fmt.Errorf("%w: reply to %s: api errors %v", bot.ErrPostFailed, submission.ID, resp.JSON.Errors)
	}
	return nil
}

// WikiPage fetches a wiki page and uses its revision date as the revision.
func (c *Client) WikiPage(ctx context.Context, subreddit, page string) (bot.WikiPage, error) {
	var w struct {
		Data struct {
			ContentMD    string  `json:"content_md"`
			RevisionDate float64 `json:"revision_date"`
		} `json:"data"`
	}
	path := "/r/" + url.PathEscape(subreddit) + "/wiki/" + url.PathEscape(page)
	if err := c.getJSON(ctx, path, nil, &w); err != nil {
		return bot.WikiPage{}, fmt.Errorf("wiki %s/%s: %w", subreddit, page, err)
	}
	return bot.WikiPage{Content: w.Data.ContentMD, Revision: int64(w.Data.RevisionDate)}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	u := c.cfg.APIBase + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(ctx, req, dst)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(ctx, req, dst)
}

func (c *Client) do(ctx context.Context, req *http.Request, dst any) error {
	if err := c.limiter.Wait(ctx, req.URL.String()); err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

type passwordSource struct {
	ctx      context.Context
	cfg      *oauth2.Config
	username string
	password string
}

func (p *passwordSource) Token() (*oauth2.Token, error) {
	tok, err := p.cfg.PasswordCredentialsToken(p.ctx, p.username, p.password)
	if err != nil {
		return nil, fmt.Errorf("password grant: %w", err)
	}
	return tok, nil
}

type userAgentTransport struct {
	agent string
	next  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.agent)
	return t.next.RoundTrip(r)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
