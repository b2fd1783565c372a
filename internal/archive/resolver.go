// Package archive submits links to the archiving service and extracts the
// resulting snapshot URL.
package archive

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/elsbot/snapshotbot/internal/bot"
	"github.com/elsbot/snapshotbot/internal/metrics"
	"github.com/elsbot/snapshotbot/internal/policy/ratelimit"
)

// DefaultSubmitURL is the archive.today submission endpoint.
const DefaultSubmitURL = "https://archive.today/submit/"

var urlToken = regexp.MustCompile(`https?://[^\s"'<>\\]+`)

// errNoURL means the service answered without any snapshot URL in the body.
var errNoURL = errors.New("response contains no url")

// Config controls the resolver.
type Config struct {
	SubmitURL         string
	UserAgent         string
	Timeout           time.Duration
	RewriteHosts      []string
	MaxAttempts       int
	RequestsPerMinute float64
}

// Resolver implements bot.Resolver using a Colly collector.
type Resolver struct {
	cfg           Config
	normalizer    *Normalizer
	baseCollector *colly.Collector
	limiter       *ratelimit.Limiter
	retry         *RetryPolicy
	logger        *zap.Logger
}

var _ bot.Resolver = (*Resolver)(nil)

// New builds a Resolver.
func New(cfg Config, logger *zap.Logger) (*Resolver, error) {
	if cfg.SubmitURL == "" {
		cfg.SubmitURL = DefaultSubmitURL
	}
	if _, err := url.ParseRequestURI(cfg.SubmitURL); err != nil {
		return nil, fmt.Errorf("invalid archive submit url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}

	return &Resolver{
		cfg:           cfg,
		normalizer:    NewNormalizer(cfg.RewriteHosts),
		baseCollector: c,
		limiter:       ratelimit.New(ratelimit.Config{RequestsPerMinute: cfg.RequestsPerMinute}),
		retry:         NewRetryPolicy(cfg.MaxAttempts, 2*time.Second, 30*time.Second),
		logger:        logger,
	}, nil
}

// Normalize applies the host rewrite rules.
func (r *Resolver) Normalize(rawURL string) string {
	return r.normalizer.Normalize(rawURL)
}

// Resolve submits the normalized URL and returns the snapshot URL. Failures
// wrap bot.ErrResolutionFailed; cancellation is returned unwrapped by it.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	target := r.Normalize(rawURL)
	for attempt := 1; ; attempt++ {
		if err := r.limiter.Wait(ctx, r.cfg.SubmitURL); err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("resolve %s: %w", target, ctx.Err())
			}
			return "", fmt.Errorf("%w: %s: %w", bot.ErrResolutionFailed, target, err)
		}

		archiveURL, err := r.submit(ctx, target)
		if err == nil {
			metrics.ObserveResolution(true)
			r.logger.Debug("archive link resolved",
				zap.String("url", target),
				zap.String("archive_url", archiveURL),
				zap.Int("attempt", attempt),
			)
			return archiveURL, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("resolve %s: %w", target, ctx.Err())
		}
		if !r.retry.ShouldRetry(err, attempt) {
			metrics.ObserveResolution(false)
			return "", fmt.Errorf("%w: %s: %w", bot.ErrResolutionFailed, target, err)
		}

		wait := r.retry.Backoff(attempt)
		r.logger.Warn("archive submission failed; retrying",
			zap.String("url", target),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("resolve %s: %w", target, ctx.Err())
		case <-timer.C:
		}
	}
}

func (r *Resolver) submit(ctx context.Context, target string) (string, error) {
	var (
		body     []byte
		fetchErr error
	)
	collector := r.baseCollector.Clone()
	collector.OnResponse(func(resp *colly.Response) {
		body = append([]byte(nil), resp.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Post(r.cfg.SubmitURL, map[string]string{"url": target})
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("archive submit canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("archive submit failed: %w", err)
		}
		if fetchErr != nil {
			return "", fmt.Errorf("archive response failed: %w", fetchErr)
		}
	}
	return ExtractURL(body)
}

// ExtractURL returns the first absolute http(s) URL found in body.
func ExtractURL(body []byte) (string, error) {
	for _, token := range urlToken.FindAll(body, -1) {
		u, err := url.Parse(string(token))
		if err != nil || u.Host == "" {
			continue
		}
		return string(token), nil
	}
	return "", errNoURL
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
