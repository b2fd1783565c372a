// Package quotes keeps the rotating quote set loaded from a wiki page.
package quotes

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/elsbot/snapshotbot/internal/bot"
)

// Delimiter separates quotes on the wiki page.
const Delimiter = "---"

var commentLine = regexp.MustCompile(`(?m)^[ \t]*[#;].*$`)

// WikiSource is the part of the feed the rotator reads from.
type WikiSource interface {
	WikiPage(ctx context.Context, subreddit, page string) (bot.WikiPage, error)
}

// Rotator holds the current quote set and its revision.
type Rotator struct {
	source    WikiSource
	subreddit string
	page      string
	logger    *zap.Logger

	mu       sync.Mutex
	rnd      bot.Rand
	quotes   []string
	revision int64
}

var _ bot.Quotes = (*Rotator)(nil)

// New builds a Rotator reading subreddit's wiki page from source.
func New(source WikiSource, subreddit, page string, rnd bot.Rand, logger *zap.Logger) *Rotator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rotator{
		source:    source,
		subreddit: subreddit,
		page:      page,
		rnd:       rnd,
		logger:    logger,
	}
}

// Refresh replaces the quote set when revision is newer than the current one.
func (r *Rotator) Refresh(revision int64, content string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if revision <= r.revision {
		return false
	}
	r.quotes = Parse(content)
	r.revision = revision
	return true
}

// Reload fetches the wiki page and applies it via Refresh. On failure the
// current set is kept.
func (r *Rotator) Reload(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("%w: no quote source configured", bot.ErrSourceUnavailable)
	}
	page, err := r.source.WikiPage(ctx, r.subreddit, r.page)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: wiki %s/%s: %w", bot.ErrSourceUnavailable, r.subreddit, r.page, err)
	}
	if r.Refresh(page.Revision, page.Content) {
		r.logger.Info("quotes reloaded",
			zap.Int64("revision", page.Revision),
			zap.Int("count", r.Len()),
		)
	}
	return nil
}

// PickRandom returns a uniformly chosen quote, or "" when none are loaded.
func (r *Rotator) PickRandom() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.quotes) == 0 {
		return ""
	}
	if r.rnd == nil {
		return r.quotes[0]
	}
	return r.quotes[r.rnd.Intn(len(r.quotes))]
}

// Len returns the number of loaded quotes.
func (r *Rotator) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.quotes)
}

// Revision returns the revision of the loaded set.
func (r *Rotator) Revision() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revision
}

// Parse turns raw wiki content into a quote list.
func Parse(content string) []string {
	text := commentLine.ReplaceAllString(html.UnescapeString(content), "")
	var out []string
	for _, part := range strings.Split(text, Delimiter) {
		if q := strings.TrimSpace(part); q != "" {
			out = append(out, q)
		}
	}
	return out
}
