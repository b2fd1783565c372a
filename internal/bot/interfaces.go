package bot

import (
	"context"
	"time"
)

// Feed is the content platform the bot polls and replies on.
type Feed interface {
	NewSubmissions(ctx context.Context, subreddit string) ([]Submission, error)
	// Comments returns every comment on the submission, flattened depth-first.
	Comments(ctx context.Context, submission Submission) ([]Comment, error)
	PostReply(ctx context.Context, submission Submission, text string) error
	WikiPage(ctx context.Context, subreddit, page string) (WikiPage, error)
}

// Ledger records which submissions have already been handled.
type Ledger interface {
	IsProcessed(ctx context.Context, id string) (bool, error)
	MarkProcessed(ctx context.Context, id string, at time.Time) error
	// RunMaintenance sweeps expired entries at most once per minInterval.
	RunMaintenance(ctx context.Context, now time.Time, ttl, minInterval time.Duration) (bool, error)
	Close() error
}

// Resolver turns an outbound URL into an archive snapshot URL.
type Resolver interface {
	Normalize(rawURL string) string
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// Quotes supplies the rotating quote placed at the top of each reply.
type Quotes interface {
	PickRandom() string
	Reload(ctx context.Context) error
}

// LinkExtractor finds allow-listed anchors in a self post body.
type LinkExtractor interface {
	Extract(bodyHTML string) ([]LinkCandidate, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Rand is the randomness source for quote selection and label truncation.
// *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// DomainPolicy decides which submission domains and link hosts are handled.
type DomainPolicy interface {
	Allow(domain string) bool
}
