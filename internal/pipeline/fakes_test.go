package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/elsbot/snapshotbot/internal/archive"
	"github.com/elsbot/snapshotbot/internal/bot"
	"github.com/elsbot/snapshotbot/internal/ledger"
	"github.com/elsbot/snapshotbot/internal/ledger/memory"
	"github.com/elsbot/snapshotbot/internal/markup"
	"github.com/elsbot/snapshotbot/internal/policy/simple"
)

type postedReply struct {
	submissionID string
	text         string
}

type fakeFeed struct {
	mu          sync.Mutex
	subs        []bot.Submission
	subsErr     error
	comments    map[string][]bot.Comment
	commentsErr error
	postErr     error
	posted      []postedReply
	panicOnScan bool
}

func (f *fakeFeed) NewSubmissions(context.Context, string) ([]bot.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOnScan {
		panic("listing exploded")
	}
	return append([]bot.Submission(nil), f.subs...), f.subsErr
}

func (f *fakeFeed) Comments(_ context.Context, s bot.Submission) ([]bot.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commentsErr != nil {
		return nil, f.commentsErr
	}
	return f.comments[s.ID], nil
}

func (f *fakeFeed) PostReply(_ context.Context, s bot.Submission, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return f.postErr
	}
	f.posted = append(f.posted, postedReply{submissionID: s.ID, text: text})
	return nil
}

func (f *fakeFeed) WikiPage(context.Context, string, string) (bot.WikiPage, error) {
	return bot.WikiPage{}, nil
}

func (f *fakeFeed) replies() []postedReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]postedReply(nil), f.posted...)
}

type fakeResolver struct {
	mu         sync.Mutex
	normalizer *archive.Normalizer
	results    map[string]string
	failures   map[string]bool
	onResolve  func(ctx context.Context) error
	calls      []string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		normalizer: archive.NewNormalizer([]string{"reddit.com", "redd.it"}),
		results:    map[string]string{},
		failures:   map[string]bool{},
	}
}

func (r *fakeResolver) Normalize(rawURL string) string {
	return r.normalizer.Normalize(rawURL)
}

func (r *fakeResolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	target := r.Normalize(rawURL)
	r.mu.Lock()
	r.calls = append(r.calls, target)
	hook := r.onResolve
	failed := r.failures[target]
	result, ok := r.results[target]
	r.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return "", err
		}
	}
	if failed {
		return "", fmt.Errorf("%w: %s: status 503", bot.ErrResolutionFailed, target)
	}
	if !ok {
		result = "https://archive.ph/unknown"
	}
	return result, nil
}

func (r *fakeResolver) resolved() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeQuotes struct {
	mu        sync.Mutex
	quote     string
	reloadErr error
	reloads   int
}

func (q *fakeQuotes) PickRandom() string { return q.quote }

func (q *fakeQuotes) Reload(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reloads++
	return q.reloadErr
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixedRand struct{ n int }

func (f fixedRand) Intn(n int) int { return f.n % n }

// countingLedger records calls on top of a real in-memory ledger.
type countingLedger struct {
	*ledger.Ledger
	mu      sync.Mutex
	err     error
	lookups int
	marks   int
}

func (c *countingLedger) IsProcessed(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	c.lookups++
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("%w: lookup %s: %w", bot.ErrStorageUnavailable, id, err)
	}
	return c.Ledger.IsProcessed(ctx, id)
}

func (c *countingLedger) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	c.mu.Lock()
	c.marks++
	c.mu.Unlock()
	return c.Ledger.MarkProcessed(ctx, id, at)
}

func (c *countingLedger) calls() (lookups, marks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookups, c.marks
}

type harness struct {
	feed      *fakeFeed
	resolver  *fakeResolver
	quotes    *fakeQuotes
	clock     *fakeClock
	store     *memory.Store
	ledger    *countingLedger
	processor *Processor
}

func newHarness(domains ...string) *harness {
	store := memory.NewStore()
	h := &harness{
		feed:     &fakeFeed{comments: map[string][]bot.Comment{}},
		resolver: newFakeResolver(),
		quotes:   &fakeQuotes{quote: "Stay curious."},
		clock:    &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		store:    store,
		ledger:   &countingLedger{Ledger: ledger.New(store, nil)},
	}
	policy := simple.New(domains)
	h.processor = New(Deps{
		Feed:      h.feed,
		Ledger:    h.ledger,
		Resolver:  h.resolver,
		Extractor: markup.NewExtractor("", policy),
		Quotes:    h.quotes,
		Policy:    policy,
		Clock:     h.clock,
		Rand:      fixedRand{n: 2},
	}, Config{
		BotUsername:   "snapbot",
		BotSubreddit:  "snapbot",
		ShortLinkBase: "http://redd.it/",
		LabelMin:      35,
		LabelMax:      40,
	}, nil)
	return h
}
