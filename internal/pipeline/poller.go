package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/elsbot/snapshotbot/internal/bot"
	"github.com/elsbot/snapshotbot/internal/metrics"
)

// DefaultPollInterval is the pause between cycles.
const DefaultPollInterval = 10 * time.Second

const pushTimeout = 5 * time.Second

// IDGenerator produces cycle correlation ids.
type IDGenerator interface {
	NewID() (string, error)
}

// PollConfig controls the poll loop.
type PollConfig struct {
	Subreddit           string
	Interval            time.Duration
	RecordTTL           time.Duration
	MaintenanceInterval time.Duration
}

// Poller repeatedly fetches new submissions and processes them in listing order.
type Poller struct {
	processor *Processor
	feed      bot.Feed
	ledger    bot.Ledger
	quotes    bot.Quotes
	clock     bot.Clock
	ids       IDGenerator
	pusher    *metrics.Pusher
	cfg       PollConfig
	logger    *zap.Logger
}

// NewPoller constructs a Poller. pusher may be nil.
func NewPoller(
	processor *Processor,
	feed bot.Feed,
	ledger bot.Ledger,
	quotes bot.Quotes,
	clock bot.Clock,
	ids IDGenerator,
	pusher *metrics.Pusher,
	cfg PollConfig,
	logger *zap.Logger,
) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	return &Poller{
		processor: processor,
		feed:      feed,
		ledger:    ledger,
		quotes:    quotes,
		clock:     clock,
		ids:       ids,
		pusher:    pusher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, polling until the context finishes. The first cycle starts
// immediately. Errors and panics inside a cycle are logged and the loop
// continues after the interval; only cancellation returns.
func (p *Poller) Run(ctx context.Context) error {
	for {
		if err := p.RunCycle(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("poll cycle failed", zap.Error(err))
		}

		timer := time.NewTimer(p.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunCycle executes a single scan, maintenance and quote refresh pass.
func (p *Poller) RunCycle(ctx context.Context) (err error) {
	start := time.Now()
	log := p.logger.With(zap.String("cycle_id", p.cycleID()))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", bot.ErrUnexpected, r)
			log.Error("poll cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		metrics.ObserveCycle(time.Since(start), err)
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		defer cancel()
		if perr := p.pusher.Push(pushCtx); perr != nil {
			log.Warn("pushing metrics failed", zap.Error(perr))
		}
	}()

	var errs []error
	if scanErr := p.scan(ctx, log); scanErr != nil {
		errs = append(errs, scanErr)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	swept, mErr := p.ledger.RunMaintenance(ctx, p.clock.Now(), p.cfg.RecordTTL, p.cfg.MaintenanceInterval)
	if swept || mErr != nil {
		metrics.ObserveSweep(mErr)
	}
	if mErr != nil {
		log.Error("ledger maintenance failed", zap.Error(mErr))
		errs = append(errs, mErr)
	} else if swept {
		log.Info("ledger maintenance complete")
	}

	if qErr := p.quotes.Reload(ctx); qErr != nil && ctx.Err() == nil {
		log.Warn("quote reload failed; keeping current quotes", zap.Error(qErr))
	}
	return errors.Join(errs...)
}

func (p *Poller) scan(ctx context.Context, log *zap.Logger) error {
	log.Info("scanning new posts", zap.String("subreddit", p.cfg.Subreddit))
	subs, err := p.feed.NewSubmissions(ctx, p.cfg.Subreddit)
	if err != nil {
		return fmt.Errorf("fetch new submissions: %w", err)
	}

	counts := make(map[bot.Outcome]int)
	for _, sub := range subs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		outcome, _ := p.processor.Process(ctx, sub)
		counts[outcome]++
	}
	log.Info("scan complete",
		zap.Int("submissions", len(subs)),
		zap.Int("replied", counts[bot.OutcomeReplied]),
		zap.Int("failed", counts[bot.OutcomeFailed]),
	)
	return nil
}

func (p *Poller) cycleID() string {
	if p.ids == nil {
		return ""
	}
	id, err := p.ids.NewID()
	if err != nil {
		return ""
	}
	return id
}
