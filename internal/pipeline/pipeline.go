// Package pipeline processes feed submissions and drives the poll loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/elsbot/snapshotbot/internal/bot"
	"github.com/elsbot/snapshotbot/internal/metrics"
)

// Config controls reply composition and identity.
type Config struct {
	BotUsername   string
	BotSubreddit  string
	ShortLinkBase string
	LabelMin      int
	LabelMax      int
}

// Deps are the collaborators of a Processor.
type Deps struct {
	Feed      bot.Feed
	Ledger    bot.Ledger
	Resolver  bot.Resolver
	Extractor bot.LinkExtractor
	Quotes    bot.Quotes
	Policy    bot.DomainPolicy
	Clock     bot.Clock
	Rand      bot.Rand
}

// Processor runs one submission through dedup, resolution and reply.
type Processor struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New constructs a Processor.
func New(deps Deps, cfg Config, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LabelMin <= 0 {
		cfg.LabelMin = 35
	}
	if cfg.LabelMax < cfg.LabelMin {
		cfg.LabelMax = cfg.LabelMin
	}
	return &Processor{deps: deps, cfg: cfg, logger: logger}
}

// Process handles a single submission and returns its terminal outcome.
// A non-nil error accompanies OutcomeFailed.
func (p *Processor) Process(ctx context.Context, sub bot.Submission) (bot.Outcome, error) {
	outcome, err := p.process(ctx, sub)
	metrics.ObserveSubmission(string(outcome))
	return outcome, err
}

func (p *Processor) process(ctx context.Context, sub bot.Submission) (bot.Outcome, error) {
	permalink := bot.Permalink(p.cfg.ShortLinkBase, sub.ID)
	log := p.logger.With(zap.String("submission_id", sub.ID), zap.String("permalink", permalink))

	if !p.deps.Policy.Allow(strings.ToLower(sub.Domain)) {
		return bot.OutcomeFiltered, nil
	}

	processed, err := p.deps.Ledger.IsProcessed(ctx, sub.ID)
	if err != nil {
		log.Error("ledger lookup failed", zap.Error(err))
		return bot.OutcomeFailed, err
	}
	if processed {
		log.Debug("skipping previously processed submission")
		return bot.OutcomeDedupSkip, nil
	}

	replied, err := p.hasOwnReply(ctx, sub)
	if err != nil {
		log.Error("loading comments failed", zap.Error(err))
		return bot.OutcomeFailed, err
	}
	if replied {
		log.Debug("already commented on submission")
		p.markProcessed(ctx, sub, log)
		return bot.OutcomeAlreadyReplied, nil
	}

	if sub.Archived {
		log.Info("submission archived; recording without reply")
		p.markProcessed(ctx, sub, log)
		return bot.OutcomeReplied, nil
	}

	links, self, err := p.resolveAll(ctx, sub, permalink, log)
	if err != nil {
		return bot.OutcomeFailed, err
	}

	text := ComposeReply(p.deps.Quotes.PickRandom(), self, links, p.cfg.BotSubreddit)
	log.Info("posting snapshot", zap.Int("links", len(links)))
	if err := p.deps.Feed.PostReply(ctx, sub, text); err != nil {
		log.Error("adding comment failed", zap.Error(err))
		if ctx.Err() != nil {
			return bot.OutcomeFailed, ctx.Err()
		}
		if !errors.Is(err, bot.ErrPostFailed) {
			err = fmt.Errorf("%w: %w", bot.ErrPostFailed, err)
		}
		return bot.OutcomeFailed, err
	}
	p.markProcessed(ctx, sub, log)
	return bot.OutcomeReplied, nil
}

func (p *Processor) hasOwnReply(ctx context.Context, sub bot.Submission) (bool, error) {
	comments, err := p.deps.Feed.Comments(ctx, sub)
	if err != nil {
		return false, err
	}
	for _, c := range comments {
		if c.Author != "" && strings.EqualFold(c.Author, p.cfg.BotUsername) {
			return true, nil
		}
	}
	return false, nil
}

// resolveAll returns the archived outbound links and the snapshot of the
// submission itself ("" when that resolution failed). Only cancellation is
// returned as an error.
func (p *Processor) resolveAll(
	ctx context.Context,
	sub bot.Submission,
	permalink string,
	log *zap.Logger,
) ([]bot.ArchivedLink, string, error) {
	var archived []bot.ArchivedLink
	for _, c := range p.candidates(sub, log) {
		archiveURL, err := p.deps.Resolver.Resolve(ctx, c.NormalizedURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			log.Warn("archive link failed", zap.String("url", c.NormalizedURL), zap.Error(err))
			continue
		}
		archived = append(archived, bot.ArchivedLink{Label: c.Label, ArchiveURL: archiveURL})
	}

	self, err := p.deps.Resolver.Resolve(ctx, permalink)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		log.Warn("archive of submission failed", zap.Error(err))
		self = ""
	}
	return archived, self, nil
}

// candidates lists the links to archive. Self post labels are truncated and
// marked with an ellipsis; a link post has one entry labelled "Link".
func (p *Processor) candidates(sub bot.Submission, log *zap.Logger) []bot.LinkCandidate {
	if !sub.IsSelf {
		if sub.URL == "" {
			return nil
		}
		return []bot.LinkCandidate{{
			RawURL:        sub.URL,
			NormalizedURL: p.deps.Resolver.Normalize(sub.URL),
			Label:         "Link",
		}}
	}
	if sub.BodyHTML == "" {
		return nil
	}
	found, err := p.deps.Extractor.Extract(sub.BodyHTML)
	if err != nil {
		log.Warn("parsing submission body failed", zap.Error(err))
		return nil
	}
	out := make([]bot.LinkCandidate, 0, len(found))
	for _, c := range found {
		c.NormalizedURL = p.deps.Resolver.Normalize(c.RawURL)
		c.Label = TruncateLabel(c.Label, p.cfg.LabelMin, p.cfg.LabelMax, p.deps.Rand) + "..."
		out = append(out, c)
	}
	return out
}

func (p *Processor) markProcessed(ctx context.Context, sub bot.Submission, log *zap.Logger) {
	if err := p.deps.Ledger.MarkProcessed(ctx, sub.ID, p.deps.Clock.Now()); err != nil {
		log.Error("recording processed submission failed", zap.Error(err))
	}
}
