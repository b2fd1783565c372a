package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/elsbot/snapshotbot/internal/archive"
	"github.com/elsbot/snapshotbot/internal/clock/system"
	"github.com/elsbot/snapshotbot/internal/config"
	"github.com/elsbot/snapshotbot/internal/feed/reddit"
	"github.com/elsbot/snapshotbot/internal/id/uuid"
	"github.com/elsbot/snapshotbot/internal/ledger"
	"github.com/elsbot/snapshotbot/internal/ledger/provider"
	"github.com/elsbot/snapshotbot/internal/logging"
	"github.com/elsbot/snapshotbot/internal/markup"
	"github.com/elsbot/snapshotbot/internal/metrics"
	"github.com/elsbot/snapshotbot/internal/pipeline"
	"github.com/elsbot/snapshotbot/internal/policy/simple"
	"github.com/elsbot/snapshotbot/internal/quotes"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("snapshotbot stopped", zap.Error(err))
		stop()
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("snapshotbot exiting")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	metrics.Init()

	store, err := provider.Open(ctx, cfg.Ledger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	led := ledger.New(store, logger.Named("ledger"))
	defer func() {
		if cerr := led.Close(); cerr != nil {
			logger.Warn("closing ledger failed", zap.Error(cerr))
		}
	}()

	feed, err := reddit.New(reddit.Config{
		APIBase:           cfg.Reddit.APIBase,
		TokenURL:          cfg.Reddit.TokenURL,
		ClientID:          cfg.Reddit.ClientID,
		ClientSecret:      cfg.Reddit.ClientSecret,
		Username:          cfg.Reddit.Username,
		Password:          cfg.Reddit.Password,
		UserAgent:         cfg.Reddit.UserAgent,
		Operator:          cfg.Reddit.Operator,
		Timeout:           cfg.Reddit.Timeout,
		ListingLimit:      cfg.Reddit.ListingLimit,
		RequestsPerMinute: cfg.Reddit.RequestsPerMinute,
	}, logger.Named("reddit"))
	if err != nil {
		return fmt.Errorf("reddit client: %w", err)
	}

	resolver, err := archive.New(archive.Config{
		SubmitURL:         cfg.Archive.SubmitURL,
		UserAgent:         cfg.Archive.UserAgent,
		Timeout:           cfg.Archive.Timeout,
		RewriteHosts:      cfg.Archive.RewriteHosts,
		MaxAttempts:       cfg.Archive.MaxAttempts,
		RequestsPerMinute: cfg.Archive.RequestsPerMinute,
	}, logger.Named("archive"))
	if err != nil {
		return fmt.Errorf("archive resolver: %w", err)
	}

	clock := system.New()
	rnd := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // cosmetic randomness only
	policy := simple.New(cfg.Bot.Domains)

	rotator := quotes.New(feed, cfg.Bot.Subreddit, cfg.Bot.QuoteWikiPage, rnd, logger.Named("quotes"))
	if err := rotator.Reload(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("initial quote load failed; replies start without a quote", zap.Error(err))
	}

	processor := pipeline.New(pipeline.Deps{
		Feed:      feed,
		Ledger:    led,
		Resolver:  resolver,
		Extractor: markup.NewExtractor(cfg.Bot.SiteRoot, policy),
		Quotes:    rotator,
		Policy:    policy,
		Clock:     clock,
		Rand:      rnd,
	}, pipeline.Config{
		BotUsername:   feed.Username(),
		BotSubreddit:  cfg.Bot.BotSubreddit,
		ShortLinkBase: cfg.Bot.ShortLinkBase,
		LabelMin:      cfg.Bot.LabelMin,
		LabelMax:      cfg.Bot.LabelMax,
	}, logger.Named("pipeline"))

	poller := pipeline.NewPoller(
		processor,
		feed,
		led,
		rotator,
		clock,
		uuid.New(),
		metrics.NewPusher(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job),
		pipeline.PollConfig{
			Subreddit:           cfg.Bot.Subreddit,
			Interval:            cfg.Bot.PollInterval,
			RecordTTL:           cfg.RecordTTL(),
			MaintenanceInterval: cfg.Ledger.MaintenanceInterval,
		},
		logger.Named("poller"),
	)

	logger.Info("snapshotbot starting",
		zap.String("subreddit", cfg.Bot.Subreddit),
		zap.Strings("domains", cfg.Bot.Domains),
		zap.String("ledger", cfg.Ledger.Provider),
		zap.Duration("poll_interval", cfg.Bot.PollInterval),
	)
	return poller.Run(ctx)
}
