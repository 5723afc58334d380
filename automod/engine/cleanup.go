package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/yuno-bot/yuno/automod/delaytracker"
	"github.com/yuno-bot/yuno/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Whether an auto-clean config's interval has elapsed since its last cleanup.
func cleanupDue(cfg *models.AutoCleanConfig, now time.Time) bool {
	if !cfg.Enabled {
		return false
	}
	if cfg.LastCleanedAt == nil {
		return true
	}
	interval := time.Duration(cfg.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = models.DefaultCleanIntervalMinutes * time.Minute
	}
	return !now.Before(cfg.LastCleanedAt.Add(interval))
}

// Cleans every auto-clean channel whose interval has elapsed, unless a moderator delayed it. Returns the sweep outcome; per-channel failures are joined into the error.
func (eng *Engine) RunCleanupSweep(ctx context.Context) (*delaytracker.SweepResult, error) {
	ctx, span := otel.Tracer("engine").Start(ctx, "RunCleanupSweep")
	defer span.End()

	if eng.Config.CleanupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eng.Config.CleanupTimeout)
		defer cancel()
	}

	configs, err := eng.Store.ListEnabledCleanupChannels(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "listing cleanup channels")
		return nil, fmt.Errorf("listing cleanup channels: %w", err)
	}

	now := eng.now()
	byChannel := make(map[delaytracker.Channel]models.AutoCleanConfig, len(configs))
	var due []delaytracker.Channel
	for _, cfg := range configs {
		if !cleanupDue(&cfg, now) {
			continue
		}
		ch := delaytracker.Channel{GuildID: cfg.GuildID, ChannelID: cfg.ChannelID}
		byChannel[ch] = cfg
		due = append(due, ch)
	}

	cleaner := delaytracker.CleanerFunc(func(ctx context.Context, ch delaytracker.Channel) error {
		cfg := byChannel[ch]
		count := cfg.MessageCount
		if count <= 0 {
			count = models.DefaultCleanMessageCount
		}
		n, err := eng.Discord.PurgeChannel(ctx, ch.ChannelID, count)
		if err != nil {
			return err
		}
		cleanedMessageCount.Add(float64(n))
		if err := eng.Store.MarkCleaned(ctx, ch.GuildID, ch.ChannelID, eng.now()); err != nil {
			return fmt.Errorf("marking channel cleaned: %w", err)
		}
		eng.Logger.Info("auto-cleaned channel", "guild", ch.GuildID, "channel", ch.ChannelID, "deleted", n)
		return nil
	})

	res, err := eng.Delays.Sweep(ctx, due, cleaner)
	span.SetAttributes(
		attribute.Int("configs", len(configs)),
		attribute.Int("due", len(due)),
		attribute.Int("cleaned", len(res.Cleaned)),
		attribute.Int("skipped", len(res.Skipped)),
		attribute.Int("failed", len(res.Failed)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cleanup sweep had failures")
		return res, fmt.Errorf("cleanup sweep: %w", err)
	}
	return res, nil
}
