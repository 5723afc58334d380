package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yuno-bot/yuno/automod/event"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func (eng *Engine) awardXP(ctx context.Context, logger *slog.Logger, msg *event.Message) {
	amount := eng.Config.MinXPGain + eng.randN(eng.Config.MaxXPGain-eng.Config.MinXPGain+1)
	xpAwardedCount.Add(float64(amount))

	res, err := eng.XP.Add(ctx, msg.Author.ID, msg.GuildID, msg.ChannelID, int64(amount))
	if err != nil {
		// the batcher has already dropped the failed entries
		logger.Warn("xp flush had failures", "err", err)
	}
	if res != nil {
		logger.Debug("xp batch flushed on add", "applied", res.Applied, "failed", res.Failed, "levelups", len(res.LevelUps))
	}
}

// Applies all pending XP. Called periodically, and once more at shutdown.
func (eng *Engine) FlushXP(ctx context.Context) error {
	ctx, span := otel.Tracer("engine").Start(ctx, "FlushXP")
	defer span.End()

	if eng.Config.FlushTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eng.Config.FlushTimeout)
		defer cancel()
	}

	res, err := eng.XP.Flush(ctx)
	if res != nil {
		span.SetAttributes(
			attribute.Int("applied", res.Applied),
			attribute.Int("failed", res.Failed),
			attribute.Int("levelups", len(res.LevelUps)),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "xp flush had failures")
		return fmt.Errorf("flushing xp: %w", err)
	}
	return nil
}

// Announces a level-up in the channel where the XP was earned. Does nothing if the channel is unknown.
func (eng *Engine) NotifyLevelUp(ctx context.Context, userID, guildID, channelID uint64, level int) error {
	if channelID == 0 {
		return nil
	}
	eng.Logger.Info("level up", "user", userID, "guild", guildID, "level", level)
	_, err := eng.Discord.CreateMessage(ctx, channelID,
		fmt.Sprintf("✨ **Level Up!** ✨\nCongratulations <@%d>! You've reached level **%d**! 💕", userID, level))
	return err
}
