package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yuno-bot/yuno/automod/countstore"
	"github.com/yuno-bot/yuno/automod/event"
	"github.com/yuno-bot/yuno/models"
)

// Runs the spam filter on a guild message. Returns true if the message was spam and has been dealt with: deleted, and the author warned or timed out.
func (eng *Engine) checkSpam(ctx context.Context, logger *slog.Logger, msg *event.Message) (bool, error) {
	v := eng.Spam.Check(msg.Author.ID, msg.GuildID, msg.Content)
	if !v.Spam() {
		return false, nil
	}
	kind := "rate"
	if v.Duplicate {
		kind = "duplicate"
	}
	spamDetectionCount.WithLabelValues(kind).Inc()
	logger = logger.With("kind", kind, "recent", v.Recent, "duplicates", v.Duplicates)
	logger.Info("spam detected")

	if err := eng.Discord.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		logger.Warn("failed to delete spam message", "err", err)
	}

	key := countstore.GuildUser(msg.GuildID, msg.Author.ID)
	warnings, err := eng.Warnings.Increment(ctx, countstore.SpamWarnings, key)
	if err != nil {
		return true, fmt.Errorf("recording spam warning: %w", err)
	}

	if warnings < eng.Config.SpamMaxWarnings {
		_, err := eng.Discord.CreateMessage(ctx, msg.ChannelID,
			fmt.Sprintf("<@%d> Stop spamming! 😤 Warning %d/%d", msg.Author.ID, warnings, eng.Config.SpamMaxWarnings))
		return true, err
	}

	until := eng.now().Add(eng.Config.SpamTimeout)
	reason := fmt.Sprintf("Spamming (%d warnings)", warnings)
	if err := eng.Discord.TimeoutMember(ctx, msg.GuildID, msg.Author.ID, until, reason); err != nil {
		return true, fmt.Errorf("timing out spammer: %w", err)
	}
	if err := eng.Warnings.Reset(ctx, countstore.SpamWarnings, key); err != nil {
		logger.Warn("failed to reset spam warnings", "err", err)
	}
	eng.Spam.Clear(msg.Author.ID, msg.GuildID)
	logger.Info("spammer timed out", "until", until)

	eng.RecordModAction(ctx, &models.ModAction{
		GuildID:     msg.GuildID,
		ModeratorID: eng.BotUser(),
		TargetID:    msg.Author.ID,
		ActionType:  models.ActionSpamTimeout,
		Reason:      reason,
	})
	_, err = eng.Discord.CreateMessage(ctx, msg.ChannelID, fmt.Sprintf("<@%d> has been timed out for spamming! 😤", msg.Author.ID))
	return true, err
}
