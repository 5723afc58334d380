package engine

import (
	"context"

	"github.com/yuno-bot/yuno/models"
)

// Logs a moderation action to the store and forwards it to the notifier, if configured. Failures are logged; the action itself has already happened.
func (eng *Engine) RecordModAction(ctx context.Context, act *models.ModAction) {
	if act.CreatedAt.IsZero() {
		act.CreatedAt = eng.now()
	}
	modActionCount.WithLabelValues(act.ActionType).Inc()
	if err := eng.Store.LogModAction(ctx, act); err != nil {
		eng.Logger.Error("failed to log mod action", "guild", act.GuildID, "type", act.ActionType, "target", act.TargetID, "err", err)
	}
	if eng.Notifier == nil {
		return
	}
	if err := eng.Notifier.SendModAction(ctx, act); err != nil {
		eng.Logger.Error("failed to send mod action notification", "guild", act.GuildID, "type", act.ActionType, "err", err)
	}
}
