package engine

import (
	"context"
	"fmt"

	"github.com/yuno-bot/yuno/automod/cachestore"
	"github.com/yuno-bot/yuno/models"
)

func (eng *Engine) defaultSettings(guildID uint64) models.GuildSettings {
	return models.GuildSettings{
		GuildID:           guildID,
		Prefix:            eng.Config.DefaultPrefix,
		SpamFilterEnabled: false,
		LevelingEnabled:   true,
	}
}

// Settings for a guild, read through the settings cache. Guilds without stored settings get defaults.
func (eng *Engine) GuildSettings(ctx context.Context, guildID uint64) (*models.GuildSettings, error) {
	if eng.Cache != nil {
		gs, ok, err := cachestore.GetGuildSettings(ctx, eng.Cache, guildID)
		if err != nil {
			eng.Logger.Warn("guild settings cache read failed", "guild", guildID, "err", err)
		} else if ok {
			settingsCacheCount.WithLabelValues("hit").Inc()
			return gs, nil
		}
		settingsCacheCount.WithLabelValues("miss").Inc()
	}

	gs, err := eng.Store.GetGuildSettings(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("loading guild settings: %w", err)
	}
	if gs.Prefix == "" {
		gs.Prefix = eng.Config.DefaultPrefix
	}
	if eng.Cache != nil {
		if err := cachestore.SetGuildSettings(ctx, eng.Cache, gs); err != nil {
			eng.Logger.Warn("guild settings cache write failed", "guild", guildID, "err", err)
		}
	}
	return gs, nil
}

// Persists guild settings and drops any cached copy.
func (eng *Engine) UpdateGuildSettings(ctx context.Context, gs *models.GuildSettings) error {
	if err := eng.Store.SetGuildSettings(ctx, gs); err != nil {
		return err
	}
	eng.PurgeGuildSettings(ctx, gs.GuildID)
	return nil
}

func (eng *Engine) SetGuildPrefix(ctx context.Context, guildID uint64, prefix string) error {
	if err := eng.Store.SetPrefix(ctx, guildID, prefix); err != nil {
		return err
	}
	eng.PurgeGuildSettings(ctx, guildID)
	return nil
}

func (eng *Engine) PurgeGuildSettings(ctx context.Context, guildID uint64) {
	if eng.Cache == nil {
		return
	}
	if err := cachestore.PurgeGuildSettings(ctx, eng.Cache, guildID); err != nil {
		eng.Logger.Warn("guild settings cache purge failed", "guild", guildID, "err", err)
	}
}
