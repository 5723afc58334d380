package cachestore

import (
	"context"
	"strconv"

	"github.com/yuno-bot/yuno/models"
)

const guildSettingsName = "guild-settings"

func guildKey(guildID uint64) string {
	return strconv.FormatUint(guildID, 10)
}

// Cached settings for the guild. Returns false on a miss.
func GetGuildSettings(ctx context.Context, cs CacheStore, guildID uint64) (*models.GuildSettings, bool, error) {
	var gs models.GuildSettings
	ok, err := GetJSON(ctx, cs, guildSettingsName, guildKey(guildID), &gs)
	if err != nil || !ok {
		return nil, false, err
	}
	// entries that do not name the guild are treated as a miss
	if gs.GuildID != guildID {
		return nil, false, nil
	}
	return &gs, true, nil
}

func SetGuildSettings(ctx context.Context, cs CacheStore, gs *models.GuildSettings) error {
	return SetJSON(ctx, cs, guildSettingsName, guildKey(gs.GuildID), gs)
}

func PurgeGuildSettings(ctx context.Context, cs CacheStore, guildID uint64) error {
	return cs.Purge(ctx, guildSettingsName, guildKey(guildID))
}
