package botstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/yuno-bot/yuno/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testStore(t *testing.T) *DBStore {
	dir := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "test.sqlite")), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	s := NewDBStore(db, ".")
	require.NoError(t, s.AutoMigrate())
	return s
}

func TestGuildSettings(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	gs, err := s.GetGuildSettings(ctx, 10)
	assert.NoError(err)
	assert.Equal(".", gs.Prefix)
	assert.False(gs.SpamFilterEnabled)
	assert.True(gs.LevelingEnabled)

	gs.SpamFilterEnabled = true
	gs.LevelingEnabled = false
	assert.NoError(s.SetGuildSettings(ctx, gs))

	gs, err = s.GetGuildSettings(ctx, 10)
	assert.NoError(err)
	assert.True(gs.SpamFilterEnabled)
	assert.False(gs.LevelingEnabled)

	assert.NoError(s.SetPrefix(ctx, 10, "y!"))
	p, err := s.GetPrefix(ctx, 10)
	assert.NoError(err)
	assert.Equal("y!", p)
	// changing the prefix keeps other settings
	gs, err = s.GetGuildSettings(ctx, 10)
	assert.NoError(err)
	assert.True(gs.SpamFilterEnabled)

	assert.ErrorIs(s.SetPrefix(ctx, 10, "toolong"), ErrPrefixTooLong)
	assert.ErrorIs(s.SetPrefix(ctx, 10, ""), ErrPrefixTooLong)

	p, err = s.GetPrefix(ctx, 11)
	assert.NoError(err)
	assert.Equal(".", p)
}

func TestXP(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	xp, lvl, err := s.ReadXP(ctx, 1, 10)
	assert.NoError(err)
	assert.Equal(int64(0), xp)
	assert.Equal(0, lvl)

	assert.NoError(s.AddXP(ctx, 1, 10, 20))
	assert.NoError(s.AddXP(ctx, 1, 10, 25))
	assert.NoError(s.AddXP(ctx, 2, 10, 500))
	assert.NoError(s.AddXP(ctx, 3, 10, 100))
	assert.NoError(s.AddXP(ctx, 1, 11, 1000))
	assert.NoError(s.SetLevel(ctx, 2, 10, 2))

	xp, lvl, err = s.ReadXP(ctx, 1, 10)
	assert.NoError(err)
	assert.Equal(int64(45), xp)
	assert.Equal(0, lvl)

	xp, lvl, err = s.ReadXP(ctx, 2, 10)
	assert.NoError(err)
	assert.Equal(int64(500), xp)
	assert.Equal(2, lvl)

	top, err := s.Leaderboard(ctx, 10, 0)
	assert.NoError(err)
	require.Len(t, top, 3)
	assert.Equal(uint64(2), top[0].UserID)
	assert.Equal(uint64(3), top[1].UserID)
	assert.Equal(uint64(1), top[2].UserID)

	top, err = s.Leaderboard(ctx, 10, 1)
	assert.NoError(err)
	assert.Len(top, 1)
}

func TestModActions(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	for _, act := range []string{models.ActionBan, models.ActionBan, models.ActionKick, models.ActionTimeout, models.ActionSpamTimeout} {
		assert.NoError(s.LogModAction(ctx, &models.ModAction{
			GuildID:     10,
			ModeratorID: 5,
			TargetID:    1,
			ActionType:  act,
			Reason:      "testing",
		}))
	}
	assert.NoError(s.LogModAction(ctx, &models.ModAction{GuildID: 10, ModeratorID: 6, TargetID: 1, ActionType: models.ActionKick, Reason: "x"}))

	st, err := s.ModStats(ctx, 10, 5)
	assert.NoError(err)
	assert.Equal(&models.ModStats{Bans: 2, Kicks: 1, Timeouts: 2, Total: 5}, st)

	n, err := s.CountModActions(ctx, 10)
	assert.NoError(err)
	assert.Equal(6, n)

	acts, err := s.ListModActions(ctx, 10, 2)
	assert.NoError(err)
	require.Len(t, acts, 2)
	assert.Equal(uint64(6), acts[0].ModeratorID)

	st, err = s.ModStats(ctx, 99, 5)
	assert.NoError(err)
	assert.Equal(0, st.Total)
}

func TestAutoCleanConfig(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	cfg, err := s.GetAutoCleanConfig(ctx, 10, 100)
	assert.NoError(err)
	assert.Nil(cfg)

	assert.NoError(s.SetAutoCleanConfig(ctx, &models.AutoCleanConfig{GuildID: 10, ChannelID: 100, IntervalMinutes: 60, MessageCount: 50, Enabled: true}))
	assert.NoError(s.SetAutoCleanConfig(ctx, &models.AutoCleanConfig{GuildID: 10, ChannelID: 101, IntervalMinutes: 30, MessageCount: 10, Enabled: false}))

	enabled, err := s.ListEnabledCleanupChannels(ctx)
	assert.NoError(err)
	require.Len(t, enabled, 1)
	assert.Equal(uint64(100), enabled[0].ChannelID)
	assert.Nil(enabled[0].LastCleanedAt)

	now := time.Now().UTC().Truncate(time.Second)
	assert.NoError(s.MarkCleaned(ctx, 10, 100, now))

	// updating the schedule keeps the last cleanup time
	assert.NoError(s.SetAutoCleanConfig(ctx, &models.AutoCleanConfig{GuildID: 10, ChannelID: 100, IntervalMinutes: 120, MessageCount: 50, Enabled: true}))
	cfg, err = s.GetAutoCleanConfig(ctx, 10, 100)
	assert.NoError(err)
	require.NotNil(t, cfg)
	assert.Equal(120, cfg.IntervalMinutes)
	require.NotNil(t, cfg.LastCleanedAt)
	assert.True(now.Equal(*cfg.LastCleanedAt))

	ok, err := s.RemoveAutoCleanConfig(ctx, 10, 100)
	assert.NoError(err)
	assert.True(ok)
	ok, err = s.RemoveAutoCleanConfig(ctx, 10, 100)
	assert.NoError(err)
	assert.False(ok)
}

func TestBotBans(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	banned, err := s.IsBotBanned(ctx, 1)
	assert.NoError(err)
	assert.False(banned)

	assert.NoError(s.BotBan(ctx, &models.BotBan{UserID: 1, BannedBy: "console", Reason: "abuse"}))
	// banning again replaces the reason
	assert.NoError(s.BotBan(ctx, &models.BotBan{UserID: 1, BannedBy: "console", Reason: "more abuse"}))

	banned, err = s.IsBotBanned(ctx, 1)
	assert.NoError(err)
	assert.True(banned)

	bans, err := s.ListBotBans(ctx)
	assert.NoError(err)
	require.Len(t, bans, 1)
	assert.Equal("more abuse", bans[0].Reason)

	ok, err := s.BotUnban(ctx, 1)
	assert.NoError(err)
	assert.True(ok)
	ok, err = s.BotUnban(ctx, 1)
	assert.NoError(err)
	assert.False(ok)
}

func TestInbox(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testStore(t)

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		assert.NoError(s.SaveDM(ctx, &models.DirectMessage{
			UserID:    uint64(i + 1),
			Username:  "someone",
			Content:   "hi yuno",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	n, err := s.CountUnreadDMs(ctx)
	assert.NoError(err)
	assert.Equal(3, n)

	dms, err := s.ListDMs(ctx, 10, true)
	assert.NoError(err)
	require.Len(t, dms, 3)
	assert.Equal(uint64(3), dms[0].UserID)

	assert.NoError(s.MarkDMRead(ctx, dms[0].ID, dms[1].ID))
	assert.NoError(s.MarkDMRead(ctx))

	n, err = s.CountUnreadDMs(ctx)
	assert.NoError(err)
	assert.Equal(1, n)

	dms, err = s.ListDMs(ctx, 10, false)
	assert.NoError(err)
	assert.Len(dms, 3)
}
