package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuno-bot/yuno/automod/event"
	"github.com/yuno-bot/yuno/botstore"
	"github.com/yuno-bot/yuno/models"
)

const (
	testGuild   = 10
	testChannel = 55
	testUser    = 2
)

func testEngine(t *testing.T, cmds ...*Command) (*Engine, *MockDiscord) {
	set, err := NewCommandSet(cmds...)
	require.NoError(t, err)
	eng, mock, err := EngineTestFixture(filepath.Join(t.TempDir(), "engine.sqlite"), set)
	require.NoError(t, err)
	return eng, mock
}

func guildMsg(id, author uint64, content string) *event.Message {
	return &event.Message{
		ID:        id,
		ChannelID: testChannel,
		GuildID:   testGuild,
		Author:    event.Author{ID: author, Username: fmt.Sprintf("user%d", author)},
		Content:   content,
		Timestamp: time.Now(),
	}
}

func TestIgnoresBotsAndBannedUsers(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, mock := testEngine(t)
	msg := guildMsg(1, 3, "hello")
	msg.Author.Bot = true
	assert.NoError(eng.ProcessMessage(ctx, msg))

	store := eng.Store.(*botstore.DBStore)
	require.NoError(t, store.BotBan(ctx, &models.BotBan{UserID: testUser, BannedBy: "console", Reason: "abuse"}))
	assert.NoError(eng.ProcessMessage(ctx, guildMsg(2, testUser, "hello")))

	assert.Equal(0, eng.XP.Pending())
	assert.Empty(mock.Sent())
}

func TestDirectMessage(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, mock := testEngine(t)
	msg := &event.Message{ID: 1, ChannelID: 77, Author: event.Author{ID: testUser, Username: "someone"}, Content: "hi yuno"}
	require.NoError(t, eng.ProcessMessage(ctx, msg))

	dms, err := eng.Store.(*botstore.DBStore).ListDMs(ctx, 10, true)
	require.NoError(t, err)
	require.Len(t, dms, 1)
	assert.Equal("hi yuno", dms[0].Content)
	assert.Equal("someone", dms[0].Username)
	assert.False(dms[0].CreatedAt.IsZero())

	require.Len(t, mock.Messages, 1)
	assert.Equal(uint64(77), mock.Messages[0].ChannelID)
	assert.Equal(DefaultConfig().DMReply, mock.Messages[0].Content)
}

func TestXPAndLevelUp(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, mock := testEngine(t)
	// 15 XP per message; the seventh crosses 100
	for i := 0; i < 7; i++ {
		require.NoError(t, eng.ProcessMessage(ctx, guildMsg(uint64(i+1), testUser, fmt.Sprintf("chatting %d", i))))
	}
	assert.Equal(1, eng.XP.Pending())
	assert.Empty(mock.Sent())

	require.NoError(t, eng.FlushXP(ctx))
	xp, level, err := eng.Store.ReadXP(ctx, testUser, testGuild)
	require.NoError(t, err)
	assert.Equal(int64(105), xp)
	assert.Equal(1, level)
	assert.Equal(fmt.Sprintf("✨ **Level Up!** ✨\nCongratulations <@%d>! You've reached level **1**! 💕", testUser), mock.LastSent())

	// commands earn no XP
	require.NoError(t, eng.ProcessMessage(ctx, guildMsg(100, testUser, "!unknown")))
	assert.Equal(0, eng.XP.Pending())
}

func TestLevelingDisabled(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, _ := testEngine(t)
	gs := eng.defaultSettings(testGuild)
	gs.LevelingEnabled = false
	require.NoError(t, eng.UpdateGuildSettings(ctx, &gs))

	require.NoError(t, eng.ProcessMessage(ctx, guildMsg(1, testUser, "hello")))
	assert.Equal(0, eng.XP.Pending())
}

func TestSpamWarningsAndTimeout(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, mock := testEngine(t)
	gs := eng.defaultSettings(testGuild)
	gs.SpamFilterEnabled = true
	require.NoError(t, eng.UpdateGuildSettings(ctx, &gs))

	for i := 1; i <= 5; i++ {
		require.NoError(t, eng.ProcessMessage(ctx, guildMsg(uint64(i), testUser, "buy cheap stuff")))
	}

	// the first two were fine and earned XP; the next three were spam
	assert.Equal([]uint64{3, 4, 5}, mock.Deleted)
	sent := mock.Sent()
	require.Len(t, sent, 3)
	assert.Equal(fmt.Sprintf("<@%d> Stop spamming! 😤 Warning 1/3", testUser), sent[0])
	assert.Equal(fmt.Sprintf("<@%d> Stop spamming! 😤 Warning 2/3", testUser), sent[1])
	assert.Equal(fmt.Sprintf("<@%d> has been timed out for spamming! 😤", testUser), sent[2])

	require.Len(t, mock.Timeouts, 1)
	assert.Equal(uint64(testUser), mock.Timeouts[0].UserID)
	assert.WithinDuration(time.Now().Add(10*time.Minute), mock.Timeouts[0].Until, time.Minute)

	acts, err := eng.Store.(*botstore.DBStore).ListModActions(ctx, testGuild, 10)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(models.ActionSpamTimeout, acts[0].ActionType)
	assert.Equal(uint64(FixtureBotUserID), acts[0].ModeratorID)

	// warnings and history start over after the timeout
	n, err := eng.Warnings.GetCount(ctx, "spam-warnings", fmt.Sprintf("%d/%d", testGuild, testUser))
	require.NoError(t, err)
	assert.Equal(0, n)
	require.NoError(t, eng.ProcessMessage(ctx, guildMsg(6, testUser, "buy cheap stuff")))
	assert.Len(mock.Deleted, 3)
}

func TestCommandDispatch(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var invoked []string
	echo := &Command{
		Name:    "echo",
		Aliases: []string{"say"},
		Func: func(c *CommandContext) error {
			invoked = append(invoked, c.Name)
			return c.Reply(c.Args)
		},
	}
	secret := &Command{
		Name:      "secret",
		Moderator: true,
		Func: func(c *CommandContext) error {
			return c.Reply("classified")
		},
	}
	eng, mock := testEngine(t, echo, secret)

	require.NoError(t, eng.ProcessMessage(ctx, guildMsg(1, testUser, "!ECHO hello there")))
	assert.Equal("hello there", mock.LastSent())
	require.NoError(t, eng.ProcessMessage(ctx, guildMsg(2, testUser, "!say hi")))
	assert.Equal("hi", mock.LastSent())
	assert.Equal([]string{"echo", "say"}, invoked)

	require.NoError(t, eng.ProcessMessage(ctx, guildMsg(3, testUser, "!secret")))
	assert.Equal("💔 You don't have permission to do that~", mock.LastSent())
	require.NoError(t, eng.ProcessMessage(ctx, guildMsg(4, FixtureModeratorID, "!secret")))
	assert.Equal("classified", mock.LastSent())
	require.NoError(t, eng.ProcessMessage(ctx, guildMsg(5, FixtureMasterUserID, "!secret")))
	assert.Equal("classified", mock.LastSent())

	// a prefix change takes effect immediately, despite the settings cache
	require.NoError(t, eng.SetGuildPrefix(ctx, testGuild, "?"))
	require.NoError(t, eng.ProcessMessage(ctx, guildMsg(6, testUser, "?echo new prefix")))
	assert.Equal("new prefix", mock.LastSent())
	require.NoError(t, eng.ProcessMessage(ctx, guildMsg(7, testUser, "!echo old prefix")))
	assert.Equal("new prefix", mock.LastSent())
}

func TestCommandFailuresAreContained(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	broken := &Command{
		Name: "broken",
		Func: func(c *CommandContext) error {
			return errors.New("database is locked")
		},
	}
	panicky := &Command{
		Name: "panicky",
		Func: func(c *CommandContext) error {
			var m map[string]int
			m["boom"]++
			return nil
		},
	}
	eng, _ := testEngine(t, broken, panicky)

	assert.NoError(eng.ProcessMessage(ctx, guildMsg(1, testUser, "!broken")))
	assert.NoError(eng.ProcessMessage(ctx, guildMsg(2, testUser, "!panicky")))
}

func TestDuplicateCommandNames(t *testing.T) {
	noop := func(c *CommandContext) error { return nil }
	_, err := NewCommandSet(
		&Command{Name: "xp", Func: noop},
		&Command{Name: "level", Aliases: []string{"XP"}, Func: noop},
	)
	assert.Error(t, err)
}

func TestGuildSettingsCache(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, _ := testEngine(t)
	gs, err := eng.GuildSettings(ctx, testGuild)
	require.NoError(t, err)
	assert.Equal("!", gs.Prefix)
	assert.True(gs.LevelingEnabled)
	assert.False(gs.SpamFilterEnabled)

	// a write that bypasses the engine is not seen until the cache entry is purged
	store := eng.Store.(*botstore.DBStore)
	require.NoError(t, store.SetPrefix(ctx, testGuild, "$"))
	gs, err = eng.GuildSettings(ctx, testGuild)
	require.NoError(t, err)
	assert.Equal("!", gs.Prefix)

	eng.PurgeGuildSettings(ctx, testGuild)
	gs, err = eng.GuildSettings(ctx, testGuild)
	require.NoError(t, err)
	assert.Equal("$", gs.Prefix)
}

func TestCleanupSweep(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, mock := testEngine(t)
	now := time.Now()
	eng.Now = func() time.Time { return now }
	eng.Delays.Now = eng.Now

	recent := now.Add(-10 * time.Minute)
	for _, cfg := range []models.AutoCleanConfig{
		{GuildID: testGuild, ChannelID: 55, IntervalMinutes: 60, MessageCount: 50, Enabled: true},
		{GuildID: testGuild, ChannelID: 56, IntervalMinutes: 60, MessageCount: 50, Enabled: true},
		{GuildID: testGuild, ChannelID: 57, IntervalMinutes: 60, MessageCount: 50, Enabled: true, LastCleanedAt: &recent},
		{GuildID: testGuild, ChannelID: 58, IntervalMinutes: 60, MessageCount: 50, Enabled: false},
	} {
		require.NoError(t, eng.Store.SetAutoCleanConfig(ctx, &cfg))
	}
	require.NoError(t, eng.Store.MarkCleaned(ctx, testGuild, 57, recent))
	_, err := eng.Delays.Request(testGuild, 56, 5*time.Minute)
	require.NoError(t, err)

	res, err := eng.RunCleanupSweep(ctx)
	require.NoError(t, err)
	require.Len(t, res.Cleaned, 1)
	assert.Equal(uint64(55), res.Cleaned[0].ChannelID)
	require.Len(t, res.Skipped, 1)
	assert.Equal(uint64(56), res.Skipped[0].ChannelID)
	assert.Equal(map[uint64]int{55: 50}, mock.Purged)

	cfg, err := eng.Store.GetAutoCleanConfig(ctx, testGuild, 55)
	require.NoError(t, err)
	require.NotNil(t, cfg.LastCleanedAt)

	// an hour later the delay has expired and both are due again
	now = now.Add(61 * time.Minute)
	res, err = eng.RunCleanupSweep(ctx)
	require.NoError(t, err)
	assert.Len(res.Cleaned, 3)
	// a completed cleanup starts a new delay cycle
	assert.Equal(3, eng.Delays.Remaining(testGuild, 56))
}

func TestCleanupFailureKeepsDelays(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, mock := testEngine(t)
	require.NoError(t, eng.Store.SetAutoCleanConfig(ctx, &models.AutoCleanConfig{GuildID: testGuild, ChannelID: 55, IntervalMinutes: 60, MessageCount: 10, Enabled: true}))
	mock.PurgeErr = errors.New("missing permissions")

	// a delay that has already expired still counts against the cycle
	eng.Delays.Now = func() time.Time { return time.Now().Add(-time.Hour) }
	_, err := eng.Delays.Request(testGuild, 55, time.Minute)
	require.NoError(t, err)
	eng.Delays.Now = time.Now

	res, err := eng.RunCleanupSweep(ctx)
	assert.Error(err)
	assert.Len(res.Failed, 1)
	assert.Equal(2, eng.Delays.Remaining(testGuild, 55))

	cfg, err := eng.Store.GetAutoCleanConfig(ctx, testGuild, 55)
	require.NoError(t, err)
	assert.Nil(cfg.LastCleanedAt)
}
