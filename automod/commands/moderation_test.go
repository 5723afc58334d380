package commands

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuno-bot/yuno/automod/engine"
	"github.com/yuno-bot/yuno/botstore"
	"github.com/yuno-bot/yuno/discord"
	"github.com/yuno-bot/yuno/models"
)

func TestBanKickUnban(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock := engineFixture(t)
	mod := uint64(engine.FixtureModeratorID)

	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(testUser, "!ban <@9> rude")))
	assert.Contains(mock.LastSent(), "don't have permission")
	assert.Empty(mock.Bans)

	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!ban")))
	assert.Equal("💔 Please specify a user to ban~", mock.LastSent())
	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!ban someone")))
	assert.Equal("💔 I couldn't find that user~", mock.LastSent())

	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!ban <@!9> very rude")))
	require.Len(t, mock.Bans, 1)
	assert.Equal(engine.MemberAction{GuildID: testGuild, UserID: 9, Reason: "very rude"}, mock.Bans[0])
	assert.Contains(mock.LastSent(), "**Banned!**")
	assert.Contains(mock.LastSent(), fmt.Sprintf("**Moderator:** <@%d>", mod))

	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!kick 11")))
	require.Len(t, mock.Kicks, 1)
	assert.Equal("No reason provided", mock.Kicks[0].Reason)
	assert.Equal(fmt.Sprintf("👢 **Kicked!**\nGet out! 💢\n\n**User:** <@11>\n**Moderator:** <@%d>\n**Reason:** No reason provided", mod), mock.LastSent())

	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!unban")))
	assert.Equal("💔 Please specify a user ID to unban~", mock.LastSent())
	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!unban abc")))
	assert.Equal("💔 Invalid user ID~", mock.LastSent())
	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!unban 9 appealed")))
	require.Len(t, mock.Unbans, 1)
	assert.Equal(uint64(9), mock.Unbans[0].UserID)
	assert.Contains(mock.LastSent(), "**Unbanned!**")

	store := eng.Store.(*botstore.DBStore)
	acts, err := store.ListModActions(ctx, testGuild, 10)
	require.NoError(t, err)
	require.Len(t, acts, 3)
	types := []string{}
	for _, a := range acts {
		assert.Equal(mod, a.ModeratorID)
		types = append(types, a.ActionType)
	}
	assert.ElementsMatch([]string{models.ActionBan, models.ActionKick, models.ActionUnban}, types)
}

func TestModerationFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock := engineFixture(t)
	mod := uint64(engine.FixtureModeratorID)

	mock.ModerationErr = fmt.Errorf("wrapped: %w", discord.ErrNotFound)
	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!kick 11")))
	assert.Equal("💔 I couldn't find that user~", mock.LastSent())

	// other failures are reported to the channel and contained by the engine
	mock.ModerationErr = &discord.APIError{StatusCode: 403, Code: 50013, Message: "Missing Permissions"}
	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!ban 11")))
	assert.Contains(mock.LastSent(), "right permissions")

	n, err := eng.Store.CountModActions(ctx, testGuild)
	require.NoError(t, err)
	assert.Equal(0, n)
}

func TestTimeoutCommand(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock := engineFixture(t)
	mod := uint64(engine.FixtureModeratorID)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time { return now }

	for _, args := range []string{"", "<@9>"} {
		require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!timeout "+args)))
		assert.Equal("💔 Usage: timeout <user> <minutes> [reason]~", mock.LastSent())
	}
	for _, mins := range []string{"0", "-3", "soon", "40321"} {
		require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!timeout <@9> "+mins)))
		assert.Equal("💔 Invalid duration~", mock.LastSent(), mins)
	}
	assert.Empty(mock.Timeouts)

	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!timeout <@9> 15 calm down")))
	require.Len(t, mock.Timeouts, 1)
	assert.Equal(now.Add(15*time.Minute), mock.Timeouts[0].Until)
	assert.Equal("calm down", mock.Timeouts[0].Reason)
	assert.Contains(mock.LastSent(), "**Duration:** 15 minutes")
	assert.Contains(mock.LastSent(), "**Reason:** calm down")

	acts, err := eng.Store.(*botstore.DBStore).ListModActions(ctx, testGuild, 1)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(models.ActionTimeout, acts[0].ActionType)
	assert.Equal("calm down (15 minutes)", acts[0].Reason)
}

func TestCleanCommand(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock := engineFixture(t)
	mod := uint64(engine.FixtureModeratorID)

	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!clean")))
	assert.Equal(11, mock.Purged[testChannel])
	assert.Equal("🧹 Cleaned 10 messages~ 💕", mock.LastSent())

	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!clean 500")))
	assert.Equal(11+101, mock.Purged[testChannel])
	assert.Equal("🧹 Cleaned 100 messages~ 💕", mock.LastSent())

	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!clean none")))
	assert.Equal("💔 Usage: clean [count]~", mock.LastSent())

	n, err := eng.Store.CountModActions(ctx, testGuild)
	require.NoError(t, err)
	assert.Equal(2, n)
}

func TestModStatsCommand(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, mock := engineFixture(t)
	mod := uint64(engine.FixtureModeratorID)
	master := uint64(engine.FixtureMasterUserID)

	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!ban 30")))
	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!ban 31")))
	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!timeout 32 5")))
	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(master, "!kick 33")))

	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(mod, "!mod-stats")))
	out := mock.LastSent()
	assert.Contains(out, "**Total Actions:** 4")
	assert.Contains(out, "🔪 Bans: 2")
	assert.Contains(out, "👢 Kicks: 0")
	assert.Contains(out, "⏰ Timeouts: 1")

	require.NoError(t, eng.ProcessMessage(ctx, commandMsg(master, "!modstats")))
	assert.Contains(mock.LastSent(), "👢 Kicks: 1")
}
