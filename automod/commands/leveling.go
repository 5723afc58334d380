package commands

import (
	"fmt"
	"strings"

	"github.com/yuno-bot/yuno/automod"
	"github.com/yuno-bot/yuno/automod/helpers"
	"github.com/yuno-bot/yuno/automod/xpbatcher"
	"github.com/yuno-bot/yuno/botstore"
)

// Percent progress from the current level toward the next, counted from zero XP.
func levelProgress(xp int64, level int) int64 {
	next := xpbatcher.XPForLevel(level + 1)
	if next <= 0 {
		return 0
	}
	return min(xp*100/next, 100)
}

// Shows stored XP and level for the author, or for a mentioned user.
func XPCommand(c *automod.CommandContext) error {
	userID := c.Message.Author.ID
	if arg, _ := helpers.NextArg(c.Args); arg != "" {
		id, ok := helpers.ParseUserMention(arg)
		if !ok {
			return c.Reply("💔 I couldn't find that user~")
		}
		userID = id
	}

	xp, level, err := c.Store().ReadXP(c.Ctx, userID, c.Message.GuildID)
	if err != nil {
		return err
	}
	return c.Reply(fmt.Sprintf(
		"✨ **XP Stats**\n<@%d>'s progress~ 💕\n\n**Level:** %d\n**XP:** %d\n**Progress to Next:** %d%%",
		userID, level, xp, levelProgress(xp, level)))
}

func LeaderboardCommand(c *automod.CommandContext) error {
	top, err := c.Store().Leaderboard(c.Ctx, c.Message.GuildID, botstore.LeaderboardLimit)
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("🏆 **Server Leaderboard**\n*\"Look who's been the most active~\"* 💕\n\n")
	medals := []string{"🥇", "🥈", "🥉"}
	for i, row := range top {
		medal := ""
		if i < len(medals) {
			medal = medals[i]
		}
		fmt.Fprintf(&sb, "%s %d. <@%d> - Level %d (%d XP)\n", medal, i+1, row.UserID, row.Level, row.XP)
	}
	if len(top) == 0 {
		sb.WriteString("No one has earned XP yet~")
	}
	return c.Reply(sb.String())
}
