package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/yuno-bot/yuno/automod"
	"github.com/yuno-bot/yuno/automod/helpers"
	"github.com/yuno-bot/yuno/discord"
	"github.com/yuno-bot/yuno/models"
)

const (
	defaultReason = "No reason provided"

	// longest timeout the platform accepts
	maxTimeoutMinutes = 28 * 24 * 60

	defaultCleanCount = 10
	maxCleanCount     = 100
)

// Splits "<user> [reason]" arguments. ok is false if no user was given; id is zero if the user reference is invalid.
func targetAndReason(args string) (id uint64, reason string, ok bool) {
	target, rest := helpers.NextArg(args)
	if target == "" {
		return 0, "", false
	}
	id, _ = helpers.ParseUserMention(target)
	reason = rest
	if reason == "" {
		reason = defaultReason
	}
	return id, reason, true
}

func actionFailed(c *automod.CommandContext, err error) error {
	if errors.Is(err, discord.ErrNotFound) {
		return c.Reply("💔 I couldn't find that user~")
	}
	if rerr := c.Reply("💔 I couldn't do that~ Do I have the right permissions?"); rerr != nil {
		c.Logger.Warn("failed to send reply", "err", rerr)
	}
	return err
}

func BanCommand(c *automod.CommandContext) error {
	userID, reason, ok := targetAndReason(c.Args)
	if !ok {
		return c.Reply("💔 Please specify a user to ban~")
	}
	if userID == 0 {
		return c.Reply("💔 I couldn't find that user~")
	}
	if err := c.Discord().BanMember(c.Ctx, c.Message.GuildID, userID, reason); err != nil {
		return actionFailed(c, err)
	}
	c.RecordModAction(models.ActionBan, userID, reason)
	return c.Reply(fmt.Sprintf(
		"🔪 **Banned!**\nThey won't bother you anymore~ 💕\n\n**User:** <@%d>\n**Moderator:** <@%d>\n**Reason:** %s",
		userID, c.Message.Author.ID, reason))
}

func KickCommand(c *automod.CommandContext) error {
	userID, reason, ok := targetAndReason(c.Args)
	if !ok {
		return c.Reply("💔 Please specify a user to kick~")
	}
	if userID == 0 {
		return c.Reply("💔 I couldn't find that user~")
	}
	if err := c.Discord().KickMember(c.Ctx, c.Message.GuildID, userID, reason); err != nil {
		return actionFailed(c, err)
	}
	c.RecordModAction(models.ActionKick, userID, reason)
	return c.Reply(fmt.Sprintf(
		"👢 **Kicked!**\nGet out! 💢\n\n**User:** <@%d>\n**Moderator:** <@%d>\n**Reason:** %s",
		userID, c.Message.Author.ID, reason))
}

func UnbanCommand(c *automod.CommandContext) error {
	target, rest := helpers.NextArg(c.Args)
	if target == "" {
		return c.Reply("💔 Please specify a user ID to unban~")
	}
	userID, ok := helpers.ParseUserMention(target)
	if !ok {
		return c.Reply("💔 Invalid user ID~")
	}
	reason := rest
	if reason == "" {
		reason = defaultReason
	}
	if err := c.Discord().UnbanMember(c.Ctx, c.Message.GuildID, userID, reason); err != nil {
		return actionFailed(c, err)
	}
	c.RecordModAction(models.ActionUnban, userID, reason)
	return c.Reply(fmt.Sprintf(
		"💕 **Unbanned!**\nI'm giving them another chance~ Be good this time!\n\n**User:** <@%d>\n**Moderator:** <@%d>\n**Reason:** %s",
		userID, c.Message.Author.ID, reason))
}

// timeout <user> <minutes> [reason]
func TimeoutCommand(c *automod.CommandContext) error {
	const usage = "💔 Usage: timeout <user> <minutes> [reason]~"
	target, rest := helpers.NextArg(c.Args)
	minutesArg, rest := helpers.NextArg(rest)
	if target == "" || minutesArg == "" {
		return c.Reply(usage)
	}
	userID, ok := helpers.ParseUserMention(target)
	if !ok {
		return c.Reply("💔 I couldn't find that user~")
	}
	minutes, err := strconv.Atoi(minutesArg)
	if err != nil || minutes <= 0 || minutes > maxTimeoutMinutes {
		return c.Reply("💔 Invalid duration~")
	}
	reason := rest
	if reason == "" {
		reason = defaultReason
	}

	until := c.Now().Add(time.Duration(minutes) * time.Minute)
	if err := c.Discord().TimeoutMember(c.Ctx, c.Message.GuildID, userID, until, reason); err != nil {
		return actionFailed(c, err)
	}
	c.RecordModAction(models.ActionTimeout, userID, fmt.Sprintf("%s (%d minutes)", reason, minutes))
	return c.Reply(fmt.Sprintf(
		"⏰ **Timed Out!**\nThink about what you did~ 😤\n\n**User:** <@%d>\n**Duration:** %d minutes\n**Moderator:** <@%d>\n**Reason:** %s",
		userID, minutes, c.Message.Author.ID, reason))
}

// Deletes the given number of recent messages (default 10, at most 100), plus the command message itself.
func CleanCommand(c *automod.CommandContext) error {
	count := defaultCleanCount
	if arg, _ := helpers.NextArg(c.Args); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return c.Reply("💔 Usage: clean [count]~")
		}
		count = min(n, maxCleanCount)
	}

	n, err := c.Discord().PurgeChannel(c.Ctx, c.Message.ChannelID, count+1)
	if err != nil {
		return actionFailed(c, err)
	}
	deleted := max(n-1, 0)
	c.RecordModAction(models.ActionClean, 0, fmt.Sprintf("%d messages in <#%d>", deleted, c.Message.ChannelID))
	return c.Reply(fmt.Sprintf("🧹 Cleaned %d messages~ 💕", deleted))
}

func ModStatsCommand(c *automod.CommandContext) error {
	total, err := c.Store().CountModActions(c.Ctx, c.Message.GuildID)
	if err != nil {
		return err
	}
	mine, err := c.Store().ModStats(c.Ctx, c.Message.GuildID, c.Message.Author.ID)
	if err != nil {
		return err
	}
	return c.Reply(fmt.Sprintf(
		"📊 **Moderation Statistics**\nLook at all we've done together~ 💕\n\n"+
			"**Total Actions:** %d\n\n"+
			"**Your Actions:**\n🔪 Bans: %d\n👢 Kicks: %d\n⏰ Timeouts: %d\n💕 Unbans: %d",
		total, mine.Bans, mine.Kicks, mine.Timeouts, mine.Unbans))
}
