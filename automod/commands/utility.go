package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/yuno-bot/yuno/automod"
	"github.com/yuno-bot/yuno/automod/delaytracker"
	"github.com/yuno-bot/yuno/automod/helpers"
	"github.com/yuno-bot/yuno/botstore"
)

func PingCommand(c *automod.CommandContext) error {
	return c.Reply("💓 **Pong!**\nI'm always here for you~ 💕")
}

func HelpCommand(c *automod.CommandContext) error {
	return c.Reply(fmt.Sprintf(
		"💕 **Yuno's Commands** 💕\n"+
			"*\"Let me show you everything I can do for you~\"* 💗\n"+
			"Prefix: `%s`\n\n"+
			"**🔪 Moderation**\n"+
			"`ban` - Ban a user\n"+
			"`kick` - Kick a user\n"+
			"`unban` - Unban a user\n"+
			"`timeout` - Timeout a user\n"+
			"`clean` - Delete messages\n"+
			"`mod-stats` - View moderation stats\n\n"+
			"**⚙️ Utility**\n"+
			"`ping` - Check latency\n"+
			"`prefix` - Set server prefix\n"+
			"`auto-clean` - Schedule channel cleaning\n"+
			"`delay` - Delay auto-clean\n"+
			"`source` - View source code\n"+
			"`help` - This menu\n\n"+
			"**✨ Leveling**\n"+
			"`xp` - Check XP and level\n"+
			"`leaderboard` - Server rankings\n\n"+
			"**🎱 Fun**\n"+
			"`8ball` - Ask the magic 8-ball\n\n"+
			"💕 *Yuno is always watching over you~* 💕", c.Settings.Prefix))
}

func SourceCommand(c *automod.CommandContext) error {
	return c.Reply("📜 **Source Code**\n" +
		"*\"I have nothing to hide from you~\"* 💕\n\n" +
		"**Go Version**: https://github.com/yuno-bot/yuno\n" +
		"**C Version**: https://github.com/blubskye/yuno_c\n" +
		"**Original JS**: https://github.com/japaneseenrichmentorganization/Yuno-Gasai-2\n\n" +
		"Licensed under **AGPL-3.0** 💗")
}

// Shows the guild's prefix, or changes it (moderators only).
func PrefixCommand(c *automod.CommandContext) error {
	newPrefix, _ := helpers.NextArg(c.Args)
	if newPrefix == "" {
		return c.Reply(fmt.Sprintf("💕 Current prefix: `%s`", c.Settings.Prefix))
	}
	if !c.IsModerator() {
		return c.Reply("💔 You don't have permission to do that~")
	}
	if len(newPrefix) > botstore.MaxPrefixLen {
		return c.Reply("💔 Prefix too long! Max 5 characters~")
	}
	if err := c.SetPrefix(newPrefix); err != nil {
		return err
	}
	c.Logger.Info("guild prefix changed", "prefix", newPrefix)
	return c.Reply(fmt.Sprintf("🔧 **Prefix Updated!**\nNew prefix is now: `%s` 💕", newPrefix))
}

// Postpones the next scheduled cleanup of the current channel.
func DelayCommand(c *automod.CommandContext) error {
	arg, _ := helpers.NextArg(c.Args)
	minutes, ok := parseBounded(arg, int(c.Config().DefaultDelay/time.Minute), maxCleanIntervalMinutes)
	if !ok {
		return c.Reply(fmt.Sprintf("💔 Usage: delay [minutes]~ (1 to %d)", maxCleanIntervalMinutes))
	}

	_, err := c.Delays().Request(c.Message.GuildID, c.Message.ChannelID, time.Duration(minutes)*time.Minute)
	if errors.Is(err, delaytracker.ErrCapacityExceeded) {
		return c.Reply(fmt.Sprintf("💔 This channel has already been delayed %d times~ I'll clean it soon!", c.Delays().MaxDelaysPerCycle()))
	}
	if err != nil {
		return err
	}
	return c.Reply(fmt.Sprintf("⏳ **Delay Requested**\nI'll wait %d more minutes before cleaning~ 💕", minutes))
}
