package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yuno-bot/yuno/automod"
	"github.com/yuno-bot/yuno/automod/helpers"
	"github.com/yuno-bot/yuno/models"
)

const (
	autoCleanUsage = "💔 Usage: auto-clean [on [minutes] [messages] | off]~"

	maxCleanIntervalMinutes = 7 * 24 * 60
	maxCleanMessages        = 1000
)

// Shows, enables or disables scheduled cleaning of the current channel.
//
//	auto-clean
//	auto-clean on [minutes] [messages]
//	auto-clean off
func AutoCleanCommand(c *automod.CommandContext) error {
	sub, rest := helpers.NextArg(c.Args)
	switch strings.ToLower(sub) {
	case "", "status":
		return autoCleanStatus(c)
	case "on", "enable":
		return autoCleanOn(c, rest)
	case "off", "disable":
		return autoCleanOff(c)
	default:
		return c.Reply(autoCleanUsage)
	}
}

func autoCleanStatus(c *automod.CommandContext) error {
	cfg, err := c.Store().GetAutoCleanConfig(c.Ctx, c.Message.GuildID, c.Message.ChannelID)
	if err != nil {
		return err
	}
	if cfg == nil || !cfg.Enabled {
		return c.Reply("🧹 Auto-clean is **off** for this channel~")
	}
	msg := fmt.Sprintf("🧹 **Auto-clean is on**\nEvery %d minutes, up to %d messages~ 💕", cfg.IntervalMinutes, cfg.MessageCount)
	if until, ok := c.Delays().DelayedUntil(c.Message.GuildID, c.Message.ChannelID); ok {
		msg += fmt.Sprintf("\nDelayed for %s more~", helpers.FormatDuration(until.Sub(c.Now())))
	}
	return c.Reply(msg)
}

func parseBounded(arg string, def, maxVal int) (int, bool) {
	if arg == "" {
		return def, true
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 || n > maxVal {
		return 0, false
	}
	return n, true
}

func autoCleanOn(c *automod.CommandContext, args string) error {
	minutesArg, rest := helpers.NextArg(args)
	countArg, _ := helpers.NextArg(rest)
	minutes, ok := parseBounded(minutesArg, models.DefaultCleanIntervalMinutes, maxCleanIntervalMinutes)
	if !ok {
		return c.Reply(autoCleanUsage)
	}
	count, ok := parseBounded(countArg, models.DefaultCleanMessageCount, maxCleanMessages)
	if !ok {
		return c.Reply(autoCleanUsage)
	}

	cfg := &models.AutoCleanConfig{
		GuildID:         c.Message.GuildID,
		ChannelID:       c.Message.ChannelID,
		IntervalMinutes: minutes,
		MessageCount:    count,
		Enabled:         true,
	}
	if err := c.Store().SetAutoCleanConfig(c.Ctx, cfg); err != nil {
		return err
	}
	c.Logger.Info("auto-clean enabled", "channel", c.Message.ChannelID, "interval_minutes", minutes, "messages", count)
	return c.Reply(fmt.Sprintf("🧹 **Auto-clean Enabled!**\nI'll clean up to %d messages every %d minutes~ 💕", count, minutes))
}

func autoCleanOff(c *automod.CommandContext) error {
	removed, err := c.Store().RemoveAutoCleanConfig(c.Ctx, c.Message.GuildID, c.Message.ChannelID)
	if err != nil {
		return err
	}
	if !removed {
		return c.Reply("💔 Auto-clean isn't set up for this channel~")
	}
	c.Delays().Reset(c.Message.GuildID, c.Message.ChannelID)
	c.Logger.Info("auto-clean disabled", "channel", c.Message.ChannelID)
	return c.Reply("🧹 **Auto-clean Disabled**\nI'll leave this channel alone~")
}
