package engine

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/yuno-bot/yuno/automod/delaytracker"
	"github.com/yuno-bot/yuno/automod/event"
	"github.com/yuno-bot/yuno/automod/setstore"
	"github.com/yuno-bot/yuno/models"
)

// The primary interface exposed to commands.
type CommandContext struct {
	// Actual golang "context.Context", if needed for timeouts etc
	Ctx context.Context
	// slog logger handle, with message-specific structured fields pre-populated. Pointer, but expected to never be nil.
	Logger *slog.Logger

	Message  *event.Message
	Settings models.GuildSettings
	// command name as invoked, which may be an alias
	Name string
	// text after the command name, trimmed
	Args string

	engine *Engine // NOTE: pointer, but expected never to be nil
}

// Sends a message to the channel the command came from.
func (c *CommandContext) Reply(content string) error {
	_, err := c.engine.Discord.CreateMessage(c.Ctx, c.Message.ChannelID, content)
	return err
}

// Whether the author is a bot master or moderator. Lookup errors count as "no".
func (c *CommandContext) IsModerator() bool {
	if c.engine.Sets == nil {
		return false
	}
	id := strconv.FormatUint(c.Message.Author.ID, 10)
	for _, name := range []string{setstore.MasterUsers, setstore.Moderators} {
		ok, err := c.engine.Sets.InSet(c.Ctx, name, id)
		if err != nil {
			c.Logger.Warn("set lookup failed", "set", name, "err", err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

func (c *CommandContext) Store() Store {
	return c.engine.Store
}

func (c *CommandContext) Discord() Discord {
	return c.engine.Discord
}

func (c *CommandContext) Delays() *delaytracker.Tracker {
	return c.engine.Delays
}

func (c *CommandContext) Config() Config {
	return c.engine.Config
}

func (c *CommandContext) Commands() *CommandSet {
	return c.engine.Commands
}

func (c *CommandContext) Now() time.Time {
	return c.engine.now()
}

// Random integer in [0, n).
func (c *CommandContext) RandN(n int) int {
	return c.engine.randN(n)
}

// Logs a moderation action taken by the command's author in the current guild.
func (c *CommandContext) RecordModAction(actionType string, targetID uint64, reason string) {
	c.engine.RecordModAction(c.Ctx, &models.ModAction{
		GuildID:     c.Message.GuildID,
		ModeratorID: c.Message.Author.ID,
		TargetID:    targetID,
		ActionType:  actionType,
		Reason:      reason,
	})
}

func (c *CommandContext) SetPrefix(prefix string) error {
	return c.engine.SetGuildPrefix(c.Ctx, c.Message.GuildID, prefix)
}

// Persists changed settings for the current guild.
func (c *CommandContext) UpdateSettings(gs *models.GuildSettings) error {
	gs.GuildID = c.Message.GuildID
	if err := c.engine.UpdateGuildSettings(c.Ctx, gs); err != nil {
		return err
	}
	c.Settings = *gs
	return nil
}
