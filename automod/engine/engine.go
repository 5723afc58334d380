package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/yuno-bot/yuno/automod/cachestore"
	"github.com/yuno-bot/yuno/automod/countstore"
	"github.com/yuno-bot/yuno/automod/delaytracker"
	"github.com/yuno-bot/yuno/automod/event"
	"github.com/yuno-bot/yuno/automod/helpers"
	"github.com/yuno-bot/yuno/automod/setstore"
	"github.com/yuno-bot/yuno/automod/spamtracker"
	"github.com/yuno-bot/yuno/automod/xpbatcher"
	"github.com/yuno-bot/yuno/discord"
	"github.com/yuno-bot/yuno/models"
)

// Persistent bot state. Implemented by botstore.DBStore.
type Store interface {
	xpbatcher.Store

	GetGuildSettings(ctx context.Context, guildID uint64) (*models.GuildSettings, error)
	SetGuildSettings(ctx context.Context, gs *models.GuildSettings) error
	SetPrefix(ctx context.Context, guildID uint64, prefix string) error
	Leaderboard(ctx context.Context, guildID uint64, limit int) ([]models.UserXP, error)

	LogModAction(ctx context.Context, act *models.ModAction) error
	CountModActions(ctx context.Context, guildID uint64) (int, error)
	ModStats(ctx context.Context, guildID, moderatorID uint64) (*models.ModStats, error)

	GetAutoCleanConfig(ctx context.Context, guildID, channelID uint64) (*models.AutoCleanConfig, error)
	SetAutoCleanConfig(ctx context.Context, cfg *models.AutoCleanConfig) error
	RemoveAutoCleanConfig(ctx context.Context, guildID, channelID uint64) (bool, error)
	ListEnabledCleanupChannels(ctx context.Context) ([]models.AutoCleanConfig, error)
	MarkCleaned(ctx context.Context, guildID, channelID uint64, at time.Time) error

	IsBotBanned(ctx context.Context, userID uint64) (bool, error)
	SaveDM(ctx context.Context, dm *models.DirectMessage) error
}

// Chat platform operations the engine performs. Implemented by discord.Client.
type Discord interface {
	CreateMessage(ctx context.Context, channelID uint64, content string) (*discord.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID uint64) error
	PurgeChannel(ctx context.Context, channelID uint64, count int) (int, error)
	TimeoutMember(ctx context.Context, guildID, userID uint64, until time.Time, reason string) error
	KickMember(ctx context.Context, guildID, userID uint64, reason string) error
	BanMember(ctx context.Context, guildID, userID uint64, reason string) error
	UnbanMember(ctx context.Context, guildID, userID uint64, reason string) error
	GetUser(ctx context.Context, userID uint64) (*discord.User, error)
}

type Config struct {
	DefaultPrefix   string
	SpamMaxWarnings int
	SpamTimeout     time.Duration
	// XP awarded per chat message is drawn uniformly from [MinXPGain, MaxXPGain]
	MinXPGain int
	MaxXPGain int
	// automatic reply to direct messages; empty disables the reply
	DMReply string
	// postponement applied by the delay command when none is given
	DefaultDelay   time.Duration
	FlushTimeout   time.Duration
	CleanupTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		DefaultPrefix:   "!",
		SpamMaxWarnings: 3,
		SpamTimeout:     10 * time.Minute,
		MinXPGain:       15,
		MaxXPGain:       25,
		DMReply:         "I'm just a bot :'(. I can't answer to you.",
		DefaultDelay:    5 * time.Minute,
		FlushTimeout:    30 * time.Second,
		CleanupTimeout:  5 * time.Minute,
	}
}

// runtime for handling chat messages: spam filtering, leveling, commands, and scheduled channel cleanup.
//
// The XP batcher is expected to use the engine itself as its level-up notifier.
type Engine struct {
	Logger   *slog.Logger
	Store    Store
	Discord  Discord
	Spam     *spamtracker.Tracker
	XP       *xpbatcher.Batcher
	Delays   *delaytracker.Tracker
	Warnings countstore.CountStore
	Cache    cachestore.CacheStore
	Sets     setstore.SetStore
	Commands *CommandSet
	Config   Config
	// used to notify of moderation actions (optional)
	Notifier Notifier

	// overridable for tests
	Now  func() time.Time
	Rand func(n int) int

	botUserID atomic.Uint64
}

var _ xpbatcher.LevelUpNotifier = (*Engine)(nil)

func (eng *Engine) now() time.Time {
	if eng.Now != nil {
		return eng.Now()
	}
	return time.Now()
}

func (eng *Engine) randN(n int) int {
	if n <= 1 {
		return 0
	}
	if eng.Rand != nil {
		return eng.Rand(n)
	}
	return rand.IntN(n)
}

// Records the bot's own account, as reported when the gateway session becomes ready. Used as the moderator of automatic actions.
func (eng *Engine) SetBotUser(id uint64) {
	eng.botUserID.Store(id)
}

func (eng *Engine) BotUser() uint64 {
	return eng.botUserID.Load()
}

// Handles one incoming chat message. Errors from command handlers are logged, not returned.
func (eng *Engine) ProcessMessage(ctx context.Context, msg *event.Message) error {
	// similar to an HTTP server, we want to recover any panics from command execution
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("message processing exception", "err", r, "guild", msg.GuildID, "channel", msg.ChannelID, "author", msg.Author.ID)
			messageErrorCount.WithLabelValues("panic").Inc()
		}
	}()

	start := time.Now()
	kind := "guild"
	if msg.IsDirect() {
		kind = "direct"
	}
	defer func() {
		messageProcessDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	if msg.Author.Bot {
		messageProcessCount.WithLabelValues("bot").Inc()
		return nil
	}

	banned, err := eng.Store.IsBotBanned(ctx, msg.Author.ID)
	if err != nil {
		messageErrorCount.WithLabelValues(kind).Inc()
		return fmt.Errorf("checking bot ban: %w", err)
	}
	if banned {
		messageProcessCount.WithLabelValues("banned").Inc()
		return nil
	}

	messageProcessCount.WithLabelValues(kind).Inc()
	if msg.IsDirect() {
		err = eng.processDirectMessage(ctx, msg)
	} else {
		err = eng.processGuildMessage(ctx, msg)
	}
	if err != nil {
		messageErrorCount.WithLabelValues(kind).Inc()
	}
	return err
}

func (eng *Engine) processDirectMessage(ctx context.Context, msg *event.Message) error {
	dm := &models.DirectMessage{
		UserID:    msg.Author.ID,
		Username:  msg.Author.Username,
		Content:   msg.Content,
		CreatedAt: msg.Timestamp,
	}
	if dm.CreatedAt.IsZero() {
		dm.CreatedAt = eng.now()
	}
	if err := eng.Store.SaveDM(ctx, dm); err != nil {
		return fmt.Errorf("saving direct message: %w", err)
	}
	eng.Logger.Info("new direct message", "user", msg.Author.ID, "username", msg.Author.Username, "preview", helpers.Truncate(msg.Content, 50))

	if eng.Config.DMReply == "" {
		return nil
	}
	if _, err := eng.Discord.CreateMessage(ctx, msg.ChannelID, eng.Config.DMReply); err != nil {
		return fmt.Errorf("replying to direct message: %w", err)
	}
	return nil
}

func (eng *Engine) processGuildMessage(ctx context.Context, msg *event.Message) error {
	logger := eng.Logger.With("guild", msg.GuildID, "channel", msg.ChannelID, "author", msg.Author.ID)

	settings, err := eng.GuildSettings(ctx, msg.GuildID)
	if err != nil {
		// carry on with defaults, which leave the spam filter off
		logger.Warn("failed to load guild settings", "err", err)
		def := eng.defaultSettings(msg.GuildID)
		settings = &def
	}

	if settings.SpamFilterEnabled {
		handled, err := eng.checkSpam(ctx, logger, msg)
		if handled {
			return err
		}
	}

	name, args, ok := helpers.SplitCommand(msg.Content, settings.Prefix)
	if !ok {
		if settings.LevelingEnabled {
			eng.awardXP(ctx, logger, msg)
		}
		return nil
	}
	return eng.runCommand(ctx, logger, msg, settings, name, args)
}

func (eng *Engine) runCommand(ctx context.Context, logger *slog.Logger, msg *event.Message, settings *models.GuildSettings, name, args string) error {
	cmd, ok := eng.Commands.Lookup(name)
	if !ok {
		return nil
	}
	logger = logger.With("command", cmd.Name)
	c := &CommandContext{
		Ctx:      ctx,
		Logger:   logger,
		Message:  msg,
		Settings: *settings,
		Name:     name,
		Args:     args,
		engine:   eng,
	}

	if cmd.Moderator && !c.IsModerator() {
		commandCount.WithLabelValues(cmd.Name, "denied").Inc()
		return c.Reply("💔 You don't have permission to do that~")
	}

	start := time.Now()
	err := cmd.Func(c)
	commandDuration.WithLabelValues(cmd.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		commandCount.WithLabelValues(cmd.Name, "error").Inc()
		logger.Error("command failed", "args", args, "err", err)
		return nil
	}
	commandCount.WithLabelValues(cmd.Name, "ok").Inc()
	logger.Debug("command complete", "args", args)
	return nil
}
