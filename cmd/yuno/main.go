package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yuno-bot/yuno/automod/cachestore"
	"github.com/yuno-bot/yuno/automod/delaytracker"
	"github.com/yuno-bot/yuno/automod/engine"
	"github.com/yuno-bot/yuno/automod/spamtracker"
	"github.com/yuno-bot/yuno/automod/xpbatcher"
	"github.com/yuno-bot/yuno/botstore"
	"github.com/yuno-bot/yuno/discord"
	"github.com/yuno-bot/yuno/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"gorm.io/plugin/opentelemetry/tracing"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "yuno",
		Usage:   "chat moderation and leveling bot",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to optional JSON config file; values apply to flags not set otherwise",
			EnvVars: []string{"YUNO_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string (sqlite:// or postgres://), or a bare sqlite file path",
			Value:   "sqlite://data/yuno/yuno.db",
			EnvVars: []string{"DATABASE_URL", "YUNO_DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   20,
		},
		&cli.BoolFlag{
			Name:    "enable-db-tracing",
			Usage:   "record OpenTelemetry spans for database queries",
			EnvVars: []string{"YUNO_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"YUNO_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		botBanCmd,
		botUnbanCmd,
		botBanListCmd,
		inboxCmd,
	}

	return app.Run(args)
}

func configLogger(cctx *cli.Context) *slog.Logger {
	logger, err := cliutil.SetupSlog(cliutil.LogOptions{LogLevel: cctx.String("log-level")})
	if err != nil {
		slog.Error("failed to configure logging, using default", "err", err)
		return slog.Default()
	}
	return logger
}

// Opens the database, applying schema migrations.
func configStore(cctx *cli.Context, logger *slog.Logger) (*botstore.DBStore, error) {
	db, err := cliutil.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"), logger)
	if err != nil {
		return nil, err
	}
	if cctx.Bool("enable-db-tracing") {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, err
		}
	}
	prefix := cctx.String("default-prefix")
	if prefix == "" {
		prefix = engine.DefaultConfig().DefaultPrefix
	}
	store := botstore.NewDBStore(db, prefix)
	if err := store.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return store, nil
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the bot daemon",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "discord-token",
			Usage:   "bot token for the chat API and gateway",
			EnvVars: []string{"DISCORD_TOKEN", "YUNO_DISCORD_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "gateway-host",
			Usage:   "hostname (or ws:// URL) of the chat gateway",
			Value:   "gateway.discord.gg",
			EnvVars: []string{"YUNO_GATEWAY_HOST"},
		},
		&cli.StringFlag{
			Name:    "api-host",
			Usage:   "base URL of the chat REST API, including version path",
			Value:   discord.DefaultAPIHost,
			EnvVars: []string{"YUNO_API_HOST"},
		},
		&cli.StringFlag{
			Name:    "default-prefix",
			Usage:   "command prefix for guilds which have not set one",
			Value:   engine.DefaultConfig().DefaultPrefix,
			EnvVars: []string{"YUNO_DEFAULT_PREFIX"},
		},
		&cli.StringFlag{
			Name:    "dm-reply",
			Usage:   "automatic reply to direct messages",
			Value:   engine.DefaultConfig().DMReply,
			EnvVars: []string{"YUNO_DM_REPLY"},
		},
		&cli.IntFlag{
			Name:    "spam-max-warnings",
			Usage:   "spam warnings before a member is timed out",
			Value:   engine.DefaultConfig().SpamMaxWarnings,
			EnvVars: []string{"YUNO_SPAM_MAX_WARNINGS"},
		},
		&cli.StringSliceFlag{
			Name:    "master-users",
			Usage:   "user IDs with full control over the bot",
			EnvVars: []string{"YUNO_MASTER_USERS"},
		},
		&cli.StringFlag{
			Name:    "sets-json-path",
			Usage:   "file path of JSON file containing static sets (eg, moderators)",
			EnvVars: []string{"YUNO_SETS_JSON_PATH"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for counters, cache and gateway session state",
			EnvVars: []string{"YUNO_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook for moderation action notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for admin HTTP APIs and metrics",
			Value:   ":3999",
			EnvVars: []string{"YUNO_BIND"},
		},
		&cli.StringFlag{
			Name:    "admin-password",
			Usage:   "bearer token for admin HTTP endpoints; admin endpoints are disabled if not set",
			EnvVars: []string{"YUNO_ADMIN_PASSWORD"},
		},
		&cli.IntFlag{
			Name:    "max-tracked-users",
			Value:   spamtracker.DefaultConfig().MaxTrackedUsers,
			EnvVars: []string{"YUNO_MAX_TRACKED_USERS"},
		},
		&cli.IntFlag{
			Name:    "max-message-history",
			Value:   spamtracker.DefaultConfig().HistoryDepth,
			EnvVars: []string{"YUNO_MAX_MESSAGE_HISTORY"},
		},
		&cli.DurationFlag{
			Name:    "spam-interval",
			Value:   spamtracker.DefaultConfig().Interval,
			EnvVars: []string{"YUNO_SPAM_INTERVAL"},
		},
		&cli.IntFlag{
			Name:    "max-messages-per-interval",
			Value:   spamtracker.DefaultConfig().MaxMessagesPerInterval,
			EnvVars: []string{"YUNO_MAX_MESSAGES_PER_INTERVAL"},
		},
		&cli.IntFlag{
			Name:    "duplicate-threshold",
			Value:   spamtracker.DefaultConfig().DuplicateThreshold,
			EnvVars: []string{"YUNO_DUPLICATE_THRESHOLD"},
		},
		&cli.IntFlag{
			Name:    "max-pending-xp",
			Value:   xpbatcher.DefaultConfig().MaxPending,
			EnvVars: []string{"YUNO_MAX_PENDING_XP"},
		},
		&cli.DurationFlag{
			Name:    "xp-flush-interval",
			Value:   xpbatcher.DefaultConfig().FlushInterval,
			EnvVars: []string{"YUNO_XP_FLUSH_INTERVAL"},
		},
		&cli.IntFlag{
			Name:    "max-auto-clean-channels",
			Value:   delaytracker.DefaultConfig().MaxChannels,
			EnvVars: []string{"YUNO_MAX_AUTO_CLEAN_CHANNELS"},
		},
		&cli.IntFlag{
			Name:    "max-delays-per-cycle",
			Value:   delaytracker.DefaultConfig().MaxDelaysPerCycle,
			EnvVars: []string{"YUNO_MAX_DELAYS_PER_CYCLE"},
		},
		&cli.DurationFlag{
			Name:    "settings-cache-ttl",
			Usage:   "how long cached guild settings live",
			Value:   cachestore.DefaultRedisCacheConfig().TTL,
			EnvVars: []string{"YUNO_SETTINGS_CACHE_TTL"},
		},
		&cli.IntFlag{
			Name:    "settings-cache-local-size",
			Usage:   "guild settings held in-process in front of redis (0 disables)",
			Value:   cachestore.DefaultRedisCacheConfig().LocalSize,
			EnvVars: []string{"YUNO_SETTINGS_CACHE_LOCAL_SIZE"},
		},
		&cli.DurationFlag{
			Name:    "cleanup-sweep-interval",
			Usage:   "how often to check auto-clean channels",
			Value:   time.Minute,
			EnvVars: []string{"YUNO_CLEANUP_SWEEP_INTERVAL"},
		},
	},
	Action: func(cctx *cli.Context) error {
		if err := applyConfigFile(cctx); err != nil {
			return err
		}
		if cctx.String("discord-token") == "" {
			return fmt.Errorf("a bot token is required (--discord-token, DISCORD_TOKEN, or discord_token in the config file)")
		}
		logger := configLogger(cctx)
		shutdownOTEL, err := setupOTEL("yuno")
		if err != nil {
			return err
		}
		defer shutdownOTEL()

		store, err := configStore(cctx, logger)
		if err != nil {
			return err
		}

		srv, err := NewServer(store, Config{
			Logger:          logger,
			Token:           cctx.String("discord-token"),
			GatewayHost:     cctx.String("gateway-host"),
			APIHost:         cctx.String("api-host"),
			SetsFileJSON:    cctx.String("sets-json-path"),
			MasterUsers:     cctx.StringSlice("master-users"),
			RedisURL:        cctx.String("redis-url"),
			SlackWebhookURL: cctx.String("slack-webhook-url"),
			Bind:            cctx.String("bind"),
			AdminPassword:   cctx.String("admin-password"),
			CleanupInterval: cctx.Duration("cleanup-sweep-interval"),
			Engine: func() engine.Config {
				c := engine.DefaultConfig()
				c.DefaultPrefix = cctx.String("default-prefix")
				c.DMReply = cctx.String("dm-reply")
				c.SpamMaxWarnings = cctx.Int("spam-max-warnings")
				return c
			}(),
			Spam: spamtracker.Config{
				MaxTrackedUsers:        cctx.Int("max-tracked-users"),
				HistoryDepth:           cctx.Int("max-message-history"),
				Interval:               cctx.Duration("spam-interval"),
				MaxMessagesPerInterval: cctx.Int("max-messages-per-interval"),
				DuplicateThreshold:     cctx.Int("duplicate-threshold"),
			},
			XP: xpbatcher.Config{
				MaxPending:    cctx.Int("max-pending-xp"),
				FlushInterval: cctx.Duration("xp-flush-interval"),
			},
			Delays: delaytracker.Config{
				MaxChannels:       cctx.Int("max-auto-clean-channels"),
				MaxDelaysPerCycle: cctx.Int("max-delays-per-cycle"),
			},
			Cache: func() cachestore.RedisCacheConfig {
				c := cachestore.DefaultRedisCacheConfig()
				c.TTL = cctx.Duration("settings-cache-ttl")
				c.LocalSize = cctx.Int("settings-cache-local-size")
				return c
			}(),
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run yuno daemon: %w", err)
		}
		return nil
	},
}
