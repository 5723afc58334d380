package commands

import (
	"github.com/yuno-bot/yuno/automod"
)

// The full built-in command set.
func DefaultCommands() (*automod.CommandSet, error) {
	return automod.NewCommandSet(
		// leveling
		&automod.Command{Name: "xp", Aliases: []string{"level", "rank"}, Func: XPCommand},
		&automod.Command{Name: "leaderboard", Aliases: []string{"lb", "top"}, Func: LeaderboardCommand},

		// utility
		&automod.Command{Name: "ping", Func: PingCommand},
		&automod.Command{Name: "help", Func: HelpCommand},
		&automod.Command{Name: "source", Func: SourceCommand},
		&automod.Command{Name: "prefix", Func: PrefixCommand},
		&automod.Command{Name: "delay", Moderator: true, Func: DelayCommand},
		&automod.Command{Name: "auto-clean", Aliases: []string{"autoclean"}, Moderator: true, Func: AutoCleanCommand},

		// fun
		&automod.Command{Name: "8ball", Func: EightBallCommand},

		// moderation
		&automod.Command{Name: "ban", Moderator: true, Func: BanCommand},
		&automod.Command{Name: "kick", Moderator: true, Func: KickCommand},
		&automod.Command{Name: "unban", Moderator: true, Func: UnbanCommand},
		&automod.Command{Name: "timeout", Moderator: true, Func: TimeoutCommand},
		&automod.Command{Name: "clean", Moderator: true, Func: CleanCommand},
		&automod.Command{Name: "mod-stats", Aliases: []string{"modstats"}, Moderator: true, Func: ModStatsCommand},
	)
}
