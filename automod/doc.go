// Chat moderation and engagement engine for the yuno bot.
//
// This package (`github.com/yuno-bot/yuno/automod`) re-exports the core types of the `engine` sub-package. The engine handles each incoming chat message: per-user spam detection (rate and duplicate content), XP awards batched in memory and written back periodically, prefix commands, and scheduled channel cleanup which moderators can postpone a limited number of times per cycle. The bounded in-memory state behind these features lives in the `slotstore`, `ringhist`, `spamtracker`, `xpbatcher` and `delaytracker` sub-packages.
//
// See `cmd/yuno` for the daemon built on this package, and `automod/commands` for the built-in commands.
package automod
