// Automod component for named counters, such as per-user spam warnings.
//
// Includes an interface and implementations using redis and in-process memory. Counters are addressed by a counter name and a value (for example "spam-warnings" and a guild/user pair).
package countstore

import (
	"context"
	"fmt"
)

const (
	SpamWarnings = "spam-warnings"
)

type CountStore interface {
	GetCount(ctx context.Context, name, val string) (int, error)
	// Increments the counter and returns the new count.
	Increment(ctx context.Context, name, val string) (int, error)
	Reset(ctx context.Context, name, val string) error
}

// Counter value for a user within a guild.
func GuildUser(guildID, userID uint64) string {
	return fmt.Sprintf("%d/%d", guildID, userID)
}

func counterKey(name, val string) string {
	return name + "/" + val
}
