package models

import (
	"time"
)

// Per-guild configuration. Guilds without a row use defaults.
type GuildSettings struct {
	GuildID           uint64 `gorm:"primaryKey;autoIncrement:false"`
	Prefix            string `gorm:"not null"`
	SpamFilterEnabled bool   `gorm:"not null"`
	LevelingEnabled   bool   `gorm:"not null"`
	UpdatedAt         time.Time
}

type UserXP struct {
	UserID  uint64 `gorm:"primaryKey;autoIncrement:false"`
	GuildID uint64 `gorm:"primaryKey;autoIncrement:false;index"`
	XP      int64  `gorm:"not null;default:0"`
	Level   int    `gorm:"not null;default:0"`
}

func (UserXP) TableName() string {
	return "user_xp"
}

// Defaults for new auto-clean configurations.
const (
	DefaultCleanIntervalMinutes = 60
	DefaultCleanMessageCount    = 100
)

// Scheduled purge of a channel's most recent messages.
type AutoCleanConfig struct {
	GuildID         uint64 `gorm:"primaryKey;autoIncrement:false"`
	ChannelID       uint64 `gorm:"primaryKey;autoIncrement:false"`
	IntervalMinutes int    `gorm:"not null"`
	MessageCount    int    `gorm:"not null"`
	Enabled         bool   `gorm:"not null"`
	LastCleanedAt   *time.Time
}

// A user the bot ignores in every guild and in DMs.
type BotBan struct {
	UserID    uint64 `gorm:"primaryKey;autoIncrement:false"`
	BannedBy  string
	Reason    string
	CreatedAt time.Time `gorm:"not null"`
}

// Inbox entry for a direct message sent to the bot.
type DirectMessage struct {
	ID        uint64 `gorm:"primaryKey"`
	UserID    uint64 `gorm:"not null"`
	Username  string
	Content   string
	Read      bool      `gorm:"column:is_read;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}
