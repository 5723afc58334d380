package models

import (
	"time"
)

const (
	ActionBan         = "ban"
	ActionKick        = "kick"
	ActionUnban       = "unban"
	ActionTimeout     = "timeout"
	ActionSpamTimeout = "spam-timeout"
	ActionClean       = "clean"
)

type ModAction struct {
	ID          uint64    `gorm:"primaryKey"`
	GuildID     uint64    `gorm:"not null;index"`
	ModeratorID uint64    `gorm:"not null;index"`
	TargetID    uint64    `gorm:"not null"`
	ActionType  string    `gorm:"not null"`
	Reason      string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

// Per-moderator action counts within a guild.
type ModStats struct {
	Bans     int
	Kicks    int
	Timeouts int
	Unbans   int
	Total    int
}
