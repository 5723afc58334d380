// Relational persistence for the bot: guild settings, XP, moderation log, auto-clean configuration, bot-level bans and the DM inbox.
package botstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuno-bot/yuno/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MaxPrefixLen     = 5
	LeaderboardLimit = 10
)

var ErrPrefixTooLong = fmt.Errorf("prefix longer than %d characters", MaxPrefixLen)

type DBStore struct {
	db            *gorm.DB
	defaultPrefix string
}

func NewDBStore(db *gorm.DB, defaultPrefix string) *DBStore {
	return &DBStore{
		db:            db,
		defaultPrefix: defaultPrefix,
	}
}

func (s *DBStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.GuildSettings{},
		&models.UserXP{},
		&models.ModAction{},
		&models.AutoCleanConfig{},
		&models.BotBan{},
		&models.DirectMessage{},
	)
}

func (s *DBStore) DefaultSettings(guildID uint64) models.GuildSettings {
	return models.GuildSettings{
		GuildID:           guildID,
		Prefix:            s.defaultPrefix,
		SpamFilterEnabled: false,
		LevelingEnabled:   true,
	}
}

// Settings for the guild, or defaults if none are stored.
func (s *DBStore) GetGuildSettings(ctx context.Context, guildID uint64) (*models.GuildSettings, error) {
	var gs models.GuildSettings
	err := s.db.WithContext(ctx).Where("guild_id = ?", guildID).Take(&gs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		d := s.DefaultSettings(guildID)
		return &d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading guild settings: %w", err)
	}
	return &gs, nil
}

func (s *DBStore) SetGuildSettings(ctx context.Context, gs *models.GuildSettings) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}},
		UpdateAll: true,
	}).Create(gs).Error
	if err != nil {
		return fmt.Errorf("saving guild settings: %w", err)
	}
	return nil
}

func (s *DBStore) GetPrefix(ctx context.Context, guildID uint64) (string, error) {
	gs, err := s.GetGuildSettings(ctx, guildID)
	if err != nil {
		return "", err
	}
	return gs.Prefix, nil
}

func (s *DBStore) SetPrefix(ctx context.Context, guildID uint64, prefix string) error {
	if len(prefix) == 0 || len(prefix) > MaxPrefixLen {
		return ErrPrefixTooLong
	}
	gs, err := s.GetGuildSettings(ctx, guildID)
	if err != nil {
		return err
	}
	gs.Prefix = prefix
	return s.SetGuildSettings(ctx, gs)
}

// Total XP and level for the user; zero values if the user has none.
func (s *DBStore) ReadXP(ctx context.Context, userID, guildID uint64) (int64, int, error) {
	var row models.UserXP
	err := s.db.WithContext(ctx).Where("user_id = ? AND guild_id = ?", userID, guildID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return row.XP, row.Level, nil
}

// Adds to the user's XP, creating the row if needed.
func (s *DBStore) AddXP(ctx context.Context, userID, guildID uint64, amount int64) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "guild_id"}},
		DoUpdates: clause.Assignments(map[string]any{"xp": gorm.Expr("user_xp.xp + ?", amount)}),
	}).Create(&models.UserXP{
		UserID:  userID,
		GuildID: guildID,
		XP:      amount,
	}).Error
}

func (s *DBStore) SetLevel(ctx context.Context, userID, guildID uint64, level int) error {
	return s.db.WithContext(ctx).Model(&models.UserXP{}).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		Update("level", level).Error
}

// Top users of the guild by XP.
func (s *DBStore) Leaderboard(ctx context.Context, guildID uint64, limit int) ([]models.UserXP, error) {
	if limit <= 0 {
		limit = LeaderboardLimit
	}
	var rows []models.UserXP
	err := s.db.WithContext(ctx).Where("guild_id = ?", guildID).Order("xp DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading leaderboard: %w", err)
	}
	return rows, nil
}
