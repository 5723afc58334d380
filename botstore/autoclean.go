package botstore

import (
	"context"
	"errors"
	"time"

	"github.com/yuno-bot/yuno/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Returns nil if the channel has no auto-clean configuration.
func (s *DBStore) GetAutoCleanConfig(ctx context.Context, guildID, channelID uint64) (*models.AutoCleanConfig, error) {
	var cfg models.AutoCleanConfig
	err := s.db.WithContext(ctx).Where("guild_id = ? AND channel_id = ?", guildID, channelID).Take(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *DBStore) SetAutoCleanConfig(ctx context.Context, cfg *models.AutoCleanConfig) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}, {Name: "channel_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"interval_minutes", "message_count", "enabled"}),
	}).Create(cfg).Error
}

// Returns false if there was nothing to remove.
func (s *DBStore) RemoveAutoCleanConfig(ctx context.Context, guildID, channelID uint64) (bool, error) {
	res := s.db.WithContext(ctx).Where("guild_id = ? AND channel_id = ?", guildID, channelID).Delete(&models.AutoCleanConfig{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *DBStore) ListEnabledCleanupChannels(ctx context.Context) ([]models.AutoCleanConfig, error) {
	var rows []models.AutoCleanConfig
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("guild_id, channel_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *DBStore) MarkCleaned(ctx context.Context, guildID, channelID uint64, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.AutoCleanConfig{}).
		Where("guild_id = ? AND channel_id = ?", guildID, channelID).
		Update("last_cleaned_at", at).Error
}
