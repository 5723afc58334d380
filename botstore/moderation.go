package botstore

import (
	"context"
	"fmt"
	"time"

	"github.com/yuno-bot/yuno/models"
)

func (s *DBStore) LogModAction(ctx context.Context, act *models.ModAction) error {
	if act.CreatedAt.IsZero() {
		act.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(act).Error; err != nil {
		return fmt.Errorf("logging mod action: %w", err)
	}
	return nil
}

// Most recent actions in the guild, newest first.
func (s *DBStore) ListModActions(ctx context.Context, guildID uint64, limit int) ([]models.ModAction, error) {
	var rows []models.ModAction
	err := s.db.WithContext(ctx).Where("guild_id = ?", guildID).Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *DBStore) CountModActions(ctx context.Context, guildID uint64) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ModAction{}).Where("guild_id = ?", guildID).Count(&n).Error
	return int(n), err
}

// Action counts for one moderator in the guild.
func (s *DBStore) ModStats(ctx context.Context, guildID, moderatorID uint64) (*models.ModStats, error) {
	var rows []struct {
		ActionType string
		N          int
	}
	err := s.db.WithContext(ctx).Model(&models.ModAction{}).
		Select("action_type, count(*) as n").
		Where("guild_id = ? AND moderator_id = ?", guildID, moderatorID).
		Group("action_type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading mod stats: %w", err)
	}
	var st models.ModStats
	for _, r := range rows {
		switch r.ActionType {
		case models.ActionBan:
			st.Bans = r.N
		case models.ActionKick:
			st.Kicks = r.N
		case models.ActionTimeout, models.ActionSpamTimeout:
			st.Timeouts += r.N
		case models.ActionUnban:
			st.Unbans = r.N
		}
		st.Total += r.N
	}
	return &st, nil
}

func (s *DBStore) IsBotBanned(ctx context.Context, userID uint64) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.BotBan{}).Where("user_id = ?", userID).Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Adds or replaces a bot-level ban.
func (s *DBStore) BotBan(ctx context.Context, ban *models.BotBan) error {
	if ban.CreatedAt.IsZero() {
		ban.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Save(ban).Error
}

// Returns false if the user was not banned.
func (s *DBStore) BotUnban(ctx context.Context, userID uint64) (bool, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.BotBan{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *DBStore) ListBotBans(ctx context.Context) ([]models.BotBan, error) {
	var rows []models.BotBan
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
