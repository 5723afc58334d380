package botstore

import (
	"context"
	"time"

	"github.com/yuno-bot/yuno/models"
)

func (s *DBStore) SaveDM(ctx context.Context, dm *models.DirectMessage) error {
	if dm.CreatedAt.IsZero() {
		dm.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(dm).Error
}

// Most recent DMs, newest first. With unreadOnly, read messages are skipped.
func (s *DBStore) ListDMs(ctx context.Context, limit int, unreadOnly bool) ([]models.DirectMessage, error) {
	var rows []models.DirectMessage
	q := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *DBStore) MarkDMRead(ctx context.Context, ids ...uint64) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.DirectMessage{}).Where("id IN ?", ids).Update("is_read", true).Error
}

func (s *DBStore) CountUnreadDMs(ctx context.Context) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.DirectMessage{}).Where("is_read = ?", false).Count(&n).Error
	return int(n), err
}
