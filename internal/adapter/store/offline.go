package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// OfflineQueue implements service.OfflineQueue on the same database.
type OfflineQueue struct {
	db *gorm.DB
}

func NewOfflineQueue(db *gorm.DB) *OfflineQueue {
	return &OfflineQueue{db: db}
}

func (q *OfflineQueue) Enqueue(ctx context.Context, userID int64, payload []byte) error {
	err := q.db.WithContext(ctx).Create(&offlineRow{UserID: userID, Payload: payload}).Error
	if err != nil {
		return fmt.Errorf("enqueue offline message for %d: %w", userID, err)
	}
	return nil
}

// DrainAll reads and deletes every queued payload for userID in one
// transaction, oldest first, so the messages exist in exactly one place
// afterwards.
func (q *OfflineQueue) DrainAll(ctx context.Context, userID int64) ([][]byte, error) {
	var payloads [][]byte
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []offlineRow
		if err := tx.Where("user_id = ?", userID).Order("id ASC").Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Where("user_id = ?", userID).Delete(&offlineRow{}).Error; err != nil {
			return err
		}
		for _, r := range rows {
			payloads = append(payloads, r.Payload)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("drain offline messages for %d: %w", userID, err)
	}
	return payloads, nil
}
