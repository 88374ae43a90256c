package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-purchase-backend/internal/domain"
)

// GetChatLink returns the shared-chat message rendering purchaseID, or
// ErrNotFound if the purchase was never posted.
func GetChatLink(ctx context.Context, db *gorm.DB, purchaseID int64) (*domain.ChatLink, error) {
	var l domain.ChatLink
	if err := db.WithContext(ctx).First(&l, "purchase_id = ?", purchaseID).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// UpsertChatLink records (or replaces) the message that renders purchaseID.
func UpsertChatLink(ctx context.Context, db *gorm.DB, purchaseID, chatID int64, messageID int) error {
	l := &domain.ChatLink{
		PurchaseID: purchaseID,
		ChatID:     chatID,
		MessageID:  messageID,
		UpdatedAt:  time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "purchase_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"chat_id", "message_id", "updated_at"}),
		}).
		Create(l).Error
}
