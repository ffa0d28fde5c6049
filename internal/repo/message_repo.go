// Package repo implements the data persistence layer for the messaging
// subsystem, backed by GORM. This file provides repository functions for the
// Message model: one row per dispatch attempt or inbound receipt, mutated
// afterwards only by status reconciliation.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bryanriosb/beauty-business-sub002/internal/domain"
)

// CreateMessage inserts a new message row.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetMessage fetches a message by primary key.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindMessageByProviderID looks a message up by the provider-assigned id
// carried by delivery-status webhooks, or ErrNotFound.
func FindMessageByProviderID(ctx context.Context, db *gorm.DB, providerMessageID string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("provider_message_id = ?", providerMessageID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMessageFields applies a partial update to a message row. Used by
// status reconciliation; each field is last-write-wins.
func UpdateMessageFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountMessages returns the number of messages in a conversation. A raw COUNT
// is used so a missing table surfaces as an error rather than zero.
func CountMessages(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE conversation_id = ? AND deleted_at IS NULL", conversationID).
		Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice ordered (CreatedAt ASC, ID ASC).
// Persisted timestamps are the order of record; no cross-send ordering is
// guaranteed at dispatch time.
func ListMessagesPage(ctx context.Context, db *gorm.DB, conversationID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
