// Package repo implements the data persistence layer for the messaging
// subsystem, backed by GORM. This file provides repository functions for the
// Conversation model.
//
// The get-or-create race between concurrent inbound and outbound triggers for
// the same (business, counterpart) is resolved at the database level: inserts
// ride the ux_conv_counterpart unique index and callers retry a failed insert
// as a lookup. No in-process lock is involved, since webhook and API handlers
// may run in different processes.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bryanriosb/beauty-business-sub002/internal/domain"
)

// FindConversation returns the conversation row for (businessID, counterpart)
// regardless of its window state, or ErrNotFound. Callers decide whether the
// window is still open via Conversation.Open.
func FindConversation(ctx context.Context, db *gorm.DB, businessID, counterpart string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("business_id = ? AND counterpart = ?", businessID, counterpart).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConversation fetches a conversation by primary key, scoped to the owning
// account so operator API calls cannot read across tenants.
func GetConversation(ctx context.Context, db *gorm.DB, id, accountID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("id = ? AND account_id = ?", id, accountID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateConversation inserts a new conversation row. A concurrent insert for
// the same (business, counterpart) surfaces as ErrDuplicate; the caller is
// expected to retry as a lookup.
func CreateConversation(ctx context.Context, db *gorm.DB, c *domain.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// RenewConversation pushes the window forward: last_message_at and expires_at
// advance to the given instants, the row is reactivated, and the display name
// is refreshed when non-empty. Expiry never regresses; the SQL guard keeps a
// stale writer from pulling expires_at backwards under concurrency.
func RenewConversation(ctx context.Context, db *gorm.DB, id string, lastMessageAt, expiresAt time.Time, displayName string) error {
	updates := map[string]any{
		"last_message_at": lastMessageAt,
		"expires_at":      gorm.Expr("CASE WHEN expires_at > ? THEN expires_at ELSE ? END", expiresAt, expiresAt),
		"active":          true,
	}
	if displayName != "" {
		updates["display_name"] = displayName
	}
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindLatestByCounterpart returns the most-recently-active, non-expired
// conversation for a counterpart across all tenants, or ErrNotFound. Ties on
// last_message_at break deterministically by id.
//
// Used only for shared-channel inbound routing, where the tenant scope is not
// known a priori.
func FindLatestByCounterpart(ctx context.Context, db *gorm.DB, counterpart string, now time.Time) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("counterpart = ? AND active = ? AND expires_at > ?", counterpart, true, now).
		Order("last_message_at DESC, id ASC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindLatestByCounterpartInAccount is the account-scoped variant of
// FindLatestByCounterpart, used when an inbound channel is dedicated to one
// account but not pinned to a business.
func FindLatestByCounterpartInAccount(ctx context.Context, db *gorm.DB, accountID, counterpart string, now time.Time) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("account_id = ? AND counterpart = ? AND active = ? AND expires_at > ?", accountID, counterpart, true, now).
		Order("last_message_at DESC, id ASC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CountConversations returns the number of conversations for a business.
func CountConversations(ctx context.Context, db *gorm.DB, accountID, businessID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("account_id = ? AND business_id = ?", accountID, businessID).
		Count(&total).Error
	return total, err
}

// ListConversationsPage returns a page of conversations for a business,
// most recently active first.
func ListConversationsPage(ctx context.Context, db *gorm.DB, accountID, businessID string, offset, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Where("account_id = ? AND business_id = ?", accountID, businessID).
		Order("last_message_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkExpiredInactive flips the active flag on every conversation whose
// window has passed. The sweep is advisory; reads enforce expiry themselves.
// It returns the number of rows swept.
func MarkExpiredInactive(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("active = ? AND expires_at <= ?", true, now).
		Update("active", false)
	return res.RowsAffected, res.Error
}
