// Package repo implements the data persistence layer for the messaging
// subsystem, backed by GORM. This file provides repository functions for the
// MessagingConfig model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Scope precedence (business → account →
// shared) lives in services.ConfigService, not here.
//
// Error semantics:
//   - When a config is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bryanriosb/beauty-business-sub002/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique-constraint violation on insert.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation detects a unique-constraint failure from the pure-Go
// SQLite driver, which often reports them as plain-text errors rather than
// gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// CreateConfig inserts a new MessagingConfig row. The unique index over
// (account_id, business_id) rejects a second config for the same scope pair,
// including a second shared row (empty scope ids); such violations are
// reported as ErrDuplicate.
func CreateConfig(ctx context.Context, db *gorm.DB, c *domain.MessagingConfig) error {
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

// FindConfigByScope returns the enabled config for the exact
// (accountID, businessID) pair, or ErrNotFound.
func FindConfigByScope(ctx context.Context, db *gorm.DB, accountID, businessID string) (*domain.MessagingConfig, error) {
	var c domain.MessagingConfig
	err := db.WithContext(ctx).
		Where("account_id = ? AND business_id = ? AND shared = ? AND enabled = ?", accountID, businessID, false, true).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindSharedConfig returns the single enabled shared/global config, or
// ErrNotFound when the platform fallback number is not provisioned.
func FindSharedConfig(ctx context.Context, db *gorm.DB) (*domain.MessagingConfig, error) {
	var c domain.MessagingConfig
	err := db.WithContext(ctx).
		Where("shared = ? AND enabled = ?", true, true).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindConfigByPhoneID returns the enabled config owning the provider channel
// id carried by inbound webhook events, or ErrNotFound.
func FindConfigByPhoneID(ctx context.Context, db *gorm.DB, phoneNumberID string) (*domain.MessagingConfig, error) {
	var c domain.MessagingConfig
	err := db.WithContext(ctx).
		Where("phone_number_id = ? AND enabled = ?", phoneNumberID, true).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// HasVerifyToken reports whether any enabled config carries the given
// webhook verification token. The provider's subscription handshake does not
// identify a channel, so any provisioned token may answer it.
func HasVerifyToken(ctx context.Context, db *gorm.DB, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.MessagingConfig{}).
		Where("verify_token = ? AND enabled = ?", token, true).
		Count(&n).Error
	return n > 0, err
}

// ListConfigs returns all configs for an account (business-scoped and
// account-scoped), ordered by creation time descending.
func ListConfigs(ctx context.Context, db *gorm.DB, accountID string) ([]domain.MessagingConfig, error) {
	var out []domain.MessagingConfig
	err := db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// SetConfigEnabled flips the enabled flag of a config owned by accountID.
// Returns ErrNotFound when no row matches.
func SetConfigEnabled(ctx context.Context, db *gorm.DB, id, accountID string, enabled bool) error {
	res := db.WithContext(ctx).
		Model(&domain.MessagingConfig{}).
		Where("id = ? AND account_id = ?", id, accountID).
		Update("enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
