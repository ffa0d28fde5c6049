// Package entitlement answers whether an account may use a given
// notification feature. The dispatch layer consults it before every send;
// a denial aborts dispatch before any network call and before any message
// row is persisted.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrDenied wraps every denial so callers can branch with errors.Is while
// still logging the per-feature reason.
var ErrDenied = errors.New("entitlement denied")

// AccountFeature is a feature-flag row granting an account one notification
// feature key (e.g. "appointment.reminder").
type AccountFeature struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	AccountID string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_account_feature,priority:1"`
	Feature   string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_account_feature,priority:2"`
	Enabled   bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:""`
	UpdatedAt time.Time `gorm:""`
}

// TableName implements the GORM tabler interface.
func (AccountFeature) TableName() string { return "account_features" }

// Checker is the contract consumed by the dispatch layer.
type Checker interface {
	// Check returns nil when the account may use the feature, or an error
	// wrapping ErrDenied with the denial reason.
	Check(ctx context.Context, accountID, feature string) error
}

// DBChecker grants features from the account_features table.
type DBChecker struct {
	DB *gorm.DB
}

// Check implements Checker.
func (c *DBChecker) Check(ctx context.Context, accountID, feature string) error {
	var row AccountFeature
	err := c.DB.WithContext(ctx).
		Where("account_id = ? AND feature = ?", accountID, feature).
		First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: account %s lacks feature %s", ErrDenied, accountID, feature)
	case err != nil:
		return err
	case !row.Enabled:
		return fmt.Errorf("%w: feature %s disabled for account %s", ErrDenied, feature, accountID)
	}
	return nil
}

// AllowAll grants every feature. Used in development and tests.
type AllowAll struct{}

// Check implements Checker.
func (AllowAll) Check(context.Context, string, string) error { return nil }
