// Package domain defines the core persistence models for the messaging
// subsystem. These types are used by GORM for database schema mapping and
// are shared across the repository and service layers.
package domain

import "time"

// Idempotency records the result of a previously processed notification
// trigger, keyed by (account_id, scope_ref, key). It enables safe retries of
// the notification endpoint by returning the originally persisted message
// without dispatching a duplicate customer-facing WhatsApp message.
//
// ScopeRef carries the business id (or the appointment/document reference for
// scopeless triggers) so the same key can be reused across scopes safely.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	AccountID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_account_scope_key,priority:1"`
	ScopeRef  string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_account_scope_key,priority:2"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_account_scope_key,priority:3"`
	MessageID string    `gorm:"type:TEXT NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
