// Package domain defines the persistence models for the WhatsApp messaging
// integration: channel configurations, conversation windows, and message
// history. These types are mapped with GORM and form the core data layer
// of the messaging subsystem.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Message direction values.
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// Message kind values.
const (
	KindTemplate = "template"
	KindText     = "text"
	KindMedia    = "media"
)

// Message status values. Outbound messages move queued→sent→delivered→read,
// or terminate in failed. Inbound messages are recorded as delivered.
const (
	StatusQueued    = "queued"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// MessagingConfig holds the WhatsApp Cloud API credentials for one tenant
// scope. Three scopes exist, matched in order of specificity:
//
//   - business-scoped: AccountID and BusinessID set
//   - account-scoped:  AccountID set, BusinessID empty
//   - shared:          both empty and Shared=true (the platform fallback number)
//
// The unique index over (account_id, business_id) allows a single row per
// scope pair; the shared row stores empty scope ids, so "at most one shared
// config" follows from the same constraint.
type MessagingConfig struct {
	ID         string `json:"id"          gorm:"type:char(36);primaryKey"`
	AccountID  string `json:"account_id"  gorm:"type:varchar(64);not null;default:'';uniqueIndex:ux_config_scope,priority:1"`
	BusinessID string `json:"business_id" gorm:"type:varchar(64);not null;default:'';uniqueIndex:ux_config_scope,priority:2"`

	// Shared marks the single platform-wide fallback configuration.
	Shared bool `json:"shared" gorm:"not null;default:false;index"`

	// PhoneNumberID is the provider-side channel identifier; inbound webhook
	// events carry it and routing resolves the owning tenant through it.
	PhoneNumberID string `json:"phone_number_id" gorm:"type:varchar(64);not null;index"`
	AccessToken   string `json:"-"               gorm:"type:text;not null"`
	VerifyToken   string `json:"-"               gorm:"type:varchar(128);not null;default:''"`
	DisplayPhone  string `json:"display_phone"   gorm:"type:varchar(32);not null;default:''"`
	Enabled       bool   `json:"enabled"         gorm:"not null;default:true"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for MessagingConfig.
func (MessagingConfig) TableName() string { return "messaging_configs" }

// Conversation tracks the provider-enforced messaging window with one
// counterpart (customer phone) for one business. A single row exists per
// (business_id, counterpart); it is renewed in place on every message in
// either direction, so the "at most one active, non-expired conversation
// per pair" invariant holds structurally.
//
// Expiry is enforced on read: a row whose ExpiresAt has passed is treated
// as inactive even before any sweep flips the Active flag.
type Conversation struct {
	ID         string `json:"id"          gorm:"type:char(36);primaryKey"`
	AccountID  string `json:"account_id"  gorm:"type:varchar(64);not null;index"`
	BusinessID string `json:"business_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_conv_counterpart,priority:1"`

	// Counterpart is the customer phone number in E.164 digits form.
	Counterpart string `json:"counterpart"  gorm:"type:varchar(32);not null;uniqueIndex:ux_conv_counterpart,priority:2;index:idx_conv_phone"`
	DisplayName string `json:"display_name" gorm:"type:varchar(128);not null;default:''"`

	LastMessageAt time.Time `json:"last_message_at" gorm:"not null;index"`
	ExpiresAt     time.Time `json:"expires_at"      gorm:"not null"`
	Active        bool      `json:"active"          gorm:"not null;default:true"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Open reports whether the conversation window is still usable at the given
// instant. The Active flag is advisory (a sweep may lag); the expiry check
// is authoritative.
func (c *Conversation) Open(now time.Time) bool {
	return c.Active && now.Before(c.ExpiresAt)
}

// Message is the audit row for a single dispatch attempt or inbound receipt.
// Exactly one row is created per outbound attempt (template or text, success
// or provider rejection) and per accepted inbound message. After creation a
// row is mutated only by status reconciliation.
//
// ProviderMessageID is assigned by WhatsApp on acceptance and is unique when
// present (NULLs are exempt from the unique index).
type Message struct {
	ID             string `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string `json:"conversation_id" gorm:"type:char(36);not null;index:idx_msg_conv,priority:1"`
	AccountID      string `json:"account_id"      gorm:"type:varchar(64);not null;index"`
	BusinessID     string `json:"business_id"     gorm:"type:varchar(64);not null;index"`

	Direction string `json:"direction" gorm:"type:varchar(16);not null;check:direction IN ('outbound','inbound')"`
	Kind      string `json:"kind"      gorm:"type:varchar(16);not null;check:kind IN ('template','text','media')"`
	Body      string `json:"body"      gorm:"type:text;not null"`

	// TemplateName is set only for outbound template attempts.
	TemplateName string `json:"template_name,omitempty" gorm:"type:varchar(128);not null;default:''"`
	MediaURL     string `json:"media_url,omitempty"     gorm:"type:text;not null;default:''"`

	ProviderMessageID *string `json:"provider_message_id,omitempty" gorm:"type:varchar(128);uniqueIndex:ux_msg_provider_id"`

	Status      string `json:"status"                 gorm:"type:varchar(16);not null;index"`
	ErrorDetail string `json:"error_detail,omitempty" gorm:"type:text;not null;default:''"`

	SentAt      *time.Time `json:"sent_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`

	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_msg_conv,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Conversation is the owning window. Messages are cascade-deleted if
	// their conversation is removed.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// statusRank orders delivery statuses so reconciliation can upgrade the
// status field monotonically while timestamps stay last-write-wins.
//
// failed ranks above read on purpose: a late failure event from the provider
// is terminal and flips even a message already reported as read. read_at is
// kept either way, so the read receipt is not lost.
var statusRank = map[string]int{
	StatusQueued:    0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
	StatusFailed:    4,
}

// StatusRank returns the ordering rank of a delivery status; unknown
// statuses rank lowest.
func StatusRank(s string) int { return statusRank[s] }
