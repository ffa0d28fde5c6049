// Package services – ConversationService
//
// This file implements the conversation-window manager. WhatsApp permits
// freeform text only inside a rolling provider-mandated window measured from
// the most recent message in either direction; templates are required
// outside it. The service keeps a single row per (business, counterpart),
// renews it on every message, and resolves shared-channel inbound messages
// to the most-recently-active tenant.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// tenant identifiers, never counterpart phone numbers.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bryanriosb/beauty-business-sub002/internal/domain"
	"github.com/bryanriosb/beauty-business-sub002/internal/repo"
)

// DefaultWindow is the provider-mandated conversation window applied when no
// override is configured.
const DefaultWindow = 24 * time.Hour

// ConversationService creates, renews, and looks up conversation windows.
type ConversationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// Window is the rolling expiry duration; zero falls back to DefaultWindow.
	Window time.Duration

	// Now allows tests to pin the clock; nil uses time.Now.
	Now func() time.Time
}

// NewConversationService constructs a ConversationService with the provider
// default window.
func NewConversationService(db *gorm.DB) *ConversationService {
	return &ConversationService{DB: db, Window: DefaultWindow}
}

func (s *ConversationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *ConversationService) window() time.Duration {
	if s.Window > 0 {
		return s.Window
	}
	return DefaultWindow
}

// GetOrCreate returns the conversation for (businessID, counterpart),
// creating it lazily on the first message and renewing the window otherwise.
// The display name is refreshed when non-empty.
//
// Concurrency: a racing insert for the same pair loses against the unique
// index and is retried as a lookup, so N concurrent callers converge on one
// row and none of them surfaces a duplicate-key error. No in-process lock is
// used; handlers may run in different processes.
func (s *ConversationService) GetOrCreate(ctx context.Context, accountID, businessID, counterpart, displayName string) (*domain.Conversation, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "GetOrCreate",
		trace.WithAttributes(
			attribute.String("account.id", accountID),
			attribute.String("business.id", businessID),
		),
	)
	defer span.End()

	now := s.now()

	conv, err := repo.FindConversation(ctx, s.DB, businessID, counterpart)
	if err == nil {
		return s.renew(ctx, conv, now, displayName)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := &domain.Conversation{
		AccountID:     accountID,
		BusinessID:    businessID,
		Counterpart:   counterpart,
		DisplayName:   displayName,
		LastMessageAt: now,
		ExpiresAt:     now.Add(s.window()),
		Active:        true,
	}
	err = repo.CreateConversation(ctx, s.DB, fresh)
	if err == nil {
		return fresh, nil
	}
	if !errors.Is(err, repo.ErrDuplicate) {
		return nil, err
	}

	// Lost the insert race; the winner's row must exist now.
	conv, err = repo.FindConversation(ctx, s.DB, businessID, counterpart)
	if err != nil {
		return nil, err
	}
	return s.renew(ctx, conv, now, displayName)
}

// renew pushes the window forward and returns the refreshed row. Expiry only
// ever advances; the repo guard keeps concurrent renewals from regressing it.
func (s *ConversationService) renew(ctx context.Context, conv *domain.Conversation, now time.Time, displayName string) (*domain.Conversation, error) {
	expires := now.Add(s.window())
	if err := repo.RenewConversation(ctx, s.DB, conv.ID, now, expires, displayName); err != nil {
		return nil, err
	}
	conv.LastMessageAt = now
	if expires.After(conv.ExpiresAt) {
		conv.ExpiresAt = expires
	}
	conv.Active = true
	if displayName != "" {
		conv.DisplayName = displayName
	}
	return conv, nil
}

// ResolveByCounterpartOnly selects the conversation an inbound shared-channel
// message belongs to: the most-recently-active, non-expired conversation for
// that phone across all tenants, ties broken by most recent last-message
// timestamp then id. Absence is a routing failure (ErrConversationNotFound),
// not something a retry can fix.
//
// Known limitation: when two tenants simultaneously hold open windows with
// the same customer phone, recency is a heuristic and can mis-attribute the
// message. The tie-break is deliberate and tested rather than accidental.
func (s *ConversationService) ResolveByCounterpartOnly(ctx context.Context, counterpart string) (*domain.Conversation, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "ResolveByCounterpartOnly")
	defer span.End()

	conv, err := repo.FindLatestByCounterpart(ctx, s.DB, counterpart, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conv, nil
}

// Touch renews an existing conversation after an inbound message without the
// get-or-create lookup (the router already holds the row).
func (s *ConversationService) Touch(ctx context.Context, conv *domain.Conversation, displayName string) (*domain.Conversation, error) {
	return s.renew(ctx, conv, s.now(), displayName)
}

// Get fetches a conversation by id scoped to the owning account.
func (s *ConversationService) Get(ctx context.Context, id, accountID string) (*domain.Conversation, error) {
	conv, err := repo.GetConversation(ctx, s.DB, id, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conv, nil
}

// ListPage returns a page of a business's conversations, most recently
// active first, plus the total count.
func (s *ConversationService) ListPage(ctx context.Context, accountID, businessID string, page, pageSize int) ([]domain.Conversation, int64, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("account.id", accountID),
			attribute.String("business.id", businessID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountConversations(ctx, s.DB, accountID, businessID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Conversation{}, 0, nil
	}

	items, err := repo.ListConversationsPage(ctx, s.DB, accountID, businessID, offset, pageSize)
	return items, total, err
}

// MessagesPage returns a page of a conversation's messages in persisted
// order, after verifying the conversation belongs to the account.
func (s *ConversationService) MessagesPage(ctx context.Context, accountID, conversationID string, page, pageSize int) ([]domain.Message, int64, error) {
	if _, err := s.Get(ctx, conversationID, accountID); err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountMessages(ctx, s.DB, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, conversationID, offset, pageSize)
	return items, total, err
}

// SweepExpired marks expired conversations inactive. Advisory only: reads
// enforce expiry regardless, so a missed sweep never extends a window.
func (s *ConversationService) SweepExpired(ctx context.Context) (int64, error) {
	return repo.MarkExpiredInactive(ctx, s.DB, s.now())
}
