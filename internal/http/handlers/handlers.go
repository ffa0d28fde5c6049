// Handler wiring.
//
// Handlers groups the HTTP endpoints of the messaging subsystem: the
// notification trigger, the provider webhook, and the operator API over
// conversations and channel configurations. It depends on abstract service
// interfaces so transport concerns stay separate from business logic.
package handlers

import (
	"context"

	"github.com/bryanriosb/beauty-business-sub002/internal/domain"
	"github.com/bryanriosb/beauty-business-sub002/internal/services"
)

// InboundRouter maps provider message events to tenants and persists them.
type InboundRouter interface {
	HandleInbound(ctx context.Context, in services.InboundMessage) (*domain.Message, error)
}

// StatusReconciler applies asynchronous delivery-status updates.
type StatusReconciler interface {
	ApplyStatus(ctx context.Context, u services.StatusUpdate) error
}

// ConversationReader serves the operator inbox views.
type ConversationReader interface {
	ListPage(ctx context.Context, accountID, businessID string, page, pageSize int) ([]domain.Conversation, int64, error)
	MessagesPage(ctx context.Context, accountID, conversationID string, page, pageSize int) ([]domain.Message, int64, error)
}

// ConfigAdmin manages channel configurations and answers the webhook
// subscription handshake.
type ConfigAdmin interface {
	Create(ctx context.Context, c *domain.MessagingConfig) error
	List(ctx context.Context, accountID string) ([]domain.MessagingConfig, error)
	SetEnabled(ctx context.Context, id, accountID string, enabled bool) error
	VerifyWebhookToken(ctx context.Context, token string) (bool, error)
}

// Handlers groups HTTP endpoints for the messaging subsystem.
type Handlers struct {
	dispatch Dispatcher
	inbound  InboundRouter
	status   StatusReconciler
	convs    ConversationReader
	configs  ConfigAdmin
}

// New constructs a Handlers instance bound to the given services.
func New(dispatch Dispatcher, inbound InboundRouter, status StatusReconciler, convs ConversationReader, configs ConfigAdmin) *Handlers {
	return &Handlers{
		dispatch: dispatch,
		inbound:  inbound,
		status:   status,
		convs:    convs,
		configs:  configs,
	}
}
