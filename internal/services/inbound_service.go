// Package services – InboundService
//
// This file implements inbound routing: mapping a provider webhook message
// to the owning tenant and conversation, persisting it, and renewing the
// conversation window. Payload parsing stays in the HTTP layer; this service
// receives already-extracted fields.
//
// Routing rules:
//   - A tenant-specific channel routes into that tenant's existing
//     conversation. A never-before-seen customer on a dedicated channel
//     cannot be attributed to a business (an account may own several), so
//     the message is dropped rather than guessed.
//   - The shared channel routes by counterpart recency across all tenants.
//
// Terminal routing failures are absorbed at the boundary: logged, never
// retried, and nothing is persisted under a guessed tenant.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/bryanriosb/beauty-business-sub002/internal/domain"
	"github.com/bryanriosb/beauty-business-sub002/internal/repo"
)

// InboundMessage carries the fields the webhook layer extracts from one
// provider message event.
type InboundMessage struct {
	PhoneNumberID     string // provider channel id the message arrived on
	From              string // counterpart phone
	ProviderMessageID string
	Kind              string // text or media
	Content           string
	DisplayName       string
	MediaURL          string
}

// InboundService routes provider messages back to the owning tenant.
type InboundService struct {
	DB            *gorm.DB
	Configs       *ConfigService
	Conversations *ConversationService
}

// NewInboundService constructs an InboundService.
func NewInboundService(db *gorm.DB, cfgs *ConfigService, convs *ConversationService) *InboundService {
	return &InboundService{DB: db, Configs: cfgs, Conversations: convs}
}

// HandleInbound resolves the tenant for an incoming message, persists it as
// a delivered inbound row, and renews the conversation window.
//
// ErrRoutingAmbiguous and ErrConfigNotFound are terminal: the caller logs
// and acknowledges the webhook so the provider does not redeliver what a
// retry cannot route.
func (s *InboundService) HandleInbound(ctx context.Context, in InboundMessage) (*domain.Message, error) {
	tr := otel.Tracer("services/InboundService")
	ctx, span := tr.Start(ctx, "HandleInbound",
		trace.WithAttributes(attribute.String("channel.phone_number_id", in.PhoneNumberID)),
	)
	defer span.End()

	cfg, err := s.Configs.ResolveByPhoneID(ctx, in.PhoneNumberID)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			log.Warn().
				Str("phone_number_id", in.PhoneNumberID).
				Msg("inbound message on unknown channel dropped")
		}
		return nil, err
	}

	conv, err := s.route(ctx, cfg, in)
	if err != nil {
		return nil, err
	}

	conv, err = s.Conversations.Touch(ctx, conv, in.DisplayName)
	if err != nil {
		return nil, err
	}

	kind := in.Kind
	if kind != domain.KindMedia {
		kind = domain.KindText
	}
	now := time.Now().UTC()
	providerID := in.ProviderMessageID
	msg := &domain.Message{
		ConversationID:    conv.ID,
		AccountID:         conv.AccountID,
		BusinessID:        conv.BusinessID,
		Direction:         domain.DirectionInbound,
		Kind:              kind,
		Body:              in.Content,
		MediaURL:          in.MediaURL,
		ProviderMessageID: &providerID,
		Status:            domain.StatusDelivered,
		DeliveredAt:       &now,
	}
	if err := repo.CreateMessage(ctx, s.DB, msg); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// Webhook redelivery of a message we already hold; return the
			// stored row instead of erroring.
			return repo.FindMessageByProviderID(ctx, s.DB, in.ProviderMessageID)
		}
		return nil, err
	}
	return msg, nil
}

// route attributes the message to a conversation under the channel's
// ownership rules.
func (s *InboundService) route(ctx context.Context, cfg *domain.MessagingConfig, in InboundMessage) (*domain.Conversation, error) {
	// Business-pinned channel: the conversation must already exist for this
	// business and counterpart. A never-seen customer cannot be guessed.
	if !cfg.Shared && cfg.BusinessID != "" {
		conv, err := repo.FindConversation(ctx, s.DB, cfg.BusinessID, in.From)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Warn().
					Str("business_id", cfg.BusinessID).
					Msg("inbound message from unknown counterpart on dedicated channel dropped")
				return nil, ErrRoutingAmbiguous
			}
			return nil, err
		}
		return conv, nil
	}

	// Account-scoped channel: recency lookup restricted to that account's
	// businesses.
	if !cfg.Shared {
		conv, err := repo.FindLatestByCounterpartInAccount(ctx, s.DB, cfg.AccountID, in.From, time.Now().UTC())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Warn().
					Str("account_id", cfg.AccountID).
					Msg("inbound message without an active conversation on account channel dropped")
				return nil, ErrRoutingAmbiguous
			}
			return nil, err
		}
		return conv, nil
	}

	// Shared channel: most-recently-active conversation across all tenants.
	conv, err := s.Conversations.ResolveByCounterpartOnly(ctx, in.From)
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			log.Warn().Msg("inbound message on shared channel without an active conversation dropped")
			return nil, ErrRoutingAmbiguous
		}
		return nil, err
	}
	return conv, nil
}
