// Package services – DispatchService
//
// This file implements the outbound message dispatcher. Every notification
// follows the same protocol:
//
//  1. entitlement check — a denial aborts before any network call and
//     persists nothing;
//  2. template attempt through the tenant's resolved channel;
//  3. on a definitive provider rejection, exactly one text fallback — which
//     only succeeds while the conversation window is open; the provider's
//     own denial is surfaced otherwise. Never a second fallback, never a
//     template retry.
//
// Every attempt after entitlement passes persists exactly one message row
// with its outcome before returning, so the audit trail shows the failed
// template attempt and the fallback as separate rows. Provider calls are
// single-attempt: a transport timeout is recorded as a failed attempt
// without a fallback, because the message may in fact have been sent.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/bryanriosb/beauty-business-sub002/internal/domain"
	"github.com/bryanriosb/beauty-business-sub002/internal/entitlement"
	"github.com/bryanriosb/beauty-business-sub002/internal/notify"
	"github.com/bryanriosb/beauty-business-sub002/internal/provider"
	"github.com/bryanriosb/beauty-business-sub002/internal/repo"
)

// dispatchTotal counts dispatch attempts by event kind and outcome. Outcomes:
// sent, fallback_sent, rejected, denied, not_configured, error.
var dispatchTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "messaging_dispatch_total",
		Help: "Outbound notification dispatch attempts by event and outcome.",
	},
	[]string{"event", "outcome"},
)

func init() {
	prometheus.MustRegister(dispatchTotal)
}

// DispatchService sends outbound WhatsApp messages with the template-first /
// text-fallback protocol and persists one audit row per attempt.
type DispatchService struct {
	DB            *gorm.DB
	Configs       *ConfigService
	Conversations *ConversationService
	Sender        provider.Sender
	Entitlements  entitlement.Checker
	Catalog       *notify.Catalog

	// Language is the template language used for composition; empty falls
	// back to notify.DefaultLanguage.
	Language string

	// IdempotencyTTL bounds how long a trigger key suppresses duplicates.
	IdempotencyTTL time.Duration
}

// NotifyInput identifies the recipient of a domain-event notification.
type NotifyInput struct {
	AccountID   string
	BusinessID  string
	To          string // counterpart phone, E.164 digits
	DisplayName string

	// IdempotencyKey, when set, makes retried triggers return the originally
	// persisted message instead of dispatching again.
	IdempotencyKey string
}

func (s *DispatchService) language() string {
	if s.Language != "" {
		return s.Language
	}
	return notify.DefaultLanguage
}

// Notify composes and dispatches the notification for a domain event.
//
// The returned message is the last persisted attempt (the fallback row when
// one was made). ErrEntitlementDenied and ErrConfigNotFound are returned
// before anything is persisted; ErrProviderRejected is returned alongside
// the failed row when the final attempt was rejected.
func (s *DispatchService) Notify(ctx context.Context, in NotifyInput, event notify.Event) (*domain.Message, error) {
	tr := otel.Tracer("services/DispatchService")
	ctx, span := tr.Start(ctx, "Notify",
		trace.WithAttributes(
			attribute.String("account.id", in.AccountID),
			attribute.String("business.id", in.BusinessID),
			attribute.String("event.kind", event.Kind()),
		),
	)
	defer span.End()

	// Idempotent replay: a consumed key returns the original row untouched.
	if in.IdempotencyKey != "" {
		scopeRef := in.BusinessID + ":" + event.Kind()
		if rec, err := repo.GetIdempotency(ctx, s.DB, in.AccountID, scopeRef, in.IdempotencyKey, time.Now().UTC()); err == nil {
			if m, err := repo.GetMessage(ctx, s.DB, rec.MessageID); err == nil {
				return m, ErrDuplicateTrigger
			}
		}
	}

	// 1) Entitlement: abort before any network call, persist nothing.
	if err := s.Entitlements.Check(ctx, in.AccountID, event.Kind()); err != nil {
		if errors.Is(err, entitlement.ErrDenied) {
			dispatchTotal.WithLabelValues(event.Kind(), "denied").Inc()
			return nil, ErrEntitlementDenied
		}
		return nil, err
	}

	// Channel resolution and composition are pre-flight: their failures are
	// returned structurally to the trigger without an audit row, since no
	// send was attempted against any channel.
	cfg, err := s.Configs.Resolve(ctx, in.AccountID, in.BusinessID)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			dispatchTotal.WithLabelValues(event.Kind(), "not_configured").Inc()
		}
		return nil, err
	}

	req, err := event.Compose(s.Catalog, s.language())
	if err != nil {
		return nil, err
	}

	// 2) Template attempt.
	msg, sendErr := s.sendTemplate(ctx, cfg, in, req)
	if sendErr == nil {
		dispatchTotal.WithLabelValues(event.Kind(), "sent").Inc()
		s.recordIdempotency(ctx, in, event.Kind(), msg.ID)
		return msg, nil
	}

	// 3) Fallback only on a definitive API rejection; a timeout may have
	// delivered the template, so it stays a recorded failure.
	var apiErr *provider.Error
	if !errors.As(sendErr, &apiErr) {
		dispatchTotal.WithLabelValues(event.Kind(), "error").Inc()
		return msg, sendErr
	}

	fb, fbErr := s.sendText(ctx, cfg, in, req.Fallback)
	if fbErr == nil {
		dispatchTotal.WithLabelValues(event.Kind(), "fallback_sent").Inc()
		s.recordIdempotency(ctx, in, event.Kind(), fb.ID)
		return fb, nil
	}
	dispatchTotal.WithLabelValues(event.Kind(), "rejected").Inc()
	if fb != nil {
		return fb, fbErr
	}
	return msg, fbErr
}

// SendTemplate dispatches a composed template request through the tenant's
// resolved channel, persisting one row for the attempt.
func (s *DispatchService) SendTemplate(ctx context.Context, in NotifyInput, req notify.TemplateRequest) (*domain.Message, error) {
	cfg, err := s.Configs.Resolve(ctx, in.AccountID, in.BusinessID)
	if err != nil {
		return nil, err
	}
	return s.sendTemplate(ctx, cfg, in, req)
}

// SendText dispatches a freeform text through the tenant's resolved channel,
// persisting one row for the attempt. It only succeeds while the recipient's
// conversation window is open.
func (s *DispatchService) SendText(ctx context.Context, in NotifyInput, body string) (*domain.Message, error) {
	cfg, err := s.Configs.Resolve(ctx, in.AccountID, in.BusinessID)
	if err != nil {
		return nil, err
	}
	return s.sendText(ctx, cfg, in, body)
}

// sendTemplate performs one template attempt against an already-resolved
// channel. Both attempt paths run the conversation get-or-create: sending is
// what opens or renews the window on our side.
func (s *DispatchService) sendTemplate(ctx context.Context, cfg *domain.MessagingConfig, in NotifyInput, req notify.TemplateRequest) (*domain.Message, error) {
	conv, err := s.Conversations.GetOrCreate(ctx, in.AccountID, in.BusinessID, in.To, in.DisplayName)
	if err != nil {
		return nil, err
	}

	creds := provider.Credentials{PhoneNumberID: cfg.PhoneNumberID, AccessToken: cfg.AccessToken}
	providerID, sendErr := s.Sender.SendTemplate(ctx, creds, in.To, req.Name, req.Language, req.Params)

	msg := s.newOutbound(conv, in, domain.KindTemplate, req.Fallback)
	msg.TemplateName = req.Name
	return s.persistAttempt(ctx, msg, providerID, sendErr)
}

// sendText performs one freeform text attempt against an already-resolved
// channel.
func (s *DispatchService) sendText(ctx context.Context, cfg *domain.MessagingConfig, in NotifyInput, body string) (*domain.Message, error) {
	conv, err := s.Conversations.GetOrCreate(ctx, in.AccountID, in.BusinessID, in.To, in.DisplayName)
	if err != nil {
		return nil, err
	}

	creds := provider.Credentials{PhoneNumberID: cfg.PhoneNumberID, AccessToken: cfg.AccessToken}
	providerID, sendErr := s.Sender.SendText(ctx, creds, in.To, body)

	msg := s.newOutbound(conv, in, domain.KindText, body)
	return s.persistAttempt(ctx, msg, providerID, sendErr)
}

// newOutbound builds the audit row skeleton for an outbound attempt.
func (s *DispatchService) newOutbound(conv *domain.Conversation, in NotifyInput, kind, body string) *domain.Message {
	return &domain.Message{
		ConversationID: conv.ID,
		AccountID:      in.AccountID,
		BusinessID:     in.BusinessID,
		Direction:      domain.DirectionOutbound,
		Kind:           kind,
		Body:           body,
		Status:         domain.StatusQueued,
	}
}

// persistAttempt stamps the outcome onto the row and writes it. The row is
// persisted for success and failure alike; only the error classification
// differs for the caller.
func (s *DispatchService) persistAttempt(ctx context.Context, msg *domain.Message, providerID string, sendErr error) (*domain.Message, error) {
	now := time.Now().UTC()
	if sendErr != nil {
		msg.Status = domain.StatusFailed
		msg.ErrorDetail = sendErr.Error()
		msg.FailedAt = &now
	} else {
		msg.Status = domain.StatusSent
		msg.ProviderMessageID = &providerID
		msg.SentAt = &now
	}

	if err := repo.CreateMessage(ctx, s.DB, msg); err != nil {
		return nil, err
	}
	if sendErr != nil {
		var apiErr *provider.Error
		if errors.As(sendErr, &apiErr) {
			// Both the sentinel and the provider error stay on the chain so
			// callers can branch with errors.Is and errors.As alike.
			return msg, fmt.Errorf("%w: %w", ErrProviderRejected, sendErr)
		}
		return msg, sendErr
	}
	return msg, nil
}

// recordIdempotency stores the trigger key after a successful dispatch.
// Best-effort: a failed write only costs duplicate protection, not the send.
func (s *DispatchService) recordIdempotency(ctx context.Context, in NotifyInput, kind, messageID string) {
	if in.IdempotencyKey == "" {
		return
	}
	ttl := s.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	scopeRef := in.BusinessID + ":" + kind
	_, _ = repo.CreateIdempotency(ctx, s.DB, in.AccountID, scopeRef, in.IdempotencyKey, messageID, 201, ttl)
}
