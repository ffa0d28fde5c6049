// Package services – StatusService
//
// This file implements delivery-status reconciliation. The provider posts
// sent/delivered/read/failed events asynchronously and may duplicate or
// reorder them; reconciliation therefore applies last-write-wins per
// timestamp field and only upgrades the status field monotonically, an
// explicit availability-over-ordering simplification. A status event for an
// unknown provider message id is a no-op, never an error — unrelated and
// duplicate webhook events are expected traffic.
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

// StatusUpdate is one delivery event extracted from a provider webhook.
type StatusUpdate struct {
	ProviderMessageID string
	Status            string // sent, delivered, read, failed
	Timestamp         *time.Time
	ErrorDetail       string
}

// StatusService applies asynchronous delivery updates to sent messages.
type StatusService struct {
	DB *gorm.DB
}

// NewStatusService constructs a StatusService.
func NewStatusService(db *gorm.DB) *StatusService {
	return &StatusService{DB: db}
}

// ApplyStatus reconciles one delivery event. Unknown provider ids and
// unrecognized statuses are absorbed silently (logged at debug level) so
// webhook handlers can always acknowledge.
func (s *StatusService) ApplyStatus(ctx context.Context, u StatusUpdate) error {
	tr := otel.Tracer("services/StatusService")
	ctx, span := tr.Start(ctx, "ApplyStatus",
		trace.WithAttributes(attribute.String("status", u.Status)),
	)
	defer span.End()

	if domain.StatusRank(u.Status) == 0 && u.Status != domain.StatusQueued {
		log.Debug().Str("status", u.Status).Msg("ignoring unrecognized delivery status")
		return nil
	}

	msg, err := repo.FindMessageByProviderID(ctx, s.DB, u.ProviderMessageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Debug().Msg("status event for untracked message ignored")
			return nil
		}
		return err
	}

	ts := time.Now().UTC()
	if u.Timestamp != nil {
		ts = u.Timestamp.UTC()
	}

	fields := map[string]any{}
	switch u.Status {
	case domain.StatusSent:
		fields["sent_at"] = ts
	case domain.StatusDelivered:
		fields["delivered_at"] = ts
	case domain.StatusRead:
		fields["read_at"] = ts
	case domain.StatusFailed:
		fields["failed_at"] = ts
		if u.ErrorDetail != "" {
			fields["error_detail"] = u.ErrorDetail
		}
	}

	// Status only moves forward; an out-of-order "delivered" after "read"
	// still lands its timestamp but leaves the terminal status in place.
	if domain.StatusRank(u.Status) > domain.StatusRank(msg.Status) {
		fields["status"] = u.Status
	}

	if err := repo.UpdateMessageFields(ctx, s.DB, msg.ID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return nil
}
