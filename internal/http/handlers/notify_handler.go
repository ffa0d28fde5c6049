// Notification trigger endpoint.
//
// POST /notifications dispatches a WhatsApp notification for one domain
// event (appointment lifecycle, payment receipt, signature request).
// Handlers are transport-thin: they validate input, build the composer
// event, call the dispatch service, and translate the error taxonomy into
// HTTP responses. Pre-flight failures (not configured, not entitled) come
// back structurally; provider failures return a generic message while the
// full provider error text stays on the persisted row for diagnostics.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bryanriosb/beauty-business-sub002/internal/domain"
	"github.com/bryanriosb/beauty-business-sub002/internal/http/middleware"
	"github.com/bryanriosb/beauty-business-sub002/internal/notify"
	"github.com/bryanriosb/beauty-business-sub002/internal/services"
)

// Dispatcher defines the outbound dispatch operations consumed by HTTP
// handlers. Implementations must honor the context for cancellation.
type Dispatcher interface {
	// Notify composes and sends the notification for a domain event.
	Notify(ctx context.Context, in services.NotifyInput, event notify.Event) (*domain.Message, error)
}

// NotifyRequest is the JSON payload for triggering a notification.
type NotifyRequest struct {
	// Event selects the notification type, e.g. "appointment.confirmation".
	Event      string `json:"event" binding:"required"`
	BusinessID string `json:"business_id" binding:"required"`

	// To is the customer phone in E.164 digits form.
	To           string `json:"to" binding:"required,min=7,max=20"`
	CustomerName string `json:"customer_name" binding:"required"`
	BusinessName string `json:"business_name" binding:"required"`

	// Appointment-lifecycle fields.
	ServiceName      string     `json:"service_name,omitempty"`
	StartsAt         *time.Time `json:"starts_at,omitempty"`
	PreviousStartsAt *time.Time `json:"previous_starts_at,omitempty"`

	// Receipt fields.
	Amount    string `json:"amount,omitempty"`
	Reference string `json:"reference,omitempty"`

	// Signature fields.
	DocumentName string `json:"document_name,omitempty"`
	SignURL      string `json:"sign_url,omitempty"`
}

// NotifyResponse returns the persisted attempt for the trigger.
type NotifyResponse struct {
	Message *domain.Message `json:"message"`
	// Replayed is true when an Idempotency-Key matched a previous trigger
	// and no new dispatch was made.
	Replayed bool `json:"replayed,omitempty"`
}

// buildEvent maps the request onto the tagged composer event for its kind.
func (r *NotifyRequest) buildEvent() (notify.Event, error) {
	appt := func() (notify.Appointment, error) {
		if r.ServiceName == "" || r.StartsAt == nil {
			return notify.Appointment{}, errors.New("service_name and starts_at are required for appointment events")
		}
		return notify.Appointment{
			CustomerName: r.CustomerName,
			BusinessName: r.BusinessName,
			ServiceName:  r.ServiceName,
			StartsAt:     *r.StartsAt,
		}, nil
	}

	switch r.Event {
	case notify.EventConfirmation:
		a, err := appt()
		if err != nil {
			return nil, err
		}
		return notify.ConfirmationEvent{Appointment: a}, nil
	case notify.EventReminder:
		a, err := appt()
		if err != nil {
			return nil, err
		}
		return notify.ReminderEvent{Appointment: a}, nil
	case notify.EventCancellation:
		a, err := appt()
		if err != nil {
			return nil, err
		}
		return notify.CancellationEvent{Appointment: a}, nil
	case notify.EventReschedule:
		a, err := appt()
		if err != nil {
			return nil, err
		}
		if r.PreviousStartsAt == nil {
			return nil, errors.New("previous_starts_at is required for reschedule events")
		}
		return notify.RescheduleEvent{Reschedule: notify.Reschedule{
			Appointment:      a,
			PreviousStartsAt: *r.PreviousStartsAt,
		}}, nil
	case notify.EventCompletion:
		a, err := appt()
		if err != nil {
			return nil, err
		}
		return notify.CompletionEvent{Appointment: a}, nil
	case notify.EventReceipt:
		if r.Amount == "" || r.Reference == "" {
			return nil, errors.New("amount and reference are required for receipt events")
		}
		return notify.ReceiptEvent{Receipt: notify.Receipt{
			CustomerName: r.CustomerName,
			BusinessName: r.BusinessName,
			Amount:       r.Amount,
			Reference:    r.Reference,
		}}, nil
	case notify.EventSignature:
		if r.DocumentName == "" || r.SignURL == "" {
			return nil, errors.New("document_name and sign_url are required for signature events")
		}
		return notify.SignatureEvent{Signature: notify.Signature{
			CustomerName: r.CustomerName,
			BusinessName: r.BusinessName,
			DocumentName: r.DocumentName,
			SignURL:      r.SignURL,
		}}, nil
	default:
		return nil, errors.New("unknown event type")
	}
}

// PostNotification handles POST /notifications.
//
// @Summary  Dispatch a customer notification over WhatsApp
// @Accept   json
// @Produce  json
// @Success  201 {object} NotifyResponse
// @Failure  400 {object} ErrorResponse
// @Failure  402 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Failure  502 {object} ErrorResponse
// @Router   /notifications [post]
func (h *Handlers) PostNotification(c *gin.Context) {
	accountID := accountID(c)
	if accountID == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing account identity")
		return
	}

	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	event, err := req.buildEvent()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	idemKey, _ := middleware.GetIdempotencyKey(c)
	in := services.NotifyInput{
		AccountID:      accountID,
		BusinessID:     req.BusinessID,
		To:             normalizePhone(req.To),
		DisplayName:    req.CustomerName,
		IdempotencyKey: idemKey,
	}

	msg, err := h.dispatch.Notify(c.Request.Context(), in, event)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, NotifyResponse{Message: msg})
	case errors.Is(err, services.ErrDuplicateTrigger):
		ok(c, http.StatusOK, NotifyResponse{Message: msg, Replayed: true})
	case errors.Is(err, services.ErrEntitlementDenied):
		fail(c, http.StatusPaymentRequired, ErrCodeNotEntitled, "notification type not included in your plan")
	case errors.Is(err, services.ErrConfigNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotConfigured, "messaging channel not configured")
	case errors.Is(err, services.ErrProviderRejected):
		// Generic message to the caller; provider error text lives on the row.
		fail(c, http.StatusBadGateway, ErrCodeDispatchFailed, "could not send notification")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not send notification")
	}
}

// accountID extracts the authenticated account id from Gin context (set by
// upstream auth middleware). If absent, it falls back to the "X-Account-ID"
// header (tests use it). Empty means unauthenticated.
func accountID(c *gin.Context) string {
	if v, ok := c.Get("accountID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-Account-ID")); h != "" {
			return h
		}
	}
	return ""
}

// normalizePhone strips formatting characters, keeping the leading digits
// form the provider expects.
func normalizePhone(p string) string {
	var b strings.Builder
	for _, r := range p {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
