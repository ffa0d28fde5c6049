// Composer functions: one per domain event.
//
// Each function validates its parameter list against the catalog contract
// (arity drift against the provider-approved template is a hard error, never
// a silent truncation) and renders the plain-text fallback used when the
// template path is rejected and a conversation window is still open.
package notify

import (
	"fmt"
	"strings"
	"time"
)

// Event kinds, used as the entitlement feature keys and for tagged dispatch.
const (
	EventConfirmation = "appointment.confirmation"
	EventReminder     = "appointment.reminder"
	EventCancellation = "appointment.cancellation"
	EventReschedule   = "appointment.reschedule"
	EventCompletion   = "appointment.completion"
	EventReceipt      = "payment.receipt"
	EventSignature    = "document.signature_request"
)

// TemplateRequest is the ephemeral composer output handed to the dispatcher:
// the template identity, its ordered parameters, and an equivalent formatted
// fallback body for the text path. It is never persisted.
type TemplateRequest struct {
	Name     string
	Language string
	Params   []string
	Fallback string
}

// Appointment carries the fields shared by the appointment-lifecycle events.
type Appointment struct {
	CustomerName string
	BusinessName string
	ServiceName  string
	StartsAt     time.Time
}

// Reschedule pairs the previous and the new slot of a moved appointment.
type Reschedule struct {
	Appointment
	PreviousStartsAt time.Time
}

// Receipt describes a completed payment.
type Receipt struct {
	CustomerName string
	BusinessName string
	Amount       string
	Reference    string
}

// Signature describes a document pending the customer's signature.
type Signature struct {
	CustomerName string
	BusinessName string
	DocumentName string
	SignURL      string
}

// Event is the tagged-variant interface over the domain events. Each variant
// composes its own TemplateRequest; there is no shared inheritance hierarchy
// because every event owns a fixed, independent parameter contract.
type Event interface {
	// Kind returns the stable event identifier (also the entitlement key).
	Kind() string
	// Compose builds the template request for the given catalog and language.
	Compose(cat *Catalog, lang string) (TemplateRequest, error)
}

// ConfirmationEvent notifies a customer that their appointment is booked.
type ConfirmationEvent struct{ Appointment }

// ReminderEvent nudges a customer ahead of an upcoming appointment.
type ReminderEvent struct{ Appointment }

// CancellationEvent notifies a customer that their appointment was cancelled.
type CancellationEvent struct{ Appointment }

// RescheduleEvent notifies a customer that their appointment moved.
type RescheduleEvent struct{ Reschedule }

// CompletionEvent thanks a customer after a finished appointment.
type CompletionEvent struct{ Appointment }

// ReceiptEvent sends a payment receipt.
type ReceiptEvent struct{ Receipt }

// SignatureEvent asks a customer to sign a pending document.
type SignatureEvent struct{ Signature }

func (ConfirmationEvent) Kind() string { return EventConfirmation }
func (ReminderEvent) Kind() string     { return EventReminder }
func (CancellationEvent) Kind() string { return EventCancellation }
func (RescheduleEvent) Kind() string   { return EventReschedule }
func (CompletionEvent) Kind() string   { return EventCompletion }
func (ReceiptEvent) Kind() string      { return EventReceipt }
func (SignatureEvent) Kind() string    { return EventSignature }

// slotFormat renders appointment slots the way the approved templates show
// them (day/month/year, 24h clock).
const slotFormat = "02/01/2006 15:04"

// Compose implements Event.
func (e ConfirmationEvent) Compose(cat *Catalog, lang string) (TemplateRequest, error) {
	params := []string{e.CustomerName, e.ServiceName, e.BusinessName, e.StartsAt.Format(slotFormat)}
	fallback := fmt.Sprintf(
		"Hola %s, tu cita de %s en %s quedó confirmada para el %s. ¡Te esperamos!",
		e.CustomerName, e.ServiceName, e.BusinessName, e.StartsAt.Format(slotFormat),
	)
	return build(cat, TemplateConfirmation, lang, params, fallback)
}

// Compose implements Event.
func (e ReminderEvent) Compose(cat *Catalog, lang string) (TemplateRequest, error) {
	params := []string{e.CustomerName, e.ServiceName, e.BusinessName, e.StartsAt.Format(slotFormat)}
	fallback := fmt.Sprintf(
		"Hola %s, te recordamos tu cita de %s en %s el %s. Si no puedes asistir, avísanos con anticipación.",
		e.CustomerName, e.ServiceName, e.BusinessName, e.StartsAt.Format(slotFormat),
	)
	return build(cat, TemplateReminder, lang, params, fallback)
}

// Compose implements Event.
func (e CancellationEvent) Compose(cat *Catalog, lang string) (TemplateRequest, error) {
	params := []string{e.CustomerName, e.ServiceName, e.BusinessName}
	fallback := fmt.Sprintf(
		"Hola %s, tu cita de %s en %s fue cancelada. Escríbenos si deseas reagendar.",
		e.CustomerName, e.ServiceName, e.BusinessName,
	)
	return build(cat, TemplateCancellation, lang, params, fallback)
}

// Compose implements Event.
func (e RescheduleEvent) Compose(cat *Catalog, lang string) (TemplateRequest, error) {
	params := []string{
		e.CustomerName, e.ServiceName,
		e.PreviousStartsAt.Format(slotFormat), e.StartsAt.Format(slotFormat),
	}
	fallback := fmt.Sprintf(
		"Hola %s, tu cita de %s fue reprogramada del %s al %s. ¡Gracias por tu comprensión!",
		e.CustomerName, e.ServiceName,
		e.PreviousStartsAt.Format(slotFormat), e.StartsAt.Format(slotFormat),
	)
	return build(cat, TemplateReschedule, lang, params, fallback)
}

// Compose implements Event.
func (e CompletionEvent) Compose(cat *Catalog, lang string) (TemplateRequest, error) {
	params := []string{e.CustomerName, e.ServiceName, e.BusinessName}
	fallback := fmt.Sprintf(
		"Hola %s, gracias por tu visita. Tu servicio de %s en %s quedó registrado como completado.",
		e.CustomerName, e.ServiceName, e.BusinessName,
	)
	return build(cat, TemplateCompletion, lang, params, fallback)
}

// Compose implements Event.
func (e ReceiptEvent) Compose(cat *Catalog, lang string) (TemplateRequest, error) {
	params := []string{e.CustomerName, e.Amount, e.BusinessName, e.Reference}
	fallback := fmt.Sprintf(
		"Hola %s, recibimos tu pago por %s en %s. Referencia: %s.",
		e.CustomerName, e.Amount, e.BusinessName, e.Reference,
	)
	return build(cat, TemplateReceipt, lang, params, fallback)
}

// Compose implements Event.
func (e SignatureEvent) Compose(cat *Catalog, lang string) (TemplateRequest, error) {
	params := []string{e.CustomerName, e.DocumentName, e.BusinessName, e.SignURL}
	fallback := fmt.Sprintf(
		"Hola %s, tienes pendiente la firma del documento %s de %s. Puedes firmarlo aquí: %s",
		e.CustomerName, e.DocumentName, e.BusinessName, e.SignURL,
	)
	return build(cat, TemplateSignature, lang, params, fallback)
}

// build resolves the contract and validates the parameter list against it.
func build(cat *Catalog, name, lang string, params []string, fallback string) (TemplateRequest, error) {
	ct, err := cat.Lookup(name, lang)
	if err != nil {
		return TemplateRequest{}, err
	}
	if len(params) != ct.ParamCount {
		return TemplateRequest{}, fmt.Errorf(
			"notify: template %q (%s) expects %d parameters, got %d",
			ct.Name, ct.Language, ct.ParamCount, len(params),
		)
	}
	for i, p := range params {
		if strings.TrimSpace(p) == "" {
			return TemplateRequest{}, fmt.Errorf("notify: template %q parameter %d is empty", ct.Name, i+1)
		}
	}
	return TemplateRequest{
		Name:     ct.Name,
		Language: ct.Language,
		Params:   params,
		Fallback: fallback,
	}, nil
}
