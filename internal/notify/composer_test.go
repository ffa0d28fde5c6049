package notify

import (
	"strings"
	"testing"
	"time"
)

var testSlot = time.Date(2026, 4, 10, 15, 30, 0, 0, time.UTC)

func testAppointment() Appointment {
	return Appointment{
		CustomerName: "Laura",
		BusinessName: "Estudio Bella",
		ServiceName:  "Manicure",
		StartsAt:     testSlot,
	}
}

func TestCompose_AllEvents(t *testing.T) {
	cat := DefaultCatalog()

	cases := []struct {
		event      Event
		wantName   string
		wantParams int
	}{
		{ConfirmationEvent{testAppointment()}, TemplateConfirmation, 4},
		{ReminderEvent{testAppointment()}, TemplateReminder, 4},
		{CancellationEvent{testAppointment()}, TemplateCancellation, 3},
		{RescheduleEvent{Reschedule{Appointment: testAppointment(), PreviousStartsAt: testSlot.Add(-48 * time.Hour)}}, TemplateReschedule, 4},
		{CompletionEvent{testAppointment()}, TemplateCompletion, 3},
		{ReceiptEvent{Receipt{CustomerName: "Laura", BusinessName: "Estudio Bella", Amount: "$85.000", Reference: "PAY-991"}}, TemplateReceipt, 4},
		{SignatureEvent{Signature{CustomerName: "Laura", BusinessName: "Estudio Bella", DocumentName: "Consentimiento", SignURL: "https://sign.example/d/1"}}, TemplateSignature, 4},
	}

	for _, c := range cases {
		t.Run(c.event.Kind(), func(t *testing.T) {
			req, err := c.event.Compose(cat, "es")
			if err != nil {
				t.Fatalf("Compose: %v", err)
			}
			if req.Name != c.wantName {
				t.Fatalf("template = %q, want %q", req.Name, c.wantName)
			}
			if len(req.Params) != c.wantParams {
				t.Fatalf("params = %d, want %d", len(req.Params), c.wantParams)
			}
			if req.Language != "es" {
				t.Fatalf("language = %q", req.Language)
			}
			if req.Fallback == "" || !strings.Contains(req.Fallback, "Laura") {
				t.Fatalf("fallback body incomplete: %q", req.Fallback)
			}
		})
	}
}

func TestCompose_SlotFormatting(t *testing.T) {
	req, err := ConfirmationEvent{testAppointment()}.Compose(DefaultCatalog(), "es")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	const want = "10/04/2026 15:30"
	if req.Params[3] != want {
		t.Fatalf("slot param = %q, want %q", req.Params[3], want)
	}
	if !strings.Contains(req.Fallback, want) {
		t.Fatalf("fallback missing slot: %q", req.Fallback)
	}
}

func TestCompose_EmptyParamRejected(t *testing.T) {
	appt := testAppointment()
	appt.ServiceName = "  "
	_, err := ConfirmationEvent{appt}.Compose(DefaultCatalog(), "es")
	if err == nil {
		t.Fatalf("blank parameter must be rejected")
	}
	if !strings.Contains(err.Error(), "parameter 2 is empty") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompose_ArityDriftIsHardError(t *testing.T) {
	// a catalog whose approved contract disagrees with the composer's
	// parameter list must fail loudly, never truncate
	cat := NewCatalog(Contract{Name: TemplateConfirmation, Language: "es", ParamCount: 3})
	_, err := ConfirmationEvent{testAppointment()}.Compose(cat, "es")
	if err == nil {
		t.Fatalf("arity mismatch must be rejected")
	}
	if !strings.Contains(err.Error(), "expects 3 parameters, got 4") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompose_UnprovisionedLocaleStillSends(t *testing.T) {
	req, err := ReminderEvent{testAppointment()}.Compose(DefaultCatalog(), "en-US")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if req.Language != "es" {
		t.Fatalf("expected default-language contract, got %q", req.Language)
	}
}
