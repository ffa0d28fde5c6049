// Provider webhook endpoints.
//
// This file owns the two WhatsApp Cloud API webhook entry points:
//
//   - GET  /webhooks/whatsapp  — subscription verification handshake
//   - POST /webhooks/whatsapp  — message and delivery-status events
//
// The POST handler parses the provider's change-notification envelope into
// the subsystem's two operations (inbound routing and status reconciliation)
// and always acknowledges with 200: terminal routing failures are absorbed
// here — logged and dropped — because redelivery cannot resolve ambiguity,
// and a non-2xx would only make the provider retry.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bryanriosb/beauty-business-sub002/internal/http/middleware"
	"github.com/bryanriosb/beauty-business-sub002/internal/services"
)

// webhookEnvelope mirrors the Cloud API change-notification payload down to
// the fields this subsystem consumes.
type webhookEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					ID   string `json:"id"`
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
					Image struct {
						Link    string `json:"link"`
						Caption string `json:"caption"`
					} `json:"image"`
				} `json:"messages"`
				Statuses []struct {
					ID        string `json:"id"`
					Status    string `json:"status"`
					Timestamp string `json:"timestamp"`
					Errors    []struct {
						Title   string `json:"title"`
						Message string `json:"message"`
					} `json:"errors"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// VerifyWebhook handles the GET subscription handshake. The challenge is
// echoed back only when the offered token matches a provisioned channel's
// verification token.
func (h *Handlers) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || challenge == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid verification request")
		return
	}
	okToken, err := h.configs.VerifyWebhookToken(c.Request.Context(), token)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "verification unavailable")
		return
	}
	if !okToken {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "verification token mismatch")
		return
	}
	c.String(http.StatusOK, challenge)
}

// ReceiveWebhook handles the POST event stream.
func (h *Handlers) ReceiveWebhook(c *gin.Context) {
	var env webhookEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		// Malformed payloads are acknowledged too; there is nothing to retry.
		middleware.LoggerFrom(c).Warn().Err(err).Msg("unparseable webhook payload")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	lg := middleware.LoggerFrom(c)
	ctx := c.Request.Context()

	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			v := change.Value

			names := make(map[string]string, len(v.Contacts))
			for _, contact := range v.Contacts {
				names[contact.WaID] = contact.Profile.Name
			}

			for _, m := range v.Messages {
				in := services.InboundMessage{
					PhoneNumberID:     v.Metadata.PhoneNumberID,
					From:              m.From,
					ProviderMessageID: m.ID,
					Kind:              m.Type,
					Content:           m.Text.Body,
					DisplayName:       names[m.From],
				}
				if m.Type == "image" {
					in.Kind = "media"
					in.Content = m.Image.Caption
					in.MediaURL = m.Image.Link
				}
				if _, err := h.inbound.HandleInbound(ctx, in); err != nil {
					// Terminal failures were already logged by the service;
					// anything else is worth a line but never a retry signal.
					lg.Warn().Err(err).Msg("inbound message not routed")
				}
			}

			for _, st := range v.Statuses {
				u := services.StatusUpdate{
					ProviderMessageID: st.ID,
					Status:            st.Status,
				}
				if ts := parseUnix(st.Timestamp); ts != nil {
					u.Timestamp = ts
				}
				if len(st.Errors) > 0 {
					u.ErrorDetail = st.Errors[0].Title + ": " + st.Errors[0].Message
				}
				if err := h.status.ApplyStatus(ctx, u); err != nil {
					lg.Warn().Err(err).Msg("status update not applied")
				}
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// parseUnix converts the provider's string epoch-seconds timestamp.
func parseUnix(s string) *time.Time {
	if s == "" {
		return nil
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
