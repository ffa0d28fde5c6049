// Package provider implements the outbound HTTP boundary to the WhatsApp
// Cloud API. It builds the message payloads, performs bearer-authenticated
// single-attempt calls with a bounded timeout, and surfaces the provider's
// error text verbatim so it can be retained on the persisted message row.
//
// The client is deliberately retry-free: a duplicate customer-facing message
// is worse than a recorded failure, and the dispatch layer already owns the
// one-template/one-text-fallback protocol.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBaseURL is the Graph API root used when none is configured.
// Tests and local development point this at an httptest server.
const DefaultBaseURL = "https://graph.facebook.com/v19.0"

// Error is an API-level rejection returned by the Cloud API (4xx/5xx with an
// error body). It is distinct from transport failures so the dispatcher can
// decide when a text fallback is safe: a definitive rejection means the
// message was not sent, while a timeout leaves that unknown.
type Error struct {
	StatusCode int
	Code       int
	Detail     string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("whatsapp: %s (http %d, code %d)", e.Detail, e.StatusCode, e.Code)
}

// Credentials identify the channel a message is sent through. They come from
// the tenant's resolved MessagingConfig, never from process-wide state.
type Credentials struct {
	PhoneNumberID string
	AccessToken   string
}

// Sender is the narrow contract the dispatch layer consumes. Both methods
// return the provider-assigned message id on success.
type Sender interface {
	SendTemplate(ctx context.Context, creds Credentials, to, name, language string, params []string) (string, error)
	SendText(ctx context.Context, creds Credentials, to, body string) (string, error)
}

// Client is the HTTP implementation of Sender.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient constructs a Client with a bounded request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Wire payload types, mirroring the Cloud API message schema.

type textPayload struct {
	Body string `json:"body"`
}

type languagePayload struct {
	Code string `json:"code"`
}

type parameterPayload struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type componentPayload struct {
	Type       string             `json:"type"`
	Parameters []parameterPayload `json:"parameters"`
}

type templatePayload struct {
	Name       string             `json:"name"`
	Language   languagePayload    `json:"language"`
	Components []componentPayload `json:"components,omitempty"`
}

type messageRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *textPayload     `json:"text,omitempty"`
	Template         *templatePayload `json:"template,omitempty"`
}

type messageResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendTemplate sends a pre-approved template message with ordered body
// parameters. It returns the provider message id, or *Error when the API
// rejected the message (template unapproved, parameter mismatch, etc.).
func (c *Client) SendTemplate(ctx context.Context, creds Credentials, to, name, language string, params []string) (string, error) {
	req := messageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "template",
		Template: &templatePayload{
			Name:     name,
			Language: languagePayload{Code: language},
		},
	}
	if len(params) > 0 {
		ps := make([]parameterPayload, 0, len(params))
		for _, p := range params {
			ps = append(ps, parameterPayload{Type: "text", Text: p})
		}
		req.Template.Components = []componentPayload{{Type: "body", Parameters: ps}}
	}
	return c.post(ctx, creds, &req, "template", name)
}

// SendText sends a freeform text message. The API only accepts it while the
// 24-hour conversation window with the recipient is open; outside the window
// the rejection is surfaced as *Error.
func (c *Client) SendText(ctx context.Context, creds Credentials, to, body string) (string, error) {
	req := messageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &textPayload{Body: body},
	}
	return c.post(ctx, creds, &req, "text", "")
}

// post performs the single-attempt API call and decodes the outcome.
func (c *Client) post(ctx context.Context, creds Credentials, payload *messageRequest, kind, template string) (string, error) {
	tr := otel.Tracer("provider/whatsapp")
	ctx, span := tr.Start(ctx, "send",
		trace.WithAttributes(
			attribute.String("message.kind", kind),
			attribute.String("message.template", template),
			attribute.String("channel.phone_number_id", creds.PhoneNumberID),
		),
	)
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/messages", c.BaseURL, creds.PhoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// Cap the response read; error bodies are small.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var out messageResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode >= 400 {
			return "", &Error{StatusCode: resp.StatusCode, Detail: string(raw)}
		}
		return "", err
	}

	if resp.StatusCode >= 400 || out.Error != nil {
		apiErr := &Error{StatusCode: resp.StatusCode}
		if out.Error != nil {
			apiErr.Code = out.Error.Code
			apiErr.Detail = out.Error.Message
		} else {
			apiErr.Detail = string(raw)
		}
		return "", apiErr
	}

	if len(out.Messages) == 0 || out.Messages[0].ID == "" {
		return "", &Error{StatusCode: resp.StatusCode, Detail: "response carried no message id"}
	}
	return out.Messages[0].ID, nil
}
