// Package services implements the business logic of the messaging
// integration: channel-config resolution, conversation-window management,
// outbound dispatch, inbound routing, and delivery-status reconciliation.
// This file centralizes common service-level error values so that they can
// be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; mapping
// to user-facing messages or HTTP status codes happens at the handler layer.
package services

import "errors"

var (
	// ErrConfigNotFound means no enabled channel configuration exists for the
	// tenant scope. This is a normal outcome ("channel not configured"), not
	// an exceptional one; no dispatch is attempted and nothing is persisted.
	ErrConfigNotFound = errors.New("messaging channel not configured")

	// ErrEntitlementDenied means the tenant is not authorized for the
	// requested notification type. Dispatch aborts before any network call
	// and before any message row is written.
	ErrEntitlementDenied = errors.New("notification type not entitled")

	// ErrProviderRejected means the provider returned an error for the final
	// dispatch attempt. The full provider error text is retained on the
	// persisted message row; callers surface a generic failure.
	ErrProviderRejected = errors.New("provider rejected message")

	// ErrRoutingAmbiguous means an inbound message on the shared channel
	// could not be attributed to a tenant. The message is dropped and logged;
	// retrying cannot resolve the ambiguity.
	ErrRoutingAmbiguous = errors.New("inbound message cannot be routed to a tenant")

	// ErrConversationNotFound means no conversation exists for the requested
	// scope and counterpart.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrDuplicateTrigger means an idempotency key was already consumed for
	// an equivalent notification trigger; the original message is returned
	// instead of dispatching again.
	ErrDuplicateTrigger = errors.New("notification already dispatched for this key")
)
