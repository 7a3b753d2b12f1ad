package remit

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("remit: not found")
	ErrAlreadyExists = errors.New("remit: already exists")
	ErrInvalidInput  = errors.New("remit: invalid input")

	// Plan errors
	ErrPlanNotFound    = errors.New("remit: plan not found")
	ErrNoPlanAvailable = errors.New("remit: no subscription plan available")

	// Subscription errors
	ErrSubscriptionNotFound = errors.New("remit: subscription not found")
	ErrInvalidTransition    = errors.New("remit: invalid subscription status transition")

	// Payment errors
	ErrPaymentNotFound = errors.New("remit: payment not found")

	// Gateway errors
	ErrGatewayPaymentNotFound = errors.New("remit: payment not found at gateway")
	ErrGatewayUnavailable     = errors.New("remit: payment gateway unavailable")
	ErrGatewayNotConfigured   = errors.New("remit: payment gateway not configured")

	// Webhook errors
	ErrMissingPaymentID = errors.New("remit: webhook payload has no payment id")
	ErrMissingSignature = errors.New("remit: webhook signature missing")
	ErrMissingMetadata  = errors.New("remit: payment metadata incomplete")

	// Store errors
	ErrConfiguration = errors.New("remit: subscription store unavailable or misconfigured")
	ErrStoreNotReady = errors.New("remit: store not ready")
	ErrStoreClosed   = errors.New("remit: store is closed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("remit: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrGatewayPaymentNotFound)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrGatewayUnavailable)
}
