package audithook

// Action constants for audit events.
const (
	// Subscription actions
	ActionSubscriptionCreated   = "subscription.created"
	ActionSubscriptionActivated = "subscription.activated"
	ActionSubscriptionUnpaid    = "subscription.unpaid"
	ActionSubscriptionExpired   = "subscription.expired"
	ActionSubscriptionChanged   = "subscription.changed"
	ActionSubscriptionCancelled = "subscription.cancelled"

	// Payment actions
	ActionPaymentCreated    = "payment.created"
	ActionPaymentReconciled = "payment.reconciled"
	ActionPaymentFailed     = "payment.failed"
	ActionOrphanRecovered   = "payment.orphan_recovered"

	// Webhook actions
	ActionWebhookReceived  = "webhook.received"
	ActionWebhookProcessed = "webhook.processed"
	ActionWebhookRejected  = "webhook.rejected"
)

// Resource constants for audit events.
const (
	ResourceSubscription = "subscription"
	ResourcePayment      = "payment"
	ResourceWebhook      = "webhook"
)

// Category constants for audit events.
const (
	CategorySubscription = "subscription"
	CategoryPayment      = "payment"
	CategoryIntegration  = "integration"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
