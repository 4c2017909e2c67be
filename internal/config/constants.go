package config

import "time"

const (
	// Québec sales tax rates, both applied on the subtotal (additive,
	// neither compounds on the other).
	TaxRateGST = 0.05
	TaxRateQST = 0.09975

	// Webhook log retention windows by response class.
	RetentionSuccess = 30 * 24 * time.Hour
	RetentionFailure = 90 * 24 * time.Hour

	// Rate limits (per minute) for the public agreement endpoints.
	RateLimitPublic = 30

	// Rate limit sweep interval for the in-memory counter.
	RateLimitSweep = 60 * time.Second

	// Timeout for a single outbound notification attempt.
	NotifyTimeout = 30 * time.Second

	// Graceful HTTP shutdown window.
	ShutdownTimeout = 10 * time.Second

	// Operator read endpoint page size.
	WebhookLogPageSize = 50
)
