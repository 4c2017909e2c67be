package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookLog is the append-only record of one inbound provider delivery.
// It is written before business processing starts and never mutated
// afterwards, except to attach debug info from asynchronous follow-ups.
type WebhookLog struct {
	ID             uuid.UUID
	Endpoint       string
	Method         string
	Headers        string
	Body           string
	Signature      string
	ResponseStatus int
	Error          *string
	DebugInfo      *string
	ProcessedAt    time.Time
}
