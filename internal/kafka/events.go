package kafka

import "time"

const (
	EventSessionStarted = "session_started"
	EventEligibility    = "eligibility_computed"
	EventPaymentStarted = "payment_started"
	EventPaid           = "payment_completed"
	EventReset          = "session_reset"
	EventExpired        = "session_expired"
	EventLetterReady    = "letter_ready"
)

// ClaimEvent describes a workflow step change. It carries no flight or
// passenger data.
type ClaimEvent struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id"`
	Step       string    `json:"step"`
	Eligible   bool      `json:"eligible"`
	Amount     int       `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}
