package domain

import "time"

// Webhook is one subscription of an account to an event type. An account
// holds at most one subscription per event.
type Webhook struct {
	ID        string    `json:"webhook_id"`
	Account   string    `json:"account"`
	Event     string    `json:"event"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
