package models

import "time"

// PublishLog is an insert-only audit record of a single publish attempt.
type PublishLog struct {
	ID               int64     `db:"id" json:"id"`
	PostID           int64     `db:"post_id" json:"post_id"`
	UserID           int64     `db:"user_id" json:"user_id"`
	AccountID        int64     `db:"account_id" json:"account_id"`
	Attempt          int       `db:"attempt" json:"attempt"`
	Outcome          string    `db:"outcome" json:"outcome"`
	ExternalPostID   string    `db:"external_post_id" json:"external_post_id,omitempty"`
	ErrorMessage     string    `db:"error_message" json:"error_message,omitempty"`
	ProviderResponse string    `db:"provider_response" json:"provider_response,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

const (
	OutcomeSuccess        = "success"
	OutcomeTransientError = "transient_error"
	OutcomePermanentError = "permanent_error"
)
