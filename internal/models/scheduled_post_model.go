package models

import "time"

type ScheduledPost struct {
	ID               int64             `db:"id" json:"id"`
	UserID           int64             `db:"user_id" json:"user_id"`
	AccountID        int64             `db:"account_id" json:"account_id"`
	MediaURL         string            `db:"media_url" json:"media_url"`
	ContentType      string            `db:"content_type" json:"content_type"` // image, video
	Caption          string            `db:"caption" json:"caption"`
	ScheduledFor     time.Time         `db:"scheduled_for" json:"scheduled_for"`
	Timezone         string            `db:"timezone" json:"timezone"`
	Status           string            `db:"status" json:"status"`
	Priority         int               `db:"priority" json:"priority"`
	IsRecurring      bool              `db:"is_recurring" json:"is_recurring"`
	RecurringPattern *RecurringPattern `db:"recurring_pattern" json:"recurring_pattern,omitempty"`
	SeriesID         string            `db:"series_id" json:"series_id,omitempty"`
	AttemptCount     int               `db:"attempt_count" json:"attempt_count"`
	LastError        string            `db:"last_error" json:"last_error,omitempty"`
	ExternalPostID   string            `db:"external_post_id" json:"external_post_id,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// RecurringPattern is stored as jsonb alongside the first occurrence of a
// series and copied to every occurrence materialized from it.
type RecurringPattern struct {
	Frequency      string     `json:"frequency"` // daily, weekly, monthly, custom
	Interval       int        `json:"interval"`
	DaysOfWeek     []int      `json:"days_of_week,omitempty"` // 0=Sunday .. 6=Saturday
	DayOfMonth     int        `json:"day_of_month,omitempty"` // 1..31
	EndDate        *time.Time `json:"end_date,omitempty"`
	MaxOccurrences int        `json:"max_occurrences,omitempty"`
}

const (
	ContentTypeImage = "image"
	ContentTypeVideo = "video"
)

const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyCustom  = "custom"
)

const (
	PostStatusDraft      = "draft"
	PostStatusScheduled  = "scheduled"
	PostStatusQueued     = "queued"
	PostStatusPublishing = "publishing"
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"
	PostStatusCancelled  = "cancelled"
)

// statusTransitions encodes the post lifecycle. published and cancelled are
// terminal; failed may only move back to scheduled by an explicit user retry.
var statusTransitions = map[string][]string{
	PostStatusDraft:      {PostStatusScheduled},
	PostStatusScheduled:  {PostStatusQueued, PostStatusCancelled},
	PostStatusQueued:     {PostStatusPublishing, PostStatusCancelled},
	PostStatusPublishing: {PostStatusPublished, PostStatusFailed},
	PostStatusFailed:     {PostStatusScheduled},
}

func CanTransition(from, to string) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminalStatus(status string) bool {
	return status == PostStatusPublished || status == PostStatusCancelled
}
