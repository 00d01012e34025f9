package transfer

// RecurringInput is the user-facing recurrence description. End date is a
// wall-clock value in the request's timezone, like the scheduled time.
type RecurringInput struct {
	Frequency      string `json:"frequency"`
	Interval       int    `json:"interval"`
	DaysOfWeek     []int  `json:"days_of_week,omitempty"`
	DayOfMonth     int    `json:"day_of_month,omitempty"`
	EndDate        string `json:"end_date,omitempty"`
	MaxOccurrences int    `json:"max_occurrences,omitempty"`
}

type PostCreation struct {
	AccountID     int64           `json:"account_id"`
	MediaURL      string          `json:"media_url"`
	ContentType   string          `json:"content_type"`
	Caption       string          `json:"caption"`
	ScheduledTime string          `json:"scheduled_time"` // 2006-01-02T15:04 local
	Timezone      string          `json:"timezone"`       // IANA identifier
	Priority      int             `json:"priority"`
	Draft         bool            `json:"draft"`
	Recurring     *RecurringInput `json:"recurring,omitempty"`
}

type RescheduleRequest struct {
	ScheduledTime string `json:"scheduled_time"`
	Timezone      string `json:"timezone,omitempty"` // defaults to the post's zone
}

type PostStats struct {
	SuccessCount int     `json:"success_count"`
	FailCount    int     `json:"fail_count"`
	PendingCount int     `json:"pending_count"`
	SuccessRate  float64 `json:"success_rate"`
}

type MediaUploadResponse struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}
