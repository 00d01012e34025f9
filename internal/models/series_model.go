package models

import "time"

// SeriesSummary is the grouped view of one recurring chain the series
// processor works from. Chains are keyed by series_id, never by content.
type SeriesSummary struct {
	SeriesID        string    `db:"series_id" json:"series_id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	AccountID       int64     `db:"account_id" json:"account_id"`
	OccurrenceCount int       `db:"occurrence_count" json:"occurrence_count"`
	PendingCount    int       `db:"pending_count" json:"pending_count"`
	LatestScheduled time.Time `db:"latest_scheduled" json:"latest_scheduled"`
}
