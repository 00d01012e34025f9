package job

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/storypilot/scheduler/internal/models"
	"github.com/storypilot/scheduler/internal/recurrence"
	"github.com/storypilot/scheduler/internal/repository"
)

// SeriesJob tops up recurring chains whose materialized occurrences have all
// run their course. It only ever creates rows through the store, so a
// re-run against a chain with upcoming members is a no-op.
type SeriesJob struct {
	pr           repository.ScheduledPostRepository
	lookbackDays int
	batchSize    int
}

func NewSeriesJob(pr repository.ScheduledPostRepository, lookbackDays, batchSize int) *SeriesJob {
	return &SeriesJob{
		pr:           pr,
		lookbackDays: lookbackDays,
		batchSize:    batchSize,
	}
}

func (j *SeriesJob) Run() {
	j.RunOnce(context.Background())
}

func (j *SeriesJob) RunOnce(ctx context.Context) {
	series, err := j.pr.ListSeries(ctx, j.lookbackDays)
	if err != nil {
		slog.Info(fmt.Sprintf("series sweep aborted: %v", err))
		return
	}

	for _, s := range series {
		if s.PendingCount > 0 {
			continue
		}
		if err := j.topUp(ctx, s); err != nil {
			slog.Info(fmt.Sprintf("error extending series %s: %v", s.SeriesID, err))
		}
	}
}

func (j *SeriesJob) topUp(ctx context.Context, s *models.SeriesSummary) error {
	latest, err := j.pr.GetSeriesLatest(ctx, s.SeriesID)
	if err != nil {
		return err
	}
	if latest == nil || latest.RecurringPattern == nil {
		return nil
	}

	// Only chains that ran to a successful end keep growing. A failed or
	// cancelled tail needs the user to step in first.
	if latest.Status != models.PostStatusPublished {
		return nil
	}

	pattern := latest.RecurringPattern

	remaining := j.batchSize
	if pattern.MaxOccurrences > 0 {
		left := pattern.MaxOccurrences - s.OccurrenceCount
		if left <= 0 {
			return nil
		}
		if left < remaining {
			remaining = left
		}
	}

	anchor := latest.ScheduledFor
	for created := 0; created < remaining; created++ {
		next, ok := recurrence.Next(anchor, pattern)
		if !ok {
			break
		}

		post := models.ScheduledPost{
			UserID:           latest.UserID,
			AccountID:        latest.AccountID,
			MediaURL:         latest.MediaURL,
			ContentType:      latest.ContentType,
			Caption:          latest.Caption,
			ScheduledFor:     next,
			Timezone:         latest.Timezone,
			Status:           models.PostStatusScheduled,
			Priority:         latest.Priority,
			IsRecurring:      true,
			RecurringPattern: pattern,
			SeriesID:         s.SeriesID,
		}

		if _, err := j.pr.Create(ctx, nil, &post); err != nil {
			return err
		}
		anchor = next
	}

	return nil
}
