package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/storypilot/scheduler/internal/models"
	"github.com/storypilot/scheduler/internal/recurrence"
	"github.com/storypilot/scheduler/internal/repository"
	"github.com/storypilot/scheduler/internal/timezone"
	"github.com/storypilot/scheduler/internal/transfer"
)

type PostService interface {
	Create(ctx context.Context, userID int64, pc *transfer.PostCreation) ([]int64, error)
	List(ctx context.Context, userID int64, status string) ([]*models.ScheduledPost, error)
	Info(ctx context.Context, userID, postID int64) (*models.ScheduledPost, error)
	Cancel(ctx context.Context, userID, postID int64) error
	Duplicate(ctx context.Context, userID, postID int64) (int64, error)
	Reschedule(ctx context.Context, userID, postID int64, rr *transfer.RescheduleRequest) error
	Retry(ctx context.Context, userID, postID int64) error
	Remove(ctx context.Context, userID, postID int64) error
	Stats(ctx context.Context, userID int64) (*transfer.PostStats, error)
	Logs(ctx context.Context, userID, postID int64) ([]*models.PublishLog, error)
}

type postService struct {
	db        *sql.DB
	pr        repository.ScheduledPostRepository
	sa        repository.SnapAccountRepository
	pl        repository.PublishLogRepository
	lookAhead int
}

func NewPostService(
	db *sql.DB,
	pr repository.ScheduledPostRepository,
	sa repository.SnapAccountRepository,
	pl repository.PublishLogRepository,
	lookAhead int) PostService {
	return &postService{
		db:        db,
		pr:        pr,
		sa:        sa,
		pl:        pl,
		lookAhead: lookAhead,
	}
}

// Create schedules one post, or the first look-ahead batch of a recurring
// series. All occurrences of a series share a freshly minted series id.
func (s *postService) Create(ctx context.Context, userID int64, pc *transfer.PostCreation) ([]int64, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return nil, err
	}
	if pc.MediaURL == "" {
		err := errors.New("media url cannot be empty")
		slog.Info(err.Error())
		return nil, err
	}
	if pc.ContentType != models.ContentTypeImage && pc.ContentType != models.ContentTypeVideo {
		err := fmt.Errorf("content type must be image or video, got %q", pc.ContentType)
		slog.Info(err.Error())
		return nil, err
	}

	exists, err := s.sa.CheckByUserID(ctx, pc.AccountID, userID)
	if err != nil {
		return nil, fmt.Errorf("error checking snap account %d: %w", pc.AccountID, err)
	}
	if !exists {
		return nil, fmt.Errorf("snap account %d does not exist", pc.AccountID)
	}

	scheduledFor, err := timezone.ParseWallClock(pc.ScheduledTime, pc.Timezone)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	status := models.PostStatusScheduled
	if pc.Draft {
		status = models.PostStatusDraft
	}

	base := models.ScheduledPost{
		UserID:       userID,
		AccountID:    pc.AccountID,
		MediaURL:     pc.MediaURL,
		ContentType:  pc.ContentType,
		Caption:      pc.Caption,
		ScheduledFor: scheduledFor,
		Timezone:     pc.Timezone,
		Status:       status,
		Priority:     pc.Priority,
	}

	occurrences := []time.Time{scheduledFor}
	if pc.Recurring != nil {
		pattern, err := s.buildPattern(pc.Recurring, pc.Timezone)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}

		seriesID, err := gonanoid.New()
		if err != nil {
			return nil, err
		}

		base.IsRecurring = true
		base.RecurringPattern = pattern
		base.SeriesID = seriesID
		occurrences = recurrence.Generate(scheduledFor, pattern, s.lookAhead)
		if len(occurrences) == 0 {
			return nil, errors.New("pattern yields no occurrences")
		}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	ids := make([]int64, 0, len(occurrences))
	for _, occ := range occurrences {
		post := base
		post.ScheduledFor = occ

		id, cerr := s.pr.Create(ctx, tx, &post)
		if cerr != nil {
			err = fmt.Errorf("error creating post: %w", cerr)
			return nil, err
		}
		ids = append(ids, id)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return ids, nil
}

func (s *postService) buildPattern(in *transfer.RecurringInput, zone string) (*models.RecurringPattern, error) {
	pattern := &models.RecurringPattern{
		Frequency:      in.Frequency,
		Interval:       in.Interval,
		DaysOfWeek:     in.DaysOfWeek,
		DayOfMonth:     in.DayOfMonth,
		MaxOccurrences: in.MaxOccurrences,
	}

	if in.EndDate != "" {
		end, err := timezone.ParseWallClock(in.EndDate, zone)
		if err != nil {
			return nil, err
		}
		pattern.EndDate = &end
	}

	if err := recurrence.ValidatePattern(pattern); err != nil {
		return nil, err
	}
	return pattern, nil
}

func (s *postService) List(ctx context.Context, userID int64, status string) ([]*models.ScheduledPost, error) {
	posts, err := s.pr.ListByUser(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

func (s *postService) Info(ctx context.Context, userID, postID int64) (*models.ScheduledPost, error) {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	return post, nil
}

// Cancel takes a post out of the pipeline. Only scheduled and queued posts
// can be cancelled; a publishing post's in-flight attempt has to land first.
func (s *postService) Cancel(ctx context.Context, userID, postID int64) error {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return err
	}

	switch post.Status {
	case models.PostStatusScheduled, models.PostStatusQueued:
		return s.pr.UpdateStatus(ctx, postID, post.Status, models.PostStatusCancelled)
	default:
		return &repository.ConflictError{PostID: postID, Status: post.Status, Op: "cancel"}
	}
}

// Duplicate copies a post into a new standalone draft. The source row is
// never touched; this is the only way a terminal post gets a second run.
func (s *postService) Duplicate(ctx context.Context, userID, postID int64) (int64, error) {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return 0, err
	}

	dup := models.ScheduledPost{
		UserID:       post.UserID,
		AccountID:    post.AccountID,
		MediaURL:     post.MediaURL,
		ContentType:  post.ContentType,
		Caption:      post.Caption,
		ScheduledFor: post.ScheduledFor,
		Timezone:     post.Timezone,
		Status:       models.PostStatusDraft,
		Priority:     post.Priority,
	}

	id, err := s.pr.Create(ctx, nil, &dup)
	if err != nil {
		return 0, fmt.Errorf("error duplicating post: %w", err)
	}
	return id, nil
}

func (s *postService) Reschedule(ctx context.Context, userID, postID int64, rr *transfer.RescheduleRequest) error {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return err
	}

	switch post.Status {
	case models.PostStatusDraft, models.PostStatusScheduled, models.PostStatusFailed:
	default:
		return &repository.ConflictError{PostID: postID, Status: post.Status, Op: "reschedule"}
	}

	zone := rr.Timezone
	if zone == "" {
		zone = post.Timezone
	}

	scheduledFor, err := timezone.ParseWallClock(rr.ScheduledTime, zone)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return s.pr.Reschedule(ctx, postID, scheduledFor, models.PostStatusScheduled)
}

// Retry is the user-triggered reset of a failed post; nothing in the
// pipeline ever does this automatically.
func (s *postService) Retry(ctx context.Context, userID, postID int64) error {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return err
	}

	if post.Status != models.PostStatusFailed {
		return &repository.ConflictError{PostID: postID, Status: post.Status, Op: "retry"}
	}

	return s.pr.Reschedule(ctx, postID, time.Now(), models.PostStatusScheduled)
}

func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return err
	}

	switch post.Status {
	case models.PostStatusDraft, models.PostStatusPublished, models.PostStatusFailed, models.PostStatusCancelled:
		return s.pr.Remove(ctx, postID)
	default:
		return &repository.ConflictError{PostID: postID, Status: post.Status, Op: "remove"}
	}
}

func (s *postService) Stats(ctx context.Context, userID int64) (*transfer.PostStats, error) {
	success, failed, pending, err := s.pr.Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error computing stats: %w", err)
	}

	stats := &transfer.PostStats{
		SuccessCount: success,
		FailCount:    failed,
		PendingCount: pending,
	}
	if total := success + failed; total > 0 {
		stats.SuccessRate = float64(success) / float64(total)
	}
	return stats, nil
}

func (s *postService) Logs(ctx context.Context, userID, postID int64) ([]*models.PublishLog, error) {
	if _, err := s.owned(ctx, userID, postID); err != nil {
		return nil, err
	}
	return s.pl.ListByPostID(ctx, postID)
}

func (s *postService) owned(ctx context.Context, userID, postID int64) (*models.ScheduledPost, error) {
	if userID == 0 || postID == 0 {
		err := errors.New("invalid user or post id")
		slog.Info(err.Error())
		return nil, err
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !isValid {
		err = errors.New("post doesn't exist")
		slog.Info(err.Error())
		return nil, err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting post info: %w", err)
	}
	if post == nil {
		return nil, errors.New("post doesn't exist")
	}
	return post, nil
}
