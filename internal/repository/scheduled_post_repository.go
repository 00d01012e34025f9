package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/storypilot/scheduler/internal/models"
)

type ScheduledPostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error)
	ListByUser(ctx context.Context, userID int64, status string) ([]*models.ScheduledPost, error)
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error)
	ListSeries(ctx context.Context, lookbackDays int) ([]*models.SeriesSummary, error)
	GetSeriesLatest(ctx context.Context, seriesID string) (*models.ScheduledPost, error)
	UpdateStatus(ctx context.Context, id int64, from, to string) error
	MarkPublished(ctx context.Context, id int64, externalPostID string, attempts int) error
	MarkFailed(ctx context.Context, id int64, lastError string, attempts int) error
	Reschedule(ctx context.Context, id int64, scheduledFor time.Time, status string) error
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	Stats(ctx context.Context, userID int64) (success, failed, pending int, err error)
	Remove(ctx context.Context, id int64) error
}

type scheduledPostRepository struct {
	db *sql.DB
}

func NewScheduledPostRepository(db *sql.DB) ScheduledPostRepository {
	return &scheduledPostRepository{db: db}
}

const postColumns = `id, user_id, account_id, media_url, content_type, caption,
	scheduled_for, timezone, status, priority, is_recurring, recurring_pattern,
	COALESCE(series_id, ''), attempt_count, COALESCE(last_error, ''),
	COALESCE(external_post_id, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	var pattern []byte

	err := row.Scan(&post.ID, &post.UserID, &post.AccountID, &post.MediaURL,
		&post.ContentType, &post.Caption, &post.ScheduledFor, &post.Timezone,
		&post.Status, &post.Priority, &post.IsRecurring, &pattern,
		&post.SeriesID, &post.AttemptCount, &post.LastError,
		&post.ExternalPostID, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(pattern) > 0 {
		var rp models.RecurringPattern
		if err := json.Unmarshal(pattern, &rp); err != nil {
			return nil, fmt.Errorf("bad recurring pattern for post %d: %w", post.ID, err)
		}
		post.RecurringPattern = &rp
	}

	return &post, nil
}

func (r *scheduledPostRepository) Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (int64, error) {
	query := `
		INSERT INTO scheduled_posts (user_id, account_id, media_url, content_type,
			caption, scheduled_for, timezone, status, priority, is_recurring,
			recurring_pattern, series_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	var pattern []byte
	if post.RecurringPattern != nil {
		var err error
		pattern, err = json.Marshal(post.RecurringPattern)
		if err != nil {
			return 0, err
		}
	}

	args := []any{post.UserID, post.AccountID, post.MediaURL, post.ContentType,
		post.Caption, post.ScheduledFor, post.Timezone, post.Status,
		post.Priority, post.IsRecurring, pattern, post.SeriesID}

	var id int64
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *scheduledPostRepository) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *scheduledPostRepository) ListByUser(ctx context.Context, userID int64, status string) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE user_id = $1`
	args := []any{userID}

	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY scheduled_for DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectPosts(rows)
}

// ClaimDue atomically flips due scheduled posts to queued and returns them.
// The SKIP LOCKED claim guarantees two concurrent ticks never take the same
// post; posts beyond limit stay scheduled for a later tick.
func (r *scheduledPostRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	query := `
		UPDATE scheduled_posts SET status = $3, updated_at = $1
		WHERE id IN (
			SELECT id FROM scheduled_posts
			WHERE status = $4 AND scheduled_for <= $1
			ORDER BY priority DESC, scheduled_for ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + postColumns

	rows, err := r.db.QueryContext(ctx, query, now, limit,
		models.PostStatusQueued, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectPosts(rows)
}

// ListSeries aggregates every recurring chain. Counts cover the whole chain;
// the lookback only skips chains whose latest occurrence predates the cutoff.
func (r *scheduledPostRepository) ListSeries(ctx context.Context, lookbackDays int) ([]*models.SeriesSummary, error) {
	query := `
		SELECT series_id, user_id, account_id,
			COUNT(*) AS occurrence_count,
			COUNT(*) FILTER (WHERE status IN ($2, $3, $4)) AS pending_count,
			MAX(scheduled_for) AS latest_scheduled
		FROM scheduled_posts
		WHERE is_recurring AND series_id IS NOT NULL AND series_id <> ''
		GROUP BY series_id, user_id, account_id
		HAVING MAX(scheduled_for) >= $1
	`

	cutoff := time.Now().AddDate(0, 0, -lookbackDays)
	rows, err := r.db.QueryContext(ctx, query, cutoff,
		models.PostStatusScheduled, models.PostStatusQueued, models.PostStatusPublishing)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var series []*models.SeriesSummary
	for rows.Next() {
		var s models.SeriesSummary
		err := rows.Scan(&s.SeriesID, &s.UserID, &s.AccountID,
			&s.OccurrenceCount, &s.PendingCount, &s.LatestScheduled)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		series = append(series, &s)
	}
	return series, rows.Err()
}

func (r *scheduledPostRepository) GetSeriesLatest(ctx context.Context, seriesID string) (*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts
		WHERE series_id = $1 ORDER BY scheduled_for DESC LIMIT 1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, seriesID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

// UpdateStatus performs a guarded transition. It refuses moves the lifecycle
// does not allow and reports a lost conditional update as a StateError, so a
// concurrent claim or cancel has exactly one winner.
func (r *scheduledPostRepository) UpdateStatus(ctx context.Context, id int64, from, to string) error {
	if !models.CanTransition(from, to) {
		return &StateError{PostID: id, From: from, To: to}
	}

	query := `UPDATE scheduled_posts SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &StateError{PostID: id, From: from, To: to}
	}
	return nil
}

func (r *scheduledPostRepository) MarkPublished(ctx context.Context, id int64, externalPostID string, attempts int) error {
	query := `
		UPDATE scheduled_posts
		SET status = $1, external_post_id = $2, attempt_count = $3,
			last_error = '', updated_at = $4
		WHERE id = $5 AND status = $6
	`
	res, err := r.db.ExecContext(ctx, query, models.PostStatusPublished,
		externalPostID, attempts, time.Now(), id, models.PostStatusPublishing)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return requireTransition(res, id, models.PostStatusPublishing, models.PostStatusPublished)
}

func (r *scheduledPostRepository) MarkFailed(ctx context.Context, id int64, lastError string, attempts int) error {
	query := `
		UPDATE scheduled_posts
		SET status = $1, last_error = $2, attempt_count = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`
	res, err := r.db.ExecContext(ctx, query, models.PostStatusFailed,
		lastError, attempts, time.Now(), id, models.PostStatusPublishing)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return requireTransition(res, id, models.PostStatusPublishing, models.PostStatusFailed)
}

// Reschedule moves a post to a new instant and status, clearing retry
// bookkeeping. Callers check the transition is legal before calling.
func (r *scheduledPostRepository) Reschedule(ctx context.Context, id int64, scheduledFor time.Time, status string) error {
	query := `
		UPDATE scheduled_posts
		SET scheduled_for = $1, status = $2, attempt_count = 0,
			last_error = '', updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, scheduledFor, status, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func (r *scheduledPostRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := `SELECT 1 FROM scheduled_posts WHERE id = $1 AND user_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}
	return result == 1, nil
}

func (r *scheduledPostRepository) Stats(ctx context.Context, userID int64) (success, failed, pending int, err error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = $2),
			COUNT(*) FILTER (WHERE status = $3),
			COUNT(*) FILTER (WHERE status IN ($4, $5, $6))
		FROM scheduled_posts WHERE user_id = $1
	`
	err = r.db.QueryRowContext(ctx, query, userID,
		models.PostStatusPublished, models.PostStatusFailed,
		models.PostStatusScheduled, models.PostStatusQueued, models.PostStatusPublishing).
		Scan(&success, &failed, &pending)
	if err != nil {
		slog.Info(err.Error())
	}
	return success, failed, pending, err
}

func (r *scheduledPostRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM scheduled_posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func collectPosts(rows *sql.Rows) ([]*models.ScheduledPost, error) {
	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func requireTransition(res sql.Result, id int64, from, to string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &StateError{PostID: id, From: from, To: to}
	}
	return nil
}
