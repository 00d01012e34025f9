package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/storypilot/scheduler/internal/models"
)

// PublishLogRepository is insert-only; log rows are never updated.
type PublishLogRepository interface {
	Create(ctx context.Context, entry *models.PublishLog) (int64, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PublishLog, error)
}

type publishLogRepository struct {
	db *sql.DB
}

func NewPublishLogRepository(db *sql.DB) PublishLogRepository {
	return &publishLogRepository{db: db}
}

func (r *publishLogRepository) Create(ctx context.Context, entry *models.PublishLog) (int64, error) {
	query := `
		INSERT INTO publish_logs (post_id, user_id, account_id, attempt,
			outcome, external_post_id, error_message, provider_response)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, entry.PostID, entry.UserID,
		entry.AccountID, entry.Attempt, entry.Outcome, entry.ExternalPostID,
		entry.ErrorMessage, entry.ProviderResponse).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *publishLogRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PublishLog, error) {
	query := `
		SELECT id, post_id, user_id, account_id, attempt, outcome,
			COALESCE(external_post_id, ''), COALESCE(error_message, ''),
			COALESCE(provider_response, ''), created_at
		FROM publish_logs WHERE post_id = $1 ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var entries []*models.PublishLog
	for rows.Next() {
		var e models.PublishLog
		err := rows.Scan(&e.ID, &e.PostID, &e.UserID, &e.AccountID, &e.Attempt,
			&e.Outcome, &e.ExternalPostID, &e.ErrorMessage, &e.ProviderResponse,
			&e.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
