package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/storypilot/scheduler/internal/models"
)

type SnapAccountRepository interface {
	Create(ctx context.Context, tx *sql.Tx, acc *models.SnapAccount) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.SnapAccount, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.SnapAccount, error)
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.SnapAccount, error)
	CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error)
	SetTokens(ctx context.Context, id int64, acc *models.SnapAccount) error
	SetStatus(ctx context.Context, id int64, status string) error
	Remove(ctx context.Context, id int64) error
}

type snapAccountRepository struct {
	db *sql.DB
}

func NewSnapAccountRepository(db *sql.DB) SnapAccountRepository {
	return &snapAccountRepository{db: db}
}

const accountColumns = `id, user_id, external_id, display_name, username,
	profile_picture_url, access_token, refresh_token, token_expires_at,
	account_status, created_at, updated_at`

func (r *snapAccountRepository) Create(ctx context.Context, tx *sql.Tx, acc *models.SnapAccount) (int64, error) {
	query := `
		INSERT INTO snap_accounts (user_id, external_id, display_name, username,
			profile_picture_url, access_token, refresh_token, token_expires_at,
			account_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	args := []any{acc.UserID, acc.ExternalID, acc.DisplayName, acc.Username,
		acc.ProfilePicture, acc.AccessToken, acc.RefreshToken,
		acc.TokenExpiresAt, acc.AccountStatus}

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

func (r *snapAccountRepository) GetByID(ctx context.Context, id int64) (*models.SnapAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM snap_accounts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var acc models.SnapAccount
	err := row.Scan(&acc.ID, &acc.UserID, &acc.ExternalID, &acc.DisplayName,
		&acc.Username, &acc.ProfilePicture, &acc.AccessToken, &acc.RefreshToken,
		&acc.TokenExpiresAt, &acc.AccountStatus, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &acc, nil
}

func (r *snapAccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.SnapAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM snap_accounts WHERE user_id = $1`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectAccounts(rows)
}

func (r *snapAccountRepository) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.SnapAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM snap_accounts
		WHERE token_expires_at BETWEEN $1 AND $2 AND account_status = $3`

	rows, err := r.db.QueryContext(ctx, query, from, to, models.AccountStatusActive)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectAccounts(rows)
}

func (r *snapAccountRepository) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	query := `SELECT 1 FROM snap_accounts WHERE id = $1 AND user_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, accountID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}
	return result == 1, nil
}

func (r *snapAccountRepository) SetTokens(ctx context.Context, id int64, acc *models.SnapAccount) error {
	query := `
		UPDATE snap_accounts
		SET access_token = $1, refresh_token = $2, token_expires_at = $3, updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, acc.AccessToken, acc.RefreshToken,
		acc.TokenExpiresAt, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func (r *snapAccountRepository) SetStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE snap_accounts SET account_status = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func (r *snapAccountRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM snap_accounts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func collectAccounts(rows *sql.Rows) ([]*models.SnapAccount, error) {
	var accounts []*models.SnapAccount
	for rows.Next() {
		var acc models.SnapAccount
		err := rows.Scan(&acc.ID, &acc.UserID, &acc.ExternalID, &acc.DisplayName,
			&acc.Username, &acc.ProfilePicture, &acc.AccessToken,
			&acc.RefreshToken, &acc.TokenExpiresAt, &acc.AccountStatus,
			&acc.CreatedAt, &acc.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, &acc)
	}
	return accounts, rows.Err()
}
