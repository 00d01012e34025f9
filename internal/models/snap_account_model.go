package models

import "time"

// SnapAccount is a user's linked Snapchat account. Access and refresh tokens
// are stored AES-GCM encrypted.
type SnapAccount struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	ExternalID     string    `db:"external_id" json:"external_id"`
	DisplayName    string    `db:"display_name" json:"display_name"`
	Username       string    `db:"username" json:"username"`
	ProfilePicture string    `db:"profile_picture_url" json:"profile_picture"`
	AccessToken    string    `db:"access_token" json:"-"`
	RefreshToken   string    `db:"refresh_token" json:"-"`
	TokenExpiresAt time.Time `db:"token_expires_at" json:"token_expires_at"`
	AccountStatus  string    `db:"account_status" json:"account_status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

const (
	AccountStatusActive = "active"
	AccountStatusFrozen = "frozen" // provider rejected credentials; needs re-connect
)
