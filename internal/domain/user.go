package domain

import "time"

// AccessToken authorizes UserID until Expiry. Redemption does not consume it.
type AccessToken struct {
	TokenID string    `json:"token_id" validate:"required"`
	UserID  int64     `json:"user_id" validate:"required"`
	Expiry  time.Time `json:"expiry" validate:"required"`
}

func (t AccessToken) ValidFor(userID int64, now time.Time) bool {
	return t.TokenID != "" && t.UserID == userID && now.Before(t.Expiry)
}

type User struct {
	UserID     int64     `json:"user_id" validate:"required"`
	FirstName  string    `json:"first_name"`
	Username   string    `json:"username,omitempty"`
	Authorized bool      `json:"authorized"`
	Blocked    bool      `json:"blocked"`
	FileCount  int       `json:"file_count"`
	CountDay   string    `json:"count_day,omitempty"`
	Joined     time.Time `json:"joined"`
}

type Channel struct {
	ChannelID int64  `json:"channel_id" validate:"required"`
	Name      string `json:"channel_name"`
}

type ChannelCount struct {
	ChannelID int64  `json:"channel_id"`
	Name      string `json:"channel_name"`
	Count     int64  `json:"count"`
}

type Stats struct {
	Users           int64          `json:"users"`
	AuthorizedUsers int64          `json:"authorized_users"`
	TotalFileSize   int64          `json:"total_file_size"`
	Channels        []ChannelCount `json:"channels"`
}
