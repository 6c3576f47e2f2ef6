package models

import "time"

// User is a Telegram user known to the bot.
type User struct {
	UserID    int64     `db:"user_id" json:"user_id"`
	Username  string    `db:"username" json:"username"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// UserStats is the admin overview row: one user with aggregate counts.
type UserStats struct {
	UserID     int64  `db:"user_id" json:"user_id"`
	Username   string `db:"username" json:"username"`
	FirstName  string `db:"first_name" json:"first_name"`
	LastName   string `db:"last_name" json:"last_name"`
	AliasCount int    `db:"alias_count" json:"alias_count"`
	EmailCount int    `db:"email_count" json:"email_count"`
	IsBlocked  bool   `db:"is_blocked" json:"is_blocked"`
}
