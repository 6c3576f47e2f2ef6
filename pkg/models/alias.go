package models

import "time"

// Alias is an email address claimed by a user. At most one owner per
// address at any time; an admin reclaim overwrites the owner in place.
type Alias struct {
	Address   string    `db:"address" json:"address"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
