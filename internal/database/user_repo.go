package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dreamcatchered/dreamMail/pkg/models"
)

// UpsertUser records or refreshes a Telegram user's profile
func (db *DB) UpsertUser(ctx context.Context, user *models.User) error {
	db.gate.Lock()
	defer db.gate.Unlock()

	query := `
		INSERT OR REPLACE INTO users (user_id, username, first_name, last_name, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	`
	if _, err := db.ExecContext(ctx, query, user.UserID, user.Username, user.FirstName, user.LastName); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUser returns a user by Telegram id
func (db *DB) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	db.gate.Lock()
	defer db.gate.Unlock()

	var user models.User
	err := db.GetContext(ctx, &user, `SELECT * FROM users WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// IsUserBlocked reports whether a user is on the blocked list
func (db *DB) IsUserBlocked(ctx context.Context, userID int64) (bool, error) {
	db.gate.Lock()
	defer db.gate.Unlock()

	var one int
	err := db.GetContext(ctx, &one, `SELECT 1 FROM blocked_users WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check blocked user: %w", err)
	}
	return true, nil
}

// BlockUser adds a user to the blocked list
func (db *DB) BlockUser(ctx context.Context, userID int64, reason string) error {
	db.gate.Lock()
	defer db.gate.Unlock()

	query := `INSERT OR REPLACE INTO blocked_users (user_id, reason) VALUES (?, ?)`
	if _, err := db.ExecContext(ctx, query, userID, reason); err != nil {
		return fmt.Errorf("failed to block user: %w", err)
	}
	return nil
}

// UnblockUser removes a user from the blocked list
func (db *DB) UnblockUser(ctx context.Context, userID int64) error {
	db.gate.Lock()
	defer db.gate.Unlock()

	if _, err := db.ExecContext(ctx, `DELETE FROM blocked_users WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to unblock user: %w", err)
	}
	return nil
}

// ListUserStats returns per-user aggregates for the admin overview
func (db *DB) ListUserStats(ctx context.Context) ([]*models.UserStats, error) {
	db.gate.Lock()
	defer db.gate.Unlock()

	query := `
		SELECT u.user_id,
		       COALESCE(u.username, '') AS username,
		       COALESCE(u.first_name, '') AS first_name,
		       COALESCE(u.last_name, '') AS last_name,
		       (SELECT COUNT(*) FROM aliases a WHERE a.user_id = u.user_id) AS alias_count,
		       (SELECT COUNT(*) FROM emails e WHERE e.to_addr IN
		           (SELECT address FROM aliases a WHERE a.user_id = u.user_id)) AS email_count,
		       EXISTS (SELECT 1 FROM blocked_users b WHERE b.user_id = u.user_id) AS is_blocked
		FROM users u
		ORDER BY u.user_id
	`
	var stats []*models.UserStats
	if err := db.SelectContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to list user stats: %w", err)
	}
	return stats, nil
}

// DeleteUserData removes a user together with their aliases, stored
// mail and blocked-list entry.
func (db *DB) DeleteUserData(ctx context.Context, userID int64) error {
	db.gate.Lock()
	defer db.gate.Unlock()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		`DELETE FROM emails WHERE to_addr IN (SELECT address FROM aliases WHERE user_id = ?)`,
		`DELETE FROM aliases WHERE user_id = ?`,
		`DELETE FROM blocked_users WHERE user_id = ?`,
		`DELETE FROM users WHERE user_id = ?`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, userID); err != nil {
			return fmt.Errorf("failed to delete user data: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
