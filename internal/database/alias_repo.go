package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dreamcatchered/dreamMail/pkg/models"
)

// Normalize lowercases and trims an address. Every alias accessor
// normalizes its input so the directory key space stays consistent.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// UpsertAlias creates an alias or overwrites its owner in place
// (admin reclaim relies on the overwrite).
func (db *DB) UpsertAlias(ctx context.Context, userID int64, address string, active bool) error {
	db.gate.Lock()
	defer db.gate.Unlock()

	query := `INSERT OR REPLACE INTO aliases (address, user_id, active) VALUES (?, ?, ?)`
	if _, err := db.ExecContext(ctx, query, Normalize(address), userID, active); err != nil {
		return fmt.Errorf("failed to upsert alias: %w", err)
	}
	return nil
}

// DeleteAlias removes an alias owned by the given user
func (db *DB) DeleteAlias(ctx context.Context, userID int64, address string) (bool, error) {
	db.gate.Lock()
	defer db.gate.Unlock()

	result, err := db.ExecContext(ctx, `DELETE FROM aliases WHERE address = ? AND user_id = ?`, Normalize(address), userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete alias: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// OwnerOf returns the owning user id for an address, ErrNotFound when
// no alias matches.
func (db *DB) OwnerOf(ctx context.Context, address string) (int64, error) {
	db.gate.Lock()
	defer db.gate.Unlock()

	var userID int64
	err := db.GetContext(ctx, &userID, `SELECT user_id FROM aliases WHERE address = ?`, Normalize(address))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get alias owner: %w", err)
	}
	return userID, nil
}

// IsAliasActive reports whether notifications for an address are
// enabled. A missing alias defaults to active to avoid suppressing
// mail by mistake.
func (db *DB) IsAliasActive(ctx context.Context, address string) (bool, error) {
	db.gate.Lock()
	defer db.gate.Unlock()

	var active bool
	err := db.GetContext(ctx, &active, `SELECT active FROM aliases WHERE address = ?`, Normalize(address))
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get alias state: %w", err)
	}
	return active, nil
}

// ToggleAliasActive flips the active flag and returns the new state
func (db *DB) ToggleAliasActive(ctx context.Context, userID int64, address string) (bool, error) {
	db.gate.Lock()
	defer db.gate.Unlock()

	addr := Normalize(address)

	var active bool
	err := db.GetContext(ctx, &active, `SELECT active FROM aliases WHERE address = ? AND user_id = ?`, addr, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to get alias state: %w", err)
	}

	if _, err := db.ExecContext(ctx, `UPDATE aliases SET active = ? WHERE address = ?`, !active, addr); err != nil {
		return false, fmt.Errorf("failed to toggle alias: %w", err)
	}
	return !active, nil
}

// AliasesForUser returns all aliases owned by a user
func (db *DB) AliasesForUser(ctx context.Context, userID int64) ([]*models.Alias, error) {
	db.gate.Lock()
	defer db.gate.Unlock()

	var aliases []*models.Alias
	err := db.SelectContext(ctx, &aliases, `SELECT * FROM aliases WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}
	return aliases, nil
}

// GetAlias returns one alias by address
func (db *DB) GetAlias(ctx context.Context, address string) (*models.Alias, error) {
	db.gate.Lock()
	defer db.gate.Unlock()

	var alias models.Alias
	err := db.GetContext(ctx, &alias, `SELECT * FROM aliases WHERE address = ?`, Normalize(address))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alias: %w", err)
	}
	return &alias, nil
}
