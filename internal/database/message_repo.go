package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/dreamcatchered/dreamMail/pkg/models"
)

// ErrNotFound is returned when a record is not found
var ErrNotFound = errors.New("record not found")

// InsertMessageIfAbsent stores a message keyed by UID. Returns false
// when a row with the same UID already exists; the existing row is
// never overwritten.
func (db *DB) InsertMessageIfAbsent(ctx context.Context, msg *models.StoredMessage) (bool, error) {
	db.gate.Lock()
	defer db.gate.Unlock()

	query := `
		INSERT OR IGNORE INTO emails (uid, owner_id, to_addr, from_addr, subject, text_body, html_body, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := db.ExecContext(ctx, query,
		msg.UID,
		msg.OwnerID,
		msg.ToAddr,
		msg.FromAddr,
		msg.Subject,
		msg.TextBody,
		msg.HTMLBody,
		msg.ReceivedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert message: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// MaxStoredUID returns the highest stored UID, 0 if the store is empty.
// The sync watermark is recomputed from this at startup.
func (db *DB) MaxStoredUID(ctx context.Context) (uint32, error) {
	db.gate.Lock()
	defer db.gate.Unlock()

	var uid uint32
	err := db.GetContext(ctx, &uid, `SELECT COALESCE(MAX(uid), 0) FROM emails`)
	if err != nil {
		return 0, fmt.Errorf("failed to get max uid: %w", err)
	}
	return uid, nil
}

// GetMessageByUID returns a stored message by UID
func (db *DB) GetMessageByUID(ctx context.Context, uid uint32) (*models.StoredMessage, error) {
	db.gate.Lock()
	defer db.gate.Unlock()

	var msg models.StoredMessage
	err := db.GetContext(ctx, &msg, `SELECT * FROM emails WHERE uid = ?`, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

// ListMessagesForAddress returns a page of messages for one alias,
// newest first, plus the total count.
func (db *DB) ListMessagesForAddress(ctx context.Context, address string, limit, offset int) ([]*models.MessageSummary, int, error) {
	return db.listMessages(ctx, []string{address}, "", limit, offset)
}

// SearchMessagesForAddresses returns a page of messages across several
// aliases, optionally filtered by a substring over subject, sender and
// body. Used by the web dashboard.
func (db *DB) SearchMessagesForAddresses(ctx context.Context, addresses []string, query string, limit, offset int) ([]*models.MessageSummary, int, error) {
	return db.listMessages(ctx, addresses, query, limit, offset)
}

func (db *DB) listMessages(ctx context.Context, addresses []string, search string, limit, offset int) ([]*models.MessageSummary, int, error) {
	if len(addresses) == 0 {
		return nil, 0, nil
	}

	db.gate.Lock()
	defer db.gate.Unlock()

	where := `WHERE to_addr IN (?)`
	args := []interface{}{addresses}
	if search != "" {
		where += ` AND (subject LIKE ? OR from_addr LIKE ? OR text_body LIKE ?)`
		like := "%" + strings.TrimSpace(search) + "%"
		args = append(args, like, like, like)
	}

	listQuery := `
		SELECT uid, to_addr, from_addr, subject, received_at,
		       html_body IS NOT NULL AS has_html
		FROM emails ` + where + `
		ORDER BY uid DESC
		LIMIT ? OFFSET ?
	`
	q, qargs, err := sqlx.In(listQuery, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build query: %w", err)
	}

	var messages []*models.MessageSummary
	if err := db.SelectContext(ctx, &messages, db.Rebind(q), qargs...); err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM emails ` + where
	q, qargs, err = sqlx.In(countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int
	if err := db.GetContext(ctx, &total, db.Rebind(q), qargs...); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return messages, total, nil
}

// ListUnknownMessages returns a page of stored mail that matched no
// alias at ingest time, newest first, plus the total count. This is
// the admin's inspection window into unattributed mail.
func (db *DB) ListUnknownMessages(ctx context.Context, limit, offset int) ([]*models.MessageSummary, int, error) {
	db.gate.Lock()
	defer db.gate.Unlock()

	query := `
		SELECT uid, to_addr, from_addr, subject, received_at,
		       html_body IS NOT NULL AS has_html
		FROM emails
		WHERE owner_id = ?
		ORDER BY uid DESC
		LIMIT ? OFFSET ?
	`
	var messages []*models.MessageSummary
	if err := db.SelectContext(ctx, &messages, query, models.OwnerUnknown, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list unknown messages: %w", err)
	}

	var total int
	err := db.GetContext(ctx, &total, `SELECT COUNT(*) FROM emails WHERE owner_id = ?`, models.OwnerUnknown)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count unknown messages: %w", err)
	}
	return messages, total, nil
}

// DeleteMessage removes a stored message
func (db *DB) DeleteMessage(ctx context.Context, uid uint32) (bool, error) {
	db.gate.Lock()
	defer db.gate.Unlock()

	result, err := db.ExecContext(ctx, `DELETE FROM emails WHERE uid = ?`, uid)
	if err != nil {
		return false, fmt.Errorf("failed to delete message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}
