package models

import "time"

// OwnerUnknown is the owner sentinel for mail whose recipient does not
// match any alias. Such mail is stored anyway for admin inspection.
const OwnerUnknown int64 = 0

// StoredMessage is an ingested email, immutable once written.
// UID is the server-assigned IMAP UID and the primary key; a second
// insert for the same UID is a no-op, never an overwrite.
type StoredMessage struct {
	UID        uint32    `db:"uid"`
	OwnerID    int64     `db:"owner_id"`
	ToAddr     string    `db:"to_addr"`
	FromAddr   string    `db:"from_addr"`
	Subject    string    `db:"subject"`
	TextBody   string    `db:"text_body"`
	HTMLBody   []byte    `db:"html_body"`
	ReceivedAt time.Time `db:"received_at"`
}

// MessageSummary is the list-view projection used by the bot and the
// web dashboard.
type MessageSummary struct {
	UID        uint32    `db:"uid" json:"uid"`
	ToAddr     string    `db:"to_addr" json:"to_addr"`
	FromAddr   string    `db:"from_addr" json:"from_addr"`
	Subject    string    `db:"subject" json:"subject"`
	ReceivedAt time.Time `db:"received_at" json:"received_at"`
	HasHTML    bool      `db:"has_html" json:"has_html"`
}
