// Package store persists verified profiles and the conversation audit trail.
package store

import (
	"database/sql"
	"time"
)

// Profile is a verified identity record. UserID is the pseudonymized Telegram
// user id; attribute columns are nullable because providers reveal different
// subsets.
type Profile struct {
	UserID      string         `db:"user_id"`
	DID         sql.NullString `db:"did"`
	Gender      sql.NullString `db:"gender"`
	DateOfBirth sql.NullString `db:"date_of_birth"`
	Citizenship sql.NullString `db:"citizenship"`
	Address1    sql.NullString `db:"address1"`
	Address2    sql.NullString `db:"address2"`
	Address3    sql.NullString `db:"address3"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// Response is one audited conversation turn.
type Response struct {
	ID         int64     `db:"id"`
	UserID     string    `db:"user_id"`
	ChatID     int64     `db:"chat_id"`
	ResponseID string    `db:"response_id"`
	CreatedAt  time.Time `db:"created_at"`
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
