package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Profiles reads and writes verified identity records.
type Profiles struct {
	db *sqlx.DB
}

// NewProfiles returns a profile repository over db.
func NewProfiles(db *sqlx.DB) *Profiles {
	return &Profiles{db: db}
}

// UpsertArgs carries the claims for one verification result. Empty attribute
// values are stored as NULL.
type UpsertArgs struct {
	UserID      string
	DID         string
	Gender      string
	DateOfBirth string
	Citizenship string
	Address1    string
	Address2    string
	Address3    string
}

// Upsert inserts the profile, or refreshes it when the user re-verifies.
func (p *Profiles) Upsert(ctx context.Context, args UpsertArgs) error {
	const q = `
		INSERT INTO profiles (user_id, did, gender, date_of_birth, citizenship, address1, address2, address3, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (user_id) DO UPDATE SET
			did = EXCLUDED.did,
			gender = EXCLUDED.gender,
			date_of_birth = EXCLUDED.date_of_birth,
			citizenship = EXCLUDED.citizenship,
			address1 = EXCLUDED.address1,
			address2 = EXCLUDED.address2,
			address3 = EXCLUDED.address3,
			updated_at = now()`

	_, err := p.db.ExecContext(ctx, q,
		args.UserID,
		nullable(args.DID),
		nullable(args.Gender),
		nullable(args.DateOfBirth),
		nullable(args.Citizenship),
		nullable(args.Address1),
		nullable(args.Address2),
		nullable(args.Address3),
	)
	if err != nil {
		return fmt.Errorf("store: upsert profile: %w", err)
	}
	return nil
}

// GetByUserID returns the profile for the pseudonymized user id, or
// (nil, nil) when the user has not verified.
func (p *Profiles) GetByUserID(ctx context.Context, userID string) (*Profile, error) {
	var profile Profile
	err := p.db.GetContext(ctx, &profile, `SELECT * FROM profiles WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get profile: %w", err)
	}
	return &profile, nil
}
