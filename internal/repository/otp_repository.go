package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/marcx-ai/marcx-backend/internal/model"
)

// OTPRepo persists one-time verification codes (hash only). Rows are
// never deleted; the `used` flag plus expiry keep stale codes inert
// while preserving an audit trail.
type OTPRepo struct{ DB *sql.DB }

func NewOTPRepo(db *sql.DB) *OTPRepo { return &OTPRepo{DB: db} }

// Insert stores a freshly issued code hash.
func (r *OTPRepo) Insert(ctx context.Context, credentialID uint64, purpose, tokenHash string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO verification_tokens (credential_id, purpose, token_hash, expires_at, used, attempts) VALUES (?,?,?,?,0,0)",
		credentialID, purpose, tokenHash, expiresAt)
	return err
}

// LatestUnused returns the newest unused token for a credential and
// purpose. Older unused rows are superseded and ignored.
func (r *OTPRepo) LatestUnused(ctx context.Context, credentialID uint64, purpose string) (model.VerificationToken, error) {
	var t model.VerificationToken
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,credential_id,purpose,token_hash,expires_at,used,attempts,created_at
		 FROM verification_tokens
		 WHERE credential_id=? AND purpose=? AND used=0
		 ORDER BY created_at DESC LIMIT 1`,
		credentialID, purpose).Scan(
		&t.ID, &t.CredentialID, &t.Purpose, &t.TokenHash, &t.ExpiresAt, &t.Used, &t.Attempts, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.VerificationToken{}, ErrNotFound
		}
		return model.VerificationToken{}, err
	}
	return t, nil
}

// MarkUsed flips used=1 with a conditional update. The condition on
// used=0 is the serialization point for concurrent verify calls: the
// first caller gets true, everyone else false.
func (r *OTPRepo) MarkUsed(ctx context.Context, id uint64) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE verification_tokens SET used=1 WHERE id=? AND used=0", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IncrementAttempts records a failed code comparison.
func (r *OTPRepo) IncrementAttempts(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE verification_tokens SET attempts=attempts+1 WHERE id=?", id)
	return err
}
