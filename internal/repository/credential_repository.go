package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/marcx-ai/marcx-backend/internal/model"
)

// CredentialRepo persists login credentials. In the OTP-only flow a
// single EMAIL credential per user carries no secret.
type CredentialRepo struct{ DB *sql.DB }

func NewCredentialRepo(db *sql.DB) *CredentialRepo { return &CredentialRepo{DB: db} }

// Create inserts a credential row for a user.
func (r *CredentialRepo) Create(ctx context.Context, userID uint64, ctype, identifier string) (model.Credential, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO credentials (user_id, type, identifier, secret) VALUES (?,?,?,NULL)",
		userID, ctype, identifier)
	if err != nil {
		return model.Credential{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Credential{}, err
	}
	return model.Credential{ID: uint64(id), UserID: userID, Type: ctype, Identifier: identifier}, nil
}

// GetByIdentifier resolves a credential by (identifier, type).
func (r *CredentialRepo) GetByIdentifier(ctx context.Context, identifier, ctype string) (model.Credential, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	var (
		c      model.Credential
		secret sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,type,identifier,secret,created_at FROM credentials WHERE identifier=? AND type=? LIMIT 1",
		identifier, ctype).Scan(&c.ID, &c.UserID, &c.Type, &c.Identifier, &secret, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Credential{}, ErrNotFound
		}
		return model.Credential{}, err
	}
	if secret.Valid {
		c.Secret = &secret.String
	}
	return c, nil
}
