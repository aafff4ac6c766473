package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/marcx-ai/marcx-backend/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,name,role,email_verified,company_id,created_at,updated_at"

// Create inserts a user and returns the stored record. Registration
// never sets a password; identity is proven by OTP.
func (r *UserRepo) Create(ctx context.Context, email, name, role string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, name, role, email_verified) VALUES (?,?,?,0)",
		email, name, role)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// MarkEmailVerified flips email_verified after a successful
// registration OTP check.
func (r *UserRepo) MarkEmailVerified(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_verified=1 WHERE id=?", id)
	return err
}

// SetCompany attaches a user to a company. Called by the company
// module during onboarding; set once.
func (r *UserRepo) SetCompany(ctx context.Context, id, companyID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET company_id=? WHERE id=? AND company_id IS NULL", companyID, id)
	return err
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u         model.User
		companyID sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.EmailVerified, &companyID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	if companyID.Valid {
		cid := uint64(companyID.Int64)
		u.CompanyID = &cid
	}
	return u, nil
}
