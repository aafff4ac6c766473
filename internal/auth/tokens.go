package auth

import (
	"context"
	"errors"
	"time"

	"github.com/marcx-ai/marcx-backend/internal/model"
	"github.com/marcx-ai/marcx-backend/internal/repository"
	"github.com/marcx-ai/marcx-backend/internal/store"
	"github.com/marcx-ai/marcx-backend/internal/utils"
)

// TokenPair is the result of a successful OTP verification: a signed
// short-lived access token plus an opaque long-lived refresh token.
// ExpiresIn is the access-token lifetime in seconds.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// IssueTokenPair mints the pair and persists the refresh-token record
// triple in the cache with the refresh TTL. Called once per
// successful OTP verification; refresh itself never reaches here.
func (s *Service) IssueTokenPair(ctx context.Context, user model.User) (TokenPair, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, utils.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}, s.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	rec := store.Record{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		TokenHash: utils.HashRefreshRaw(refresh.Raw),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.tokens.Save(ctx, refresh.Raw, rec); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access.Token,
		RefreshToken: refresh.Raw,
		ExpiresIn:    int(s.cfg.AccessTTL / time.Second),
	}, nil
}

// Refresh exchanges a live refresh token for a new access token. The
// refresh token is not rotated; it stays valid until its own TTL or
// an explicit revoke.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int, error) {
	rec, err := s.tokens.Lookup(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", 0, ErrRefreshInvalidOrExpired
		}
		return "", 0, err
	}
	// The lookup key already embeds the raw value; comparing against
	// the stored hash guards a stale or forged record.
	if utils.HashRefreshRaw(refreshToken) != rec.TokenHash {
		return "", 0, ErrRefreshInvalid
	}
	if _, err := s.users.GetByID(ctx, rec.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Lazy cleanup of a token orphaned by user deletion.
			_ = s.tokens.DeleteLookup(ctx, refreshToken)
			return "", 0, ErrUserNotFound
		}
		return "", 0, err
	}
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, utils.Claims{
		UserID: rec.UserID,
		Email:  rec.Email,
		Role:   rec.Role,
	}, s.cfg.AccessTTL)
	if err != nil {
		return "", 0, err
	}
	return access.Token, int(s.cfg.AccessTTL / time.Second), nil
}

// Revoke invalidates a single refresh token. A token already gone
// (revoked or expired) yields ErrRefreshInvalid.
func (s *Service) Revoke(ctx context.Context, refreshToken string, userID uint64) error {
	if err := s.tokens.Revoke(ctx, refreshToken, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRefreshInvalid
		}
		return err
	}
	return nil
}

// RevokeAll invalidates every live refresh token of a user. Succeeds
// as a no-op when none exist.
func (s *Service) RevokeAll(ctx context.Context, userID uint64) error {
	return s.tokens.RevokeAll(ctx, userID)
}
