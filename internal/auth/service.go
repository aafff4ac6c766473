package auth

import (
	"context"
	"errors"
	"time"

	"github.com/marcx-ai/marcx-backend/internal/mailer"
	"github.com/marcx-ai/marcx-backend/internal/model"
	"github.com/marcx-ai/marcx-backend/internal/repository"
	"github.com/marcx-ai/marcx-backend/internal/store"
	"github.com/marcx-ai/marcx-backend/internal/utils"
)

// UserStore is the slice of the user repository the engine needs.
type UserStore interface {
	Create(ctx context.Context, email, name, role string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	MarkEmailVerified(ctx context.Context, id uint64) error
}

// CredentialStore resolves and creates login credentials.
type CredentialStore interface {
	Create(ctx context.Context, userID uint64, ctype, identifier string) (model.Credential, error)
	GetByIdentifier(ctx context.Context, identifier, ctype string) (model.Credential, error)
}

// OTPStore persists one-time code hashes. MarkUsed must be a
// conditional update on used=0 so concurrent verifies serialize on it.
type OTPStore interface {
	Insert(ctx context.Context, credentialID uint64, purpose, tokenHash string, expiresAt time.Time) error
	LatestUnused(ctx context.Context, credentialID uint64, purpose string) (model.VerificationToken, error)
	MarkUsed(ctx context.Context, id uint64) (bool, error)
	IncrementAttempts(ctx context.Context, id uint64) error
}

// TokenStore is the refresh-token cache capability (store.RefreshStore
// in production).
type TokenStore interface {
	Save(ctx context.Context, token string, rec store.Record) error
	Lookup(ctx context.Context, token string) (store.Record, error)
	DeleteLookup(ctx context.Context, token string) error
	Revoke(ctx context.Context, token string, userID uint64) error
	RevokeAll(ctx context.Context, userID uint64) error
}

// Config carries the tunables of the engine.
type Config struct {
	JWTSecret      string
	AccessTTL      time.Duration // 15 minutes
	RefreshTTL     time.Duration // 7 days
	OTPTTL         time.Duration // 10 minutes
	OTPMaxAttempts int           // failed comparisons before a code goes dead
	BcryptCost     int
}

// Service wires the engine's collaborators together.
type Service struct {
	cfg    Config
	users  UserStore
	creds  CredentialStore
	otps   OTPStore
	tokens TokenStore
	mail   mailer.Mailer
}

func NewService(cfg Config, users UserStore, creds CredentialStore, otps OTPStore, tokens TokenStore, mail mailer.Mailer) *Service {
	return &Service{cfg: cfg, users: users, creds: creds, otps: otps, tokens: tokens, mail: mail}
}

// Register creates the user plus its EMAIL credential and issues a
// verification OTP. The caller is not logged in yet; tokens are only
// minted after the code comes back verified.
func (s *Service) Register(ctx context.Context, email, name string) (model.User, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return model.User{}, ErrUserExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, err
	}

	user, err := s.users.Create(ctx, email, name, model.RoleCompanyOwner)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.User{}, ErrUserExists
		}
		return model.User{}, err
	}
	cred, err := s.creds.Create(ctx, user.ID, model.CredentialTypeEmail, user.Email)
	if err != nil {
		return model.User{}, err
	}
	if err := s.issueOTP(ctx, cred, user, model.PurposeEmailVerification); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// Login issues a login OTP for a verified account. No tokens yet;
// the pair is minted by VerifyLogin.
func (s *Service) Login(ctx context.Context, email string) error {
	cred, user, err := s.resolveCredential(ctx, email)
	if err != nil {
		return err
	}
	if !user.EmailVerified {
		return ErrEmailNotVerified
	}
	return s.issueOTP(ctx, cred, user, model.PurposeLogin)
}

// SendOTP re-sends a login code. Works for any known credential;
// unverified accounts go through Register/VerifyRegistration instead.
func (s *Service) SendOTP(ctx context.Context, email string) error {
	cred, user, err := s.resolveCredential(ctx, email)
	if err != nil {
		return err
	}
	return s.issueOTP(ctx, cred, user, model.PurposeLogin)
}

// VerifyRegistration checks a registration code, flips the user's
// email_verified flag and logs the user in with a fresh token pair.
func (s *Service) VerifyRegistration(ctx context.Context, email, code string) (model.User, TokenPair, error) {
	user, err := s.verifyOTP(ctx, email, model.PurposeEmailVerification, code)
	if err != nil {
		return model.User{}, TokenPair{}, err
	}
	if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
		return model.User{}, TokenPair{}, err
	}
	user.EmailVerified = true
	pair, err := s.IssueTokenPair(ctx, user)
	if err != nil {
		return model.User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// VerifyLogin checks a login code and mints a token pair.
func (s *Service) VerifyLogin(ctx context.Context, email, code string) (model.User, TokenPair, error) {
	user, err := s.verifyOTP(ctx, email, model.PurposeLogin, code)
	if err != nil {
		return model.User{}, TokenPair{}, err
	}
	pair, err := s.IssueTokenPair(ctx, user)
	if err != nil {
		return model.User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// ValidateAccess parses an access token and confirms the referenced
// user still exists. Returns the request principal.
func (s *Service) ValidateAccess(ctx context.Context, raw string) (utils.Claims, error) {
	cl, err := utils.ParseAccessToken(s.cfg.JWTSecret, raw)
	if err != nil {
		return utils.Claims{}, err
	}
	if _, err := s.users.GetByID(ctx, cl.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.Claims{}, ErrUserNotFound
		}
		return utils.Claims{}, err
	}
	return cl, nil
}

func (s *Service) resolveCredential(ctx context.Context, email string) (model.Credential, model.User, error) {
	cred, err := s.creds.GetByIdentifier(ctx, email, model.CredentialTypeEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Credential{}, model.User{}, ErrUserNotFound
		}
		return model.Credential{}, model.User{}, err
	}
	user, err := s.users.GetByID(ctx, cred.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Credential{}, model.User{}, ErrUserNotFound
		}
		return model.Credential{}, model.User{}, err
	}
	return cred, user, nil
}

// issueOTP generates a 6-digit code, stores its bcrypt hash with a
// 10-minute expiry and hands the plain code to the mailer.
func (s *Service) issueOTP(ctx context.Context, cred model.Credential, user model.User, purpose string) error {
	code, err := utils.NewOTPCode()
	if err != nil {
		return err
	}
	hash, err := utils.HashOTPCode(code, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	expiresAt := time.Now().UTC().Add(s.cfg.OTPTTL)
	if err := s.otps.Insert(ctx, cred.ID, purpose, hash, expiresAt); err != nil {
		return err
	}
	return s.mail.SendOTPEmail(ctx, user.Email, user.Name, code, purpose)
}

// verifyOTP runs the verification ladder: resolve credential, pick
// the newest unused code, check expiry and the attempt cap, compare
// hashes, then claim the code with a conditional mark-used. Marking
// used happens before any downstream token is minted so a code can
// not be replayed by a concurrent retry.
func (s *Service) verifyOTP(ctx context.Context, email, purpose, code string) (model.User, error) {
	cred, user, err := s.resolveCredential(ctx, email)
	if err != nil {
		return model.User{}, err
	}
	tok, err := s.otps.LatestUnused(ctx, cred.ID, purpose)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrOTPInvalidOrExpired
		}
		return model.User{}, err
	}
	if tok.Used {
		return model.User{}, ErrOTPAlreadyUsed
	}
	if time.Now().UTC().After(tok.ExpiresAt) {
		return model.User{}, ErrOTPExpired
	}
	if s.cfg.OTPMaxAttempts > 0 && tok.Attempts >= s.cfg.OTPMaxAttempts {
		// Too many wrong guesses; the code is dead even if correct.
		return model.User{}, ErrOTPInvalidOrExpired
	}
	if !utils.VerifyOTPCode(tok.TokenHash, code) {
		if err := s.otps.IncrementAttempts(ctx, tok.ID); err != nil {
			return model.User{}, err
		}
		return model.User{}, ErrOTPInvalidCode
	}
	ok, err := s.otps.MarkUsed(ctx, tok.ID)
	if err != nil {
		return model.User{}, err
	}
	if !ok {
		// Lost the race against a concurrent verify of the same code.
		return model.User{}, ErrOTPAlreadyUsed
	}
	return user, nil
}
