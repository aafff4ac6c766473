package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/marcx-ai/marcx-backend/internal/model"
	"github.com/marcx-ai/marcx-backend/internal/repository"
)

// In-memory collaborators. They mirror the repository semantics the
// engine depends on, most importantly the conditional mark-used in
// fakeOTPs which must behave like the SQL `UPDATE ... WHERE used=0`.

type fakeUsers struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{nextID: 1, byID: map[uint64]model.User{}}
}

func (f *fakeUsers) Create(_ context.Context, email, name, role string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range f.byID {
		if u.Email == email {
			return model.User{}, repository.ErrEmailExists
		}
	}
	u := model.User{ID: f.nextID, Email: email, Name: name, Role: role}
	f.byID[u.ID] = u
	f.nextID++
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) MarkEmailVerified(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.EmailVerified = true
	f.byID[id] = u
	return nil
}

func (f *fakeUsers) delete(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
}

type fakeCreds struct {
	mu     sync.Mutex
	nextID uint64
	all    []model.Credential
}

func newFakeCreds() *fakeCreds { return &fakeCreds{nextID: 1} }

func (f *fakeCreds) Create(_ context.Context, userID uint64, ctype, identifier string) (model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := model.Credential{ID: f.nextID, UserID: userID, Type: ctype, Identifier: strings.ToLower(identifier)}
	f.all = append(f.all, c)
	f.nextID++
	return c, nil
}

func (f *fakeCreds) GetByIdentifier(_ context.Context, identifier, ctype string) (model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identifier = strings.ToLower(identifier)
	for _, c := range f.all {
		if c.Identifier == identifier && c.Type == ctype {
			return c, nil
		}
	}
	return model.Credential{}, repository.ErrNotFound
}

type fakeOTPs struct {
	mu     sync.Mutex
	nextID uint64
	rows   []model.VerificationToken
}

func newFakeOTPs() *fakeOTPs { return &fakeOTPs{nextID: 1} }

func (f *fakeOTPs) Insert(_ context.Context, credentialID uint64, purpose, tokenHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, model.VerificationToken{
		ID:           f.nextID,
		CredentialID: credentialID,
		Purpose:      purpose,
		TokenHash:    tokenHash,
		ExpiresAt:    expiresAt,
		CreatedAt:    time.Now().UTC(),
	})
	f.nextID++
	return nil
}

func (f *fakeOTPs) LatestUnused(_ context.Context, credentialID uint64, purpose string) (model.VerificationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *model.VerificationToken
	for i := range f.rows {
		r := &f.rows[i]
		if r.CredentialID != credentialID || r.Purpose != purpose || r.Used {
			continue
		}
		if best == nil || r.CreatedAt.After(best.CreatedAt) || (r.CreatedAt.Equal(best.CreatedAt) && r.ID > best.ID) {
			best = r
		}
	}
	if best == nil {
		return model.VerificationToken{}, repository.ErrNotFound
	}
	return *best, nil
}

// MarkUsed is the serialization point; only the first caller gets true.
func (f *fakeOTPs) MarkUsed(_ context.Context, id uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id && !f.rows[i].Used {
			f.rows[i].Used = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeOTPs) IncrementAttempts(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].Attempts++
		}
	}
	return nil
}

func (f *fakeOTPs) expire(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].ExpiresAt = time.Now().UTC().Add(-time.Minute)
		}
	}
}

func (f *fakeOTPs) latestID() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextID - 1
}

// captureMailer records delivered codes instead of sending anything.
type captureMailer struct {
	mu    sync.Mutex
	codes []string
}

func (m *captureMailer) SendOTPEmail(_ context.Context, _, _, code, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, code)
	return nil
}

func (m *captureMailer) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.codes) == 0 {
		return ""
	}
	return m.codes[len(m.codes)-1]
}
