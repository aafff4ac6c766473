package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/marcx-ai/marcx-backend/internal/auth"
	"github.com/marcx-ai/marcx-backend/internal/handler"
	"github.com/marcx-ai/marcx-backend/internal/model"
	"github.com/marcx-ai/marcx-backend/internal/repository"
	"github.com/marcx-ai/marcx-backend/internal/router"
	"github.com/marcx-ai/marcx-backend/internal/store"
)

// ----- in-memory stores -----

type memUsers struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]model.User
}

func (m *memUsers) Create(_ context.Context, email, name, role string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := model.User{ID: m.nextID, Email: strings.ToLower(email), Name: name, Role: role}
	m.users[u.ID] = u
	m.nextID++
	return u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) MarkEmailVerified(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.EmailVerified = true
	m.users[id] = u
	return nil
}

type memCreds struct {
	mu     sync.Mutex
	nextID uint64
	creds  []model.Credential
}

func (m *memCreds) Create(_ context.Context, userID uint64, ctype, identifier string) (model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := model.Credential{ID: m.nextID, UserID: userID, Type: ctype, Identifier: strings.ToLower(identifier)}
	m.creds = append(m.creds, c)
	m.nextID++
	return c, nil
}

func (m *memCreds) GetByIdentifier(_ context.Context, identifier, ctype string) (model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.creds {
		if c.Identifier == strings.ToLower(identifier) && c.Type == ctype {
			return c, nil
		}
	}
	return model.Credential{}, repository.ErrNotFound
}

type memOTPs struct {
	mu     sync.Mutex
	nextID uint64
	rows   []model.VerificationToken
}

func (m *memOTPs) Insert(_ context.Context, credentialID uint64, purpose, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, model.VerificationToken{
		ID: m.nextID, CredentialID: credentialID, Purpose: purpose,
		TokenHash: tokenHash, ExpiresAt: expiresAt, CreatedAt: time.Now().UTC(),
	})
	m.nextID++
	return nil
}

func (m *memOTPs) LatestUnused(_ context.Context, credentialID uint64, purpose string) (model.VerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		r := m.rows[i]
		if r.CredentialID == credentialID && r.Purpose == purpose && !r.Used {
			return r, nil
		}
	}
	return model.VerificationToken{}, repository.ErrNotFound
}

func (m *memOTPs) MarkUsed(_ context.Context, id uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id && !m.rows[i].Used {
			m.rows[i].Used = true
			return true, nil
		}
	}
	return false, nil
}

func (m *memOTPs) IncrementAttempts(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i].Attempts++
		}
	}
	return nil
}

type memMailer struct {
	mu   sync.Mutex
	last string
}

func (m *memMailer) SendOTPEmail(_ context.Context, _, _, code, _ string) error {
	m.mu.Lock()
	m.last = code
	m.mu.Unlock()
	return nil
}

func (m *memMailer) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// ----- test server -----

type testServer struct {
	e    *echo.Echo
	svc  *auth.Service
	mail *memMailer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	mail := &memMailer{}
	svc := auth.NewService(auth.Config{
		JWTSecret:      "test-secret",
		AccessTTL:      15 * time.Minute,
		RefreshTTL:     7 * 24 * time.Hour,
		OTPTTL:         10 * time.Minute,
		OTPMaxAttempts: 5,
		BcryptCost:     bcrypt.MinCost,
	},
		&memUsers{nextID: 1, users: map[uint64]model.User{}},
		&memCreds{nextID: 1},
		&memOTPs{nextID: 1},
		store.NewRefreshStore(store.NewRedisKV(rdb), 7*24*time.Hour),
		mail,
	)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(svc, 7*24*time.Hour, false), svc.ValidateAccess, nil)

	return &testServer{e: e, svc: svc, mail: mail}
}

func (s *testServer) do(method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, f := range mutate {
		f(req)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// register + verify, returning the token pair from the verify response.
func (s *testServer) signup(t *testing.T, email string) (access, refresh string) {
	t.Helper()
	rec := s.do(http.MethodPost, "/auth/register", `{"email":"`+email+`","name":"Test"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/auth/register/verify",
		`{"email":"`+email+`","code":"`+s.mail.lastCode()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	return body["accessToken"].(string), body["refreshToken"].(string)
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ----- tests -----

func TestRegisterEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/auth/register", `{"email":"alice@example.com","name":"Alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "Registration successful. Please verify your email with the OTP sent.", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "COMPANY_OWNER", user["role"])
	assert.Equal(t, false, user["emailVerified"])

	// No tokens and no cookies until the code is verified.
	assert.Nil(t, cookieByName(rec, handler.AccessCookieName))
}

func TestRegisterEndpoint_Duplicate(t *testing.T) {
	s := newTestServer(t)

	s.do(http.MethodPost, "/auth/register", `{"email":"alice@example.com","name":"Alice"}`)
	rec := s.do(http.MethodPost, "/auth/register", `{"email":"alice@example.com","name":"Alice"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestVerifyRegistrationEndpoint(t *testing.T) {
	s := newTestServer(t)

	s.do(http.MethodPost, "/auth/register", `{"email":"alice@example.com","name":"Alice"}`)
	rec := s.do(http.MethodPost, "/auth/register/verify",
		`{"email":"alice@example.com","code":"`+s.mail.lastCode()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["refreshToken"])
	assert.Equal(t, float64(900), body["expiresIn"])
	assert.Equal(t, true, body["requiresCompanySetup"])

	ac := cookieByName(rec, handler.AccessCookieName)
	require.NotNil(t, ac)
	assert.True(t, ac.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, ac.SameSite)
	assert.Equal(t, 900, ac.MaxAge)

	rc := cookieByName(rec, handler.RefreshCookieName)
	require.NotNil(t, rc)
	assert.True(t, rc.HttpOnly)
	assert.Equal(t, 604800, rc.MaxAge)
}

func TestLoginEndpoint_Unverified(t *testing.T) {
	s := newTestServer(t)

	s.do(http.MethodPost, "/auth/register", `{"email":"alice@example.com","name":"Alice"}`)
	rec := s.do(http.MethodPost, "/auth/login", `{"email":"alice@example.com"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "please verify your email first", decode(t, rec)["error"])
}

func TestSendOTPEndpoint_UnknownEmail(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/auth/otp/send", `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginFlowEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "alice@example.com")

	rec := s.do(http.MethodPost, "/auth/login", `{"email":"alice@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/auth/login/verify",
		`{"email":"alice@example.com","code":"`+s.mail.lastCode()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Login successful", decode(t, rec)["message"])
}

func TestRefreshEndpoint(t *testing.T) {
	s := newTestServer(t)
	_, refresh := s.signup(t, "alice@example.com")

	rec := s.do(http.MethodPost, "/auth/refresh", `{"refreshToken":"`+refresh+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.NotEmpty(t, body["accessToken"])
	assert.Equal(t, "Token refreshed successfully", body["message"])
	// Refresh renews only the access cookie.
	assert.NotNil(t, cookieByName(rec, handler.AccessCookieName))
	assert.Nil(t, cookieByName(rec, handler.RefreshCookieName))
}

func TestRefreshEndpoint_BodyBeatsCookie(t *testing.T) {
	s := newTestServer(t)
	_, tokenX := s.signup(t, "a@example.com")
	_, tokenY := s.signup(t, "b@example.com")

	rec := s.do(http.MethodPost, "/auth/refresh", `{"refreshToken":"`+tokenX+`"}`,
		func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: handler.RefreshCookieName, Value: tokenY})
		})
	require.Equal(t, http.StatusOK, rec.Code)

	// The minted access token must belong to the body token's user.
	access := decode(t, rec)["accessToken"].(string)
	cl, err := s.svc.ValidateAccess(context.Background(), access)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", cl.Email)
}

func TestRefreshEndpoint_BearerBeatsCookie(t *testing.T) {
	s := newTestServer(t)
	_, tokenX := s.signup(t, "a@example.com")
	_, tokenY := s.signup(t, "b@example.com")

	rec := s.do(http.MethodPost, "/auth/refresh", "",
		func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+tokenX)
			r.AddCookie(&http.Cookie{Name: handler.RefreshCookieName, Value: tokenY})
		})
	require.Equal(t, http.StatusOK, rec.Code)

	access := decode(t, rec)["accessToken"].(string)
	cl, err := s.svc.ValidateAccess(context.Background(), access)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", cl.Email)
}

func TestRefreshEndpoint_Missing(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/auth/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshEndpoint_Revoked(t *testing.T) {
	s := newTestServer(t)
	access, refresh := s.signup(t, "alice@example.com")

	rec := s.do(http.MethodPost, "/auth/revoke", `{"refreshToken":"`+refresh+`"}`,
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+access) })
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/auth/refresh", `{"refreshToken":"`+refresh+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRevokeEndpoint_NoToken(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.signup(t, "alice@example.com")

	// Best-effort logout: still 200, cookies cleared.
	rec := s.do(http.MethodPost, "/auth/revoke", "",
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+access) })
	require.Equal(t, http.StatusOK, rec.Code)

	ac := cookieByName(rec, handler.AccessCookieName)
	require.NotNil(t, ac)
	assert.Less(t, ac.MaxAge, 0)
}

func TestRevokeEndpoint_Unauthenticated(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/auth/revoke", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRevokeAllEndpoint(t *testing.T) {
	s := newTestServer(t)
	access, refresh := s.signup(t, "alice@example.com")

	rec := s.do(http.MethodPost, "/auth/revoke-all", "",
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+access) })
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/auth/refresh", `{"refreshToken":"`+refresh+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRevokeAll_Forbidden(t *testing.T) {
	s := newTestServer(t)
	// Registration grants COMPANY_OWNER, which is not enough here.
	access, _ := s.signup(t, "alice@example.com")

	rec := s.do(http.MethodPost, "/v1/admin/users/1/revoke-all", "",
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+access) })
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMeEndpoint(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.signup(t, "alice@example.com")

	t.Run("via cookie", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/v1/me", "",
			func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: handler.AccessCookieName, Value: access})
			})
		require.Equal(t, http.StatusOK, rec.Code)
		user := decode(t, rec)["user"].(map[string]any)
		assert.Equal(t, "alice@example.com", user["email"])
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/v1/me", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
