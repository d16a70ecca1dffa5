package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkit/internal/common"
	"github.com/dmitrijs2005/authkit/internal/logging"
	"github.com/dmitrijs2005/authkit/internal/server/models"
	"github.com/dmitrijs2005/authkit/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var expiresAt = time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)

type fakeUsers struct {
	registerErr error
	loginErr    error
	authErr     error
	refreshErr  error
	changeErr   error
	revokeErr   error

	gotToken    string
	revoked     string
	newPassword string
}

func (f *fakeUsers) Register(_ context.Context, name, email, _ string) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &models.User{ID: "user-1", Name: name, Email: email}, nil
}

func (f *fakeUsers) Login(_ context.Context, _, _ string) (*services.Session, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &services.Session{UserID: "user-1", Token: "tok-login", ExpiresAt: expiresAt}, nil
}

func (f *fakeUsers) Authenticate(_ context.Context, token string) (*models.User, error) {
	f.gotToken = token
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &models.User{ID: "user-1", Name: "demo", Email: "demo@example.com"}, nil
}

func (f *fakeUsers) RefreshToken(_ context.Context, userID string) (*services.Session, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &services.Session{UserID: userID, Token: "tok-fresh", ExpiresAt: expiresAt}, nil
}

func (f *fakeUsers) ChangePassword(_ context.Context, _, newPassword string) error {
	f.newPassword = newPassword
	return f.changeErr
}

func (f *fakeUsers) InvalidateTokens(_ context.Context, userID string) error {
	f.revoked = userID
	return f.revokeErr
}

func do(t *testing.T, h http.Handler, method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func authCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == common.AuthCookieName {
			return c
		}
	}
	return nil
}

func withCookie(tok string) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: common.AuthCookieName, Value: tok})
	}
}

func TestRegister(t *testing.T) {
	h := NewServer("", logging.Nop(), &fakeUsers{}).Handler()

	rec := do(t, h, http.MethodPost, "/api/register", `{"name":"demo","email":"demo@example.com","password":"welcome"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	out := decodeEnvelope(t, rec)
	result := out["result"].(map[string]any)
	assert.Equal(t, "user-1", result["id"])
	assert.Equal(t, "demo@example.com", result["email"])
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"unknown field", `{"nope":1}`, nil, http.StatusBadRequest},
		{"validation", `{"email":"x"}`, fmt.Errorf("%w: invalid email", common.ErrorValidation), http.StatusBadRequest},
		{"duplicate", `{"email":"a@b"}`, common.ErrorAlreadyExists, http.StatusConflict},
		{"internal", `{"email":"a@b"}`, common.ErrorInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewServer("", logging.Nop(), &fakeUsers{registerErr: tt.err}).Handler()
			rec := do(t, h, http.MethodPost, "/api/register", tt.body)
			assert.Equal(t, tt.status, rec.Code)

			out := decodeEnvelope(t, rec)
			assert.Contains(t, out, "error")
			assert.NotContains(t, out, "result")
		})
	}
}

func TestLogin_SetsCookie(t *testing.T) {
	h := NewServer("", logging.Nop(), &fakeUsers{}).Handler()

	rec := do(t, h, http.MethodPost, "/api/login", `{"email":"demo@example.com","password":"welcome"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	c := authCookie(rec)
	require.NotNil(t, c)
	assert.Equal(t, "tok-login", c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/", c.Path)

	result := decodeEnvelope(t, rec)["result"].(map[string]any)
	assert.Equal(t, "tok-login", result["token"])
	assert.Equal(t, "2024-05-17T10:30:00Z", result["expires_at"])
}

func TestLogin_Unauthorized(t *testing.T) {
	h := NewServer("", logging.Nop(), &fakeUsers{loginErr: common.ErrorUnauthorized}).Handler()

	rec := do(t, h, http.MethodPost, "/api/login", `{"email":"demo@example.com","password":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, authCookie(rec))

	e := decodeEnvelope(t, rec)["error"].(map[string]any)
	assert.Equal(t, "unauthorized", e["message"])
}

func TestLogoff(t *testing.T) {
	h := NewServer("", logging.Nop(), &fakeUsers{}).Handler()

	rec := do(t, h, http.MethodPost, "/api/logoff", `{"logoff":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	c := authCookie(rec)
	require.NotNil(t, c)
	assert.Empty(t, c.Value)
	assert.Less(t, c.MaxAge, 0)

	rec = do(t, h, http.MethodPost, "/api/logoff", `{"logoff":false}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMe(t *testing.T) {
	users := &fakeUsers{}
	h := NewServer("", logging.Nop(), users).Handler()

	rec := do(t, h, http.MethodGet, "/api/me", "", withCookie("tok-cookie"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-cookie", users.gotToken)

	c := authCookie(rec)
	require.NotNil(t, c)
	assert.Equal(t, "tok-fresh", c.Value)

	result := decodeEnvelope(t, rec)["result"].(map[string]any)
	assert.Equal(t, "user-1", result["id"])
}

func TestMe_BearerHeader(t *testing.T) {
	users := &fakeUsers{}
	h := NewServer("", logging.Nop(), users).Handler()

	rec := do(t, h, http.MethodGet, "/api/me", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer tok-header")
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-header", users.gotToken)
}

func TestMe_AuthErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"expired", fmt.Errorf("%w: %w", common.ErrorUnauthorized, common.ErrTokenExpired), http.StatusUnauthorized, "unauthorized"},
		{"invalid", fmt.Errorf("%w: %w", common.ErrorUnauthorized, common.ErrInvalidToken), http.StatusUnauthorized, "unauthorized"},
		{"internal", common.ErrorInternal, http.StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewServer("", logging.Nop(), &fakeUsers{authErr: tt.err}).Handler()
			rec := do(t, h, http.MethodGet, "/api/me", "", withCookie("tok"))
			assert.Equal(t, tt.status, rec.Code)
			e := decodeEnvelope(t, rec)["error"].(map[string]any)
			assert.Equal(t, tt.message, e["message"])
		})
	}
}

func TestMe_MissingToken(t *testing.T) {
	h := NewServer("", logging.Nop(), &fakeUsers{}).Handler()

	rec := do(t, h, http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	e := decodeEnvelope(t, rec)["error"].(map[string]any)
	assert.Equal(t, "missing token", e["message"])
}

func TestChangePassword(t *testing.T) {
	users := &fakeUsers{}
	h := NewServer("", logging.Nop(), users).Handler()

	rec := do(t, h, http.MethodPost, "/api/password", `{"password":"new-secret"}`, withCookie("tok"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new-secret", users.newPassword)

	users.changeErr = fmt.Errorf("%w: too short", common.ErrorValidation)
	rec = do(t, h, http.MethodPost, "/api/password", `{"password":""}`, withCookie("tok"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutAll(t *testing.T) {
	users := &fakeUsers{}
	h := NewServer("", logging.Nop(), users).Handler()

	rec := do(t, h, http.MethodPost, "/api/logout-all", "", withCookie("tok"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", users.revoked)
	c := authCookie(rec)
	require.NotNil(t, c)
	assert.Empty(t, c.Value)
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewServer("", logging.Nop(), &fakeUsers{}).Handler()

	rec := do(t, h, http.MethodGet, "/api/login", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestID_Propagated(t *testing.T) {
	h := NewServer("", logging.Nop(), &fakeUsers{}).Handler()

	rec := do(t, h, http.MethodPost, "/api/logoff", `{"logoff":true}`, func(r *http.Request) {
		r.Header.Set(requestIDHeader, "req-42")
	})
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer("", logging.Nop(), &fakeUsers{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	resp, err := http.Post("http://"+lis.Addr().String()+"/api/logoff", "application/json", strings.NewReader(`{"logoff":true}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	s := NewServer("127.0.0.1:99999", logging.Nop(), &fakeUsers{})
	assert.Error(t, s.Run(context.Background()))
}
