package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/signin/internal/signin"
)

func newTestRouter(m *Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(sessions.Sessions(SessionCookieName, cookie.NewStore([]byte("cookie-secret"))))
	router.POST("/api/auth/login", m.Login)
	router.POST("/api/auth/logout", m.RequireLogin(), m.VerifyCSRF(), m.Logout)
	router.GET("/api/dashboard", m.RequireLogin(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(ContextUserKey)})
	})
	return router
}

func postJSON(router http.Handler, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLoginHandlerSuccess(t *testing.T) {
	repo := newMemorySessions()
	m := newTestManager(t, repo)
	router := newTestRouter(m)

	rec := postJSON(router, "/api/auth/login", `{"email":"user@example.com","password":"correct-horse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(csrfHeader) == "" {
		t.Fatal("expected CSRF header")
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Fatal("expected session cookie")
	}

	var payload loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.Token == "" || payload.User.Email != testEmail {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if stored, _ := repo.Load(context.Background(), payload.SessionID); stored == nil {
		t.Fatal("session was not saved")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+payload.Token)
	dash := httptest.NewRecorder()
	router.ServeHTTP(dash, req)
	if dash.Code != http.StatusOK {
		t.Fatalf("bearer token rejected: %d %s", dash.Code, dash.Body.String())
	}
}

func TestLoginHandlerInvalidCredentials(t *testing.T) {
	router := newTestRouter(newTestManager(t, nil))

	rec := postJSON(router, "/api/auth/login", `{"email":"user@example.com","password":"wrong-one"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["code"] != signin.CodeInvalidCredentials || payload["message"] != signin.GenericFailureMessage {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if payload["remainingAttempts"] != float64(maxLoginAttempts-1) {
		t.Fatalf("unexpected remainingAttempts: %#v", payload["remainingAttempts"])
	}
}

func TestLoginHandlerValidatesInput(t *testing.T) {
	router := newTestRouter(newTestManager(t, nil))

	rec := postJSON(router, "/api/auth/login", `{"email":"not-an-email","password":"abc"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload struct {
		Code   string            `json:"code"`
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.Errors["email"] == "" || payload.Errors["password"] == "" {
		t.Fatalf("expected field errors: %#v", payload)
	}

	if rec := postJSON(router, "/api/auth/login", `not-json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status for malformed body: %d", rec.Code)
	}
}

func TestLoginHandlerLockout(t *testing.T) {
	router := newTestRouter(newTestManager(t, nil))

	for i := 0; i < maxLoginAttempts; i++ {
		postJSON(router, "/api/auth/login", `{"email":"user@example.com","password":"wrong-one"}`)
	}
	rec := postJSON(router, "/api/auth/login", `{"email":"user@example.com","password":"correct-horse"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestDashboardRequiresLogin(t *testing.T) {
	router := newTestRouter(newTestManager(t, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status for bad token: %d", rec.Code)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	repo := newMemorySessions()
	router := newTestRouter(newTestManager(t, repo))

	login := postJSON(router, "/api/auth/login", `{"email":"user@example.com","password":"correct-horse"}`)
	if login.Code != http.StatusOK {
		t.Fatalf("login failed: %d", login.Code)
	}
	cookies := login.Result().Cookies()
	csrf := login.Header().Get(csrfHeader)

	withCookies := func(req *http.Request) *http.Request {
		for _, c := range cookies {
			req.AddCookie(c)
		}
		return req
	}

	dash := httptest.NewRecorder()
	router.ServeHTTP(dash, withCookies(httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)))
	if dash.Code != http.StatusOK {
		t.Fatalf("cookie session rejected: %d %s", dash.Code, dash.Body.String())
	}

	noCSRF := httptest.NewRecorder()
	router.ServeHTTP(noCSRF, withCookies(httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)))
	if noCSRF.Code != http.StatusForbidden {
		t.Fatalf("logout without CSRF token should be rejected: %d", noCSRF.Code)
	}

	req := withCookies(httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	req.Header.Set(csrfHeader, csrf)
	logout := httptest.NewRecorder()
	router.ServeHTTP(logout, req)
	if logout.Code != http.StatusNoContent {
		t.Fatalf("unexpected logout status: %d %s", logout.Code, logout.Body.String())
	}
	if len(repo.items) != 0 {
		t.Fatalf("session not revoked: %d left", len(repo.items))
	}
}

func TestHTTPAuthenticatorAgainstLoginHandler(t *testing.T) {
	server := httptest.NewServer(newTestRouter(newTestManager(t, nil)))
	defer server.Close()
	client := NewHTTPAuthenticator(server.URL+"/", server.Client())

	s, err := client.Authenticate(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if s.Token == "" || s.Identifier != testEmail || s.ExpiresAt.Before(time.Now()) {
		t.Fatalf("unexpected session: %#v", s)
	}

	_, err = client.Authenticate(context.Background(), testEmail, "wrong-one")
	var authErr *signin.AuthError
	if !errors.As(err, &authErr) || authErr.Code != signin.CodeInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestHTTPAuthenticatorMapsStatuses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		header map[string]string
		body   string
		code   string
	}{
		{"locked", http.StatusTooManyRequests, map[string]string{"Retry-After": "30"}, `{"code":"TOO_MANY_ATTEMPTS","message":"slow down"}`, signin.CodeTooManyAttempts},
		{"server error", http.StatusInternalServerError, nil, `{}`, signin.CodeUnavailable},
		{"missing token", http.StatusOK, nil, `{"sessionId":"s"}`, signin.CodeUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tc.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := NewHTTPAuthenticator(server.URL, nil).Authenticate(context.Background(), testEmail, testPassword)
			var authErr *signin.AuthError
			if !errors.As(err, &authErr) || authErr.Code != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
			if tc.code == signin.CodeTooManyAttempts && (authErr.RetryAfter != 30*time.Second || authErr.Message != "slow down") {
				t.Fatalf("unexpected lockout details: %#v", authErr)
			}
		})
	}
}

func TestHTTPAuthenticatorTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewHTTPAuthenticator(url, nil).Authenticate(context.Background(), testEmail, testPassword)
	var authErr *signin.AuthError
	if !errors.As(err, &authErr) || authErr.Code != signin.CodeUnavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
