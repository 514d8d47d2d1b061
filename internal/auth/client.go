package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/signin/internal/credentials"
	"github.com/yourusername/signin/internal/signin"
)

// HTTPAuthenticator は認証APIの /api/auth/login を呼び出す signin.Authenticator です。
type HTTPAuthenticator struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAuthenticator は HTTPAuthenticator を作成します。client が nil なら http.DefaultClient を使います。
func NewHTTPAuthenticator(baseURL string, client *http.Client) *HTTPAuthenticator {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPAuthenticator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type loginResponse struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	User      struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Authenticate は認証APIにログインを要求します。
func (a *HTTPAuthenticator) Authenticate(ctx context.Context, identifier, secret string) (*signin.Session, error) {
	body, err := json.Marshal(credentials.Credentials{Identifier: identifier, Secret: secret})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &signin.AuthError{Code: signin.CodeUnavailable, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &signin.AuthError{Code: signin.CodeUnavailable, Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return decodeSession(data)
	case http.StatusUnauthorized:
		return nil, &signin.AuthError{Code: signin.CodeInvalidCredentials}
	case http.StatusTooManyRequests:
		var payload errorResponse
		_ = json.Unmarshal(data, &payload)
		message := payload.Message
		if message == "" {
			message = tooManyAttemptsMessage
		}
		return nil, &signin.AuthError{
			Code:       signin.CodeTooManyAttempts,
			Message:    message,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	default:
		return nil, &signin.AuthError{
			Code: signin.CodeUnavailable,
			Err:  fmt.Errorf("unexpected status %d from auth server", resp.StatusCode),
		}
	}
}

func decodeSession(data []byte) (*signin.Session, error) {
	var payload loginResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &signin.AuthError{Code: signin.CodeUnavailable, Err: fmt.Errorf("decode login response: %w", err)}
	}
	if payload.Token == "" {
		return nil, &signin.AuthError{Code: signin.CodeUnavailable, Err: fmt.Errorf("login response has no token")}
	}
	session := &signin.Session{
		ID:         payload.SessionID,
		UserID:     payload.User.ID,
		Identifier: payload.User.Email,
		Token:      payload.Token,
	}
	if payload.ExpiresAt != "" {
		expiresAt, err := time.Parse(time.RFC3339, payload.ExpiresAt)
		if err != nil {
			return nil, &signin.AuthError{Code: signin.CodeUnavailable, Err: fmt.Errorf("decode expiresAt: %w", err)}
		}
		session.ExpiresAt = expiresAt
	}
	return session, nil
}

func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
