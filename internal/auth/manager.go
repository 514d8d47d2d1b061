// Package auth は認証・認可機能を提供します。
//
// Manager は signin.Authenticator を実装し、サインインフォームの認証協調者として
// そのまま注入できます。/api/auth/* のハンドラーも同じ Manager が提供します。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/signin/internal/config"
	"github.com/yourusername/signin/internal/signin"
)

const (
	SessionCookieName    = "signin_session"
	sessionKeyUser       = "auth_user"
	sessionKeyID         = "session_id"
	sessionKeyIssuedAt   = "issued_at"
	sessionKeyLastActive = "last_activity"
	sessionKeyCSRF       = "csrf_token"

	csrfHeader = "X-CSRF-Token"

	tooManyAttemptsMessage = "Too many attempts. Please try again later."
)

var (
	maxSessionLifetime = 12 * time.Hour
	idleTimeout        = 30 * time.Minute
	loginWindow        = 15 * time.Minute
	lockDuration       = 10 * time.Minute
	maxLoginAttempts   = 5
)

var errNoAccounts = errors.New("no accounts configured")

// SessionMaxAgeSeconds はクッキーの MaxAge に利用する秒数を返します。
func SessionMaxAgeSeconds() int {
	return int(maxSessionLifetime.Seconds())
}

// ContextUserKey は、ハンドラー間でログイン済みユーザーを共有するためのキーです。
const ContextUserKey = "auth.user"

// SessionRepository はセッションの保存・参照・削除を行います。
type SessionRepository interface {
	signin.SessionStore
	Load(ctx context.Context, id string) (*signin.Session, error)
	Delete(ctx context.Context, id string) error
}

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	accounts Accounts
	tokens   *TokenIssuer
	sessions SessionRepository
	now      func() time.Time

	lock     sync.Mutex
	attempts map[string]*attemptState
}

// New は Manager を作成します。sessions は nil でも構いません。
func New(accounts Accounts, tokens *TokenIssuer, sessions SessionRepository) *Manager {
	if accounts == nil {
		accounts = Accounts{}
	}
	return &Manager{
		accounts: accounts,
		tokens:   tokens,
		sessions: sessions,
		now:      time.Now,
		attempts: make(map[string]*attemptState),
	}
}

// NewManager は設定からアカウントとトークン発行者を組み立てて Manager を作成します。
// TOKEN_SECRET が未設定の場合は起動ごとのランダムな鍵を使います（開発用）。
func NewManager(cfg *config.Config, sessions SessionRepository) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	accounts := Accounts{}
	if cfg.AccountsFile != "" {
		loaded, err := LoadAccounts(cfg.AccountsFile)
		if err != nil {
			return nil, err
		}
		accounts = loaded
	}
	if cfg.AppUsername != "" {
		if err := accounts.Add(Account{Email: cfg.AppUsername, PasswordHash: cfg.AppPasswordHash}); err != nil {
			return nil, err
		}
	}

	secret := cfg.TokenSecret
	if secret == "" {
		generated, err := generateToken()
		if err != nil {
			return nil, err
		}
		secret = generated
	}
	tokens, err := NewTokenIssuer(secret, cfg.TokenTTL())
	if err != nil {
		return nil, err
	}
	return New(accounts, tokens, sessions), nil
}

// Tokens はトークン発行者を返します。
func (m *Manager) Tokens() *TokenIssuer {
	return m.tokens
}

// Authenticate はメールアドレスとパスワードを検証し、新しいセッションを発行します。
// どちらの入力が誤っていたかは区別せず、同じ INVALID_CREDENTIALS を返します。
// 試行回数は ctx の接続元IP（なければメールアドレス）ごとに数えます。
func (m *Manager) Authenticate(ctx context.Context, identifier, secret string) (*signin.Session, error) {
	if len(m.accounts) == 0 || m.tokens == nil {
		return nil, &signin.AuthError{Code: signin.CodeUnavailable, Err: errNoAccounts}
	}

	key := attemptKey(ctx, identifier)
	if retryAfter := m.checkLock(key); retryAfter > 0 {
		return nil, &signin.AuthError{
			Code:       signin.CodeTooManyAttempts,
			Message:    tooManyAttemptsMessage,
			RetryAfter: retryAfter,
		}
	}

	acc, ok := m.accounts.Lookup(identifier)
	if !ok {
		// 存在しないアカウントでも同じ計算量にする
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(secret))
		m.recordFailure(key)
		return nil, &signin.AuthError{Code: signin.CodeInvalidCredentials}
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(secret)) != nil {
		m.recordFailure(key)
		return nil, &signin.AuthError{Code: signin.CodeInvalidCredentials}
	}

	m.resetAttempts(key)

	now := m.now()
	sessionID := uuid.NewString()
	token, expiresAt, err := m.tokens.Issue(sessionID, acc, now)
	if err != nil {
		return nil, &signin.AuthError{Code: signin.CodeUnavailable, Err: err}
	}
	return &signin.Session{
		ID:         sessionID,
		UserID:     acc.UserID,
		Identifier: acc.Email,
		Token:      token,
		IssuedAt:   now,
		ExpiresAt:  expiresAt,
	}, nil
}

// RemainingAttempts はロックまでに残っている試行回数です。
func (m *Manager) RemainingAttempts(ctx context.Context, identifier string) int {
	m.lock.Lock()
	defer m.lock.Unlock()

	state, ok := m.attempts[attemptKey(ctx, identifier)]
	if !ok || m.now().Sub(state.firstAttempt) > loginWindow {
		return maxLoginAttempts
	}
	remaining := maxLoginAttempts - state.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func attemptKey(ctx context.Context, identifier string) string {
	if ip := ClientIPFromContext(ctx); ip != "" {
		return "ip:" + ip
	}
	return "email:" + normalizeEmail(identifier)
}

func (m *Manager) checkLock(key string) time.Duration {
	m.lock.Lock()
	defer m.lock.Unlock()

	state, ok := m.attempts[key]
	if !ok {
		return 0
	}
	now := m.now()
	if now.After(state.lockedUntil) {
		return 0
	}
	return state.lockedUntil.Sub(now)
}

func (m *Manager) recordFailure(key string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	state, ok := m.attempts[key]
	if !ok || now.Sub(state.firstAttempt) > loginWindow {
		state = &attemptState{firstAttempt: now}
		m.attempts[key] = state
	}

	state.count++
	if state.count >= maxLoginAttempts {
		state.lockedUntil = now.Add(lockDuration)
		state.count = maxLoginAttempts
	}
}

func (m *Manager) resetAttempts(key string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.attempts, key)
}

var (
	dummyOnce sync.Once
	dummy     []byte
)

func dummyHash() []byte {
	dummyOnce.Do(func() {
		dummy, _ = bcrypt.GenerateFromPassword([]byte("signin-dummy-password"), bcrypt.DefaultCost)
	})
	return dummy
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
