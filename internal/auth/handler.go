package auth

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/signin/internal/credentials"
	"github.com/yourusername/signin/internal/signin"
)

// Login は /api/auth/login のハンドラーです。
func (m *Manager) Login(c *gin.Context) {
	var req credentials.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "send email and password as JSON",
		})
		return
	}
	if errs := credentials.Validate(req); !errs.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":   "INVALID_INPUT",
			"errors": errs.Messages(),
		})
		return
	}

	ctx := WithClientIP(c.Request.Context(), c.ClientIP())
	session, err := m.Authenticate(ctx, req.Identifier, req.Secret)
	if err != nil {
		m.writeAuthError(c, err, m.RemainingAttempts(ctx, req.Identifier))
		return
	}

	if m.sessions != nil {
		if err := m.sessions.Save(ctx, session); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    signin.CodeSessionSaveFailed,
				"message": "failed to store the session",
			})
			return
		}
	}

	if _, err := m.EstablishSession(c, session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    signin.CodeSessionSaveFailed,
			"message": "failed to store the session",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": session.ID,
		"token":     session.Token,
		"expiresAt": session.ExpiresAt.UTC().Format(time.RFC3339),
		"user": gin.H{
			"id":    session.UserID,
			"email": session.Identifier,
		},
	})
}

// EstablishSession はログイン済みであることを Cookie セッションに書き込み、
// 発行した CSRF トークンを X-CSRF-Token ヘッダーにも設定します。
func (m *Manager) EstablishSession(c *gin.Context, s *signin.Session) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	session := sessions.Default(c)
	now := m.now()
	session.Set(sessionKeyUser, s.Identifier)
	session.Set(sessionKeyID, s.ID)
	session.Set(sessionKeyIssuedAt, now.Unix())
	session.Set(sessionKeyLastActive, now.Unix())
	session.Set(sessionKeyCSRF, token)
	if err := session.Save(); err != nil {
		return "", err
	}

	c.Header(csrfHeader, token)
	return token, nil
}

// Logout は /api/auth/logout のハンドラーです。
func (m *Manager) Logout(c *gin.Context) {
	session := sessions.Default(c)
	if id, ok := session.Get(sessionKeyID).(string); ok && id != "" && m.sessions != nil {
		if err := m.sessions.Delete(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "SESSION_DELETE_FAILED",
				"message": "failed to revoke the session",
			})
			return
		}
	}
	session.Clear()
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_SAVE_FAILED",
			"message": "failed to clear the session",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

func (m *Manager) writeAuthError(c *gin.Context, err error, remaining int) {
	var authErr *signin.AuthError
	if !errors.As(err, &authErr) {
		authErr = &signin.AuthError{Code: signin.CodeUnavailable, Err: err}
	}

	switch authErr.Code {
	case signin.CodeTooManyAttempts:
		// Retry-After は秒数で返す
		c.Header("Retry-After", strconv.FormatInt(int64(authErr.RetryAfter.Seconds()), 10))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"code":    authErr.Code,
			"message": authErr.Message,
		})
	case signin.CodeInvalidCredentials:
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":              authErr.Code,
			"message":           signin.GenericFailureMessage,
			"remainingAttempts": remaining,
		})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    signin.CodeUnavailable,
			"message": "authentication is temporarily unavailable",
		})
	}
}
