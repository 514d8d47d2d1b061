// Package attempts はサインイン送信試行の記録を非同期に保存します。
//
// Controller の状態遷移は Asynq タスクとして投入され、ワーカーが Redis 上の
// Record に反映します。パスワードは一切扱いません。
package attempts

import (
	"time"

	"github.com/yourusername/signin/internal/credentials"
	"github.com/yourusername/signin/internal/signin"
)

// Status は送信試行の状態を表します。
type Status string

const (
	StatusSubmitting Status = "submitting"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// statusFor は Controller の状態を記録上の状態に変換します。
func statusFor(s signin.State) (Status, bool) {
	switch s {
	case signin.StateSubmitting:
		return StatusSubmitting, true
	case signin.StateSucceeded:
		return StatusSucceeded, true
	case signin.StateFailed:
		return StatusFailed, true
	default:
		return "", false
	}
}

// ErrorInfo は失敗時のエラー情報を保持します。
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Record は送信試行の現在状態を表します。
type Record struct {
	AttemptID  string     `json:"attemptId"`
	Identifier string     `json:"email"`
	Owner      string     `json:"owner"`
	Status     Status     `json:"status"`
	Error      *ErrorInfo `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	ExpiresAt  time.Time  `json:"expiresAt"`
}

// OwnedBy は identifier のユーザーが送信した試行かを返します。
func (r *Record) OwnedBy(identifier string) bool {
	return r.Owner != "" && r.Owner == credentials.OwnerDigest(identifier)
}

// Terminal は試行が確定済みかを返します。
func (r *Record) Terminal() bool {
	return r.Status == StatusSucceeded || r.Status == StatusFailed
}
