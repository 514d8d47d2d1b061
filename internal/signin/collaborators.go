// Package signin はサインインフォームの送信状態機械と、その外部協調者のインターフェースを提供します。
//
// 認証・画面遷移・通知・セッション保存はすべて協調者として注入され、
// Controller 自身は状態遷移と結果の振り分けだけを担います。
package signin

import (
	"context"
	"time"
)

// Session は認証成功時に協調者から返されるセッション情報です。
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Identifier string    `json:"email"`
	Token      string    `json:"token"`
	IssuedAt   time.Time `json:"issuedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Authenticator は識別子とパスワードを検証し、セッションを返す協調者です。
// 呼び出しは送信1回につき最大1回です。
type Authenticator interface {
	Authenticate(ctx context.Context, identifier, secret string) (*Session, error)
}

// AuthenticatorFunc は関数を Authenticator として扱うためのアダプターです。
type AuthenticatorFunc func(ctx context.Context, identifier, secret string) (*Session, error)

// Authenticate は f を呼び出します。
func (f AuthenticatorFunc) Authenticate(ctx context.Context, identifier, secret string) (*Session, error) {
	return f(ctx, identifier, secret)
}

// Navigator は画面遷移を要求する協調者です。戻り値は使いません。
type Navigator interface {
	Navigate(path string)
}

// Variant は通知の表示種別です。
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification は利用者に表示する通知です。
type Notification struct {
	Title   string  `json:"title"`
	Message string  `json:"message"`
	Variant Variant `json:"variant"`
}

// Notifier は通知を表示する協調者です。
type Notifier interface {
	Show(n Notification)
}

// SessionStore は認証成功後のセッションを保存する協調者です。
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
}

// Recorder は送信試行の状態遷移を受け取ります。失敗しても送信結果には影響しません。
type Recorder interface {
	Record(ctx context.Context, t Transition) error
}
