package signin

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidState は状態ガードに違反した Submit/Reset 呼び出しです。UI 配線の不具合を意味します。
	ErrInvalidState = errors.New("invalid state")
	// ErrValidation は入力検証エラーにより送信が行われなかったことを表します。
	ErrValidation = errors.New("credentials failed validation")
	// ErrAuthenticationFailed は送信後の失敗（資格情報不一致・通信失敗・タイムアウト）をまとめた種別です。
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// 認証協調者が返す区別のコードです。
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	CodeUnavailable        = "AUTH_UNAVAILABLE"
	CodeTimeout            = "AUTH_TIMEOUT"
	CodeSessionSaveFailed  = "SESSION_SAVE_FAILED"
)

const (
	failureTitle   = "Login Failed"
	successTitle   = "Login Successful"
	successMessage = "Welcome back!"

	// GenericFailureMessage はどちらの入力欄が誤っていたかを明かさない失敗メッセージです。
	GenericFailureMessage = "Invalid email or password. Please try again."
)

// AuthError は認証協調者が失敗の区別を明示するためのエラーです。
// Message が空でなければ、そのまま利用者に表示されます。
type AuthError struct {
	Code       string
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// SubmitError は送信試行の失敗です。errors.Is(err, ErrAuthenticationFailed) が真になります。
type SubmitError struct {
	Code   string
	Reason string
	Err    error
}

func (e *SubmitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Code, e.Err)
	}
	return "authentication failed: " + e.Code
}

func (e *SubmitError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAuthenticationFailed}
	}
	return []error{ErrAuthenticationFailed, e.Err}
}

// newSubmitError は協調者のエラーを利用者向けの理由に変換します。
// 協調者が区別を明示しない限り、汎用メッセージを使います。
func newSubmitError(err error) *SubmitError {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		reason := authErr.Message
		if reason == "" {
			reason = GenericFailureMessage
		}
		code := authErr.Code
		if code == "" {
			code = CodeInvalidCredentials
		}
		return &SubmitError{Code: code, Reason: reason, Err: err}
	}
	return &SubmitError{Code: CodeUnavailable, Reason: GenericFailureMessage, Err: err}
}

func failureNotification(reason string) Notification {
	return Notification{Title: failureTitle, Message: reason, Variant: VariantDestructive}
}

func successNotification() Notification {
	return Notification{Title: successTitle, Message: successMessage, Variant: VariantDefault}
}
