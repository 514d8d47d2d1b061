package signin

import (
	"context"
	"errors"
	"time"
)

type timeoutAuthenticator struct {
	next    Authenticator
	timeout time.Duration
}

// WithTimeout は認証呼び出し1回ごとに timeout の上限を課します。
// 協調者が ctx を無視して戻らない場合も、上限を過ぎた時点で失敗として扱います。
// timeout が 0 以下なら next をそのまま返します。
func WithTimeout(next Authenticator, timeout time.Duration) Authenticator {
	if timeout <= 0 {
		return next
	}
	return &timeoutAuthenticator{next: next, timeout: timeout}
}

type authResult struct {
	session *Session
	err     error
}

func (a *timeoutAuthenticator) Authenticate(ctx context.Context, identifier, secret string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan authResult, 1)
	go func() {
		s, err := a.next.Authenticate(ctx, identifier, secret)
		done <- authResult{session: s, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &AuthError{Code: CodeTimeout, Err: res.err}
		}
		return res.session, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &AuthError{Code: CodeTimeout, Err: ctx.Err()}
		}
		return nil, ctx.Err()
	}
}
