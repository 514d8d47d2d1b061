package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/yourusername/signin/internal/signin"
)

// savedSessions は端末に保存されたセッションです。
type savedSessions interface {
	Current(ctx context.Context) (*signin.Session, error)
	Clear(ctx context.Context) error
}

// activeSession は有効期限内の保存済みセッションを返します。
// 期限切れ、または期限の分からないセッションは削除して nil を返します。
func activeSession(ctx context.Context, store savedSessions, now time.Time) (*signin.Session, error) {
	s, err := store.Current(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	if s.ExpiresAt.IsZero() || !now.Before(s.ExpiresAt) {
		if err := store.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return s, nil
}

// logout は保存済みのセッションを削除します。
func logout(ctx context.Context, store savedSessions, w io.Writer) error {
	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	fmt.Fprintln(w, "Signed out.")
	return nil
}
