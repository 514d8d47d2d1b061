// Package storage はセッションの保存先を提供します。
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yourusername/signin/internal/signin"
)

const (
	sessionKeyPrefix = "session:"
)

// RedisSessions はセッションを Redis に保存します。
type RedisSessions struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewRedisSessions は RedisSessions を作成します。
// ttl はセッションに有効期限が無い場合に使う保持期間です。
func NewRedisSessions(rdb *redis.Client, ttl time.Duration) *RedisSessions {
	return &RedisSessions{
		rdb: rdb,
		ttl: ttl,
		now: time.Now,
	}
}

// Save はセッションを保存します。有効期限を過ぎたセッションは保存しません。
func (s *RedisSessions) Save(ctx context.Context, session *signin.Session) error {
	if session == nil {
		return fmt.Errorf("session is nil")
	}
	if session.ID == "" {
		return fmt.Errorf("session id is required")
	}
	ttl := s.ttl
	if !session.ExpiresAt.IsZero() {
		ttl = session.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return fmt.Errorf("session %s already expired", session.ID)
		}
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionKey(session.ID), payload, ttl).Err()
}

// Load はセッションを取得します。存在しない場合は nil を返します。
func (s *RedisSessions) Load(ctx context.Context, id string) (*signin.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}
	data, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var session signin.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Delete はセッションを削除します。
func (s *RedisSessions) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.rdb.Del(ctx, sessionKey(id)).Err()
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}
