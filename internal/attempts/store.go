package attempts

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
	attemptKeyPrefix = "attempt:"
	maxUpdateRetries = 10
)

// Store は送信試行の記録を Redis に保存します。
type Store struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewStore は Store を作成します。
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{
		rdb: rdb,
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Get は記録を取得します。存在しない場合は nil を返します。
func (s *Store) Get(ctx context.Context, attemptID string) (*Record, error) {
	if attemptID == "" {
		return nil, fmt.Errorf("attemptID is required")
	}
	data, err := s.rdb.Get(ctx, attemptKey(attemptID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Apply は状態遷移を記録に反映します。
// タスクは順不同で届くので、確定済みの記録は Submitting に戻しません。
func (s *Store) Apply(ctx context.Context, t signin.Transition) error {
	status, ok := statusFor(t.To)
	if !ok {
		return fmt.Errorf("unsupported transition target %q", t.To)
	}
	if t.AttemptID == "" {
		return fmt.Errorf("transition.AttemptID is required")
	}

	return s.update(ctx, t.AttemptID, func(record *Record) {
		if record.Identifier == "" {
			record.Identifier = t.Identifier
		}
		if record.Owner == "" {
			record.Owner = t.Owner
		}
		if status == StatusSubmitting {
			if record.StartedAt.IsZero() || t.At.Before(record.StartedAt) {
				record.StartedAt = t.At
			}
			if record.Terminal() {
				return
			}
		} else {
			record.FinishedAt = t.At
			if record.StartedAt.IsZero() {
				record.StartedAt = t.At
			}
		}
		record.Status = status
		switch status {
		case StatusFailed:
			record.Error = &ErrorInfo{Code: t.Code, Message: t.Reason}
		case StatusSucceeded:
			record.Error = nil
		}
	})
}

func (s *Store) update(ctx context.Context, attemptID string, mutate func(*Record)) error {
	key := attemptKey(attemptID)
	txf := func(tx *redis.Tx) error {
		var record Record
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			record = Record{AttemptID: attemptID}
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(data, &record); err != nil {
				return err
			}
		}

		mutate(&record)
		now := s.now()
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		record.UpdatedAt = now
		if record.ExpiresAt.IsZero() && s.ttl > 0 {
			record.ExpiresAt = record.CreatedAt.Add(s.ttl)
		}
		payload, err := json.Marshal(&record)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("attempt %s: too much contention", attemptID)
}

func attemptKey(id string) string {
	return attemptKeyPrefix + id
}
