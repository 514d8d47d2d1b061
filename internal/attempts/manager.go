package attempts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/yourusername/signin/internal/config"
	"github.com/yourusername/signin/internal/signin"
)

const (
	taskTypeAttempt = "signin:attempt"
	queueName       = "attempts"
)

// Manager は状態遷移のタスク投入と、記録を保存するワーカーを担います。
// signin.Recorder を実装します。
type Manager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	store  *Store
	logger *log.Logger
}

// NewManager は Manager を初期化します。
func NewManager(cfg *config.Config, store *Store, logger *log.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return newManager(opt, store, logger), nil
}

func newManager(opt asynq.RedisConnOpt, store *Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				queueName: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		client: asynq.NewClient(opt),
		server: server,
		mux:    mux,
		store:  store,
		logger: logger,
	}
	mux.HandleFunc(taskTypeAttempt, manager.handleAttemptTask)
	return manager
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			m.logger.Printf("asynq server stopped with error: %v", err)
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	return m.client.Close()
}

// Record は状態遷移をキューに投入します。
func (m *Manager) Record(ctx context.Context, t signin.Transition) error {
	if t.AttemptID == "" {
		return fmt.Errorf("transition.AttemptID is required")
	}
	body, err := json.Marshal(t)
	if err != nil {
		return err
	}

	task := asynq.NewTask(taskTypeAttempt, body, asynq.Queue(queueName))
	if _, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(3), asynq.Timeout(30*time.Second)); err != nil {
		return fmt.Errorf("enqueue attempt %s: %w", t.AttemptID, err)
	}
	return nil
}

// GetRecord は送信試行の記録を取得します。
func (m *Manager) GetRecord(ctx context.Context, attemptID string) (*Record, error) {
	return m.store.Get(ctx, attemptID)
}

func (m *Manager) handleAttemptTask(ctx context.Context, task *asynq.Task) error {
	var t signin.Transition
	if err := json.Unmarshal(task.Payload(), &t); err != nil {
		return fmt.Errorf("decode transition: %v: %w", err, asynq.SkipRetry)
	}
	if t.AttemptID == "" {
		return fmt.Errorf("missing attemptId in payload: %w", asynq.SkipRetry)
	}
	if err := m.store.Apply(ctx, t); err != nil {
		m.logger.Printf("failed to record attempt=%s to=%s: %v", t.AttemptID, t.To, err)
		return err
	}
	return nil
}
