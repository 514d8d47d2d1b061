package signin

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Factory はフォーム1つ分の Controller を作成します。
// effects はそのフォーム専用の遷移・通知の記録です。
type Factory func(formID string, effects *Effects) (*Controller, error)

type registryEntry struct {
	form     *Form
	lastSeen time.Time
}

// Registry は画面表示ごとのフォームを管理します。
// 表示時に Mount、画面を離れるときに Dispose します。
type Registry struct {
	factory Factory
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	forms map[string]*registryEntry
}

// NewRegistry は Registry を作成します。ttl が 0 以下なら放置されたフォームを掃除しません。
func NewRegistry(factory Factory, ttl time.Duration) (*Registry, error) {
	if factory == nil {
		return nil, errors.New("factory is nil")
	}
	return &Registry{
		factory: factory,
		ttl:     ttl,
		now:     time.Now,
		forms:   make(map[string]*registryEntry),
	}, nil
}

// Mount は新しいフォームを作成して登録します。
func (r *Registry) Mount() (*Form, error) {
	id := uuid.NewString()
	effects := &Effects{}
	ctrl, err := r.factory(id, effects)
	if err != nil {
		return nil, err
	}
	form := NewForm(id, ctrl, effects)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.forms[id] = &registryEntry{form: form, lastSeen: r.now()}
	return form, nil
}

// Get は登録済みのフォームを返します。
func (r *Registry) Get(id string) (*Form, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.forms[id]
	if !ok {
		return nil, false
	}
	entry.lastSeen = r.now()
	return entry.form, true
}

// Dispose はフォームを破棄します。
func (r *Registry) Dispose(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.forms[id]; !ok {
		return false
	}
	delete(r.forms, id)
	return true
}

// Len は登録中のフォーム数です。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.forms)
}

// Sweep は ttl を超えて操作されていないフォームを破棄し、破棄した数を返します。
// 送信中のフォームは破棄しません。
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for id, entry := range r.forms {
		if entry.lastSeen.After(cutoff) || entry.form.Busy() {
			continue
		}
		delete(r.forms, id)
		removed++
	}
	return removed
}

// StartSweeper は interval ごとに Sweep を実行します。stop を閉じると終了します。
func (r *Registry) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 || r.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep()
			case <-stop:
				return
			}
		}
	}()
}
