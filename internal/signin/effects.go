package signin

import "sync"

// Effects は遷移要求と通知をその場で実行せずに記録します。
// リクエスト/レスポンス型の UI で、結果をクライアントへ返すために使います。
type Effects struct {
	mu            sync.Mutex
	redirects     []string
	notifications []Notification
}

// Navigate は遷移要求を記録します。
func (e *Effects) Navigate(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.redirects = append(e.redirects, path)
}

// Show は通知を記録します。
func (e *Effects) Show(n Notification) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifications = append(e.notifications, n)
}

// Drain は記録済みの遷移先と通知を取り出し、記録を空にします。
// 遷移要求が複数ある場合は最後のものを返します。
func (e *Effects) Drain() (string, []Notification) {
	e.mu.Lock()
	defer e.mu.Unlock()

	redirect := ""
	if n := len(e.redirects); n > 0 {
		redirect = e.redirects[n-1]
	}
	notes := e.notifications
	e.redirects = nil
	e.notifications = nil
	return redirect, notes
}
