package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yourusername/signin/internal/signin"
)

const sessionFileName = "session.json"

// Local は端末クライアント用に、最後にサインインしたセッションを JSON ファイルへ保存します。
//
// 保存先: <dir>/session.json（パーミッション 0600）
type Local struct {
	dir string
}

// NewLocal は Local を作成します。dir は必要に応じて作成されます。
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage dir is required")
	}
	return &Local{dir: dir}, nil
}

// Path は保存先ファイルのパスを返します。
func (l *Local) Path() string {
	return filepath.Join(l.dir, sessionFileName)
}

// Save はセッションを書き込みます。既存のファイルは置き換えられます。
func (l *Local) Save(_ context.Context, session *signin.Session) error {
	if session == nil {
		return fmt.Errorf("session is nil")
	}
	if err := os.MkdirAll(l.dir, 0o700); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	payload, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(l.dir, sessionFileName+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), l.Path())
}

// Current は保存済みのセッションを返します。保存されていない場合は nil です。
func (l *Local) Current(_ context.Context) (*signin.Session, error) {
	data, err := os.ReadFile(l.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var session signin.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode %s: %w", l.Path(), err)
	}
	return &session, nil
}

// Clear は保存済みのセッションを削除します。
func (l *Local) Clear(_ context.Context) error {
	if err := os.Remove(l.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
