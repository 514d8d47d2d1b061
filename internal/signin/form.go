package signin

import (
	"context"
	"errors"
	"sync"

	"github.com/yourusername/signin/internal/credentials"
)

// Form は1つの画面に表示されたサインインフォームです。
// 入力中の値と入力欄ごとのエラーを持ち、送信は Controller に委ねます。
type Form struct {
	id      string
	ctrl    *Controller
	effects *Effects

	mu     sync.Mutex
	draft  credentials.Credentials
	errors credentials.FieldErrors
}

// NewForm は空の入力値を持つフォームを作成します。effects は nil でも構いません。
func NewForm(id string, ctrl *Controller, effects *Effects) *Form {
	return &Form{
		id:      id,
		ctrl:    ctrl,
		effects: effects,
		errors:  credentials.FieldErrors{},
	}
}

// ID はフォームの識別子です。
func (f *Form) ID() string { return f.id }

// Controller はフォームの送信状態機械を返します。
func (f *Form) Controller() *Controller { return f.ctrl }

// Effects はフォームに紐づく遷移・通知の記録を返します。
func (f *Form) Effects() *Effects { return f.effects }

// Change は入力欄の値を更新し、その欄を再検証します。
// 修正された欄の古いエラーはここで消えます。
func (f *Form) Change(field credentials.Field, value string) (credentials.FieldErrors, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next, err := f.draft.With(field, value)
	if err != nil {
		return nil, err
	}
	f.draft = next
	f.errors = f.errors.Merge(field, credentials.ValidateField(next, field))
	return copyErrors(f.errors), nil
}

// Errors は現在の入力欄ごとのエラーを返します。
func (f *Form) Errors() credentials.FieldErrors {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyErrors(f.errors)
}

// Identifier は入力中の識別子を返します。
func (f *Form) Identifier() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft.Identifier
}

// Busy は送信中かどうかです。送信ボタンの無効化に使います。
func (f *Form) Busy() bool {
	return f.ctrl.State() == StateSubmitting
}

// SubmitLabel は送信ボタンの表示文言です。
func (f *Form) SubmitLabel() string {
	if f.Busy() {
		return "Signing in..."
	}
	return "Sign in"
}

// Submit は入力値をすべて再検証し、エラーがなければ送信します。
// 検証エラーがある場合は認証協調者を呼ばずに ErrValidation を返します。
// 検証を通った送信は、受け付けられたかどうかにかかわらず入力中のパスワードを消します。
// 消したパスワード欄は未入力（エラーなし）の扱いです。
func (f *Form) Submit(ctx context.Context) (Outcome, error) {
	f.mu.Lock()
	creds := f.draft
	f.mu.Unlock()
	return f.submit(ctx, creds, creds)
}

// SubmitValues は creds を入力値として送信します。
// Controller が送信を受け付けなかった場合、入力値は呼び出し前の状態に戻ります（パスワードは消えます）。
func (f *Form) SubmitValues(ctx context.Context, creds credentials.Credentials) (Outcome, error) {
	f.mu.Lock()
	prev := f.draft
	f.draft = creds
	f.mu.Unlock()
	return f.submit(ctx, creds, prev)
}

func (f *Form) submit(ctx context.Context, creds, rejected credentials.Credentials) (Outcome, error) {
	f.mu.Lock()
	errs := credentials.Validate(creds)
	f.errors = errs
	f.mu.Unlock()

	if !errs.Empty() {
		return Outcome{State: f.ctrl.State(), Errors: copyErrors(errs)}, ErrValidation
	}

	out, err := f.ctrl.Submit(ctx, creds)

	f.mu.Lock()
	defer f.mu.Unlock()
	if errors.Is(err, ErrInvalidState) {
		f.draft = rejected
	}
	f.draft.Secret = ""
	f.errors = f.errors.Merge(credentials.FieldSecret, nil)
	return out, err
}

func copyErrors(in credentials.FieldErrors) credentials.FieldErrors {
	out := make(credentials.FieldErrors, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
