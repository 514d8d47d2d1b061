package signin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/signin/internal/credentials"
)

// DefaultDestination はログイン成功後の遷移先です。
const DefaultDestination = "/dashboard"

// Outcome は Submit の結果です。
type Outcome struct {
	AttemptID    string                  `json:"attemptId,omitempty"`
	State        State                   `json:"state"`
	Session      *Session                `json:"-"`
	Notification *Notification           `json:"notification,omitempty"`
	Errors       credentials.FieldErrors `json:"-"`
}

// Option は Controller の設定を変更します。
type Option func(*Controller)

// WithNavigator は遷移要求の送り先を設定します。
func WithNavigator(n Navigator) Option {
	return func(c *Controller) { c.navigator = n }
}

// WithNotifier は通知の送り先を設定します。
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithSessionStore は認証成功時のセッション保存先を設定します。
func WithSessionStore(s SessionStore) Option {
	return func(c *Controller) { c.sessions = s }
}

// WithRecorder は状態遷移の記録先を設定します。
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithDestination はログイン成功後の遷移先を設定します。
func WithDestination(path string) Option {
	return func(c *Controller) {
		if path != "" {
			c.destination = path
		}
	}
}

// WithLogger はログ出力先を設定します。
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock は現在時刻の取得関数を差し替えます。
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller は1つのフォームに属する送信状態機械です。
// 同時に進行できる送信試行は1つだけです。
type Controller struct {
	auth        Authenticator
	navigator   Navigator
	notifier    Notifier
	sessions    SessionStore
	recorder    Recorder
	destination string
	logger      *log.Logger
	now         func() time.Time

	mu        sync.Mutex
	state     State
	reason    string
	snapshot  credentials.Credentials
	attemptID string
}

// NewController は Idle 状態の Controller を作成します。
func NewController(auth Authenticator, opts ...Option) (*Controller, error) {
	if auth == nil {
		return nil, errors.New("authenticator is nil")
	}
	c := &Controller{
		auth:        auth,
		destination: DefaultDestination,
		logger:      log.Default(),
		now:         time.Now,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State は現在の状態を返します。
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status は現在の状態と失敗理由を返します。
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{State: c.state, Reason: c.reason, AttemptID: c.attemptID}
}

// Snapshot は進行中または直前の送信試行で使われた資格情報を返します。
// 試行が確定した後はパスワードが空になっています。
func (c *Controller) Snapshot() credentials.Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Reset は Failed を Idle に戻します。Submitting と Succeeded からは戻せません。
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateIdle:
		return nil
	case StateFailed:
		c.state = StateIdle
		c.reason = ""
		return nil
	default:
		return fmt.Errorf("%w: reset while %s", ErrInvalidState, c.state)
	}
}

// Submit は1回の送信試行を行い、結果が確定するまでブロックします。
//
// 状態が Idle/Failed でない場合、または creds が検証に通らない場合は
// ErrInvalidState を返し、何も変更しません。認証に失敗した場合は
// *SubmitError（ErrAuthenticationFailed）を返します。
// ctx は認証協調者の呼び出しにそのまま渡されます。
func (c *Controller) Submit(ctx context.Context, creds credentials.Credentials) (Outcome, error) {
	if errs := credentials.Validate(creds); !errs.Empty() {
		return Outcome{State: c.State(), Errors: errs}, fmt.Errorf("%w: credentials failed validation", ErrInvalidState)
	}

	c.mu.Lock()
	if !c.state.Submittable() {
		state := c.state
		c.mu.Unlock()
		return Outcome{State: state}, fmt.Errorf("%w: submit while %s", ErrInvalidState, state)
	}
	from := c.state
	attemptID := uuid.NewString()
	c.state = StateSubmitting
	c.reason = ""
	c.snapshot = creds
	c.attemptID = attemptID
	c.mu.Unlock()

	c.record(ctx, Transition{
		AttemptID:  attemptID,
		From:       from,
		To:         StateSubmitting,
		Identifier: credentials.MaskIdentifier(creds.Identifier),
		Owner:      credentials.OwnerDigest(creds.Identifier),
	})

	session, err := c.authenticate(ctx, creds)
	if err != nil {
		return c.fail(ctx, attemptID, creds.Identifier, err)
	}
	return c.succeed(ctx, attemptID, creds.Identifier, session), nil
}

func (c *Controller) authenticate(ctx context.Context, creds credentials.Credentials) (*Session, error) {
	session, err := c.auth.Authenticate(ctx, creds.Identifier, creds.Secret)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.New("authenticator returned no session")
	}
	if c.sessions != nil {
		if err := c.sessions.Save(ctx, session); err != nil {
			return nil, &AuthError{Code: CodeSessionSaveFailed, Err: err}
		}
	}
	return session, nil
}

func (c *Controller) succeed(ctx context.Context, attemptID, identifier string, session *Session) Outcome {
	c.mu.Lock()
	c.state = StateSucceeded
	c.snapshot.Secret = ""
	c.mu.Unlock()

	c.record(ctx, Transition{
		AttemptID:  attemptID,
		From:       StateSubmitting,
		To:         StateSucceeded,
		Identifier: credentials.MaskIdentifier(identifier),
		Owner:      credentials.OwnerDigest(identifier),
	})

	note := successNotification()
	if c.notifier != nil {
		c.notifier.Show(note)
	}
	if c.navigator != nil {
		c.navigator.Navigate(c.destination)
	}
	return Outcome{AttemptID: attemptID, State: StateSucceeded, Session: session, Notification: &note}
}

func (c *Controller) fail(ctx context.Context, attemptID, identifier string, cause error) (Outcome, error) {
	submitErr := newSubmitError(cause)
	c.logger.Printf("signin: attempt %s for %s failed: %v", attemptID, credentials.MaskIdentifier(identifier), cause)

	c.mu.Lock()
	c.state = StateFailed
	c.reason = submitErr.Reason
	c.snapshot.Secret = ""
	c.mu.Unlock()

	c.record(ctx, Transition{
		AttemptID:  attemptID,
		From:       StateSubmitting,
		To:         StateFailed,
		Identifier: credentials.MaskIdentifier(identifier),
		Owner:      credentials.OwnerDigest(identifier),
		Code:       submitErr.Code,
		Reason:     submitErr.Reason,
	})

	note := failureNotification(submitErr.Reason)
	if c.notifier != nil {
		c.notifier.Show(note)
	}
	return Outcome{AttemptID: attemptID, State: StateFailed, Notification: &note}, submitErr
}

func (c *Controller) record(ctx context.Context, t Transition) {
	if c.recorder == nil {
		return
	}
	t.At = c.now().UTC()
	if err := c.recorder.Record(ctx, t); err != nil {
		c.logger.Printf("signin: failed to record transition attempt=%s to=%s: %v", t.AttemptID, t.To, err)
	}
}
