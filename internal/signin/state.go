package signin

import "time"

// State は送信状態です。
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Submittable は新しい送信を受け付けられる状態かを返します。
// Failed は再送信の観点では Idle と同等です。
func (s State) Submittable() bool {
	return s == StateIdle || s == StateFailed
}

// Status は状態と、Failed の場合はその理由です。
type Status struct {
	State     State  `json:"state"`
	Reason    string `json:"reason,omitempty"`
	AttemptID string `json:"attemptId,omitempty"`
}

// Transition は送信試行の状態遷移の記録です。パスワードは含みません。
type Transition struct {
	AttemptID  string    `json:"attemptId"`
	From       State     `json:"from"`
	To         State     `json:"to"`
	Identifier string    `json:"email"`
	Owner      string    `json:"owner"`
	Code       string    `json:"code,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}
