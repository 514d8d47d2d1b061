package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/signin/internal/attempts"
	"github.com/yourusername/signin/internal/auth"
	"github.com/yourusername/signin/internal/credentials"
	"github.com/yourusername/signin/internal/signin"
)

type fakeAttemptRecorder struct {
	records map[string]*attempts.Record
	err     error
}

func (f *fakeAttemptRecorder) Record(context.Context, signin.Transition) error {
	return nil
}

func (f *fakeAttemptRecorder) GetRecord(_ context.Context, attemptID string) (*attempts.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records[attemptID], nil
}

func newAttemptRouter(recorder attemptRecorder, user string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/attempts/:id", func(c *gin.Context) {
		c.Set(auth.ContextUserKey, user)
		c.Next()
	}, attemptStatusHandler(recorder))
	return router
}

func TestAttemptStatusScopedToOwner(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	recorder := &fakeAttemptRecorder{records: map[string]*attempts.Record{
		"a-1": {
			AttemptID:  "a-1",
			Identifier: "u***@example.com",
			Owner:      credentials.OwnerDigest("user@example.com"),
			Status:     attempts.StatusFailed,
			Error:      &attempts.ErrorInfo{Code: signin.CodeInvalidCredentials, Message: signin.GenericFailureMessage},
			StartedAt:  started,
			FinishedAt: started.Add(time.Second),
		},
		"legacy": {AttemptID: "legacy", Status: attempts.StatusSucceeded},
	}}

	cases := []struct {
		name   string
		user   string
		id     string
		status int
	}{
		{"owner", "user@example.com", "a-1", http.StatusOK},
		{"owner with different case", "USER@example.com", "a-1", http.StatusOK},
		{"other user", "other@example.com", "a-1", http.StatusNotFound},
		{"missing", "user@example.com", "nope", http.StatusNotFound},
		{"record without owner", "user@example.com", "legacy", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newAttemptRouter(recorder, tc.user).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/attempts/"+tc.id, nil))
			if rec.Code != tc.status {
				t.Fatalf("unexpected status: %d %s", rec.Code, rec.Body.String())
			}
			var payload map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if tc.status == http.StatusNotFound {
				if payload["code"] != "ATTEMPT_NOT_FOUND" {
					t.Fatalf("unexpected payload: %#v", payload)
				}
				return
			}
			if payload["status"] != string(attempts.StatusFailed) || payload["finishedAt"] == nil || payload["error"] == nil {
				t.Fatalf("unexpected payload: %#v", payload)
			}
			if _, ok := payload["owner"]; ok {
				t.Fatal("owner digest must not be exposed")
			}
		})
	}
}

func TestAttemptStatusLoadFailure(t *testing.T) {
	recorder := &fakeAttemptRecorder{err: errors.New("redis down")}
	rec := httptest.NewRecorder()
	newAttemptRouter(recorder, "user@example.com").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/attempts/a-1", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}
