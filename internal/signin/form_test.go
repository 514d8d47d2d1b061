package signin

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yourusername/signin/internal/credentials"
)

func newTestForm(t *testing.T, auth Authenticator) *Form {
	t.Helper()
	ctrl, effects := newTestController(t, auth)
	return NewForm("form-1", ctrl, effects)
}

func TestFormChangeRevalidatesField(t *testing.T) {
	form := newTestForm(t, &stubAuthenticator{session: &Session{}})

	errs, err := form.Change(credentials.FieldIdentifier, "user@")
	if err != nil {
		t.Fatalf("Change returned error: %v", err)
	}
	if !errs.Has(credentials.FieldIdentifier) {
		t.Fatalf("expected identifier error, got %v", errs)
	}
	if errs.Has(credentials.FieldSecret) {
		t.Fatal("untouched secret must not be reported on identifier change")
	}

	errs, _ = form.Change(credentials.FieldIdentifier, "user@example.com")
	if !errs.Empty() {
		t.Fatalf("stale error not cleared: %v", errs)
	}
	if form.Identifier() != "user@example.com" {
		t.Fatalf("draft not updated: %s", form.Identifier())
	}
}

func TestFormChangeUnknownField(t *testing.T) {
	form := newTestForm(t, &stubAuthenticator{})
	if _, err := form.Change("username", "x"); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestFormSubmitBlockedByValidation(t *testing.T) {
	auth := &stubAuthenticator{session: &Session{}}
	form := newTestForm(t, auth)
	_, _ = form.Change(credentials.FieldIdentifier, "not-an-email")
	_, _ = form.Change(credentials.FieldSecret, "abcdef")

	out, err := form.Submit(context.Background())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	want := map[string]string{"email": "Please enter a valid email address."}
	if diff := cmp.Diff(want, out.Errors.Messages()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, form.Errors().Messages()); diff != "" {
		t.Fatalf("form errors mismatch (-want +got):\n%s", diff)
	}
	if auth.calls.Load() != 0 {
		t.Fatal("authenticator must not be called when validation fails")
	}
	if form.Controller().State() != StateIdle {
		t.Fatalf("unexpected state: %s", form.Controller().State())
	}
}

func TestFormSubmitValidatesUntouchedFields(t *testing.T) {
	form := newTestForm(t, &stubAuthenticator{})
	out, err := form.Submit(context.Background())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !out.Errors.Has(credentials.FieldIdentifier) || !out.Errors.Has(credentials.FieldSecret) {
		t.Fatalf("expected errors on both fields: %v", out.Errors)
	}
}

func TestFormSubmitClearsDraftSecret(t *testing.T) {
	form := newTestForm(t, &stubAuthenticator{err: errors.New("bad")})
	if _, err := form.SubmitValues(context.Background(), validCreds); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}

	form.mu.Lock()
	secret := form.draft.Secret
	form.mu.Unlock()
	if secret != "" {
		t.Fatalf("draft secret retained: %q", secret)
	}
	if form.Identifier() != validCreds.Identifier {
		t.Fatal("identifier should survive a failed attempt")
	}
	if form.Busy() {
		t.Fatal("form must not be busy after resolution")
	}
}

func TestFormBusyWhileSubmitting(t *testing.T) {
	auth := &stubAuthenticator{
		session: &Session{},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	form := newTestForm(t, auth)

	done := make(chan error, 1)
	go func() {
		_, err := form.SubmitValues(context.Background(), validCreds)
		done <- err
	}()
	<-auth.entered

	if !form.Busy() || form.SubmitLabel() != "Signing in..." {
		t.Fatalf("expected busy form, label=%q", form.SubmitLabel())
	}
	if _, err := form.Submit(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	close(auth.release)
	if err := <-done; err != nil {
		t.Fatalf("submit returned error: %v", err)
	}
	if form.SubmitLabel() != "Sign in" {
		t.Fatalf("unexpected label after resolution: %q", form.SubmitLabel())
	}
}

func TestFormRejectedSubmitDropsSecret(t *testing.T) {
	form := newTestForm(t, &stubAuthenticator{session: &Session{}})
	_, _ = form.Change(credentials.FieldIdentifier, "first@example.com")
	if _, err := form.SubmitValues(context.Background(), validCreds); err != nil {
		t.Fatalf("first submit returned error: %v", err)
	}

	again := credentials.Credentials{Identifier: "other@example.com", Secret: "another-secret"}
	if _, err := form.SubmitValues(context.Background(), again); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	form.mu.Lock()
	draft := form.draft
	form.mu.Unlock()
	if draft.Secret != "" {
		t.Fatalf("draft secret retained after rejected submit: %q", draft.Secret)
	}
	if draft.Identifier != validCreds.Identifier {
		t.Fatalf("rejected values should not replace the draft: %q", draft.Identifier)
	}
}

func TestFormRejectedDraftSubmitDropsSecret(t *testing.T) {
	form := newTestForm(t, &stubAuthenticator{session: &Session{}})
	if _, err := form.SubmitValues(context.Background(), validCreds); err != nil {
		t.Fatalf("first submit returned error: %v", err)
	}
	_, _ = form.Change(credentials.FieldSecret, "typed-again")

	if _, err := form.Submit(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	form.mu.Lock()
	secret := form.draft.Secret
	form.mu.Unlock()
	if secret != "" {
		t.Fatalf("draft secret retained after rejected submit: %q", secret)
	}
}

func TestFormClearedSecretIsPristine(t *testing.T) {
	form := newTestForm(t, &stubAuthenticator{err: errors.New("bad")})
	_, _ = form.Change(credentials.FieldSecret, "abc")
	if !form.Errors().Has(credentials.FieldSecret) {
		t.Fatal("expected secret error while typing")
	}

	if _, err := form.SubmitValues(context.Background(), validCreds); !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	if errs := form.Errors(); !errs.Empty() {
		t.Fatalf("cleared secret must not report errors: %v", errs.Messages())
	}
}
