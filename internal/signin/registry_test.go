package signin

import (
	"errors"
	"testing"
	"time"
)

func newTestRegistry(t *testing.T, ttl time.Duration) *Registry {
	t.Helper()
	reg, err := NewRegistry(func(_ string, effects *Effects) (*Controller, error) {
		return NewController(&stubAuthenticator{session: &Session{}},
			WithNavigator(effects), WithNotifier(effects), WithLogger(discardLogger()))
	}, ttl)
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}
	return reg
}

func TestRegistryMountGetDispose(t *testing.T) {
	reg := newTestRegistry(t, 0)

	a, err := reg.Mount()
	if err != nil {
		t.Fatalf("Mount returned error: %v", err)
	}
	b, err := reg.Mount()
	if err != nil {
		t.Fatalf("Mount returned error: %v", err)
	}
	if a.ID() == b.ID() || a.Controller() == b.Controller() || a.Effects() == b.Effects() {
		t.Fatal("each mount must own an independent controller")
	}
	if got, ok := reg.Get(a.ID()); !ok || got != a {
		t.Fatal("Get did not return the mounted form")
	}
	if !reg.Dispose(a.ID()) {
		t.Fatal("Dispose returned false for a mounted form")
	}
	if _, ok := reg.Get(a.ID()); ok {
		t.Fatal("disposed form is still registered")
	}
	if reg.Dispose(a.ID()) {
		t.Fatal("second Dispose should report false")
	}
	if reg.Len() != 1 {
		t.Fatalf("unexpected registry size: %d", reg.Len())
	}
}

func TestRegistryFactoryError(t *testing.T) {
	reg, err := NewRegistry(func(string, *Effects) (*Controller, error) {
		return nil, errors.New("boom")
	}, 0)
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}
	if _, err := reg.Mount(); err == nil {
		t.Fatal("expected factory error")
	}
	if reg.Len() != 0 {
		t.Fatal("failed mount must not register a form")
	}
}

func TestRegistrySweepRemovesIdleForms(t *testing.T) {
	reg := newTestRegistry(t, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	stale, _ := reg.Mount()
	now = now.Add(50 * time.Second)
	fresh, _ := reg.Mount()
	now = now.Add(20 * time.Second)

	if removed := reg.Sweep(); removed != 1 {
		t.Fatalf("expected 1 form removed, got %d", removed)
	}
	if _, ok := reg.Get(stale.ID()); ok {
		t.Fatal("stale form was not swept")
	}
	if _, ok := reg.Get(fresh.ID()); !ok {
		t.Fatal("fresh form was swept")
	}
}

func TestNewRegistryRequiresFactory(t *testing.T) {
	if _, err := NewRegistry(nil, 0); err == nil {
		t.Fatal("expected error for nil factory")
	}
}
