package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"coinwatch/internal/domain"
	"coinwatch/internal/storage/memory"
)

// recordingSession captures every resolved session change.
type recordingSession struct {
	mu    sync.Mutex
	users []*domain.User
}

func (s *recordingSession) SetCurrentUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u)
	return nil
}

func (s *recordingSession) snapshot() []*domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.User, len(s.users))
	copy(out, s.users)
	return out
}

func (s *recordingSession) waitFor(t *testing.T, n int) []*domain.User {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := s.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d session changes, got %d", n, len(s.snapshot()))
	return nil
}

func newTestWatcher(t *testing.T) (*Watcher, *recordingSession, *memory.UserStore, context.CancelFunc) {
	t.Helper()
	users := memory.NewUserStore(nil)
	session := &recordingSession{}
	w := NewWatcher(users, session, nil)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	return w, session, users, cancel
}

func TestWatcher_SignInCreatesUser(t *testing.T) {
	w, session, users, cancel := newTestWatcher(t)
	defer cancel()

	w.Notify(Event{Kind: EventSignedIn, Email: "a@b.c", Name: "Alice"})

	got := session.waitFor(t, 1)
	if got[0] == nil || got[0].Email != "a@b.c" {
		t.Fatalf("Unexpected bound user: %+v", got[0])
	}

	stored, err := users.GetByEmail(context.Background(), "a@b.c")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if stored.Name != "Alice" {
		t.Errorf("Name = %s, want Alice", stored.Name)
	}
}

func TestWatcher_SignInFindsExistingUser(t *testing.T) {
	w, session, users, cancel := newTestWatcher(t)
	defer cancel()

	existing := &domain.User{ID: "u-1", Email: "a@b.c", Name: "Alice", CreatedAt: 1}
	if err := users.Insert(context.Background(), existing); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	w.Notify(Event{Kind: EventSignedIn, Email: "a@b.c", Name: "ignored"})

	got := session.waitFor(t, 1)
	if got[0].ID != "u-1" {
		t.Errorf("Expected the existing user, got %+v", got[0])
	}
}

func TestWatcher_SignOutUnbinds(t *testing.T) {
	w, session, _, cancel := newTestWatcher(t)
	defer cancel()

	w.Notify(Event{Kind: EventSignedIn, Email: "a@b.c"})
	session.waitFor(t, 1)

	w.Notify(Event{Kind: EventSignedOut})
	got := session.waitFor(t, 2)
	if got[1] != nil {
		t.Errorf("Expected nil user after sign-out, got %+v", got[1])
	}
}

func TestWatcher_BurstAppliesLastEventOnly(t *testing.T) {
	w, session, _, cancel := newTestWatcher(t)
	defer cancel()

	// Typical provider burst: initial session immediately followed by
	// sign-in. Only one resolution should happen.
	w.Notify(Event{Kind: EventInitialSession, Email: "old@b.c"})
	w.Notify(Event{Kind: EventSignedIn, Email: "new@b.c"})

	got := session.waitFor(t, 1)

	// Give a potential second (wrong) application time to land.
	time.Sleep(100 * time.Millisecond)
	if final := session.snapshot(); len(final) != len(got) {
		t.Fatalf("Expected a single debounced application, got %d", len(final))
	}
	if got[0].Email != "new@b.c" {
		t.Errorf("Expected the last event of the burst to win, got %s", got[0].Email)
	}
}
