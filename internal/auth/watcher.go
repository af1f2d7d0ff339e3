// Package auth turns a stream of session events into a bound portfolio
// user. Providers tend to emit bursts (an initial-session event followed
// immediately by a signed-in event for the same account), so events are
// debounced and only the last one in a burst is applied.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"coinwatch/internal/domain"
	"coinwatch/internal/storage"
)

// EventDebounce is how long the watcher waits after an event before
// applying it. Later events in the window replace earlier ones.
const EventDebounce = time.Second

// EventKind identifies a session transition.
type EventKind int

const (
	EventInitialSession EventKind = iota
	EventSignedIn
	EventSignedOut
)

// Event is a single session transition. Email and Name are only set for
// EventInitialSession and EventSignedIn.
type Event struct {
	Kind  EventKind
	Email string
	Name  string
}

// Session is the consumer of resolved session changes, typically the
// portfolio view-model.
type Session interface {
	SetCurrentUser(ctx context.Context, u *domain.User) error
}

// Watcher resolves debounced session events against the user store and
// pushes the result into the session consumer.
type Watcher struct {
	users    storage.UserStore
	session  Session
	logger   *slog.Logger
	newID    func() string
	debounce time.Duration

	events chan Event
}

// NewWatcher creates a session watcher. Call Run to start it.
func NewWatcher(users storage.UserStore, session Session, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		users:    users,
		session:  session,
		logger:   logger,
		newID:    uuid.NewString,
		debounce: EventDebounce,
		events:   make(chan Event, 16),
	}
}

// Notify enqueues a session event. It never blocks: when the buffer is
// full the event is dropped, which is safe because only the latest event
// in a burst matters.
func (w *Watcher) Notify(ev Event) {
	select {
	case w.events <- ev:
	default:
		w.logger.Warn("session event dropped", "kind", ev.Kind)
	}
}

// Run consumes events until ctx is cancelled. Each event arms a debounce
// timer; the timer resolves the most recent event.
func (w *Watcher) Run(ctx context.Context) {
	var (
		pending Event
		armed   bool
		timer   = time.NewTimer(w.debounce)
	)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.events:
			pending = ev
			if armed && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			armed = true
		case <-timer.C:
			armed = false
			if err := w.apply(ctx, pending); err != nil {
				w.logger.Error("apply session event failed", "kind", pending.Kind, "error", err)
			}
		}
	}
}

func (w *Watcher) apply(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventSignedOut:
		return w.session.SetCurrentUser(ctx, nil)
	case EventInitialSession, EventSignedIn:
		user, err := w.findOrCreate(ctx, ev.Email, ev.Name)
		if err != nil {
			return err
		}
		w.logger.Info("session bound", "user_id", user.ID, "email", user.Email)
		return w.session.SetCurrentUser(ctx, user)
	default:
		return fmt.Errorf("unknown session event kind %d", ev.Kind)
	}
}

// findOrCreate resolves an email to a stored user, creating one on first
// sign-in. A concurrent create by another instance surfaces as a duplicate
// key, in which case the lookup is retried.
func (w *Watcher) findOrCreate(ctx context.Context, email, name string) (*domain.User, error) {
	user, err := w.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	user = &domain.User{
		ID:        w.newID(),
		Email:     email,
		Name:      name,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := w.users.Insert(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return w.users.GetByEmail(ctx, email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}
