package scheduler

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/benbjohnson/clock"

	"notesd/internal/reminder"
	"notesd/internal/storage"
)

// ErrValidation marks a malformed create request, rejected before any
// store or registry mutation.
var ErrValidation = errors.New("invalid reminder")

// Dispatcher delivers an expired reminder to the user. Discard is the
// missed path: the completion side effect happens without a
// user-visible notification.
type Dispatcher interface {
	Deliver(r *reminder.Reminder)
	Discard(r *reminder.Reminder)
}

// Scheduler keeps the timer registry consistent with the store: it
// rebuilds pending timers at startup, arms new reminders, and cancels
// on completion or deletion. All mutations serialize on one mutex;
// timer expiries re-enter through Complete.
type Scheduler struct {
	store    storage.Storage
	registry *Registry
	dispatch Dispatcher
	clk      clock.Clock
	mu       sync.Mutex
}

func New(store storage.Storage, registry *Registry, dispatch Dispatcher, clk clock.Clock) *Scheduler {
	return &Scheduler{
		store:    store,
		registry: registry,
		dispatch: dispatch,
		clk:      clk,
	}
}

// Reload rebuilds the registry from the store: overdue incomplete
// reminders are terminated through the missed path, future ones are
// re-armed in ascending trigger order. Safe to call repeatedly.
func (s *Scheduler) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registry.Clear()
	now := s.clk.Now().UnixMilli()

	due, err := s.store.ListDueReminders(now)
	if err != nil {
		return fmt.Errorf("failed to load overdue reminders: %w", err)
	}
	for _, r := range due {
		if err := s.completeMissed(r); err != nil {
			return err
		}
	}

	pending, err := s.store.ListPendingReminders(now)
	if err != nil {
		return fmt.Errorf("failed to load pending reminders: %w", err)
	}
	for _, r := range pending {
		if err := s.arm(r); err != nil {
			return err
		}
	}

	log.Printf("scheduler: reloaded %d pending reminders, expired %d overdue", len(pending), len(due))
	return nil
}

// Create validates, persists and arms a new reminder, returning its
// id. A trigger time already in the past is legal input: the reminder
// is persisted and immediately completed without a notification.
func (s *Scheduler) Create(r *reminder.Reminder) (int64, error) {
	if r.NoteID == 0 {
		return 0, fmt.Errorf("%w: note_id is required", ErrValidation)
	}
	if r.TriggerAt == 0 {
		return 0, fmt.Errorf("%w: trigger_at is required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r.CreatedAt = s.clk.Now().UnixMilli()
	id, err := s.store.InsertReminder(r)
	if err != nil {
		// Persistence failed: the registry stays untouched.
		return 0, err
	}
	r.ID = id

	if err := s.arm(r); err != nil {
		return 0, err
	}
	return id, nil
}

// arm schedules r, or terminates it through the missed path when its
// trigger time has already passed. Callers hold the scheduler lock.
func (s *Scheduler) arm(r *reminder.Reminder) error {
	if s.registry.Schedule(r, s.dispatch.Deliver) {
		return nil
	}
	return s.completeMissed(r)
}

func (s *Scheduler) completeMissed(r *reminder.Reminder) error {
	s.registry.Cancel(r.ID)
	s.dispatch.Discard(r)
	r.MarkCompleted()
	if err := s.store.MarkReminderCompleted(r.ID); err != nil {
		return fmt.Errorf("failed to complete missed reminder %d: %w", r.ID, err)
	}
	return nil
}

// Complete cancels any armed timer and marks the reminder completed.
// Cancel comes first so a racing expiry cannot re-enter completion;
// the store side is idempotent regardless.
func (s *Scheduler) Complete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registry.Cancel(id)
	return s.store.MarkReminderCompleted(id)
}

// Delete cancels any armed timer and removes the reminder.
func (s *Scheduler) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registry.Cancel(id)
	return s.store.DeleteReminder(id)
}

// ListForNote returns the incomplete reminders of a note.
func (s *Scheduler) ListForNote(noteID int64) ([]*reminder.Reminder, error) {
	return s.store.ListNoteReminders(noteID)
}

// DeleteNote removes a note through the scheduler so every reminder of
// the note gets its registry cancel before the store cascades the rows.
func (s *Scheduler) DeleteNote(noteID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.store.ListNoteReminders(noteID)
	if err != nil {
		return err
	}
	for _, r := range reminders {
		s.registry.Cancel(r.ID)
	}
	return s.store.DeleteNote(noteID)
}
