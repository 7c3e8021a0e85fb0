package dispatch

import (
	"fmt"
	"log"

	"notesd/internal/events"
	"notesd/internal/reminder"
)

// Notifier presents a notification on the host. A failure here is a
// presentation failure only; it never blocks completion.
type Notifier interface {
	Notify(title, message string, playSound, urgent bool) error
}

// Completer is the scheduler's completion path.
type Completer interface {
	Complete(id int64) error
}

// Events is the outbound channel toward the UI layer.
type Events interface {
	Publish(eventType string, payload any)
}

// Dispatcher fires the user-facing side of an expired reminder:
// present the notification, tell the UI, then mark the reminder
// completed. Delivery attempt, not acknowledgment, completes a
// reminder.
type Dispatcher struct {
	notifier  Notifier
	events    Events
	completer Completer
}

func New(notifier Notifier, ev Events) *Dispatcher {
	return &Dispatcher{notifier: notifier, events: ev}
}

// SetCompleter wires the scheduler in after construction; the
// scheduler needs the dispatcher first.
func (d *Dispatcher) SetCompleter(c Completer) {
	d.completer = c
}

// Deliver runs once per reminder, at timer expiry.
func (d *Dispatcher) Deliver(r *reminder.Reminder) {
	if err := d.notifier.Notify(r.Title, r.Message, r.PlaySound, r.UrgentStyle); err != nil {
		log.Printf("dispatch: could not present reminder %d: %v", r.ID, err)
	}

	d.events.Publish(events.TypeReminderFired, r)

	if err := d.completer.Complete(r.ID); err != nil {
		log.Printf("dispatch: could not complete reminder %d: %v", r.ID, err)
	}
}

// Discard handles a missed reminder: no notification is shown for a
// trigger time that already passed, only the completion side effect.
func (d *Dispatcher) Discard(r *reminder.Reminder) {
	log.Printf("dispatch: reminder %d for note %d is overdue, completing without notification", r.ID, r.NoteID)
}

// Click routes a notification interaction back to the UI: emit a
// note-requested event so the UI brings itself forward and focuses
// the note.
func (d *Dispatcher) Click(r *reminder.Reminder) error {
	if r == nil {
		return fmt.Errorf("no reminder to route")
	}
	d.events.Publish(events.TypeNoteRequested, map[string]int64{"note_id": r.NoteID})
	return nil
}
