package storage

import (
	"errors"

	"notesd/internal/note"
	"notesd/internal/reminder"
)

var (
	ErrNoteNotFound     = errors.New("note not found")
	ErrReminderNotFound = errors.New("reminder not found")
	ErrImageNotFound    = errors.New("image not found")
)

// Storage defines the interface for data persistence for notes,
// reminders, image attachments and settings.
//
// Reminder listing order is significant: every list is ordered by
// trigger time ascending, ties broken by id ascending.
type Storage interface {
	// Note operations. UpsertNotes assigns ids to notes with a zero id
	// and overwrites existing rows in one atomic step. DeleteNote
	// cascades to the note's reminders and images.
	UpsertNotes(notes []*note.Note) error
	GetNote(id int64) (*note.Note, error)
	ListNotes() ([]*note.Note, error)
	DeleteNote(id int64) error

	// Reminder operations. InsertReminder assigns the id and fails
	// with ErrNoteNotFound when the owning note does not exist.
	// MarkReminderCompleted and DeleteReminder are idempotent.
	InsertReminder(r *reminder.Reminder) (int64, error)
	GetReminder(id int64) (*reminder.Reminder, error)
	MarkReminderCompleted(id int64) error
	DeleteReminder(id int64) error
	ListPendingReminders(asOf int64) ([]*reminder.Reminder, error)
	ListDueReminders(asOf int64) ([]*reminder.Reminder, error)
	ListNoteReminders(noteID int64) ([]*reminder.Reminder, error)

	// Image operations. ListImages returns metadata only.
	SaveImage(img *note.Image) (int64, error)
	ListImages(noteID int64) ([]*note.Image, error)
	GetImageData(id int64) (string, error)
	DeleteImage(id int64) error

	// Settings operations. LoadSettings always includes the defaults
	// for keys that were never saved.
	LoadSettings() (map[string]string, error)
	SaveSettings(settings map[string]string) error

	Close() error
}

// DefaultSettings returns the seed preferences of a fresh installation.
func DefaultSettings() map[string]string {
	return map[string]string{
		"theme":               "light",
		"default_color":       "#ffff99",
		"default_font_size":   "medium",
		"default_font_family": "default",
		"enable_formatting":   "true",
		"enable_images":       "true",
		"enable_reminders":    "true",
		"enable_checklists":   "true",
	}
}
