package reminder

import "time"

// Display defaults applied when a reminder is created without them.
const (
	DefaultTitle   = "Note Reminder"
	DefaultMessage = "Don't forget about this note!"
)

// Reminder is a one-shot scheduled notification attached to a note.
// TriggerAt and CreatedAt are epoch-millisecond timestamps.
type Reminder struct {
	ID          int64  `json:"id"`
	NoteID      int64  `json:"note_id"`
	TriggerAt   int64  `json:"trigger_at"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	PlaySound   bool   `json:"play_sound"`
	UrgentStyle bool   `json:"urgent_style"`
	Completed   bool   `json:"completed"`
	CreatedAt   int64  `json:"created_at"`
}

func New(noteID, triggerAt int64, title, message string, playSound, urgentStyle bool) *Reminder {
	if title == "" {
		title = DefaultTitle
	}
	if message == "" {
		message = DefaultMessage
	}
	return &Reminder{
		NoteID:      noteID,
		TriggerAt:   triggerAt,
		Title:       title,
		Message:     message,
		PlaySound:   playSound,
		UrgentStyle: urgentStyle,
	}
}

func (r *Reminder) MarkCompleted() {
	r.Completed = true
}

// TriggerTime converts the epoch-millisecond trigger to a time.Time.
func (r *Reminder) TriggerTime() time.Time {
	return time.UnixMilli(r.TriggerAt)
}

// Clone returns a copy so callers cannot mutate stored state.
func (r *Reminder) Clone() *Reminder {
	c := *r
	return &c
}
