package storage

import (
	"sort"
	"sync"

	"notesd/internal/note"
	"notesd/internal/reminder"
)

type MemoryStorage struct {
	notes             map[int64]*note.Note
	reminders         map[int64]*reminder.Reminder
	images            map[int64]*note.Image
	settings          map[string]string
	noteIDCounter     int64
	reminderIDCounter int64
	imageIDCounter    int64
	mu                sync.Mutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		notes:     make(map[int64]*note.Note),
		reminders: make(map[int64]*reminder.Reminder),
		images:    make(map[int64]*note.Image),
		settings:  DefaultSettings(),
	}
}

// Note operations
func (m *MemoryStorage) UpsertNotes(notes []*note.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range notes {
		c := n.Clone()
		if c.ID == 0 {
			m.noteIDCounter++
			c.ID = m.noteIDCounter
		} else if c.ID > m.noteIDCounter {
			m.noteIDCounter = c.ID
		}
		n.ID = c.ID
		m.notes[c.ID] = c
	}
	return nil
}

func (m *MemoryStorage) GetNote(id int64) (*note.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok {
		return nil, ErrNoteNotFound
	}
	return n.Clone(), nil
}

func (m *MemoryStorage) ListNotes() ([]*note.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*note.Note
	for _, n := range m.notes {
		list = append(list, n.Clone())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *MemoryStorage) DeleteNote(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.notes, id)
	for rid, r := range m.reminders {
		if r.NoteID == id {
			delete(m.reminders, rid)
		}
	}
	for iid, img := range m.images {
		if img.NoteID == id {
			delete(m.images, iid)
		}
	}
	return nil
}

// Reminder operations
func (m *MemoryStorage) InsertReminder(r *reminder.Reminder) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[r.NoteID]; !ok {
		return 0, ErrNoteNotFound
	}
	m.reminderIDCounter++
	c := r.Clone()
	c.ID = m.reminderIDCounter
	m.reminders[c.ID] = c
	return c.ID, nil
}

func (m *MemoryStorage) GetReminder(id int64) (*reminder.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok {
		return nil, ErrReminderNotFound
	}
	return r.Clone(), nil
}

func (m *MemoryStorage) MarkReminderCompleted(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.reminders[id]; ok {
		r.MarkCompleted()
	}
	return nil
}

func (m *MemoryStorage) DeleteReminder(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reminders, id)
	return nil
}

func (m *MemoryStorage) ListPendingReminders(asOf int64) ([]*reminder.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*reminder.Reminder
	for _, r := range m.reminders {
		if !r.Completed && r.TriggerAt > asOf {
			list = append(list, r.Clone())
		}
	}
	sortReminders(list)
	return list, nil
}

func (m *MemoryStorage) ListDueReminders(asOf int64) ([]*reminder.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*reminder.Reminder
	for _, r := range m.reminders {
		if !r.Completed && r.TriggerAt <= asOf {
			list = append(list, r.Clone())
		}
	}
	sortReminders(list)
	return list, nil
}

func (m *MemoryStorage) ListNoteReminders(noteID int64) ([]*reminder.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*reminder.Reminder
	for _, r := range m.reminders {
		if !r.Completed && r.NoteID == noteID {
			list = append(list, r.Clone())
		}
	}
	sortReminders(list)
	return list, nil
}

// Image operations
func (m *MemoryStorage) SaveImage(img *note.Image) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[img.NoteID]
	if !ok {
		return 0, ErrNoteNotFound
	}
	m.imageIDCounter++
	c := *img
	c.ID = m.imageIDCounter
	m.images[c.ID] = &c
	n.HasImages = true
	return c.ID, nil
}

func (m *MemoryStorage) ListImages(noteID int64) ([]*note.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*note.Image
	for _, img := range m.images {
		if img.NoteID == noteID {
			c := *img
			c.ImageData = ""
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt > list[j].CreatedAt
		}
		return list[i].ID > list[j].ID
	})
	return list, nil
}

func (m *MemoryStorage) GetImageData(id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[id]
	if !ok {
		return "", ErrImageNotFound
	}
	return img.ImageData, nil
}

func (m *MemoryStorage) DeleteImage(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[id]
	if !ok {
		return nil
	}
	delete(m.images, id)
	remaining := false
	for _, other := range m.images {
		if other.NoteID == img.NoteID {
			remaining = true
			break
		}
	}
	if !remaining {
		if n, ok := m.notes[img.NoteID]; ok {
			n.HasImages = false
		}
	}
	return nil
}

// Settings operations
func (m *MemoryStorage) LoadSettings() (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.settings))
	for k, v := range m.settings {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStorage) SaveSettings(settings map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range settings {
		m.settings[k] = v
	}
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

// sortReminders orders by trigger time ascending, id ascending on ties.
func sortReminders(list []*reminder.Reminder) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].TriggerAt != list[j].TriggerAt {
			return list[i].TriggerAt < list[j].TriggerAt
		}
		return list[i].ID < list[j].ID
	})
}
