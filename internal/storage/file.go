package storage

import (
	"encoding/json"
	"os"
	"sort"
	"sync"

	"notesd/internal/note"
	"notesd/internal/reminder"
)

// FileStorage keeps each entity in its own JSON document. Every
// operation loads, mutates and rewrites the affected document under
// one mutex, which is plenty for a single desktop process.
type FileStorage struct {
	noteFile     string
	reminderFile string
	imageFile    string
	settingsFile string
	mu           sync.Mutex
}

func NewFileStorage(noteFile, reminderFile, imageFile, settingsFile string) *FileStorage {
	return &FileStorage{
		noteFile:     noteFile,
		reminderFile: reminderFile,
		imageFile:    imageFile,
		settingsFile: settingsFile,
	}
}

// document pairs the rows with the highest id ever assigned, so ids
// stay monotonic even after the highest-id row is deleted.
type document[T any] struct {
	Counter int64       `json:"counter"`
	Items   map[int64]T `json:"items"`
}

func loadDoc[T any](path string) (*document[T], error) {
	doc := &document[T]{Items: make(map[int64]T)}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return doc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	if doc.Items == nil {
		doc.Items = make(map[int64]T)
	}
	return doc, nil
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// nextID advances the document counter and returns the fresh id.
func (d *document[T]) nextID() int64 {
	d.Counter++
	return d.Counter
}

// claimID keeps the counter ahead of externally assigned ids.
func (d *document[T]) claimID(id int64) {
	if id > d.Counter {
		d.Counter = id
	}
}

func (fs *FileStorage) loadNotes() (*document[*note.Note], error) {
	return loadDoc[*note.Note](fs.noteFile)
}

func (fs *FileStorage) loadReminders() (*document[*reminder.Reminder], error) {
	return loadDoc[*reminder.Reminder](fs.reminderFile)
}

func (fs *FileStorage) loadImages() (*document[*note.Image], error) {
	return loadDoc[*note.Image](fs.imageFile)
}

// Note operations
func (fs *FileStorage) UpsertNotes(incoming []*note.Note) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	notes, err := fs.loadNotes()
	if err != nil {
		return err
	}
	for _, n := range incoming {
		c := n.Clone()
		if c.ID == 0 {
			c.ID = notes.nextID()
		} else {
			notes.claimID(c.ID)
		}
		n.ID = c.ID
		notes.Items[c.ID] = c
	}
	return saveJSON(fs.noteFile, notes)
}

func (fs *FileStorage) GetNote(id int64) (*note.Note, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	notes, err := fs.loadNotes()
	if err != nil {
		return nil, err
	}
	n, ok := notes.Items[id]
	if !ok {
		return nil, ErrNoteNotFound
	}
	return n, nil
}

func (fs *FileStorage) ListNotes() ([]*note.Note, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	notes, err := fs.loadNotes()
	if err != nil {
		return nil, err
	}
	var list []*note.Note
	for _, n := range notes.Items {
		list = append(list, n)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (fs *FileStorage) DeleteNote(id int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	notes, err := fs.loadNotes()
	if err != nil {
		return err
	}
	delete(notes.Items, id)
	if err := saveJSON(fs.noteFile, notes); err != nil {
		return err
	}
	reminders, err := fs.loadReminders()
	if err != nil {
		return err
	}
	for rid, r := range reminders.Items {
		if r.NoteID == id {
			delete(reminders.Items, rid)
		}
	}
	if err := saveJSON(fs.reminderFile, reminders); err != nil {
		return err
	}
	images, err := fs.loadImages()
	if err != nil {
		return err
	}
	for iid, img := range images.Items {
		if img.NoteID == id {
			delete(images.Items, iid)
		}
	}
	return saveJSON(fs.imageFile, images)
}

// Reminder operations
func (fs *FileStorage) InsertReminder(r *reminder.Reminder) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	notes, err := fs.loadNotes()
	if err != nil {
		return 0, err
	}
	if _, ok := notes.Items[r.NoteID]; !ok {
		return 0, ErrNoteNotFound
	}
	reminders, err := fs.loadReminders()
	if err != nil {
		return 0, err
	}
	c := r.Clone()
	c.ID = reminders.nextID()
	reminders.Items[c.ID] = c
	if err := saveJSON(fs.reminderFile, reminders); err != nil {
		return 0, err
	}
	return c.ID, nil
}

func (fs *FileStorage) GetReminder(id int64) (*reminder.Reminder, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	reminders, err := fs.loadReminders()
	if err != nil {
		return nil, err
	}
	r, ok := reminders.Items[id]
	if !ok {
		return nil, ErrReminderNotFound
	}
	return r, nil
}

func (fs *FileStorage) MarkReminderCompleted(id int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	reminders, err := fs.loadReminders()
	if err != nil {
		return err
	}
	r, ok := reminders.Items[id]
	if !ok || r.Completed {
		return nil
	}
	r.MarkCompleted()
	return saveJSON(fs.reminderFile, reminders)
}

func (fs *FileStorage) DeleteReminder(id int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	reminders, err := fs.loadReminders()
	if err != nil {
		return err
	}
	if _, ok := reminders.Items[id]; !ok {
		return nil
	}
	delete(reminders.Items, id)
	return saveJSON(fs.reminderFile, reminders)
}

func (fs *FileStorage) ListPendingReminders(asOf int64) ([]*reminder.Reminder, error) {
	return fs.filterReminders(func(r *reminder.Reminder) bool {
		return !r.Completed && r.TriggerAt > asOf
	})
}

func (fs *FileStorage) ListDueReminders(asOf int64) ([]*reminder.Reminder, error) {
	return fs.filterReminders(func(r *reminder.Reminder) bool {
		return !r.Completed && r.TriggerAt <= asOf
	})
}

func (fs *FileStorage) ListNoteReminders(noteID int64) ([]*reminder.Reminder, error) {
	return fs.filterReminders(func(r *reminder.Reminder) bool {
		return !r.Completed && r.NoteID == noteID
	})
}

func (fs *FileStorage) filterReminders(keep func(*reminder.Reminder) bool) ([]*reminder.Reminder, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	reminders, err := fs.loadReminders()
	if err != nil {
		return nil, err
	}
	var list []*reminder.Reminder
	for _, r := range reminders.Items {
		if keep(r) {
			list = append(list, r)
		}
	}
	sortReminders(list)
	return list, nil
}

// Image operations
func (fs *FileStorage) SaveImage(img *note.Image) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	notes, err := fs.loadNotes()
	if err != nil {
		return 0, err
	}
	n, ok := notes.Items[img.NoteID]
	if !ok {
		return 0, ErrNoteNotFound
	}
	images, err := fs.loadImages()
	if err != nil {
		return 0, err
	}
	c := *img
	c.ID = images.nextID()
	images.Items[c.ID] = &c
	if err := saveJSON(fs.imageFile, images); err != nil {
		return 0, err
	}
	n.HasImages = true
	if err := saveJSON(fs.noteFile, notes); err != nil {
		return 0, err
	}
	return c.ID, nil
}

func (fs *FileStorage) ListImages(noteID int64) ([]*note.Image, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	images, err := fs.loadImages()
	if err != nil {
		return nil, err
	}
	var list []*note.Image
	for _, img := range images.Items {
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

func (fs *FileStorage) GetImageData(id int64) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	images, err := fs.loadImages()
	if err != nil {
		return "", err
	}
	img, ok := images.Items[id]
	if !ok {
		return "", ErrImageNotFound
	}
	return img.ImageData, nil
}

func (fs *FileStorage) DeleteImage(id int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	images, err := fs.loadImages()
	if err != nil {
		return err
	}
	img, ok := images.Items[id]
	if !ok {
		return nil
	}
	delete(images.Items, id)
	if err := saveJSON(fs.imageFile, images); err != nil {
		return err
	}
	remaining := false
	for _, other := range images.Items {
		if other.NoteID == img.NoteID {
			remaining = true
			break
		}
	}
	if !remaining {
		notes, err := fs.loadNotes()
		if err != nil {
			return err
		}
		if n, ok := notes.Items[img.NoteID]; ok {
			n.HasImages = false
			return saveJSON(fs.noteFile, notes)
		}
	}
	return nil
}

// Settings operations
func (fs *FileStorage) LoadSettings() (map[string]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.loadSettingsLocked()
}

func (fs *FileStorage) loadSettingsLocked() (map[string]string, error) {
	settings := DefaultSettings()
	if _, err := os.Stat(fs.settingsFile); os.IsNotExist(err) {
		return settings, nil
	}
	data, err := os.ReadFile(fs.settingsFile)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return settings, nil
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func (fs *FileStorage) SaveSettings(incoming map[string]string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	settings, err := fs.loadSettingsLocked()
	if err != nil {
		return err
	}
	for k, v := range incoming {
		settings[k] = v
	}
	return saveJSON(fs.settingsFile, settings)
}

func (fs *FileStorage) Close() error {
	return nil
}
